package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/tailscale/hujson"
	"golang.org/x/xerrors"

	"barcodecount/pkg/barcode"
)

// ErrInvalidDocument is wrapped by every error caused by malformed settings
// JSON.
var ErrInvalidDocument = errors.New("invalid settings document")

// Document keys.
const (
	keySymbologies         = "symbologies"
	keyDuplicateFilter     = "codeDuplicateFilter"
	keyTrackUnique         = "trackUniqueBarcodes"
	keyFilteredSymbologies = "filteredSymbologies"
	keyProperties          = "properties"
)

var knownKeys = []string{keySymbologies, keyDuplicateFilter, keyTrackUnique, keyFilteredSymbologies, keyProperties}

var knownSymbologyKeys = []string{"enabled", "activeSymbolCounts", "colorInvertedEnabled", "extensions"}

// document mirrors the JSON layout. Pointer fields distinguish "absent" from
// the zero value, so partial documents only touch what they name.
type document struct {
	Symbologies         map[string]json.RawMessage `json:"symbologies,omitempty"`
	DuplicateFilter     *float64                   `json:"codeDuplicateFilter,omitempty"` // seconds
	TrackUniqueBarcodes *bool                      `json:"trackUniqueBarcodes,omitempty"`
	FilteredSymbologies *[]string                  `json:"filteredSymbologies,omitempty"`
	Properties          map[string]any             `json:"properties,omitempty"`
}

type symbologyDocument struct {
	Enabled              *bool     `json:"enabled,omitempty"`
	ActiveSymbolCounts   *[]int    `json:"activeSymbolCounts,omitempty"`
	ColorInvertedEnabled *bool     `json:"colorInvertedEnabled,omitempty"`
	Extensions           *[]string `json:"extensions,omitempty"`
}

// Deserializer builds Settings from JSON documents. Comments and trailing
// commas are accepted. Keys it does not understand are reported by
// Warnings rather than failing the document.
type Deserializer struct {
	warnings []string
}

func NewDeserializer() *Deserializer {
	return &Deserializer{}
}

// Warnings lists the problems found in the last document that did not
// prevent it from being applied.
func (d *Deserializer) Warnings() []string {
	return slices.Clone(d.warnings)
}

// SettingsFromJSON builds settings from defaults plus the document.
func (d *Deserializer) SettingsFromJSON(data []byte) (*Settings, error) {
	return d.UpdateSettingsFromJSON(New(), data)
}

// UpdateSettingsFromJSON returns a copy of s with the document applied on
// top. s itself is never modified, also when an error is returned.
func (d *Deserializer) UpdateSettingsFromJSON(s *Settings, data []byte) (*Settings, error) {
	d.warnings = nil

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, invalid("malformed JSON: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(std, &raw); err != nil {
		return nil, invalid("document must be an object: %v", err)
	}
	d.warnUnknown("", raw, knownKeys)

	var doc document
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, invalid("%v", err)
	}

	out := s.Clone()
	if err := d.applySymbologies(out, doc.Symbologies); err != nil {
		return nil, err
	}
	if doc.DuplicateFilter != nil {
		out.DuplicateFilter = secondsToFilter(*doc.DuplicateFilter)
	}
	if doc.TrackUniqueBarcodes != nil {
		out.TrackUniqueBarcodes = *doc.TrackUniqueBarcodes
	}
	if doc.FilteredSymbologies != nil {
		syms, err := parseSymbologyNames(*doc.FilteredSymbologies)
		if err != nil {
			return nil, invalid("%s: %v", keyFilteredSymbologies, err)
		}
		out.SetFilteredSymbologies(syms...)
	}
	for name, v := range doc.Properties {
		out.SetProperty(name, v)
	}
	return out, nil
}

func (d *Deserializer) applySymbologies(s *Settings, docs map[string]json.RawMessage) error {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sym, err := barcode.ParseSymbology(name)
		if err != nil {
			return invalid("%s: %v", keySymbologies, err)
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(docs[name], &raw); err != nil {
			return invalid("%s.%s must be an object", keySymbologies, name)
		}
		d.warnUnknown(keySymbologies+"."+name+".", raw, knownSymbologyKeys)

		var sd symbologyDocument
		if err := json.Unmarshal(docs[name], &sd); err != nil {
			return invalid("%s.%s: %v", keySymbologies, name, err)
		}
		ss := s.SettingsFor(sym)
		if sd.Enabled != nil {
			ss.Enabled = *sd.Enabled
		}
		if sd.ActiveSymbolCounts != nil {
			for _, n := range *sd.ActiveSymbolCounts {
				if n <= 0 {
					return invalid("%s.%s: symbol count must be positive, got %d", keySymbologies, name, n)
				}
			}
			ss.ActiveSymbolCounts = slices.Clone(*sd.ActiveSymbolCounts)
		}
		if sd.ColorInvertedEnabled != nil {
			ss.ColorInvertedEnabled = *sd.ColorInvertedEnabled
		}
		if sd.Extensions != nil {
			ss.Extensions = slices.Clone(*sd.Extensions)
		}
	}
	return nil
}

func (d *Deserializer) warnUnknown(prefix string, raw map[string]json.RawMessage, known []string) {
	var unknown []string
	for key := range raw {
		if !slices.Contains(known, key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		d.warnings = append(d.warnings, fmt.Sprintf("unused key %q", prefix+key))
	}
}

// secondsToFilter maps the document value onto a duplicate filter; any
// negative number means ReportOnce. Windows beyond the range of a Duration
// saturate.
func secondsToFilter(sec float64) time.Duration {
	if sec < 0 {
		return ReportOnce
	}
	ns := sec * float64(time.Second)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// FilterToSeconds is the inverse of the document encoding.
func FilterToSeconds(d time.Duration) float64 {
	if d < 0 {
		return -1
	}
	return d.Seconds()
}

func parseSymbologyNames(names []string) ([]barcode.Symbology, error) {
	out := make([]barcode.Symbology, 0, len(names))
	for _, name := range names {
		sym, err := barcode.ParseSymbology(name)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, nil
}

func invalid(format string, args ...any) error {
	return xerrors.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidDocument)
}
