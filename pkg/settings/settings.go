// Package settings holds the configuration of a barcode count mode and its
// JSON (with comments) representation.
package settings

import (
	"maps"
	"slices"
	"time"

	"barcodecount/pkg/barcode"
)

// DuplicateFilter values with special meaning.
const (
	// ReportOnce reports a payload a single time until the mode is reset or
	// disabled.
	ReportOnce time.Duration = -1
	// ReportAlways reports a payload in every frame it is present.
	ReportAlways time.Duration = 0
)

// Settings configures a barcode count mode. A mode keeps its own clone, so
// callers may keep modifying a Settings value after applying it.
type Settings struct {
	symbologies map[barcode.Symbology]*barcode.SymbologySettings
	filtered    map[barcode.Symbology]bool
	properties  map[string]any

	// DuplicateFilter is the minimum interval between two reports of the
	// same payload. See ReportOnce and ReportAlways.
	DuplicateFilter time.Duration
	// TrackUniqueBarcodes associates detections by payload alone, so a
	// payload seen anywhere in the frame keeps its id.
	TrackUniqueBarcodes bool
}

// New returns settings with every symbology disabled and payloads reported
// once.
func New() *Settings {
	s := &Settings{
		symbologies:     make(map[barcode.Symbology]*barcode.SymbologySettings),
		filtered:        make(map[barcode.Symbology]bool),
		properties:      make(map[string]any),
		DuplicateFilter: ReportOnce,
	}
	for _, sym := range barcode.AllSymbologies() {
		s.symbologies[sym] = barcode.NewSymbologySettings(sym)
	}
	return s
}

// SettingsFor returns the mutable settings of a symbology.
func (s *Settings) SettingsFor(sym barcode.Symbology) *barcode.SymbologySettings {
	ss, ok := s.symbologies[sym]
	if !ok {
		ss = barcode.NewSymbologySettings(sym)
		s.symbologies[sym] = ss
	}
	return ss
}

// EnableSymbologies enables every listed symbology, leaving the others
// untouched.
func (s *Settings) EnableSymbologies(syms ...barcode.Symbology) {
	for _, sym := range syms {
		s.SettingsFor(sym).Enabled = true
	}
}

func (s *Settings) SetSymbologyEnabled(sym barcode.Symbology, enabled bool) {
	s.SettingsFor(sym).Enabled = enabled
}

// EnabledSymbologies lists the enabled symbologies in ascending order.
func (s *Settings) EnabledSymbologies() []barcode.Symbology {
	var out []barcode.Symbology
	for sym, ss := range s.symbologies {
		if ss.Enabled {
			out = append(out, sym)
		}
	}
	slices.Sort(out)
	return out
}

// FilteredSymbologies lists the symbologies that are tracked but never
// counted.
func (s *Settings) FilteredSymbologies() []barcode.Symbology {
	out := slices.Collect(maps.Keys(s.filtered))
	slices.Sort(out)
	return out
}

// SetFilteredSymbologies replaces the filtered set.
func (s *Settings) SetFilteredSymbologies(syms ...barcode.Symbology) {
	s.filtered = make(map[barcode.Symbology]bool, len(syms))
	for _, sym := range syms {
		s.filtered[sym] = true
	}
}

func (s *Settings) IsFiltered(sym barcode.Symbology) bool {
	return s.filtered[sym]
}

// SetProperty stores an advanced, free-form setting.
func (s *Settings) SetProperty(name string, value any) {
	s.properties[name] = value
}

// Property returns the value stored with SetProperty.
func (s *Settings) Property(name string) (any, bool) {
	v, ok := s.properties[name]
	return v, ok
}

// Accepts reports whether a detection may be tracked: its symbology is
// enabled and, once decoded, its payload length is allowed.
func (s *Settings) Accepts(det barcode.Detection) bool {
	ss, ok := s.symbologies[det.Barcode.Symbology]
	if !ok || !ss.Enabled {
		// Undecoded detections carry no symbology yet.
		return !det.Scanned
	}
	return !det.Scanned || ss.AcceptsLength(det.Barcode.Data)
}

// Clone returns a deep copy. Property values are copied shallowly.
func (s *Settings) Clone() *Settings {
	c := &Settings{
		symbologies:         make(map[barcode.Symbology]*barcode.SymbologySettings, len(s.symbologies)),
		filtered:            maps.Clone(s.filtered),
		properties:          maps.Clone(s.properties),
		DuplicateFilter:     s.DuplicateFilter,
		TrackUniqueBarcodes: s.TrackUniqueBarcodes,
	}
	for sym, ss := range s.symbologies {
		c.symbologies[sym] = ss.Clone()
	}
	return c
}
