// Package barcode holds the value types shared by every stage of the count
// pipeline: symbologies, their decode settings, frame geometry and tracked
// barcodes.
package barcode

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSymbology is returned when a symbology name cannot be parsed.
var ErrUnknownSymbology = errors.New("unknown symbology")

// Symbology is an enumeration of barcode encoding standards.
type Symbology int

const (
	SymbologyUnknown Symbology = iota
	SymbologyEAN13UPCA
	SymbologyEAN8
	SymbologyUPCE
	SymbologyCode128
	SymbologyCode39
	SymbologyCode93
	SymbologyITF
	SymbologyCodabar
	SymbologyQR
	SymbologyDataMatrix
	SymbologyPDF417
	SymbologyAztec
)

var symbologyNames = map[Symbology]string{
	SymbologyEAN13UPCA:  "ean13-upca",
	SymbologyEAN8:       "ean8",
	SymbologyUPCE:       "upce",
	SymbologyCode128:    "code128",
	SymbologyCode39:     "code39",
	SymbologyCode93:     "code93",
	SymbologyITF:        "itf",
	SymbologyCodabar:    "codabar",
	SymbologyQR:         "qr",
	SymbologyDataMatrix: "data-matrix",
	SymbologyPDF417:     "pdf417",
	SymbologyAztec:      "aztec",
}

func (s Symbology) String() string {
	if name, ok := symbologyNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s Symbology) MarshalText() ([]byte, error) {
	if s == SymbologyUnknown {
		return nil, ErrUnknownSymbology
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Symbology) UnmarshalText(text []byte) error {
	parsed, err := ParseSymbology(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSymbology accepts the canonical name in any case, with or without
// separators, so "CODE128", "code_128" and "code128" all parse.
func ParseSymbology(name string) (Symbology, error) {
	want := normalizeName(name)
	for sym, canonical := range symbologyNames {
		if normalizeName(canonical) == want {
			return sym, nil
		}
	}
	switch want {
	case "ean13", "upca":
		return SymbologyEAN13UPCA, nil
	case "qrcode":
		return SymbologyQR, nil
	}
	return SymbologyUnknown, fmt.Errorf("%w: %q", ErrUnknownSymbology, name)
}

// ParseSymbologies parses a comma-separated list. Empty entries are skipped.
func ParseSymbologies(list string) ([]Symbology, error) {
	var out []Symbology
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sym, err := ParseSymbology(part)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, nil
}

// AllSymbologies lists every known symbology in declaration order.
func AllSymbologies() []Symbology {
	out := make([]Symbology, 0, len(symbologyNames))
	for s := SymbologyEAN13UPCA; s <= SymbologyAztec; s++ {
		out = append(out, s)
	}
	return out
}

func normalizeName(s string) string {
	r := strings.NewReplacer("-", "", "_", "", " ", "")
	return strings.ToLower(r.Replace(s))
}
