package barcode

import (
	"slices"
	"unicode/utf8"
)

// SymbologySettings configures decoding of a single symbology.
type SymbologySettings struct {
	Symbology Symbology
	Enabled   bool
	// ActiveSymbolCounts lists the payload lengths accepted for variable
	// length symbologies. Empty means any length.
	ActiveSymbolCounts   []int
	ColorInvertedEnabled bool
	Extensions           []string
}

// defaultSymbolCounts mirrors the restricted length range most scanners use
// for variable-length linear codes.
var defaultSymbolCounts = map[Symbology][2]int{
	SymbologyCode128: {6, 40},
	SymbologyCode39:  {6, 40},
	SymbologyCode93:  {6, 40},
	SymbologyITF:     {6, 40},
	SymbologyCodabar: {7, 20},
}

// NewSymbologySettings returns disabled settings with the default symbol
// count range for sym.
func NewSymbologySettings(sym Symbology) *SymbologySettings {
	s := &SymbologySettings{Symbology: sym}
	if r, ok := defaultSymbolCounts[sym]; ok {
		s.ActiveSymbolCounts = SymbolCountRange(r[0], r[1])
	}
	return s
}

// SymbolCountRange returns the inclusive range [min, max].
func SymbolCountRange(min, max int) []int {
	if max < min {
		return nil
	}
	out := make([]int, 0, max-min+1)
	for i := min; i <= max; i++ {
		out = append(out, i)
	}
	return out
}

// AcceptsLength reports whether a payload of the given data fits the
// active symbol counts.
func (s *SymbologySettings) AcceptsLength(data string) bool {
	if len(s.ActiveSymbolCounts) == 0 {
		return true
	}
	return slices.Contains(s.ActiveSymbolCounts, utf8.RuneCountInString(data))
}

// Clone returns a deep copy.
func (s *SymbologySettings) Clone() *SymbologySettings {
	c := *s
	c.ActiveSymbolCounts = slices.Clone(s.ActiveSymbolCounts)
	c.Extensions = slices.Clone(s.Extensions)
	return &c
}
