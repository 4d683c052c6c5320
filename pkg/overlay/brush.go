package overlay

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Style selects how barcodes are highlighted.
type Style int

const (
	// StyleIcon draws an icon over each barcode.
	StyleIcon Style = iota
	// StyleDot draws a dot at the centre of each barcode.
	StyleDot
)

func (s Style) String() string {
	if s == StyleDot {
		return "dot"
	}
	return "icon"
}

// ParseStyle accepts "dot" and "icon".
func ParseStyle(name string) (Style, error) {
	switch strings.ToLower(name) {
	case "dot":
		return StyleDot, nil
	case "icon":
		return StyleIcon, nil
	default:
		return StyleIcon, fmt.Errorf("unknown overlay style %q", name)
	}
}

// Brush is the visual of a highlighted barcode.
type Brush struct {
	Fill        color.RGBA
	Stroke      color.RGBA
	StrokeWidth float64
}

// DefaultScannedBrush is used for barcodes that were decoded.
func DefaultScannedBrush() *Brush {
	return &Brush{
		Fill:        color.RGBA{R: 0x28, G: 0xd3, B: 0x40, A: 0xff},
		Stroke:      color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		StrokeWidth: 2,
	}
}

// DefaultUnscannedBrush is used for barcodes that were located but not
// decoded.
func DefaultUnscannedBrush() *Brush {
	return &Brush{
		Fill:        color.RGBA{R: 0xfa, G: 0x44, B: 0x46, A: 0xff},
		Stroke:      color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		StrokeWidth: 2,
	}
}

// brushDocument is the JSON form of a brush; colors are "#RRGGBB" or
// "#RRGGBBAA".
type brushDocument struct {
	Fill        string  `json:"fillColor"`
	Stroke      string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
}

func (b *Brush) MarshalJSON() ([]byte, error) {
	return json.Marshal(brushDocument{
		Fill:        formatColor(b.Fill),
		Stroke:      formatColor(b.Stroke),
		StrokeWidth: b.StrokeWidth,
	})
}

func (b *Brush) UnmarshalJSON(data []byte) error {
	var doc brushDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	fill, err := parseColor(doc.Fill)
	if err != nil {
		return fmt.Errorf("fillColor: %w", err)
	}
	stroke, err := parseColor(doc.Stroke)
	if err != nil {
		return fmt.Errorf("strokeColor: %w", err)
	}
	*b = Brush{Fill: fill, Stroke: stroke, StrokeWidth: doc.StrokeWidth}
	return nil
}

func formatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

func parseColor(s string) (color.RGBA, error) {
	if s == "" {
		return color.RGBA{}, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 6 {
		hex += "FF"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("malformed color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("malformed color %q", s)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
