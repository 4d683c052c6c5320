package barcode

import "fmt"

// Barcode is a decoded payload.
type Barcode struct {
	Symbology Symbology
	Data      string
}

// Key identifies the payload for duplicate filtering and content matching.
func (b Barcode) Key() string {
	return b.Symbology.String() + ":" + b.Data
}

func (b Barcode) String() string {
	return fmt.Sprintf("%s(%q)", b.Symbology, b.Data)
}

// Detection is a single barcode found in a single frame, before tracking.
// Scanned is false when the barcode was located but not decoded.
type Detection struct {
	Barcode  Barcode
	Location Quadrilateral
	Scanned  bool
}

// TrackedBarcode is a barcode followed across frames. Values are never
// modified after they are published, so they may be retained freely.
type TrackedBarcode struct {
	ID       int
	Barcode  Barcode
	Location Quadrilateral
	Scanned  bool
}

func (t *TrackedBarcode) String() string {
	return fmt.Sprintf("#%d %s @%s", t.ID, t.Barcode, t.Location.Center())
}
