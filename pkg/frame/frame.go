// Package frame defines the unit of work flowing from a frame source through
// the capture context into capture modes.
package frame

import (
	"image"
	"time"

	"barcodecount/pkg/barcode"
)

// Frame is a single image delivered by a frame source.
//
// Detections, when non-nil, carry pre-decoded results (scripted sources) and
// take precedence over decoding Image.
type Frame struct {
	Index      uint64
	Timestamp  time.Time
	Image      image.Image
	Detections []barcode.Detection
	// Interrupted marks the first frame after a capture interruption.
	Interrupted bool
	Source      string
}

// Size returns the image dimensions, or zero when the frame has no image.
func (f *Frame) Size() (width, height int) {
	if f == nil || f.Image == nil {
		return 0, 0
	}
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}
