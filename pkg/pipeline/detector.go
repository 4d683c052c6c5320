// Package pipeline turns frames into tracked barcodes: a Detector finds the
// barcodes in a single frame and a Tracker associates them across frames.
package pipeline

import (
	"slices"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/frame"
	"barcodecount/pkg/io"
)

// Detector finds the barcodes of the enabled symbologies in a frame.
type Detector interface {
	Detect(f *frame.Frame, enabled []barcode.Symbology) ([]barcode.Detection, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(f *frame.Frame, enabled []barcode.Symbology) ([]barcode.Detection, error)

func (fn DetectorFunc) Detect(f *frame.Frame, enabled []barcode.Symbology) ([]barcode.Detection, error) {
	return fn(f, enabled)
}

// DefaultDetector returns a frame's scripted detections when it carries
// them, and otherwise decodes the frame image with gozxing.
type DefaultDetector struct {
	Options io.DecoderOptions

	decoder *io.Decoder
	forSyms []barcode.Symbology
}

func NewDefaultDetector(opts io.DecoderOptions) *DefaultDetector {
	return &DefaultDetector{Options: opts}
}

func (d *DefaultDetector) Detect(f *frame.Frame, enabled []barcode.Symbology) ([]barcode.Detection, error) {
	if f.Detections != nil || f.Image == nil {
		return f.Detections, nil
	}
	if d.decoder == nil || !slices.Equal(d.forSyms, enabled) {
		dec, err := io.NewDecoder(enabled, d.Options)
		if err != nil {
			return nil, err
		}
		d.decoder = dec
		d.forSyms = slices.Clone(enabled)
	}
	return d.decoder.Decode(f.Image)
}
