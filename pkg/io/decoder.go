// Package io moves barcodes between images and the count pipeline: it
// decodes frames with gozxing, loads frames from image and PDF files, and
// renders fixture sheets.
package io

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"slices"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/log"
)

// ErrUnsupportedSymbology is returned when no gozxing reader or writer is
// wired for a symbology.
var ErrUnsupportedSymbology = errors.New("unsupported symbology")

// linearPad is the half height, in pixels, given to 1D results, which
// gozxing reports as a pair of points on the scan line.
const linearPad = 8.0

// mergeDistance is the centroid distance under which two results with the
// same payload from overlapping tiles are the same barcode.
const mergeDistance = 24.0

type reader struct {
	sym    barcode.Symbology
	zxing  func() gozxing.Reader
	format gozxing.BarcodeFormat
	linear bool
}

var readers = map[barcode.Symbology]reader{
	barcode.SymbologyCode128:    {barcode.SymbologyCode128, func() gozxing.Reader { return oned.NewCode128Reader() }, gozxing.BarcodeFormat_CODE_128, true},
	barcode.SymbologyCode39:     {barcode.SymbologyCode39, func() gozxing.Reader { return oned.NewCode39Reader() }, gozxing.BarcodeFormat_CODE_39, true},
	barcode.SymbologyEAN13UPCA:  {barcode.SymbologyEAN13UPCA, func() gozxing.Reader { return oned.NewEAN13Reader() }, gozxing.BarcodeFormat_EAN_13, true},
	barcode.SymbologyEAN8:       {barcode.SymbologyEAN8, func() gozxing.Reader { return oned.NewEAN8Reader() }, gozxing.BarcodeFormat_EAN_8, true},
	barcode.SymbologyQR:         {barcode.SymbologyQR, func() gozxing.Reader { return qrcode.NewQRCodeReader() }, gozxing.BarcodeFormat_QR_CODE, false},
	barcode.SymbologyDataMatrix: {barcode.SymbologyDataMatrix, func() gozxing.Reader { return datamatrix.NewDataMatrixReader() }, gozxing.BarcodeFormat_DATA_MATRIX, false},
}

// SupportsDecoding reports whether sym can be decoded.
func SupportsDecoding(sym barcode.Symbology) bool {
	_, ok := readers[sym]
	return ok
}

// DecoderOptions controls how an image is searched.
type DecoderOptions struct {
	// Grid splits the image into Grid x Grid tiles that are decoded
	// separately, so several barcodes per frame can be found. Values below 1
	// decode the whole image only.
	Grid int
	// TryHarder enables the slower, more exhaustive gozxing search.
	TryHarder bool
}

// Decoder finds barcodes of a fixed set of symbologies in images.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	readers []reader
	opts    DecoderOptions
}

// NewDecoder creates a decoder for the given symbologies. Symbologies with
// no reader are skipped; an error wrapping ErrUnsupportedSymbology is
// returned only when none of them can be decoded.
func NewDecoder(symbologies []barcode.Symbology, opts DecoderOptions) (*Decoder, error) {
	d := &Decoder{opts: opts}
	var skipped []barcode.Symbology
	for _, sym := range symbologies {
		r, ok := readers[sym]
		if !ok {
			skipped = append(skipped, sym)
			continue
		}
		d.readers = append(d.readers, r)
	}
	if len(skipped) > 0 {
		log.Debug("No decoder for %v, skipping", skipped)
	}
	if len(d.readers) == 0 && len(symbologies) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSymbology, symbologies)
	}
	return d, nil
}

// Symbologies lists the symbologies the decoder searches for.
func (d *Decoder) Symbologies() []barcode.Symbology {
	out := make([]barcode.Symbology, len(d.readers))
	for i, r := range d.readers {
		out[i] = r.sym
	}
	return out
}

// Decode returns every barcode found in img. Not finding anything is not an
// error.
func (d *Decoder) Decode(img image.Image) ([]barcode.Detection, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	var found []barcode.Detection
	for _, rect := range d.regions(img.Bounds()) {
		dets, err := d.decodeRegion(img, rect)
		if err != nil {
			return nil, err
		}
		for _, det := range dets {
			found = merge(found, det)
		}
	}
	return found, nil
}

// regions returns the whole image followed by the grid tiles.
func (d *Decoder) regions(b image.Rectangle) []image.Rectangle {
	rects := []image.Rectangle{b}
	if d.opts.Grid <= 1 {
		return rects
	}
	w, h := b.Dx()/d.opts.Grid, b.Dy()/d.opts.Grid
	if w == 0 || h == 0 {
		return rects
	}
	for row := 0; row < d.opts.Grid; row++ {
		for col := 0; col < d.opts.Grid; col++ {
			minPt := b.Min.Add(image.Pt(col*w, row*h))
			rects = append(rects, image.Rectangle{Min: minPt, Max: minPt.Add(image.Pt(w, h))}.Intersect(b))
		}
	}
	return rects
}

func (d *Decoder) decodeRegion(img image.Image, rect image.Rectangle) ([]barcode.Detection, error) {
	sub := crop(img, rect)
	bmp, err := gozxing.NewBinaryBitmapFromImage(sub)
	if err != nil {
		return nil, fmt.Errorf("gozxing.NewBinaryBitmapFromImage failed: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if d.opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	var dets []barcode.Detection
	for _, r := range d.readers {
		result, err := r.zxing().Decode(bmp, hints)
		if err != nil {
			// gozxing reports "nothing here" as an error as well.
			log.Trace("No %s in %v: %v", r.sym, rect, err)
			continue
		}
		dets = append(dets, barcode.Detection{
			Barcode:  barcode.Barcode{Symbology: r.sym, Data: result.GetText()},
			Location: locate(result.GetResultPoints(), rect.Min, r.linear),
			Scanned:  true,
		})
	}
	return dets, nil
}

// locate converts result points, relative to the decoded region, into a
// quadrilateral in image coordinates.
func locate(points []gozxing.ResultPoint, origin image.Point, linear bool) barcode.Quadrilateral {
	pts := make([]barcode.Point, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		pts = append(pts, barcode.Point{X: p.GetX() + float64(origin.X), Y: p.GetY() + float64(origin.Y)})
	}
	q := barcode.BoundingQuad(pts)
	if linear && q.BottomLeft.Y-q.TopLeft.Y < 2*linearPad {
		c := q.Center()
		q = barcode.Rect(q.TopLeft.X, c.Y-linearPad, q.TopRight.X-q.TopLeft.X, 2*linearPad)
	}
	return q
}

// merge appends det unless a detection of the same payload already sits
// close by.
func merge(found []barcode.Detection, det barcode.Detection) []barcode.Detection {
	if slices.ContainsFunc(found, func(f barcode.Detection) bool {
		return f.Barcode == det.Barcode && f.Location.Center().Distance(det.Location.Center()) < mergeDistance
	}) {
		return found
	}
	return append(found, det)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// crop returns the rect portion of img, copying only when img cannot share
// its pixels.
func crop(img image.Image, rect image.Rectangle) image.Image {
	if rect == img.Bounds() {
		return img
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(rect)
	}
	dst := image.NewRGBA(rect)
	draw.Draw(dst, rect, img, rect.Min, draw.Src)
	return dst
}
