package io

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode/decoder"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/context"
	"barcodecount/pkg/metrics"
)

const (
	qrCodeSize     = 160
	barcodeWidth   = 360
	barcodeHeight  = 90
	sheetMargin    = 40
	pdfPointsPerMM = 2.8346
)

// SupportsEncoding reports whether sym can be rendered onto a sheet.
func SupportsEncoding(sym barcode.Symbology) bool {
	return sym == barcode.SymbologyCode128 || sym == barcode.SymbologyQR
}

// EncodeImage renders a single barcode.
func EncodeImage(b barcode.Barcode) (image.Image, error) {
	var (
		encoder       gozxing.Writer
		format        gozxing.BarcodeFormat
		width, height int
		hints         map[gozxing.EncodeHintType]interface{}
	)

	switch b.Symbology {
	case barcode.SymbologyCode128:
		encoder = oned.NewCode128Writer()
		format = gozxing.BarcodeFormat_CODE_128
		width, height = barcodeWidth, barcodeHeight
	case barcode.SymbologyQR:
		encoder = qrcode.NewQRCodeWriter()
		format = gozxing.BarcodeFormat_QR_CODE
		width, height = qrCodeSize, qrCodeSize
		hints = map[gozxing.EncodeHintType]interface{}{
			gozxing.EncodeHintType_ERROR_CORRECTION: decoder.ErrorCorrectionLevel_M,
		}
	default:
		return nil, fmt.Errorf("%w: cannot encode %s", ErrUnsupportedSymbology, b.Symbology)
	}

	img, err := encoder.Encode(b.Data, format, width, height, hints)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", b, err)
	}
	return img, nil
}

// Sheet is a rendered page of barcodes together with where each one was
// placed.
type Sheet struct {
	Image  *image.RGBA
	Placed []barcode.Detection
}

// ComposeSheet lays codes out on a white page, one per cell of a grid with
// the given number of columns.
func ComposeSheet(codes []barcode.Barcode, columns int) (*Sheet, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("no codes to place on the sheet")
	}
	if columns < 1 {
		columns = 1
	}
	imgs := make([]image.Image, len(codes))
	cellW, cellH := 0, 0
	for i, c := range codes {
		img, err := EncodeImage(c)
		if err != nil {
			return nil, err
		}
		imgs[i] = img
		cellW = max(cellW, img.Bounds().Dx())
		cellH = max(cellH, img.Bounds().Dy())
	}
	rows := (len(codes) + columns - 1) / columns
	cellW += sheetMargin
	cellH += sheetMargin

	page := image.NewRGBA(image.Rect(0, 0, columns*cellW+sheetMargin, rows*cellH+sheetMargin))
	draw.Draw(page, page.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	sheet := &Sheet{Image: page}
	for i, img := range imgs {
		x := sheetMargin + (i%columns)*cellW
		y := sheetMargin + (i/columns)*cellH
		b := img.Bounds()
		dst := image.Rect(x, y, x+b.Dx(), y+b.Dy())
		draw.Draw(page, dst, img, b.Min, draw.Src)
		sheet.Placed = append(sheet.Placed, barcode.Detection{
			Barcode:  codes[i],
			Location: barcode.Rect(float64(x), float64(y), float64(b.Dx()), float64(b.Dy())),
			Scanned:  true,
		})
	}
	return sheet, nil
}

// SheetWriter saves sheets as PNG and PDF files into a directory.
type SheetWriter struct {
	dir string
}

func NewSheetWriter(dir string) *SheetWriter {
	return &SheetWriter{dir: dir}
}

// Write saves the sheet as <name>.png and <name>.pdf and returns both paths.
func (w *SheetWriter) Write(ctx *context.OperationContext, name string, sheet *Sheet) (pngPath, pdfPath string, err error) {
	err = ctx.Recorder.Record("SaveSheet", metrics.MDiskWrite, func() error {
		pngPath = filepath.Join(w.dir, name+".png")
		if err := writeFile(pngPath, func(f io.Writer) error { return png.Encode(f, sheet.Image) }); err != nil {
			return err
		}
		pdfPath = filepath.Join(w.dir, name+".pdf")
		return writeFile(pdfPath, func(f io.Writer) error { return writeImageToPDF(sheet.Image, f) })
	})
	return pngPath, pdfPath, err
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// --- PDF Utility ---

// writeImageToPDF embeds an image as a JPEG page so pdfcpu can extract it
// back as a decodable stream.
func writeImageToPDF(img image.Image, w io.Writer) error {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return fmt.Errorf("jpeg encoding failed: %w", err)
	}

	widthMM := float64(img.Bounds().Dx()) / pdfPointsPerMM
	heightMM := float64(img.Bounds().Dy()) / pdfPointsPerMM
	pageSize := gofpdf.SizeType{Wd: widthMM, Ht: heightMM}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    pageSize,
	})
	pdf.AddPageFormat("P", pageSize)

	options := gofpdf.ImageOptions{ImageType: "JPEG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("sheet.jpg", options, buf)
	pdf.ImageOptions("sheet.jpg", 0, 0, widthMM, heightMM, false, options, 0, "")

	return pdf.Output(w)
}
