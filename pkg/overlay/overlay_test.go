package overlay

import (
	"image/color"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/capture"
	"barcodecount/pkg/count"
	"barcodecount/pkg/frame"
	"barcodecount/pkg/hardware"
	"barcodecount/pkg/settings"
)

type recordingRenderer struct {
	views []View
}

func (r *recordingRenderer) Render(v View) error {
	r.views = append(r.views, v)
	return nil
}

type recordingDelegate struct {
	asked  []int
	tapped []int
	hide   map[int]bool
}

func (d *recordingDelegate) BrushForTracked(_ *BasicOverlay, b *barcode.TrackedBarcode) *Brush {
	d.asked = append(d.asked, b.ID)
	if d.hide[b.ID] {
		return nil
	}
	return &Brush{Fill: color.RGBA{B: 0xff, A: 0xff}}
}

func (d *recordingDelegate) BrushForUntracked(_ *BasicOverlay, b *barcode.TrackedBarcode) *Brush {
	d.asked = append(d.asked, -b.ID)
	return DefaultUnscannedBrush()
}

func (d *recordingDelegate) DidTapTracked(_ *BasicOverlay, b *barcode.TrackedBarcode) {
	d.tapped = append(d.tapped, b.ID)
}

func (d *recordingDelegate) DidTapUntracked(_ *BasicOverlay, b *barcode.TrackedBarcode) {
	d.tapped = append(d.tapped, -b.ID)
}

type buttons struct {
	list, exit int
}

func (b *buttons) ListButtonTapped(*BasicOverlay) { b.list++ }
func (b *buttons) ExitButtonTapped(*BasicOverlay) { b.exit++ }

type fixture struct {
	ctx      *capture.Context
	mode     *count.BarcodeCount
	overlay  *BasicOverlay
	renderer *recordingRenderer
	index    uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := settings.New()
	s.EnableSymbologies(barcode.SymbologyCode128)
	s.DuplicateFilter = settings.ReportAlways
	ctx := capture.NewContext(nil, hardware.NewCore(nil, 1), nil)
	m := count.New(ctx, s)
	r := &recordingRenderer{}
	o := New(m, r, StyleDot)
	m.StartScanningPhase()
	return &fixture{ctx: ctx, mode: m, overlay: o, renderer: r}
}

func (f *fixture) feed(dets ...barcode.Detection) {
	f.ctx.ProcessFrame(&frame.Frame{
		Index:      f.index,
		Timestamp:  time.Unix(int64(f.index), 0),
		Detections: append([]barcode.Detection{}, dets...),
	})
	f.index++
}

func scanned(data string, x float64) barcode.Detection {
	return barcode.Detection{
		Barcode:  barcode.Barcode{Symbology: barcode.SymbologyCode128, Data: data},
		Location: barcode.Rect(x, 100, 100, 40),
		Scanned:  true,
	}
}

func located(x float64) barcode.Detection {
	return barcode.Detection{Location: barcode.Rect(x, 300, 100, 40)}
}

func TestOverlayUsesDefaultBrushes(t *testing.T) {
	f := newFixture(t)
	f.feed(scanned("ITEM-0001", 0), located(400))

	require.Len(t, f.renderer.views, 1)
	v := f.renderer.views[0]
	assert.Equal(t, StyleDot, v.Style)
	require.Len(t, v.Augmentations, 2)
	assert.Equal(t, StateTracked, v.Augmentations[0].State)
	assert.Equal(t, DefaultScannedBrush(), v.Augmentations[0].Brush)
	assert.Equal(t, StateUntracked, v.Augmentations[1].State)
	assert.Equal(t, DefaultUnscannedBrush(), v.Augmentations[1].Brush)
	assert.Equal(t, DefaultOptions().Hints.UnscannedBarcodesDetected, v.Hint)
}

func TestOverlayAsksDelegateOncePerID(t *testing.T) {
	f := newFixture(t)
	d := &recordingDelegate{}
	f.overlay.SetDelegate(d)

	f.feed(scanned("ITEM-0001", 0), located(400))
	f.feed(scanned("ITEM-0001", 5), located(405))
	ids := f.mode.Session().TrackedBarcodes()
	require.Len(t, ids, 2)

	var untrackedID int
	for id, item := range ids {
		if !item.Scanned {
			untrackedID = id
		}
	}
	// The located barcode gets decoded and is asked about once more.
	dec := scanned("ITEM-0002", 405)
	dec.Location = located(405).Location
	f.feed(scanned("ITEM-0001", 5), dec)

	assert.Len(t, d.asked, 3)
	assert.Contains(t, d.asked, -untrackedID)
	assert.Contains(t, d.asked, untrackedID)
}

func TestOverlayHiddenBarcodeIsNotTappable(t *testing.T) {
	f := newFixture(t)
	f.feed(scanned("ITEM-0001", 0), scanned("ITEM-0002", 400))
	var hiddenID, shownID int
	for _, a := range f.overlay.Augmentations() {
		if a.Location.Contains(barcode.Point{X: 50, Y: 120}) {
			hiddenID = a.ID
		} else {
			shownID = a.ID
		}
	}

	d := &recordingDelegate{hide: map[int]bool{hiddenID: true}}
	f.overlay.SetDelegate(d)
	f.feed(scanned("ITEM-0001", 0), scanned("ITEM-0002", 400))

	assert.False(t, f.overlay.Tap(barcode.Point{X: 50, Y: 120}))
	assert.True(t, f.overlay.Tap(barcode.Point{X: 450, Y: 120}))
	assert.False(t, f.overlay.Tap(barcode.Point{X: 300, Y: 120}))
	assert.Empty(t, d.tapped, "taps are delivered on the interaction queue")

	assert.Equal(t, 1, f.ctx.Queue().Drain())
	assert.Equal(t, []int{shownID}, d.tapped)
}

func TestOverlayButtons(t *testing.T) {
	f := newFixture(t)
	b := &buttons{}
	assert.False(t, f.overlay.TapListButton())

	f.overlay.SetUIDelegate(b)
	assert.True(t, f.overlay.TapListButton())
	assert.True(t, f.overlay.TapExitButton())

	opts := f.overlay.Options()
	opts.ShowExitButton = false
	f.overlay.SetOptions(opts)
	assert.False(t, f.overlay.TapExitButton())

	f.ctx.Queue().Drain()
	assert.Equal(t, buttons{list: 1, exit: 1}, *b)

	f.ctx.RemoveMode(f.mode)
	assert.False(t, f.overlay.TapListButton())
}

func TestOverlayDetach(t *testing.T) {
	f := newFixture(t)
	f.feed(scanned("ITEM-0001", 0))
	f.overlay.Detach()
	assert.Empty(t, f.overlay.Augmentations())

	f.feed(scanned("ITEM-0001", 0))
	assert.Len(t, f.renderer.views, 1)
}

func TestOverlayHints(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, opts.Hints.TapShutterToScan, opts.hint(0, false))
	assert.Equal(t, opts.Hints.UnscannedBarcodesDetected, opts.hint(3, true))
	assert.Empty(t, opts.hint(3, false))

	opts.ShowShutterButton = false
	assert.Equal(t, opts.Hints.Scanning, opts.hint(0, false))

	opts.ShowHints = false
	assert.Empty(t, opts.hint(0, true))
}

func TestUpdateFromJSON(t *testing.T) {
	f := newFixture(t)
	err := UpdateFromJSON(f.overlay, []byte(`{
		// Hide undecoded barcodes.
		"unscannedBrush": null,
		"scannedBrush": {"fillColor": "#0000FF", "strokeColor": "#FFFFFF80", "strokeWidth": 1},
		"options": {"shouldShowListButton": false, "hints": {"scanning": "Hold still"}},
	}`))
	require.NoError(t, err)

	assert.Nil(t, f.overlay.UnscannedBrush())
	want := &Brush{
		Fill:        color.RGBA{B: 0xff, A: 0xff},
		Stroke:      color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x80},
		StrokeWidth: 1,
	}
	if diff := cmp.Diff(want, f.overlay.ScannedBrush()); diff != "" {
		t.Errorf("scanned brush mismatch (-want +got):\n%s", diff)
	}
	opts := f.overlay.Options()
	assert.False(t, opts.ShowListButton)
	assert.True(t, opts.ShowExitButton)
	assert.Equal(t, "Hold still", opts.Hints.Scanning)
	assert.Equal(t, DefaultOptions().Hints.TapShutterToScan, opts.Hints.TapShutterToScan)

	for name, doc := range map[string]string{
		"malformed":   `{"options": `,
		"bad color":   `{"scannedBrush": {"fillColor": "blue"}}`,
		"bad options": `{"options": {"shouldShowHints": "yes"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, UpdateFromJSON(f.overlay, []byte(doc)), settings.ErrInvalidDocument)
			assert.Equal(t, want, f.overlay.ScannedBrush())
		})
	}
}

func TestBrushJSONRoundTrip(t *testing.T) {
	b := DefaultUnscannedBrush()
	data, err := b.MarshalJSON()
	require.NoError(t, err)
	var got Brush
	require.NoError(t, got.UnmarshalJSON(data))
	assert.Equal(t, *b, got)
}

func TestParseStyle(t *testing.T) {
	s, err := ParseStyle("Dot")
	require.NoError(t, err)
	assert.Equal(t, StyleDot, s)
	_, err = ParseStyle("halo")
	assert.Error(t, err)
}
