package termview

import (
	"testing"

	"github.com/nsf/termbox-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/overlay"
)

func TestProjectPlacesHighlights(t *testing.T) {
	v := overlay.View{
		FrameIndex: 7,
		Width:      1000,
		Height:     500,
		Style:      overlay.StyleIcon,
		Augmentations: []overlay.Augmentation{
			{ID: 1, Location: barcode.Rect(0, 0, 100, 50), State: overlay.StateTracked, Brush: overlay.DefaultScannedBrush()},
			{ID: 2, Location: barcode.Rect(900, 400, 100, 100), State: overlay.StateUntracked, Brush: overlay.DefaultUnscannedBrush()},
			{ID: 3, Location: barcode.Rect(500, 250, 10, 10), State: overlay.StateTracked},
		},
	}

	cells := Project(v, 10, 6)
	require.GreaterOrEqual(t, len(cells), 2)
	assert.Equal(t, Cell{X: 0, Y: 0, Ch: '✔', Fg: termbox.ColorGreen, Bg: termbox.ColorDefault}, cells[0])
	assert.Equal(t, Cell{X: 9, Y: 4, Ch: '?', Fg: termbox.ColorRed, Bg: termbox.ColorDefault}, cells[1])

	// The hidden barcode is skipped and the rest is the status line.
	for _, c := range cells[2:] {
		assert.Equal(t, 5, c.Y)
	}
	assert.Len(t, cells[2:], 10)
}

func TestProjectStatusLine(t *testing.T) {
	v := overlay.View{FrameIndex: 3, Hint: "Scanning..."}
	var line []rune
	for _, c := range Project(v, 80, 2) {
		line = append(line, c.Ch)
	}
	assert.Equal(t, "frame 3  0 barcodes  Scanning...", string(line))
}

func TestProjectDegenerateGrid(t *testing.T) {
	assert.Nil(t, Project(overlay.View{}, 0, 10))
	assert.Nil(t, Project(overlay.View{}, 10, 1))
}

func TestProjectWithoutFrameSize(t *testing.T) {
	v := overlay.View{
		Style: overlay.StyleDot,
		Augmentations: []overlay.Augmentation{
			{ID: 1, Location: barcode.Rect(0, 0, 10, 10), Brush: overlay.DefaultScannedBrush()},
			{ID: 2, Location: barcode.Rect(190, 90, 10, 10), Brush: overlay.DefaultScannedBrush()},
		},
	}
	cells := Project(v, 20, 11)
	assert.Equal(t, '●', cells[0].Ch)
	assert.Equal(t, 0, cells[0].X)
	assert.Equal(t, 19, cells[1].X)
	assert.Equal(t, 9, cells[1].Y)
}

type recordingTarget struct {
	taps       []barcode.Point
	list, exit int
}

func (r *recordingTarget) Tap(p barcode.Point) bool {
	r.taps = append(r.taps, p)
	return true
}

func (r *recordingTarget) TapListButton() bool {
	r.list++
	return true
}

func (r *recordingTarget) TapExitButton() bool {
	r.exit++
	return true
}

func TestHandleKeys(t *testing.T) {
	tests := []struct {
		name     string
		ev       termbox.Event
		list     int
		exit     int
		accepted bool
	}{
		{"list", termbox.Event{Type: termbox.EventKey, Ch: 'l'}, 1, 0, true},
		{"quit", termbox.Event{Type: termbox.EventKey, Ch: 'q'}, 0, 1, true},
		{"escape", termbox.Event{Type: termbox.EventKey, Key: termbox.KeyEsc}, 0, 1, true},
		{"other key", termbox.Event{Type: termbox.EventKey, Ch: 'x'}, 0, 0, false},
		{"resize", termbox.Event{Type: termbox.EventResize}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &recordingTarget{}
			assert.Equal(t, tt.accepted, Handle(tt.ev, target, overlay.View{}, 10, 6))
			assert.Equal(t, tt.list, target.list)
			assert.Equal(t, tt.exit, target.exit)
			assert.Empty(t, target.taps)
		})
	}
}

func TestHandleClickTapsUnderCell(t *testing.T) {
	v := overlay.View{Width: 1000, Height: 500}
	target := &recordingTarget{}

	click := termbox.Event{Type: termbox.EventMouse, Key: termbox.MouseLeft, MouseX: 9, MouseY: 4}
	require.True(t, Handle(click, target, v, 10, 6))
	require.Len(t, target.taps, 1)
	assert.Equal(t, barcode.Point{X: 950, Y: 450}, target.taps[0])
	assert.True(t, barcode.Rect(900, 400, 100, 100).Contains(target.taps[0]))

	// The status line and other buttons are not taps.
	assert.False(t, Handle(termbox.Event{Type: termbox.EventMouse, Key: termbox.MouseLeft, MouseX: 1, MouseY: 5}, target, v, 10, 6))
	assert.False(t, Handle(termbox.Event{Type: termbox.EventMouse, Key: termbox.MouseRight, MouseX: 1, MouseY: 1}, target, v, 10, 6))
	assert.Len(t, target.taps, 1)
}
