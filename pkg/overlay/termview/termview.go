// Package termview draws overlay views in a terminal with termbox.
package termview

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/nsf/termbox-go"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/log"
	"barcodecount/pkg/overlay"
)

// Cell is one terminal cell of a projected view.
type Cell struct {
	X, Y int
	Ch   rune
	Fg   termbox.Attribute
	Bg   termbox.Attribute
}

// Project maps a view onto a cols x rows grid. Highlights are placed at the
// barcode centres; the last row holds the status line.
func Project(v overlay.View, cols, rows int) []Cell {
	if cols <= 0 || rows <= 1 {
		return nil
	}
	w, h := float64(v.Width), float64(v.Height)
	if w <= 0 || h <= 0 {
		w, h = boundsOf(v.Augmentations)
	}
	field := rows - 1

	var cells []Cell
	for _, a := range v.Augmentations {
		if a.Brush == nil {
			continue
		}
		c := a.Location.Center()
		x := clamp(int(math.Floor(c.X/w*float64(cols))), 0, cols-1)
		y := clamp(int(math.Floor(c.Y/h*float64(field))), 0, field-1)
		cells = append(cells, Cell{X: x, Y: y, Ch: glyph(v.Style, a.State), Fg: attribute(a.Brush.Fill), Bg: termbox.ColorDefault})
	}

	status := fmt.Sprintf("frame %d  %d barcodes", v.FrameIndex, len(v.Augmentations))
	if v.Hint != "" {
		status += "  " + v.Hint
	}
	if v.Options.ShowListButton {
		status += "  [" + v.Options.ListButton.Label + "]"
	}
	if v.Options.ShowExitButton {
		status += "  [" + v.Options.ExitButton.Label + "]"
	}
	for i, r := range []rune(status) {
		if i >= cols {
			break
		}
		cells = append(cells, Cell{X: i, Y: rows - 1, Ch: r, Fg: termbox.ColorWhite, Bg: termbox.ColorDefault})
	}
	return cells
}

// Target receives the input read from the terminal. *overlay.BasicOverlay
// implements it.
type Target interface {
	Tap(p barcode.Point) bool
	TapListButton() bool
	TapExitButton() bool
}

// Handle routes one terminal event to t: 'l' taps the list button, 'q' and
// Esc tap the exit button and a left click taps the barcode under the cell.
// v is the view last drawn on a cols x rows grid. It reports whether t
// accepted the event.
func Handle(ev termbox.Event, t Target, v overlay.View, cols, rows int) bool {
	switch ev.Type {
	case termbox.EventKey:
		switch {
		case ev.Ch == 'l' || ev.Ch == 'L':
			return t.TapListButton()
		case ev.Ch == 'q' || ev.Ch == 'Q' || ev.Key == termbox.KeyEsc:
			return t.TapExitButton()
		}
	case termbox.EventMouse:
		if ev.Key != termbox.MouseLeft || cols <= 0 || rows <= 1 || ev.MouseY >= rows-1 {
			return false
		}
		w, h := float64(v.Width), float64(v.Height)
		if w <= 0 || h <= 0 {
			w, h = boundsOf(v.Augmentations)
		}
		return t.Tap(barcode.Point{
			X: (float64(ev.MouseX) + 0.5) * w / float64(cols),
			Y: (float64(ev.MouseY) + 0.5) * h / float64(rows-1),
		})
	}
	return false
}

func glyph(style overlay.Style, state overlay.State) rune {
	switch {
	case style == overlay.StyleDot:
		return '●'
	case state == overlay.StateUntracked:
		return '?'
	default:
		return '✔'
	}
}

// attribute picks the closest of the basic terminal colors.
func attribute(c color.RGBA) termbox.Attribute {
	palette := []struct {
		c    color.RGBA
		attr termbox.Attribute
	}{
		{color.RGBA{0, 0, 0, 0xff}, termbox.ColorBlack},
		{color.RGBA{0xcd, 0, 0, 0xff}, termbox.ColorRed},
		{color.RGBA{0, 0xcd, 0, 0xff}, termbox.ColorGreen},
		{color.RGBA{0xcd, 0xcd, 0, 0xff}, termbox.ColorYellow},
		{color.RGBA{0, 0, 0xee, 0xff}, termbox.ColorBlue},
		{color.RGBA{0xcd, 0, 0xcd, 0xff}, termbox.ColorMagenta},
		{color.RGBA{0, 0xcd, 0xcd, 0xff}, termbox.ColorCyan},
		{color.RGBA{0xe5, 0xe5, 0xe5, 0xff}, termbox.ColorWhite},
	}
	best, bestDist := termbox.ColorDefault, math.MaxFloat64
	for _, p := range palette {
		dr := float64(c.R) - float64(p.c.R)
		dg := float64(c.G) - float64(p.c.G)
		db := float64(c.B) - float64(p.c.B)
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			best, bestDist = p.attr, d
		}
	}
	return best
}

func boundsOf(augs []overlay.Augmentation) (float64, float64) {
	w, h := 1.0, 1.0
	for _, a := range augs {
		for _, p := range a.Location.Corners() {
			w = math.Max(w, p.X+1)
			h = math.Max(h, p.Y+1)
		}
	}
	return w, h
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Renderer is an overlay.Renderer drawing into the terminal.
type Renderer struct {
	mu         sync.Mutex
	active     bool
	last       overlay.View
	cols, rows int
}

// NewRenderer takes over the terminal until Close.
func NewRenderer() (*Renderer, error) {
	if err := termbox.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}
	termbox.SetInputMode(termbox.InputEsc | termbox.InputMouse)
	return &Renderer{active: true}, nil
}

// Run reads terminal input and hands it to t until ctx is done. Close must
// not be called before Run has returned.
func (r *Renderer) Run(ctx context.Context, t Target) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			termbox.Interrupt()
		case <-stop:
		}
	}()

	for {
		ev := termbox.PollEvent()
		switch ev.Type {
		case termbox.EventInterrupt:
			return
		case termbox.EventError:
			log.Error("Terminal input failed: %v", ev.Err)
			return
		}
		r.mu.Lock()
		v, cols, rows := r.last, r.cols, r.rows
		r.mu.Unlock()
		Handle(ev, t, v, cols, rows)
	}
}

func (r *Renderer) Render(v overlay.View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil
	}
	if err := termbox.Clear(termbox.ColorDefault, termbox.ColorDefault); err != nil {
		return err
	}
	cols, rows := termbox.Size()
	r.last, r.cols, r.rows = v, cols, rows
	for _, c := range Project(v, cols, rows) {
		termbox.SetCell(c.X, c.Y, c.Ch, c.Fg, c.Bg)
	}
	return termbox.Flush()
}

// Close gives the terminal back.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		termbox.Close()
		r.active = false
	}
}
