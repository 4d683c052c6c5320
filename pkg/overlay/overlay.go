// Package overlay turns the tracked barcodes of a count session into
// highlight augmentations for a host UI and routes taps on them back to the
// application.
package overlay

import (
	"slices"
	"sync"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/count"
	"barcodecount/pkg/frame"
	"barcodecount/pkg/log"
	"barcodecount/pkg/session"
)

// State tells decoded barcodes from located ones.
type State int

const (
	// StateTracked is a decoded barcode.
	StateTracked State = iota
	// StateUntracked is a barcode that was located but not decoded.
	StateUntracked
)

func (s State) String() string {
	if s == StateUntracked {
		return "untracked"
	}
	return "tracked"
}

// Augmentation is one highlight to draw.
type Augmentation struct {
	ID       int
	Location barcode.Quadrilateral
	State    State
	Brush    *Brush
	Barcode  *barcode.TrackedBarcode
}

// View is everything a renderer draws for one frame.
type View struct {
	FrameIndex    uint64
	Width, Height int
	Style         Style
	Augmentations []Augmentation
	Options       Options
	// Hint is the guidance text to show, empty for none.
	Hint string
}

// Renderer draws views on the host UI surface. Render runs on the
// processing goroutine.
type Renderer interface {
	Render(v View) error
}

// Delegate customizes brushes and receives taps. Brush methods run on the
// processing goroutine once per barcode id; DidTap methods run on the
// interaction queue. Returning a nil brush hides the barcode and makes it
// untappable.
type Delegate interface {
	BrushForTracked(o *BasicOverlay, b *barcode.TrackedBarcode) *Brush
	BrushForUntracked(o *BasicOverlay, b *barcode.TrackedBarcode) *Brush
	DidTapTracked(o *BasicOverlay, b *barcode.TrackedBarcode)
	DidTapUntracked(o *BasicOverlay, b *barcode.TrackedBarcode)
}

// UIDelegate receives button taps on the interaction queue.
type UIDelegate interface {
	ListButtonTapped(o *BasicOverlay)
	ExitButtonTapped(o *BasicOverlay)
}

// BasicOverlay highlights every barcode in the session of a mode.
type BasicOverlay struct {
	mode     *count.BarcodeCount
	style    Style
	renderer Renderer

	mu              sync.Mutex
	delegate        Delegate
	delegateChanged bool
	uiDelegate      UIDelegate
	scannedBrush    *Brush
	unscannedBrush  *Brush
	options         Options
	last            []Augmentation

	// Owned by the processing goroutine.
	brushes map[int]cachedBrush
}

// cachedBrush remembers the brush chosen for an id in a given state, so the
// delegate is asked again only when an untracked barcode gets decoded.
type cachedBrush struct {
	brush *Brush
	state State
}

// New creates an overlay for m and registers it as a listener. A nil
// renderer only keeps the augmentations for hit testing.
func New(m *count.BarcodeCount, r Renderer, style Style) *BasicOverlay {
	o := &BasicOverlay{
		mode:           m,
		style:          style,
		renderer:       r,
		scannedBrush:   DefaultScannedBrush(),
		unscannedBrush: DefaultUnscannedBrush(),
		options:        DefaultOptions(),
		brushes:        make(map[int]cachedBrush),
	}
	m.AddListener(o)
	return o
}

// Detach stops the overlay from following its mode.
func (o *BasicOverlay) Detach() {
	o.mode.RemoveListener(o)
}

func (o *BasicOverlay) Style() Style { return o.style }

// SetDelegate replaces the delegate. Brushes chosen by a previous delegate
// are forgotten at the next frame.
func (o *BasicOverlay) SetDelegate(d Delegate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delegate = d
	o.delegateChanged = true
}

func (o *BasicOverlay) SetUIDelegate(d UIDelegate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.uiDelegate = d
}

// ScannedBrush returns the brush used for decoded barcodes when no delegate
// is set.
func (o *BasicOverlay) ScannedBrush() *Brush {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scannedBrush
}

// SetScannedBrush changes the brush of decoded barcodes. nil hides them.
func (o *BasicOverlay) SetScannedBrush(b *Brush) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scannedBrush = b
}

func (o *BasicOverlay) UnscannedBrush() *Brush {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.unscannedBrush
}

// SetUnscannedBrush changes the brush of located barcodes. nil hides them.
func (o *BasicOverlay) SetUnscannedBrush(b *Brush) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unscannedBrush = b
}

func (o *BasicOverlay) Options() Options {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.options
}

func (o *BasicOverlay) SetOptions(opts Options) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.options = opts
}

// Augmentations returns what was drawn for the last frame.
func (o *BasicOverlay) Augmentations() []Augmentation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.last)
}

// DidStartObserving implements count.ObservingListener.
func (o *BasicOverlay) DidStartObserving(m *count.BarcodeCount) {
	log.Debug("Overlay (%s) following %s", o.style, m.Name())
}

// DidStopObserving implements count.ObservingListener.
func (o *BasicOverlay) DidStopObserving(*count.BarcodeCount) {
	o.mu.Lock()
	o.last = nil
	o.mu.Unlock()
}

// DidUpdateSession implements count.Listener.
func (o *BasicOverlay) DidUpdateSession(_ *count.BarcodeCount, s *session.Session, f *frame.Frame) {
	o.mu.Lock()
	delegate, scanned, unscanned, opts := o.delegate, o.scannedBrush, o.unscannedBrush, o.options
	if o.delegateChanged {
		clear(o.brushes)
		o.delegateChanged = false
	}
	o.mu.Unlock()

	tracked := s.TrackedBarcodes()
	for id := range o.brushes {
		if _, ok := tracked[id]; !ok {
			delete(o.brushes, id)
		}
	}

	ids := make([]int, 0, len(tracked))
	for id := range tracked {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	augs := make([]Augmentation, 0, len(ids))
	unscannedSeen := false
	for _, id := range ids {
		item := tracked[id]
		state := StateTracked
		if !item.Scanned {
			state = StateUntracked
			unscannedSeen = true
		}
		brush := scanned
		if state == StateUntracked {
			brush = unscanned
		}
		if delegate != nil {
			cached, ok := o.brushes[id]
			if !ok || cached.state != state {
				cached = cachedBrush{brush: o.askDelegate(delegate, item, state), state: state}
				o.brushes[id] = cached
			}
			brush = cached.brush
		}
		augs = append(augs, Augmentation{ID: id, Location: item.Location, State: state, Brush: brush, Barcode: item})
	}

	o.mu.Lock()
	o.last = augs
	o.mu.Unlock()

	if o.renderer == nil {
		return
	}
	w, h := f.Size()
	v := View{
		FrameIndex:    f.Index,
		Width:         w,
		Height:        h,
		Style:         o.style,
		Augmentations: augs,
		Options:       opts,
		Hint:          opts.hint(len(augs), unscannedSeen),
	}
	if err := o.renderer.Render(v); err != nil {
		log.Error("Failed to render overlay for frame %d: %v", f.Index, err)
	}
}

func (o *BasicOverlay) askDelegate(d Delegate, item *barcode.TrackedBarcode, state State) *Brush {
	if state == StateTracked {
		return d.BrushForTracked(o, item)
	}
	return d.BrushForUntracked(o, item)
}

// Tap hit-tests p against the last frame's augmentations and notifies the
// delegate on the interaction queue. It reports whether a barcode was hit.
func (o *BasicOverlay) Tap(p barcode.Point) bool {
	o.mu.Lock()
	delegate := o.delegate
	var hit *Augmentation
	// Later augmentations are drawn on top.
	for i := len(o.last) - 1; i >= 0; i-- {
		a := o.last[i]
		if a.Brush != nil && a.Location.Contains(p) {
			hit = &a
			break
		}
	}
	o.mu.Unlock()

	if hit == nil || delegate == nil {
		return hit != nil
	}
	item, state := hit.Barcode, hit.State
	return o.post(func() {
		if state == StateTracked {
			delegate.DidTapTracked(o, item)
		} else {
			delegate.DidTapUntracked(o, item)
		}
	})
}

// TapListButton forwards a tap on the list button when it is shown.
func (o *BasicOverlay) TapListButton() bool {
	o.mu.Lock()
	d, shown := o.uiDelegate, o.options.ShowListButton
	o.mu.Unlock()
	if !shown || d == nil {
		return false
	}
	return o.post(func() { d.ListButtonTapped(o) })
}

// TapExitButton forwards a tap on the exit button when it is shown.
func (o *BasicOverlay) TapExitButton() bool {
	o.mu.Lock()
	d, shown := o.uiDelegate, o.options.ShowExitButton
	o.mu.Unlock()
	if !shown || d == nil {
		return false
	}
	return o.post(func() { d.ExitButtonTapped(o) })
}

// post queues fn on the interaction queue of the mode's context. Taps on a
// detached mode are dropped.
func (o *BasicOverlay) post(fn func()) bool {
	ctx := o.mode.Context()
	if ctx == nil {
		log.Debug("Dropping overlay tap: mode is detached")
		return false
	}
	return ctx.Queue().Post(fn)
}
