// Package count implements the barcode count capture mode: it tracks the
// barcodes in a stream of frames, reports each one according to the
// duplicate filter, and notifies listeners after every frame.
package count

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/capture"
	"barcodecount/pkg/frame"
	"barcodecount/pkg/hardware"
	"barcodecount/pkg/io"
	"barcodecount/pkg/listener"
	"barcodecount/pkg/log"
	"barcodecount/pkg/metrics"
	"barcodecount/pkg/pipeline"
	"barcodecount/pkg/session"
	"barcodecount/pkg/settings"
)

// State is the lifecycle state of a mode.
type State int

const (
	StateDisabled State = iota
	StateIdle
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "Disabled"
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RecommendedCameraSettings returns the camera configuration counting works
// best with.
func RecommendedCameraSettings() hardware.CameraSettings {
	return hardware.CameraSettings{
		Resolution:            "1920x1080",
		MaxFrameRate:          30,
		ZoomFactor:            1,
		ZoomGestureZoomFactor: 2,
	}
}

// pendingSettings is the slot holding settings applied while scanning. It is
// swapped in at the next frame boundary.
type pendingSettings struct {
	settings *settings.Settings
	done     []func()
}

// Option configures a mode at construction.
type Option func(*BarcodeCount)

// WithDetector replaces the gozxing-backed detector.
func WithDetector(d pipeline.Detector) Option {
	return func(m *BarcodeCount) { m.detector = d }
}

// WithTrackerConfig replaces the default tracker configuration.
func WithTrackerConfig(cfg pipeline.TrackerConfig) Option {
	return func(m *BarcodeCount) { m.tracker = pipeline.NewTracker(cfg) }
}

// WithFeedbackEmitter sets where feedback cues are played.
func WithFeedbackEmitter(e FeedbackEmitter) Option {
	return func(m *BarcodeCount) { m.emitter = e }
}

// WithName sets the name used in logs.
func WithName(name string) Option {
	return func(m *BarcodeCount) { m.name = name }
}

// BarcodeCount is the barcode count capture mode.
//
// Lifecycle and configuration calls may come from any goroutine and never
// wait for a frame. Frames are processed on the capture context goroutine.
type BarcodeCount struct {
	name      string
	listeners *listener.Registry[Listener]
	session   *session.Session

	// Guarded by mu.
	mu       sync.Mutex
	ctx      *capture.Context
	state    State
	settings *settings.Settings
	pending  *pendingSettings
	feedback Feedback
	emitter  FeedbackEmitter

	// Requests handed to the processing goroutine.
	resetRequested  atomic.Bool
	filterRequested atomic.Bool
	interruptNext   atomic.Bool

	// Owned by the processing goroutine.
	detector pipeline.Detector
	tracker  *pipeline.Tracker
	filter   *duplicateFilter
}

// New creates an enabled, idle mode using a copy of s and attaches it to
// ctx when ctx is not nil.
func New(ctx *capture.Context, s *settings.Settings, opts ...Option) *BarcodeCount {
	if s == nil {
		s = settings.New()
	}
	m := &BarcodeCount{
		name:      "BarcodeCount",
		listeners: listener.NewRegistry[Listener](),
		session:   session.New(),
		state:     StateIdle,
		settings:  s.Clone(),
		feedback:  DefaultFeedback(),
		emitter:   logEmitter{},
		detector:  pipeline.NewDefaultDetector(io.DecoderOptions{Grid: 2}),
		tracker:   pipeline.NewTracker(pipeline.DefaultTrackerConfig()),
		filter:    newDuplicateFilter(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.session.OnReset(func() { m.resetRequested.Store(true) })
	if ctx != nil {
		ctx.AddMode(m)
	}
	return m
}

func (m *BarcodeCount) Name() string { return m.name }

// Context returns the capture context the mode is attached to, or nil.
func (m *BarcodeCount) Context() *capture.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

// Session returns the tracking session. Read it only inside listener
// callbacks.
func (m *BarcodeCount) Session() *session.Session { return m.session }

// State returns the current lifecycle state.
func (m *BarcodeCount) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *BarcodeCount) IsEnabled() bool {
	return m.State() != StateDisabled
}

// Settings returns a copy of the settings in effect.
func (m *BarcodeCount) Settings() *settings.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.Clone()
}

// SetEnabled enables or disables the mode. Disabling stops notifications,
// forgets the duplicate filter history and ends the frame sequence; a
// disabled mode has to be re-enabled and put back into the scanning phase.
func (m *BarcodeCount) SetEnabled(enabled bool) {
	m.mu.Lock()
	var flushed []func()
	switch {
	case !enabled && m.state != StateDisabled:
		m.state = StateDisabled
		m.filterRequested.Store(true)
		m.interruptNext.Store(true)
		flushed = m.flushPendingLocked()
		log.Debug("%s disabled", m.name)
	case enabled && m.state == StateDisabled:
		m.state = StateIdle
		log.Debug("%s enabled", m.name)
	}
	m.mu.Unlock()
	runCallbacks(flushed)
}

// StartScanningPhase begins reporting barcodes. It has no effect while the
// mode is disabled or detached.
func (m *BarcodeCount) StartScanningPhase() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.state == StateDisabled:
		log.Debug("%s: ignoring StartScanningPhase while disabled", m.name)
	case m.ctx == nil:
		log.Debug("%s: ignoring StartScanningPhase while detached", m.name)
	default:
		m.state = StateScanning
	}
}

// Reset clears the session and the duplicate filter history and returns an
// enabled mode to idle. The next frame begins a new frame sequence.
func (m *BarcodeCount) Reset() {
	m.mu.Lock()
	if m.state == StateScanning {
		m.state = StateIdle
	}
	m.filterRequested.Store(true)
	flushed := m.flushPendingLocked()
	m.mu.Unlock()

	// Also requests the tracker reset through the session hook.
	m.session.Reset()
	runCallbacks(flushed)
}

// ApplySettings installs a copy of s. While the mode is scanning on a
// running context the copy takes effect at the next frame boundary and done
// runs on the processing goroutine once that frame is complete. Otherwise it
// takes effect immediately and done runs before ApplySettings returns.
//
// A second call before the boundary replaces the queued settings; every done
// callback still runs.
func (m *BarcodeCount) ApplySettings(s *settings.Settings, done func()) {
	clone := s.Clone()

	m.mu.Lock()
	if m.runningLocked() {
		if m.pending == nil {
			m.pending = &pendingSettings{}
		}
		m.pending.settings = clone
		if done != nil {
			m.pending.done = append(m.pending.done, done)
		}
		m.mu.Unlock()
		return
	}
	m.installLocked(clone)
	m.mu.Unlock()

	if done != nil {
		done()
	}
}

// Feedback returns the feedback configuration.
func (m *BarcodeCount) Feedback() Feedback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feedback.clone()
}

func (m *BarcodeCount) SetFeedback(f Feedback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = f.clone()
}

// AddListener registers l. DidStartObserving runs only if l was not
// registered yet.
func (m *BarcodeCount) AddListener(l Listener) {
	if l == nil || !m.listeners.Add(l) {
		return
	}
	if ol, ok := l.(ObservingListener); ok {
		ol.DidStartObserving(m)
	}
}

// RemoveListener unregisters l. DidStopObserving runs only if l was
// registered.
func (m *BarcodeCount) RemoveListener(l Listener) {
	if l == nil || !m.listeners.Remove(l) {
		return
	}
	if ol, ok := l.(ObservingListener); ok {
		ol.DidStopObserving(m)
	}
}

// Attached implements capture.Mode.
func (m *BarcodeCount) Attached(c *capture.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = c
	m.interruptNext.Store(true)
}

// Detached implements capture.Mode. No callbacks are dispatched afterwards.
func (m *BarcodeCount) Detached() {
	m.mu.Lock()
	m.ctx = nil
	if m.state == StateScanning {
		m.state = StateIdle
	}
	flushed := m.flushPendingLocked()
	m.mu.Unlock()
	runCallbacks(flushed)
}

// Stopped implements capture.Mode.
func (m *BarcodeCount) Stopped() {
	m.mu.Lock()
	flushed := m.flushPendingLocked()
	m.mu.Unlock()
	m.interruptNext.Store(true)
	runCallbacks(flushed)
}

// ProcessFrame implements capture.Mode.
func (m *BarcodeCount) ProcessFrame(f *frame.Frame) error {
	// Frame boundary: swap in pending settings and pick up requests.
	m.mu.Lock()
	if m.ctx == nil || m.state != StateScanning {
		m.mu.Unlock()
		return nil
	}
	var done []func()
	if m.pending != nil {
		m.installLocked(m.pending.settings)
		done = m.pending.done
		m.pending = nil
	}
	cur := m.settings
	ctx := m.ctx
	m.mu.Unlock()
	// Whatever happens to the frame, completion callbacks fire after it.
	defer runCallbacks(done)

	if m.resetRequested.Swap(false) {
		m.tracker.Reset()
	}
	if m.filterRequested.Swap(false) {
		m.filter.reset()
	}
	m.tracker.SetMatchByContent(cur.TrackUniqueBarcodes)
	interrupted := f.Interrupted || m.interruptNext.Swap(false)

	var dets []barcode.Detection
	err := ctx.Operation().Recorder.Record("Detect", metrics.MDecode, func() error {
		var err error
		dets, err = m.detector.Detect(f, cur.EnabledSymbologies())
		return err
	})
	if err != nil {
		if m.current(ctx) {
			m.emit(ctx, FeedbackFailure)
		}
		return fmt.Errorf("failed to detect barcodes in frame %d: %w", f.Index, err)
	}

	accepted := dets[:0:0]
	for _, d := range dets {
		if cur.Accepts(d) {
			accepted = append(accepted, d)
		}
	}
	delta := m.tracker.Update(accepted)
	added, keys := m.report(delta.Present, f, cur)

	// Re-check: the mode may have been reset, disabled or detached while
	// the frame was processed. A dropped frame leaves no filter history.
	if !m.current(ctx) || m.resetRequested.Load() {
		return nil
	}
	for _, key := range keys {
		m.filter.record(key, f.Timestamp)
	}

	m.session.Apply(session.Update{
		Tracked:     delta.Tracked,
		Added:       added,
		Removed:     delta.Lost,
		Interrupted: interrupted,
	})

	_ = ctx.Operation().Recorder.Record("NotifyListeners", metrics.MDispatch, func() error {
		for _, l := range m.listeners.Snapshot() {
			m.notify(l, f)
		}
		return nil
	})
	if len(added) > 0 {
		m.emit(ctx, FeedbackSuccess)
	}
	return nil
}

// report applies the duplicate filter to the barcodes present in the frame.
// A payload that passes is reported for every track carrying it. The keys
// that passed are returned for recording once the frame is delivered.
func (m *BarcodeCount) report(present []*barcode.TrackedBarcode, f *frame.Frame, cur *settings.Settings) (added []*barcode.TrackedBarcode, keys []string) {
	passed := make(map[string]bool)
	for _, item := range present {
		if !item.Scanned || cur.IsFiltered(item.Barcode.Symbology) {
			continue
		}
		key := item.Barcode.Key()
		ok, decided := passed[key]
		if !decided {
			ok = m.filter.allows(key, f.Timestamp, cur.DuplicateFilter)
			passed[key] = ok
			if ok {
				keys = append(keys, key)
			}
		}
		if ok {
			added = append(added, item)
		}
	}
	return added, keys
}

func (m *BarcodeCount) notify(l Listener, f *frame.Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("%s: listener panicked on frame %d: %v", m.name, f.Index, r)
		}
	}()
	l.DidUpdateSession(m, m.session, f)
}

// current reports whether the mode is still scanning on ctx.
func (m *BarcodeCount) current(ctx *capture.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx == ctx && m.state == StateScanning
}

func (m *BarcodeCount) emit(ctx *capture.Context, kind FeedbackKind) {
	m.mu.Lock()
	fb, emitter := m.feedback, m.emitter
	m.mu.Unlock()

	signal := fb.Success
	if kind == FeedbackFailure {
		signal = fb.Failure
	}
	if signal == nil || emitter == nil {
		return
	}
	s := *signal
	ctx.Queue().Post(func() { emitter.Emit(kind, s) })
}

// runningLocked reports whether frames are currently flowing into the mode.
func (m *BarcodeCount) runningLocked() bool {
	return m.ctx != nil && m.state == StateScanning && m.ctx.IsRunning()
}

func (m *BarcodeCount) installLocked(s *settings.Settings) {
	if s.DuplicateFilter != m.settings.DuplicateFilter {
		log.Debug("%s: duplicate filter %s -> %s", m.name, m.settings.DuplicateFilter, s.DuplicateFilter)
	}
	m.settings = s
}

// flushPendingLocked installs queued settings when the mode stops running
// and returns their completion callbacks.
func (m *BarcodeCount) flushPendingLocked() []func() {
	if m.pending == nil {
		return nil
	}
	m.installLocked(m.pending.settings)
	done := slices.Clone(m.pending.done)
	m.pending = nil
	return done
}

func runCallbacks(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
