// Package capture runs the processing goroutine that pulls frames from a
// source and hands them to the attached capture modes.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"barcodecount/pkg/context"
	"barcodecount/pkg/dispatch"
	"barcodecount/pkg/frame"
	"barcodecount/pkg/hardware"
	"barcodecount/pkg/listener"
	"barcodecount/pkg/log"
	"barcodecount/pkg/metrics"
)

// maxSourceErrors is the number of consecutive source failures after which
// the loop gives up on the source.
const maxSourceErrors = 10

// Mode consumes frames on the processing goroutine.
//
// The context never holds its own lock while calling a Mode, so modes may
// call back into the context from any of these methods.
type Mode interface {
	Name() string
	// Attached is called when the mode is added to c.
	Attached(c *Context)
	// Detached is called when the mode is removed from its context.
	Detached()
	// Stopped is called once the processing goroutine has exited.
	Stopped()
	// ProcessFrame handles one frame. An error skips the frame for this mode
	// only.
	ProcessFrame(f *frame.Frame) error
}

// Stats counts what the processing goroutine did.
type Stats struct {
	Frames        uint64
	FrameFailures uint64
	SourceErrors  uint64
}

// Context owns a frame source and the goroutine that drains it.
type Context struct {
	op     *context.OperationContext
	source hardware.FrameSource
	queue  *dispatch.Queue
	modes  *listener.Registry[Mode]

	mu      sync.Mutex
	running bool
	cancel  func()
	done    chan struct{}

	interruptNext atomic.Bool
	frames        atomic.Uint64
	failures      atomic.Uint64
	sourceErrors  atomic.Uint64
}

// NewContext creates a stopped context. A nil queue gets a fresh one.
func NewContext(op *context.OperationContext, src hardware.FrameSource, q *dispatch.Queue) *Context {
	if op == nil {
		op = context.NewContext(nil, nil, nil)
	}
	if q == nil {
		q = dispatch.NewQueue()
	}
	done := make(chan struct{})
	close(done)
	c := &Context{op: op, source: src, queue: q, modes: listener.NewRegistry[Mode](), done: done}
	c.interruptNext.Store(true)
	return c
}

// Operation returns the operation context the frames are processed in.
func (c *Context) Operation() *context.OperationContext { return c.op }

// Queue returns the interaction queue.
func (c *Context) Queue() *dispatch.Queue { return c.queue }

// Source returns the frame source.
func (c *Context) Source() hardware.FrameSource { return c.source }

// AddMode attaches m. Adding an attached mode is a no-op.
func (c *Context) AddMode(m Mode) {
	if c.modes.Add(m) {
		log.Debug("Attached mode %s", m.Name())
		m.Attached(c)
	}
}

// RemoveMode detaches m. Removing a detached mode is a no-op.
func (c *Context) RemoveMode(m Mode) {
	if c.modes.Remove(m) {
		log.Debug("Detached mode %s", m.Name())
		m.Detached()
	}
}

// Modes returns the attached modes in attachment order.
func (c *Context) Modes() []Mode {
	return c.modes.Snapshot()
}

// IsRunning reports whether the processing goroutine is active.
func (c *Context) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Done is closed when the processing goroutine exits. Before the first
// Start it is already closed.
func (c *Context) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Start spawns the processing goroutine. Starting a running context is a
// no-op. The first frame after each start begins a new frame sequence.
func (c *Context) Start() error {
	if c.source == nil {
		return fmt.Errorf("capture context has no frame source")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	runCtx, cancel := c.op.WithCancel()
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.interruptNext.Store(true)

	go c.loop(runCtx, c.done)
	log.Debug("Capture context started with source %s", c.source.Name())
	return nil
}

// Stop cancels the processing goroutine and waits for it to exit. Stopping a
// stopped context is a no-op. Stop must not be called from the processing
// goroutine; use StopAsync there.
func (c *Context) Stop() {
	done := c.StopAsync()
	<-done
}

// StopAsync cancels the processing goroutine and returns the channel that is
// closed once it exits.
func (c *Context) StopAsync() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && c.cancel != nil {
		c.cancel()
	}
	return c.done
}

// Stats returns the counters accumulated since creation.
func (c *Context) Stats() Stats {
	return Stats{
		Frames:        c.frames.Load(),
		FrameFailures: c.failures.Load(),
		SourceErrors:  c.sourceErrors.Load(),
	}
}

func (c *Context) loop(ctx *context.OperationContext, done chan struct{}) {
	defer c.finish(done)

	consecutive := 0
	for {
		f, err := c.source.Next(ctx)
		switch {
		case err == nil:
			consecutive = 0
		case errors.Is(err, hardware.ErrEndOfStream):
			log.Debug("Source %s reached the end of its stream", c.source.Name())
			return
		case ctx.Err() != nil:
			return
		default:
			c.sourceErrors.Add(1)
			consecutive++
			log.Error("Failed to read frame from %s: %v", c.source.Name(), err)
			if consecutive >= maxSourceErrors {
				log.Error("Giving up on %s after %d consecutive failures", c.source.Name(), consecutive)
				return
			}
			continue
		}
		c.ProcessFrame(f)
	}
}

// finish marks the context stopped and notifies the modes.
func (c *Context) finish(done chan struct{}) {
	c.mu.Lock()
	c.running = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	for _, m := range c.modes.Snapshot() {
		c.safely(m, "Stopped", m.Stopped)
	}
	close(done)
	log.Debug("Capture context stopped")
}

// ProcessFrame hands f to every attached mode on the calling goroutine. The
// loop calls it for every frame; tests may call it directly to step a
// stopped context.
func (c *Context) ProcessFrame(f *frame.Frame) {
	if f == nil {
		return
	}
	if c.interruptNext.Swap(false) {
		f.Interrupted = true
	}
	c.frames.Add(1)

	_ = c.op.Recorder.Record("ProcessFrame", metrics.MLogic, func() error {
		for _, m := range c.modes.Snapshot() {
			var err error
			c.safely(m, "ProcessFrame", func() { err = m.ProcessFrame(f) })
			if err != nil {
				c.failures.Add(1)
				log.Error("Mode %s failed to process frame %d: %v", m.Name(), f.Index, err)
			}
		}
		return nil
	})
}

// safely runs fn, turning a panic into a logged frame failure.
func (c *Context) safely(m Mode, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.failures.Add(1)
			log.Error("Mode %s panicked in %s: %v", m.Name(), what, r)
		}
	}()
	fn()
}
