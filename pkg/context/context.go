package context

import (
	"context"

	"barcodecount/pkg/config"
	"barcodecount/pkg/metrics"
)

// OperationContext holds request-scoped data for a single capture run. It
// embeds a standard context so blocking operations can observe cancellation.
type OperationContext struct {
	context.Context
	Config   *config.Config    // The simulation configuration
	Recorder *metrics.Recorder // The metrics recorder for the current run.
}

// NewContext creates a new OperationContext. A nil parent defaults to
// context.Background().
func NewContext(parent context.Context, config *config.Config, rec *metrics.Recorder) *OperationContext {
	if parent == nil {
		parent = context.Background()
	}
	return &OperationContext{
		Context:  parent,
		Config:   config,
		Recorder: rec,
	}
}

// WithCancel derives a cancellable OperationContext sharing Config and Recorder.
func (c *OperationContext) WithCancel() (*OperationContext, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.Context)
	return &OperationContext{Context: ctx, Config: c.Config, Recorder: c.Recorder}, cancel
}

// WithRecorder returns a copy that records into rec.
func (c *OperationContext) WithRecorder(rec *metrics.Recorder) *OperationContext {
	cp := *c
	cp.Recorder = rec
	return &cp
}

// Cores returns the configured worker count, defaulting to 1.
func (c *OperationContext) Cores() int {
	if c == nil || c.Config == nil || c.Config.Cores < 1 {
		return 1
	}
	return c.Config.Cores
}
