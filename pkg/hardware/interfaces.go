package hardware

import (
	"errors"

	"barcodecount/pkg/context"
	"barcodecount/pkg/frame"
)

// ErrEndOfStream is returned by Next once a source has no more frames.
var ErrEndOfStream = errors.New("end of frame stream")

// FrameSource delivers frames to a capture context. Next blocks until a
// frame is available, the source is exhausted, or ctx is done.
type FrameSource interface {
	Next(ctx *context.OperationContext) (*frame.Frame, error)
	Name() string
}

// Configurable is implemented by sources that accept camera settings.
type Configurable interface {
	ApplySettings(s CameraSettings) error
}

// CameraSettings describes how a host should drive its camera.
type CameraSettings struct {
	Resolution            string // e.g. "1920x1080"
	MaxFrameRate          float64
	ZoomFactor            float64
	ZoomGestureZoomFactor float64
	TorchOn               bool
}
