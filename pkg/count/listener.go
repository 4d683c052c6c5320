package count

import (
	"barcodecount/pkg/frame"
	"barcodecount/pkg/session"
)

// Listener observes a BarcodeCount mode. DidUpdateSession runs on the
// processing goroutine after every processed frame. The session may only be
// read during the call; copy what needs to outlive it.
//
// Listeners are compared by identity, so implementations should be pointer
// types.
type Listener interface {
	DidUpdateSession(m *BarcodeCount, s *session.Session, f *frame.Frame)
}

// ObservingListener is told when it starts and stops observing a mode.
type ObservingListener interface {
	Listener
	DidStartObserving(m *BarcodeCount)
	DidStopObserving(m *BarcodeCount)
}

// ListenerFuncs adapts functions to ObservingListener. Use it by pointer;
// nil fields are skipped.
type ListenerFuncs struct {
	OnUpdate func(m *BarcodeCount, s *session.Session, f *frame.Frame)
	OnStart  func(m *BarcodeCount)
	OnStop   func(m *BarcodeCount)
}

func (l *ListenerFuncs) DidUpdateSession(m *BarcodeCount, s *session.Session, f *frame.Frame) {
	if l.OnUpdate != nil {
		l.OnUpdate(m, s, f)
	}
}

func (l *ListenerFuncs) DidStartObserving(m *BarcodeCount) {
	if l.OnStart != nil {
		l.OnStart(m)
	}
}

func (l *ListenerFuncs) DidStopObserving(m *BarcodeCount) {
	if l.OnStop != nil {
		l.OnStop(m)
	}
}
