// Package session holds the state a barcode count mode shares with its
// listeners: the tracked barcodes and what changed in the last frame.
package session

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"barcodecount/pkg/barcode"
)

// lastSequenceID is shared by all sessions so a sequence id is never issued
// twice in a process.
var lastSequenceID atomic.Int64

// Update is the outcome of processing one frame.
type Update struct {
	Tracked map[int]*barcode.TrackedBarcode
	// Added lists the barcodes reported in this frame.
	Added []*barcode.TrackedBarcode
	// Removed lists the ids that stopped being tracked in this frame.
	Removed []int
	// Interrupted marks a frame that follows a gap in the frame stream.
	Interrupted bool
}

// Session is safe for concurrent use. Collections returned by its methods
// are copies; the TrackedBarcode values inside are immutable and may be
// retained.
type Session struct {
	mu              sync.RWMutex
	tracked         map[int]*barcode.TrackedBarcode
	added           []*barcode.TrackedBarcode
	removed         []int
	frameSequenceID int64
	onReset         func()
}

func New() *Session {
	return &Session{tracked: make(map[int]*barcode.TrackedBarcode)}
}

// OnReset registers fn to run after every Reset, outside the session lock.
func (s *Session) OnReset(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReset = fn
}

// TrackedBarcodes returns every tracked barcode by id.
func (s *Session) TrackedBarcodes() map[int]*barcode.TrackedBarcode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.tracked)
}

// AddedTrackedBarcodes returns the barcodes reported in the last frame.
func (s *Session) AddedTrackedBarcodes() []*barcode.TrackedBarcode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.added)
}

// RemovedTrackedBarcodes returns the ids lost in the last frame.
func (s *Session) RemovedTrackedBarcodes() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.removed)
}

// FrameSequenceID identifies the current run of uninterrupted frames; zero
// means no frame has been processed since creation or the last reset.
func (s *Session) FrameSequenceID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameSequenceID
}

// Len returns the number of tracked barcodes.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracked)
}

// Reset clears the tracking history. The next frame starts a new sequence.
// It may be called from any goroutine, including from within a listener.
func (s *Session) Reset() {
	s.mu.Lock()
	s.tracked = make(map[int]*barcode.TrackedBarcode)
	s.added = nil
	s.removed = nil
	s.frameSequenceID = 0
	hook := s.onReset
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Apply installs the outcome of a frame.
func (s *Session) Apply(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Interrupted || s.frameSequenceID == 0 {
		s.frameSequenceID = lastSequenceID.Add(1)
	}
	s.tracked = maps.Clone(u.Tracked)
	if s.tracked == nil {
		s.tracked = make(map[int]*barcode.TrackedBarcode)
	}
	s.added = slices.Clone(u.Added)
	s.removed = slices.Clone(u.Removed)
}
