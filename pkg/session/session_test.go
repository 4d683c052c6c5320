package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcodecount/pkg/barcode"
)

func item(id int, data string) *barcode.TrackedBarcode {
	return &barcode.TrackedBarcode{
		ID:      id,
		Barcode: barcode.Barcode{Symbology: barcode.SymbologyCode128, Data: data},
		Scanned: true,
	}
}

func TestApplyPublishesFrame(t *testing.T) {
	s := New()
	assert.Zero(t, s.FrameSequenceID())

	a := item(1, "ABC-12345")
	s.Apply(Update{Tracked: map[int]*barcode.TrackedBarcode{1: a}, Added: []*barcode.TrackedBarcode{a}})
	seq := s.FrameSequenceID()
	assert.NotZero(t, seq)
	assert.Equal(t, map[int]*barcode.TrackedBarcode{1: a}, s.TrackedBarcodes())
	assert.Equal(t, []*barcode.TrackedBarcode{a}, s.AddedTrackedBarcodes())

	s.Apply(Update{Removed: []int{1}})
	assert.Equal(t, seq, s.FrameSequenceID())
	assert.Empty(t, s.TrackedBarcodes())
	assert.Empty(t, s.AddedTrackedBarcodes())
	assert.Equal(t, []int{1}, s.RemovedTrackedBarcodes())
}

func TestReturnedCollectionsAreCopies(t *testing.T) {
	s := New()
	a := item(1, "ABC-12345")
	s.Apply(Update{Tracked: map[int]*barcode.TrackedBarcode{1: a}, Added: []*barcode.TrackedBarcode{a}})

	m := s.TrackedBarcodes()
	delete(m, 1)
	added := s.AddedTrackedBarcodes()
	added[0] = nil

	assert.Equal(t, 1, s.Len())
	assert.Same(t, a, s.AddedTrackedBarcodes()[0])
}

func TestResetStartsFreshSequence(t *testing.T) {
	s := New()
	var hooked int
	s.OnReset(func() { hooked++ })

	s.Apply(Update{Tracked: map[int]*barcode.TrackedBarcode{1: item(1, "ABC-12345")}})
	first := s.FrameSequenceID()

	s.Reset()
	s.Reset()
	assert.Equal(t, 2, hooked)
	assert.Zero(t, s.FrameSequenceID())
	assert.Empty(t, s.TrackedBarcodes())

	s.Apply(Update{})
	assert.Greater(t, s.FrameSequenceID(), first)
}

func TestInterruptionChangesSequence(t *testing.T) {
	s := New()
	s.Apply(Update{})
	first := s.FrameSequenceID()

	s.Apply(Update{Interrupted: true})
	second := s.FrameSequenceID()
	require.NotEqual(t, first, second)

	s.Apply(Update{})
	assert.Equal(t, second, s.FrameSequenceID())
}
