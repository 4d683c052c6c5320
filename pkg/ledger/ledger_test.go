package ledger

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcodecount/pkg/barcode"
)

func entry(track int, data string) *Entry {
	return &Entry{
		RunID:           "run-1",
		FrameSequenceID: 1,
		FrameIndex:      uint64(track),
		TrackID:         track,
		Symbology:       barcode.SymbologyCode128,
		Data:            data,
		At:              time.Unix(1700000000, 0).UTC(),
	}
}

func TestEntryBytesRoundTrip(t *testing.T) {
	e := entry(3, "ABC-12345")
	b, err := e.Bytes()
	require.NoError(t, err)

	got, err := EntryFromBytes(b)
	require.NoError(t, err)
	if diff := cmp.Diff(e.Key(), got.Key()); diff != "" {
		t.Errorf("key mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, e.TrackID, got.TrackID)
	assert.True(t, e.At.Equal(got.At))

	_, err = EntryFromBytes(b[:len(b)-2])
	assert.Error(t, err)
}

func TestLedgerCountsDistinctTracks(t *testing.T) {
	l := NewLedger()
	l.Append(entry(1, "A"), entry(1, "A"), entry(2, "A"), entry(3, "B"))

	assert.Equal(t, 4, l.Len())
	assert.Equal(t, map[string]int{"code128:A": 2, "code128:B": 1}, l.Counts())
	assert.Equal(t, 3, l.Total())
}

func TestLedgerRoot(t *testing.T) {
	l := NewLedger()
	root, err := l.Root()
	require.NoError(t, err)
	assert.Nil(t, root)
	require.NoError(t, l.Verify())

	l.Append(entry(1, "A"), entry(2, "B"))
	first, err := l.Root()
	require.NoError(t, err)
	assert.Len(t, first, 32)
	require.NoError(t, l.Verify())

	ok, err := l.Contains(entry(2, "B"))
	require.NoError(t, err)
	assert.True(t, ok)

	l.Append(entry(3, "C"))
	second, err := l.Root()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
