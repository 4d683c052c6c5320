package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/ledger"
	"barcodecount/pkg/settings"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "count.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func entry(runID string, track int, data string) *ledger.Entry {
	return &ledger.Entry{
		RunID:           runID,
		FrameSequenceID: 1,
		FrameIndex:      uint64(track),
		TrackID:         track,
		Symbology:       barcode.SymbologyCode128,
		Data:            data,
		At:              time.Date(2024, 3, 1, 9, 0, track, 0, time.UTC),
	}
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := openTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Running them again is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "count.db")
	db, err := Open(path)
	require.NoError(t, err)
	id := uuid.New()
	require.NoError(t, db.InsertRun(Run{ID: id, Source: "Core", StartedAt: time.Now(), FinishedAt: time.Now()}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Run(id)
	assert.NoError(t, err)
}

func TestRunRoundTrip(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	want := Run{
		ID:              uuid.New(),
		Source:          "Disk",
		StartedAt:       start,
		FinishedAt:      start.Add(3 * time.Second),
		Frames:          30,
		FrameFailures:   2,
		DuplicateFilter: 1500 * time.Millisecond,
		LedgerRoot:      []byte{0xde, 0xad, 0xbe, 0xef},
	}
	require.NoError(t, db.InsertRun(want))

	got, err := db.Run(want.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, *got, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}

	assert.Error(t, db.InsertRun(want), "duplicate run id")
}

func TestRunNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Run(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCounts(t *testing.T) {
	db := openTestDB(t)
	id := uuid.New()
	require.NoError(t, db.InsertRun(Run{ID: id, Source: "Core", StartedAt: time.Now(), FinishedAt: time.Now(), DuplicateFilter: settings.ReportOnce}))

	run := id.String()
	require.NoError(t, db.InsertScans([]*ledger.Entry{
		entry(run, 1, "ITEM-0001"),
		entry(run, 2, "ITEM-0001"),
		entry(run, 2, "ITEM-0001"),
		entry(run, 3, "ITEM-0002"),
	}))
	require.NoError(t, db.InsertScans(nil))

	counts, err := db.Counts(id)
	require.NoError(t, err)
	assert.Equal(t, []Count{
		{Symbology: "code128", Data: "ITEM-0001", Tracks: 2, Reports: 3},
		{Symbology: "code128", Data: "ITEM-0002", Tracks: 1, Reports: 1},
	}, counts)

	got, err := db.Run(id)
	require.NoError(t, err)
	assert.Nil(t, got.LedgerRoot)
	assert.Equal(t, settings.ReportOnce, got.DuplicateFilter)
}

func TestInsertScansIsAtomic(t *testing.T) {
	db := openTestDB(t)
	id := uuid.New()
	require.NoError(t, db.InsertRun(Run{ID: id, Source: "Core", StartedAt: time.Now(), FinishedAt: time.Now()}))

	// The second entry references an unknown run.
	err := db.InsertScans([]*ledger.Entry{entry(id.String(), 1, "ITEM-0001"), entry(uuid.NewString(), 2, "ITEM-0002")})
	require.Error(t, err)

	counts, err := db.Counts(id)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
