// Package store persists count runs and their ledger entries in sqlite.
package store

import (
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"barcodecount/pkg/ledger"
	"barcodecount/pkg/log"
	"barcodecount/pkg/settings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pragmas are applied to every connection.
const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run is the summary row of one count run.
type Run struct {
	ID              uuid.UUID
	Source          string
	StartedAt       time.Time
	FinishedAt      time.Time
	Frames          uint64
	FrameFailures   uint64
	DuplicateFilter time.Duration
	// LedgerRoot is the Merkle root of the run's ledger, nil when empty.
	LedgerRoot []byte
}

// DB wraps the sqlite connection.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies all pending
// migrations. ":memory:" gives a private in-memory database.
func Open(path string) (*DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	sqlDB, err := sql.Open("sqlite", path+sep+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// A single connection keeps in-memory databases alive and serializes
	// writers.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// MigrateUp runs all pending migrations up to the latest version.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current migration version, 0 if none ran.
func (db *DB) MigrateVersion() (uint, bool, error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// InsertRun stores the summary of a run.
func (db *DB) InsertRun(r Run) error {
	var root sql.NullString
	if len(r.LedgerRoot) > 0 {
		root = sql.NullString{String: hex.EncodeToString(r.LedgerRoot), Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO runs (run_id, source, started_at, finished_at, frames, frame_failures, duplicate_filter, ledger_root)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Source, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		int64(r.Frames), int64(r.FrameFailures), settings.FilterToSeconds(r.DuplicateFilter), root,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}
	return nil
}

// InsertScans stores ledger entries in a single transaction.
func (db *DB) InsertScans(entries []*ledger.Entry) (err error) {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("Failed to roll back scans: %v", rbErr)
			}
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO scans (run_id, frame_sequence_id, frame_index, track_id, symbology, data, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare scan insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err = stmt.Exec(e.RunID, e.FrameSequenceID, int64(e.FrameIndex), e.TrackID, e.Symbology.String(), e.Data, e.At.UTC()); err != nil {
			return fmt.Errorf("failed to insert scan of track %d: %w", e.TrackID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scans: %w", err)
	}
	return nil
}

// Run loads the summary of a run.
func (db *DB) Run(id uuid.UUID) (*Run, error) {
	var (
		r        Run
		rawID    string
		frames   int64
		failures int64
		filter   float64
		root     sql.NullString
	)
	err := db.QueryRow(`
		SELECT run_id, source, started_at, finished_at, frames, frame_failures, duplicate_filter, ledger_root
		FROM runs WHERE run_id = ?`, id.String()).
		Scan(&rawID, &r.Source, &r.StartedAt, &r.FinishedAt, &frames, &failures, &filter, &root)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	if r.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("corrupt run id %q: %w", rawID, err)
	}
	r.Frames, r.FrameFailures = uint64(frames), uint64(failures)
	r.DuplicateFilter = time.Duration(filter * float64(time.Second))
	if filter < 0 {
		r.DuplicateFilter = settings.ReportOnce
	}
	if root.Valid {
		if r.LedgerRoot, err = hex.DecodeString(root.String); err != nil {
			return nil, fmt.Errorf("corrupt ledger root of run %s: %w", id, err)
		}
	}
	return &r, nil
}

// Count is the number of distinct barcodes counted for one payload.
type Count struct {
	Symbology string
	Data      string
	Tracks    int
	Reports   int
}

// Counts aggregates the scans of a run per payload, ordered by symbology
// and data.
func (db *DB) Counts(runID uuid.UUID) ([]Count, error) {
	rows, err := db.Query(`
		SELECT symbology, data, COUNT(DISTINCT track_id), COUNT(*)
		FROM scans WHERE run_id = ?
		GROUP BY symbology, data
		ORDER BY symbology, data`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query counts of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Symbology, &c.Data, &c.Tracks, &c.Reports); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
