// Package sqlite persists the device's event log in a single local SQLite
// file, shared by the one-shot CLI commands and the sync daemon.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/emberfield/meshrota/pkg/db"
)

// Store implements db.EventStore on a local SQLite file.
type Store struct {
	db *sql.DB
}

var _ db.EventStore = (*Store)(nil)

// Open creates or opens the event database at path and bootstraps the
// schema. WAL mode lets the daemon read while a one-shot command writes.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event database: %w", err)
	}
	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			origin   TEXT NOT NULL,
			ts       INTEGER NOT NULL,
			kind     TEXT NOT NULL,
			data     BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_origin_ts ON events (origin, ts)`,
	} {
		if _, err := conn.Exec(stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to bootstrap event database: %w", err)
		}
	}
	return &Store{db: conn}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendEvents inserts the records inside one transaction. Ids already
// present are skipped, which makes redelivery from the mesh harmless.
func (s *Store) AppendEvents(ctx context.Context, records []db.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO events (event_id, origin, ts, kind, data) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.EventID, rec.Origin, int64(rec.TS), rec.Kind, rec.Data); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", rec.EventID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// LoadEvents returns every stored record. Order does not matter to callers,
// who re-sort canonically, but a stable order keeps reloads cheap to diff.
func (s *Store) LoadEvents(ctx context.Context) ([]db.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, origin, ts, kind, data FROM events ORDER BY ts, origin, event_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []db.Record
	for rows.Next() {
		var rec db.Record
		var ts int64
		if err := rows.Scan(&rec.EventID, &rec.Origin, &ts, &rec.Kind, &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		rec.TS = uint64(ts)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}
	return records, nil
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
