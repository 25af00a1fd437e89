package postgres

import (
	"context"
	"fmt"

	"github.com/emberfield/meshrota/pkg/db"
)

var _ db.EventStore = (*Archive)(nil)

// AppendEvents archives the records inside one transaction. Devices dock
// repeatedly and overlap heavily, so already-archived ids are skipped.
func (a *Archive) AppendEvents(ctx context.Context, records []db.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		_, err := tx.Exec(ctx, `
			INSERT INTO events (event_id, origin, ts, kind, data)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id) DO NOTHING
		`, rec.EventID, rec.Origin, int64(rec.TS), rec.Kind, rec.Data)
		if err != nil {
			return fmt.Errorf("failed to archive event %s: %w", rec.EventID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadEvents retrieves every archived record, so the base station can run
// a full engine over the camp's merged history.
func (a *Archive) LoadEvents(ctx context.Context) ([]db.Record, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT event_id, origin, ts, kind, data
		FROM events
		ORDER BY ts, origin, event_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []db.Record
	for rows.Next() {
		var rec db.Record
		var ts int64
		if err := rows.Scan(&rec.EventID, &rec.Origin, &ts, &rec.Kind, &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.TS = uint64(ts)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return records, nil
}

// Count returns the number of archived events.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// CountByKind returns archived event counts keyed by kind, for the docking
// summary.
func (a *Archive) CountByKind(ctx context.Context) (map[string]int, error) {
	rows, err := a.pool.Query(ctx, `SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by kind: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan kind count: %w", err)
		}
		counts[kind] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kind counts: %w", err)
	}

	return counts, nil
}
