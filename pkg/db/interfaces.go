// Package db defines the storage contracts shared by the sqlite device
// store and the postgres archive.
package db

import "context"

// EventStore persists a device's event log. Appends must be idempotent on
// event id, because the same event routinely arrives more than once over
// the mesh; loads return every stored event exactly once.
type EventStore interface {
	AppendEvents(ctx context.Context, records []Record) error
	LoadEvents(ctx context.Context) ([]Record, error)
}
