package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfield/meshrota/pkg/core/model"
	"github.com/emberfield/meshrota/pkg/db"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func record(t *testing.T, id, origin string, ts uint64, payload model.Payload) db.Record {
	t.Helper()
	rec, err := db.RecordFromEvent(model.Event{
		ID: id, Origin: origin, TS: ts, Kind: payload.EventKind(), Payload: payload,
	})
	require.NoError(t, err)
	return rec
}

func TestAppendAndLoad(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	recs := []db.Record{
		record(t, "ev-2", "bob", 2, model.CheckInPayload{ClaimID: "c1"}),
		record(t, "ev-1", "alice", 1, model.ClaimPayload{ClaimID: "c1", ShiftID: "shift-kitchen"}),
	}
	require.NoError(t, store.AppendEvents(ctx, recs))

	loaded, err := store.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "ev-1", loaded[0].EventID)
	assert.Equal(t, uint64(1), loaded[0].TS)
	assert.Equal(t, "ev-2", loaded[1].EventID)

	// Records decode back into the events they came from.
	ev, err := loaded[0].Event()
	require.NoError(t, err)
	assert.Equal(t, model.KindClaim, ev.Kind)
	assert.Equal(t, model.ClaimPayload{ClaimID: "c1", ShiftID: "shift-kitchen"}, ev.Payload)
}

func TestAppendIsIdempotent(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	rec := record(t, "ev-1", "alice", 1, model.ClaimPayload{ClaimID: "c1", ShiftID: "shift-kitchen"})
	require.NoError(t, store.AppendEvents(ctx, []db.Record{rec}))
	require.NoError(t, store.AppendEvents(ctx, []db.Record{rec}))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppendEmptyBatch(t *testing.T) {
	store, _ := openTestStore(t)
	require.NoError(t, store.AppendEvents(context.Background(), nil))
}

func TestEventsSurviveReopen(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()

	rec := record(t, "ev-1", "alice", 1, model.ClaimPayload{ClaimID: "c1", ShiftID: "shift-water"})
	require.NoError(t, store.AppendEvents(ctx, []db.Record{rec}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	loaded, err := reopened.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "ev-1", loaded[0].EventID)
}
