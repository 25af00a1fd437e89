package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfield/meshrota/pkg/core/model"
)

func TestClockTick(t *testing.T) {
	clock := &Clock{}
	assert.Equal(t, uint64(1), clock.Tick())
	assert.Equal(t, uint64(2), clock.Tick())
	assert.Equal(t, uint64(3), clock.Tick())
	assert.Equal(t, uint64(3), clock.Current())
}

func TestClockObserve_AdvancesPastRemote(t *testing.T) {
	clock := &Clock{}
	clock.Tick() // 1

	// A remote event stamped 40 arrives; the next local event must order
	// after it.
	clock.Observe(40)
	assert.Equal(t, uint64(41), clock.Tick())

	// Observing something older never rewinds.
	clock.Observe(10)
	assert.Equal(t, uint64(42), clock.Tick())
}

func claimEvent(id, origin string, ts uint64) model.Event {
	return model.Event{
		ID:      id,
		Origin:  origin,
		TS:      ts,
		Kind:    model.KindClaim,
		Payload: model.ClaimPayload{ClaimID: "claim-" + id, ShiftID: "shift-1"},
	}
}

func TestLogAppend_Deduplicates(t *testing.T) {
	log := NewLog()

	assert.True(t, log.Append(claimEvent("e1", "alice", 1)))
	assert.False(t, log.Append(claimEvent("e1", "alice", 1)))
	assert.Equal(t, 1, log.Len())
	assert.True(t, log.Contains("e1"))
	assert.False(t, log.Contains("e2"))

	// A duplicate id must not inflate the digest either.
	assert.Equal(t, Digest{"alice": {MaxTS: 1, Count: 1}}, log.Digest())
}

func TestLogOrdered_CanonicalRegardlessOfArrival(t *testing.T) {
	// Two logs receive the same events in different orders.
	arrivalA := []model.Event{
		claimEvent("e2", "bob", 1),
		claimEvent("e1", "alice", 1),
		claimEvent("e3", "alice", 2),
	}
	arrivalB := []model.Event{
		claimEvent("e3", "alice", 2),
		claimEvent("e2", "bob", 1),
		claimEvent("e1", "alice", 1),
	}

	logA, logB := NewLog(), NewLog()
	for _, ev := range arrivalA {
		logA.Append(ev)
	}
	for _, ev := range arrivalB {
		logB.Append(ev)
	}

	orderedA, orderedB := logA.Ordered(), logB.Ordered()
	require.Equal(t, orderedA, orderedB)

	ids := []string{orderedA[0].ID, orderedA[1].ID, orderedA[2].ID}
	assert.Equal(t, []string{"e1", "e2", "e3"}, ids)
}

func TestLogDigest(t *testing.T) {
	log := NewLog()
	log.Append(claimEvent("e1", "alice", 1))
	log.Append(claimEvent("e2", "alice", 5))
	log.Append(claimEvent("e3", "bob", 2))

	assert.Equal(t, Digest{
		"alice": {MaxTS: 5, Count: 2},
		"bob":   {MaxTS: 2, Count: 1},
	}, log.Digest())
}

func TestLogEventsAbove(t *testing.T) {
	log := NewLog()
	log.Append(claimEvent("e1", "alice", 1))
	log.Append(claimEvent("e2", "alice", 5))
	log.Append(claimEvent("e3", "bob", 2))

	t.Run("filters per origin", func(t *testing.T) {
		events := log.EventsAbove(map[string]uint64{"alice": 1, "bob": 2})
		require.Len(t, events, 1)
		assert.Equal(t, "e2", events[0].ID)
	})

	t.Run("unknown origin counts as zero", func(t *testing.T) {
		events := log.EventsAbove(map[string]uint64{"alice": 5})
		require.Len(t, events, 1)
		assert.Equal(t, "e3", events[0].ID)
	})

	t.Run("empty vector returns everything in canonical order", func(t *testing.T) {
		events := log.EventsAbove(nil)
		require.Len(t, events, 3)
		assert.Equal(t, "e1", events[0].ID)
		assert.Equal(t, "e3", events[1].ID)
		assert.Equal(t, "e2", events[2].ID)
	})
}

func TestPlanPull(t *testing.T) {
	t.Run("nothing needed when peer matches", func(t *testing.T) {
		d := Digest{"alice": {MaxTS: 5, Count: 2}}
		_, full, needed := PlanPull(d, d)
		assert.False(t, needed)
		assert.False(t, full)
	})

	t.Run("peer ahead yields vector pull", func(t *testing.T) {
		local := Digest{"alice": {MaxTS: 3, Count: 2}}
		remote := Digest{"alice": {MaxTS: 5, Count: 3}, "bob": {MaxTS: 1, Count: 1}}
		vector, full, needed := PlanPull(local, remote)
		require.True(t, needed)
		assert.False(t, full)
		assert.Equal(t, map[string]uint64{"alice": 3}, vector)
	})

	t.Run("equal watermark with fewer events forces full pull", func(t *testing.T) {
		local := Digest{"alice": {MaxTS: 5, Count: 2}}
		remote := Digest{"alice": {MaxTS: 5, Count: 4}}
		_, full, needed := PlanPull(local, remote)
		assert.True(t, needed)
		assert.True(t, full)
	})

	t.Run("peer behind needs nothing", func(t *testing.T) {
		local := Digest{"alice": {MaxTS: 5, Count: 4}, "bob": {MaxTS: 2, Count: 2}}
		remote := Digest{"alice": {MaxTS: 3, Count: 2}}
		_, full, needed := PlanPull(local, remote)
		assert.False(t, needed)
		assert.False(t, full)
	})
}
