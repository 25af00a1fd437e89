package standing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfield/meshrota/pkg/core/model"
)

func testShifts() map[string]model.Shift {
	return map[string]model.Shift{
		"shift-kitchen": {ID: "shift-kitchen", Capacity: 2, PointsValue: 3},
		"shift-water":   {ID: "shift-water", Capacity: 1, PointsValue: 5},
	}
}

func testRoster() map[string]model.Participant {
	return map[string]model.Participant{
		"alice": {ID: "alice", DisplayName: "Alice", Role: model.RoleParticipant},
		"bob":   {ID: "bob", DisplayName: "Bob", Role: model.RoleParticipant},
	}
}

func completedClaim(id, participant, shift string) *model.ShiftClaim {
	return &model.ShiftClaim{ID: id, ShiftID: shift, ParticipantID: participant, Status: model.ClaimStatusCompleted}
}

func TestCompute(t *testing.T) {
	claims := map[string]*model.ShiftClaim{
		"c1": completedClaim("c1", "alice", "shift-kitchen"),
		"c2": completedClaim("c2", "alice", "shift-water"),
		"c3": {ID: "c3", ShiftID: "shift-kitchen", ParticipantID: "alice", Status: model.ClaimStatusNoShow, NoShowAt: time.Now()},
		// Cancelled claims score nothing.
		"c4": {ID: "c4", ShiftID: "shift-water", ParticipantID: "alice", Status: model.ClaimStatusCancelled, CancelReason: model.ReasonCapacityExceeded},
	}

	records := Compute(claims, testShifts(), testRoster())

	alice := records["alice"]
	require.NotNil(t, alice)
	assert.Equal(t, 8, alice.PointsEarned)
	assert.Equal(t, 2, alice.ShiftsCompleted)
	assert.Equal(t, 1, alice.ShiftsNoShow)
	assert.InDelta(t, 2.0/3.0, alice.ReliabilityScore, 1e-9)
	assert.Equal(t, model.TierBronze, alice.CurrentTier)

	// No activity means a clean slate, not a zero score.
	bob := records["bob"]
	require.NotNil(t, bob)
	assert.Equal(t, 0, bob.PointsEarned)
	assert.Equal(t, 1.0, bob.ReliabilityScore)
	assert.Equal(t, model.TierBronze, bob.CurrentTier)
}

func TestCompute_OffRosterParticipant(t *testing.T) {
	claims := map[string]*model.ShiftClaim{
		"c1": completedClaim("c1", "drifter", "shift-kitchen"),
	}

	records := Compute(claims, testShifts(), testRoster())
	require.NotNil(t, records["drifter"])
	assert.Equal(t, 3, records["drifter"].PointsEarned)
}

func TestCompute_TierThresholds(t *testing.T) {
	tests := []struct {
		completed int
		expected  model.Tier
	}{
		{0, model.TierBronze},
		{4, model.TierBronze},
		{5, model.TierSilver},
		{11, model.TierSilver},
		{12, model.TierGold},
		{19, model.TierGold},
		{20, model.TierPlatinum},
		{35, model.TierPlatinum},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d completions", tt.completed), func(t *testing.T) {
			claims := make(map[string]*model.ShiftClaim, tt.completed)
			for i := 0; i < tt.completed; i++ {
				id := fmt.Sprintf("c%d", i)
				claims[id] = completedClaim(id, "alice", "shift-kitchen")
			}
			records := Compute(claims, testShifts(), testRoster())
			assert.Equal(t, tt.expected, records["alice"].CurrentTier)
		})
	}
}

func TestSuspensionSchedule(t *testing.T) {
	first := time.Date(2026, 8, 10, 18, 0, 0, 0, time.UTC)
	second := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)
	third := time.Date(2026, 8, 18, 20, 0, 0, 0, time.UTC)

	t.Run("first no-show suspends for 24h", func(t *testing.T) {
		noShows := []time.Time{first}

		s, ok := ActiveSuspension("alice", noShows, first.Add(12*time.Hour))
		require.True(t, ok)
		end, hasEnd := s.Until()
		require.True(t, hasEnd)
		assert.Equal(t, first.Add(24*time.Hour), end)

		_, ok = ActiveSuspension("alice", noShows, first.Add(25*time.Hour))
		assert.False(t, ok)
	})

	t.Run("second no-show suspends for 72h", func(t *testing.T) {
		noShows := []time.Time{first, second}

		s, ok := ActiveSuspension("alice", noShows, second.Add(48*time.Hour))
		require.True(t, ok)
		end, hasEnd := s.Until()
		require.True(t, hasEnd)
		assert.Equal(t, second.Add(72*time.Hour), end)

		_, ok = ActiveSuspension("alice", noShows, second.Add(73*time.Hour))
		assert.False(t, ok)
	})

	t.Run("third no-show suspends indefinitely", func(t *testing.T) {
		noShows := []time.Time{first, second, third}

		s, ok := ActiveSuspension("alice", noShows, third.AddDate(1, 0, 0))
		require.True(t, ok)
		assert.True(t, s.Indefinite)
		_, hasEnd := s.Until()
		assert.False(t, hasEnd)
	})

	t.Run("unsorted input derives the same schedule", func(t *testing.T) {
		shuffled := []time.Time{third, first, second}
		assert.Equal(t, Suspensions("alice", []time.Time{first, second, third}), Suspensions("alice", shuffled))
	})
}

func TestActiveSuspension_OverlappingWindowsPreferLatest(t *testing.T) {
	first := time.Date(2026, 8, 10, 18, 0, 0, 0, time.UTC)
	second := first.Add(2 * time.Hour)

	s, ok := ActiveSuspension("alice", []time.Time{first, second}, first.Add(3*time.Hour))
	require.True(t, ok)
	assert.Equal(t, second, s.AppliedAt)
	assert.Equal(t, 72*time.Hour, s.Duration)
}

func TestNoShowTimes(t *testing.T) {
	first := time.Date(2026, 8, 10, 18, 0, 0, 0, time.UTC)
	second := first.AddDate(0, 0, 3)

	claims := map[string]*model.ShiftClaim{
		"c1": {ID: "c1", ParticipantID: "alice", Status: model.ClaimStatusNoShow, NoShowAt: second},
		"c2": {ID: "c2", ParticipantID: "alice", Status: model.ClaimStatusNoShow, NoShowAt: first},
		"c3": {ID: "c3", ParticipantID: "bob", Status: model.ClaimStatusNoShow, NoShowAt: first},
		"c4": {ID: "c4", ParticipantID: "alice", Status: model.ClaimStatusCompleted},
	}

	assert.Equal(t, []time.Time{first, second}, NoShowTimes(claims, "alice"))
	assert.Empty(t, NoShowTimes(claims, "carol"))
}
