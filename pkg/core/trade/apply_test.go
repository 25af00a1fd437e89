package trade

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfield/meshrota/pkg/core/arbiter"
	"github.com/emberfield/meshrota/pkg/core/model"
)

func testShifts() map[string]model.Shift {
	return map[string]model.Shift{
		"shift-kitchen": {ID: "shift-kitchen", Name: "Kitchen crew", Capacity: 2, PointsValue: 3},
	}
}

func testRoster() map[string]model.Participant {
	return map[string]model.Participant{
		"alice": {ID: "alice", DisplayName: "Alice", Role: model.RoleParticipant},
		"bob":   {ID: "bob", DisplayName: "Bob", Role: model.RoleParticipant},
		"carol": {ID: "carol", DisplayName: "Carol", Role: model.RoleParticipant},
		"lead":  {ID: "lead", DisplayName: "Dana", Role: model.RoleLead},
	}
}

func ev(id, origin string, ts uint64, payload model.Payload) model.Event {
	return model.Event{ID: id, Origin: origin, TS: ts, Kind: payload.EventKind(), Payload: payload}
}

func proposePayload(tradeID, claimID, receiver string, requiresLead bool) model.ProposeTradePayload {
	createdAt := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)
	return model.ProposeTradePayload{
		TradeID:       tradeID,
		SourceClaimID: claimID,
		ReceiverID:    receiver,
		RequiresLead:  requiresLead,
		CreatedAt:     createdAt,
		ExpiresAt:     createdAt.Add(24 * time.Hour),
	}
}

// claimFixture returns claim state with alice holding c1 on shift-kitchen.
func claimFixture(t *testing.T) *arbiter.State {
	t.Helper()
	claims := arbiter.NewState()
	notes := arbiter.Apply(claims, testShifts(), testRoster(), ev("e1", "alice", 1, model.ClaimPayload{ClaimID: "c1", ShiftID: "shift-kitchen"}))
	require.Empty(t, notes)
	return claims
}

func TestApplyPropose(t *testing.T) {
	claims := claimFixture(t)
	st := NewState()

	notes := Apply(st, claims, testRoster(), ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))
	require.Empty(t, notes)

	tr := st.Trade("t1")
	require.NotNil(t, tr)
	assert.Equal(t, model.TradeStatusPending, tr.Status)
	assert.Equal(t, "alice", tr.RequesterID)
	assert.Equal(t, "bob", tr.ReceiverID)
	assert.True(t, tr.RequesterApproved)
	assert.False(t, tr.ReceiverApproved)
	assert.Equal(t, uint64(2), tr.ProposedAt)
}

func TestApplyPropose_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		payload  model.ProposeTradePayload
		wantKind model.ReconciliationKind
	}{
		{
			name:     "unknown source claim",
			origin:   "alice",
			payload:  proposePayload("t1", "ghost", "bob", false),
			wantKind: model.ReconUnknownClaim,
		},
		{
			name:     "proposer does not hold the claim",
			origin:   "bob",
			payload:  proposePayload("t1", "c1", "carol", false),
			wantKind: model.ReconUnauthorized,
		},
		{
			name:     "receiver is the requester",
			origin:   "alice",
			payload:  proposePayload("t1", "c1", "alice", false),
			wantKind: model.ReconUnauthorized,
		},
		{
			name:     "receiver not in roster",
			origin:   "alice",
			payload:  proposePayload("t1", "c1", "stranger", false),
			wantKind: model.ReconUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := claimFixture(t)
			st := NewState()
			notes := Apply(st, claims, testRoster(), ev("e2", tt.origin, 2, tt.payload))
			require.Len(t, notes, 1)
			assert.Equal(t, tt.wantKind, notes[0].Kind)
			assert.Nil(t, st.Trade("t1"))
		})
	}
}

func TestApprovalConjunction_NoLeadRequired(t *testing.T) {
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()

	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))
	require.Equal(t, model.TradeStatusPending, st.Trade("t1").Status)

	notes := Apply(st, claims, roster, ev("e3", "bob", 3, model.ApproveTradePayload{TradeID: "t1", Role: model.ApprovalReceiver}))
	assert.Empty(t, notes)
	assert.Equal(t, model.TradeStatusApproved, st.Trade("t1").Status)
}

func TestApprovalConjunction_LeadRequired(t *testing.T) {
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()

	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", true)))

	// Receiver consent alone is not enough.
	Apply(st, claims, roster, ev("e3", "bob", 3, model.ApproveTradePayload{TradeID: "t1", Role: model.ApprovalReceiver}))
	assert.Equal(t, model.TradeStatusAwaitingLead, st.Trade("t1").Status)

	// Lead approval completes the set.
	notes := Apply(st, claims, roster, ev("e4", "lead", 4, model.ApproveTradePayload{TradeID: "t1", Role: model.ApprovalLead}))
	assert.Empty(t, notes)
	assert.Equal(t, model.TradeStatusApproved, st.Trade("t1").Status)
}

func TestApplyApprove_Unauthorized(t *testing.T) {
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()
	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", true)))

	tests := []struct {
		name   string
		origin string
		role   model.ApprovalRole
	}{
		{"receiver role from someone else", "carol", model.ApprovalReceiver},
		{"lead role from a non-lead", "carol", model.ApprovalLead},
		{"requester role from the receiver", "bob", model.ApprovalRequester},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := Apply(st, claims, roster, ev("ex-"+tt.origin, tt.origin, 5, model.ApproveTradePayload{TradeID: "t1", Role: tt.role}))
			require.Len(t, notes, 1)
			assert.Equal(t, model.ReconUnauthorized, notes[0].Kind)
		})
	}

	assert.Equal(t, model.TradeStatusPending, st.Trade("t1").Status)
}

func TestRejectBeatsLaterApproval(t *testing.T) {
	// Receiver approved on one device while the requester's lead rejected
	// on another. Canonical order puts the reject first, so the approval
	// folds as a no-op everywhere.
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()

	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))
	notes := Apply(st, claims, roster, ev("e3", "lead", 3, model.RejectTradePayload{TradeID: "t1", Role: model.ApprovalLead, Reason: "coverage needed elsewhere"}))
	assert.Empty(t, notes)

	notes = Apply(st, claims, roster, ev("e4", "bob", 4, model.ApproveTradePayload{TradeID: "t1", Role: model.ApprovalReceiver}))
	require.Len(t, notes, 1)
	assert.Equal(t, model.ReconInvalidTransition, notes[0].Kind)

	tr := st.Trade("t1")
	assert.Equal(t, model.TradeStatusRejected, tr.Status)
	assert.Equal(t, "coverage needed elsewhere", tr.RejectReason)
	assert.False(t, tr.ReceiverApproved)
}

func TestApplyCancel_OnlyRequester(t *testing.T) {
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()
	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))

	notes := Apply(st, claims, roster, ev("e3", "bob", 3, model.CancelTradePayload{TradeID: "t1"}))
	require.Len(t, notes, 1)
	assert.Equal(t, model.ReconUnauthorized, notes[0].Kind)

	notes = Apply(st, claims, roster, ev("e4", "alice", 4, model.CancelTradePayload{TradeID: "t1"}))
	assert.Empty(t, notes)
	assert.Equal(t, model.TradeStatusCancelled, st.Trade("t1").Status)
}

func finalizedPayload(tradeID, sourceClaim, newClaim string) model.TradeFinalizedPayload {
	return model.TradeFinalizedPayload{
		TradeID:       tradeID,
		SourceClaimID: sourceClaim,
		NewClaimID:    newClaim,
		ShiftID:       "shift-kitchen",
		ReceiverID:    "bob",
	}
}

func TestApplyFinalized_TransfersClaim(t *testing.T) {
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()

	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))
	Apply(st, claims, roster, ev("e3", "bob", 3, model.ApproveTradePayload{TradeID: "t1", Role: model.ApprovalReceiver}))

	notes := Apply(st, claims, roster, ev("e4", "bob", 4, finalizedPayload("t1", "c1", "c2")))
	require.Empty(t, notes)

	source := claims.Claim("c1")
	assert.Equal(t, model.ClaimStatusCancelled, source.Status)
	assert.Equal(t, model.ReasonTraded, source.CancelReason)

	transferred := claims.Claim("c2")
	require.NotNil(t, transferred)
	assert.Equal(t, "bob", transferred.ParticipantID)
	assert.Equal(t, "shift-kitchen", transferred.ShiftID)
	assert.Equal(t, model.ClaimStatusClaimed, transferred.Status)
	assert.Equal(t, uint64(4), transferred.ClaimedAt)

	tr := st.Trade("t1")
	assert.True(t, tr.Finalized())
	assert.Equal(t, "c2", tr.NewClaimID)
	assert.Equal(t, "t1", st.Transferred["c1"])

	// The shift still has one spot taken, inherited by bob.
	assert.Equal(t, 1, claims.ActiveCount("shift-kitchen"))
}

func TestApplyFinalized_FirstWins(t *testing.T) {
	// Two devices observed the full approval set while partitioned and
	// both emitted trade_finalized. The canonically first one transfers;
	// the second is a reconciliation no-op and its claim id never exists.
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()

	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))
	Apply(st, claims, roster, ev("e3", "bob", 3, model.ApproveTradePayload{TradeID: "t1", Role: model.ApprovalReceiver}))

	Apply(st, claims, roster, ev("e4", "alice", 4, finalizedPayload("t1", "c1", "c2")))
	notes := Apply(st, claims, roster, ev("e5", "bob", 4, finalizedPayload("t1", "c1", "c3")))

	require.Len(t, notes, 1)
	assert.Equal(t, model.ReconStaleFinalize, notes[0].Kind)
	assert.Equal(t, "c2", st.Trade("t1").NewClaimID)
	assert.Nil(t, claims.Claim("c3"))
	assert.Equal(t, 1, claims.ActiveCount("shift-kitchen"))
}

func TestSweep_CompetingTradeLosesClaim(t *testing.T) {
	// Alice offered the same claim to bob and carol. Bob's trade finalized
	// first, so carol's is closed with the transferred reason.
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()

	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))
	Apply(st, claims, roster, ev("e3", "alice", 3, proposePayload("t2", "c1", "carol", false)))
	Apply(st, claims, roster, ev("e4", "bob", 4, model.ApproveTradePayload{TradeID: "t1", Role: model.ApprovalReceiver}))

	tf := ev("e5", "bob", 5, finalizedPayload("t1", "c1", "c2"))
	Apply(st, claims, roster, tf)
	notes := st.SweepClosedSources(claims, tf)

	require.Len(t, notes, 1)
	assert.Equal(t, model.ReconSourceClosed, notes[0].Kind)

	loser := st.Trade("t2")
	assert.Equal(t, model.TradeStatusRejected, loser.Status)
	assert.Equal(t, model.RejectReasonTransferred, loser.RejectReason)

	winner := st.Trade("t1")
	assert.Equal(t, model.TradeStatusApproved, winner.Status)
	assert.True(t, winner.Finalized())
}

func TestSweep_SourceClaimEnded(t *testing.T) {
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()

	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))

	cancel := ev("e3", "alice", 3, model.CancelClaimPayload{ClaimID: "c1"})
	arbiter.Apply(claims, testShifts(), roster, cancel)
	notes := st.SweepClosedSources(claims, cancel)

	require.Len(t, notes, 1)
	tr := st.Trade("t1")
	assert.Equal(t, model.TradeStatusRejected, tr.Status)
	assert.Equal(t, model.RejectReasonSourceClosed, tr.RejectReason)
}

func TestCheckPropose(t *testing.T) {
	claims := claimFixture(t)
	roster := testRoster()

	assert.NoError(t, CheckPropose(claims, roster, "alice", "c1", "bob"))

	var tradeErr *model.TradeError
	err := CheckPropose(claims, roster, "bob", "c1", "carol")
	require.True(t, errors.As(err, &tradeErr))
	assert.Equal(t, model.ErrTradeUnauthorized, tradeErr.Kind)

	err = CheckPropose(claims, roster, "alice", "c1", "alice")
	require.True(t, errors.As(err, &tradeErr))
	assert.Equal(t, model.ErrTradeUnauthorized, tradeErr.Kind)

	err = CheckPropose(claims, roster, "alice", "c1", "stranger")
	require.True(t, errors.As(err, &tradeErr))
	assert.Equal(t, model.ErrTradeUnauthorized, tradeErr.Kind)
}

func TestCheckApprove(t *testing.T) {
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()
	now := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)

	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))

	t.Run("receiver may approve", func(t *testing.T) {
		assert.NoError(t, CheckApprove(st, roster, "t1", "bob", model.ApprovalReceiver, now))
	})

	t.Run("unknown trade", func(t *testing.T) {
		var tradeErr *model.TradeError
		err := CheckApprove(st, roster, "ghost", "bob", model.ApprovalReceiver, now)
		require.True(t, errors.As(err, &tradeErr))
		assert.Equal(t, model.ErrTradeNotFound, tradeErr.Kind)
	})

	t.Run("expired by this device's clock", func(t *testing.T) {
		var tradeErr *model.TradeError
		err := CheckApprove(st, roster, "t1", "bob", model.ApprovalReceiver, now.Add(48*time.Hour))
		require.True(t, errors.As(err, &tradeErr))
		assert.Equal(t, model.ErrTradeExpired, tradeErr.Kind)
	})

	t.Run("wrong actor for role", func(t *testing.T) {
		var tradeErr *model.TradeError
		err := CheckApprove(st, roster, "t1", "carol", model.ApprovalReceiver, now)
		require.True(t, errors.As(err, &tradeErr))
		assert.Equal(t, model.ErrTradeUnauthorized, tradeErr.Kind)
	})
}

func TestCheckApprove_TransferredClaim(t *testing.T) {
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()
	now := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)

	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))
	Apply(st, claims, roster, ev("e3", "alice", 3, proposePayload("t2", "c1", "carol", false)))
	Apply(st, claims, roster, ev("e4", "bob", 4, model.ApproveTradePayload{TradeID: "t1", Role: model.ApprovalReceiver}))
	tf := ev("e5", "bob", 5, finalizedPayload("t1", "c1", "c2"))
	Apply(st, claims, roster, tf)
	st.SweepClosedSources(claims, tf)

	// Carol approving her copy of the losing trade gets the transfer error.
	var tradeErr *model.TradeError
	err := CheckApprove(st, roster, "t2", "carol", model.ApprovalReceiver, now)
	require.True(t, errors.As(err, &tradeErr))
	assert.Equal(t, model.ErrShiftAlreadyTransferred, tradeErr.Kind)
}

func TestCheckCancel(t *testing.T) {
	claims := claimFixture(t)
	st := NewState()
	roster := testRoster()
	now := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)

	Apply(st, claims, roster, ev("e2", "alice", 2, proposePayload("t1", "c1", "bob", false)))

	var tradeErr *model.TradeError
	err := CheckCancel(st, "t1", "bob", now)
	require.True(t, errors.As(err, &tradeErr))
	assert.Equal(t, model.ErrTradeUnauthorized, tradeErr.Kind)

	assert.NoError(t, CheckCancel(st, "t1", "alice", now))
}
