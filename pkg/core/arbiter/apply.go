package arbiter

import (
	"fmt"

	"github.com/emberfield/meshrota/pkg/core/model"
)

// CheckClaim validates a local claim intent against the current state. It
// returns a typed ClaimError the CLI can present; remote claim events skip
// this and are reconciled by Apply instead.
func CheckClaim(st *State, shifts map[string]model.Shift, participantID, shiftID string) error {
	shift, ok := shifts[shiftID]
	if !ok {
		return &model.ClaimError{Kind: model.ErrShiftNotFound, ShiftID: shiftID}
	}
	if st.ActiveClaimBy(participantID, shiftID) != nil {
		return &model.ClaimError{Kind: model.ErrAlreadyClaimedBySelf, ShiftID: shiftID, ParticipantID: participantID}
	}
	if st.ActiveCount(shiftID) >= shift.Capacity {
		return &model.ClaimError{Kind: model.ErrShiftFull, ShiftID: shiftID}
	}
	return nil
}

// Apply folds one claim-lifecycle event into the state. Events that cannot
// be applied as authored produce reconciliation notes instead of errors;
// the fold itself never fails.
//
// Authorization is checked against the event's origin: claims bind the
// origin itself, check_in the holder, complete the holder or a lead,
// no_show a lead only, cancel_claim the holder or a lead.
func Apply(st *State, shifts map[string]model.Shift, roster map[string]model.Participant, ev model.Event) []model.Reconciliation {
	switch p := ev.Payload.(type) {
	case model.ClaimPayload:
		return applyClaim(st, shifts, ev, p)
	case model.CheckInPayload:
		return applyCheckIn(st, ev, p)
	case model.CompletePayload:
		return applyComplete(st, roster, ev, p)
	case model.NoShowPayload:
		return applyNoShow(st, roster, ev, p)
	case model.CancelClaimPayload:
		return applyCancel(st, roster, ev, p)
	default:
		return note(ev, model.ReconInvalidTransition, fmt.Sprintf("event kind %s is not a claim event", ev.Kind))
	}
}

func applyClaim(st *State, shifts map[string]model.Shift, ev model.Event, p model.ClaimPayload) []model.Reconciliation {
	if existing := st.Claims[p.ClaimID]; existing != nil {
		return note(ev, model.ReconDuplicateID, fmt.Sprintf("claim id %s already exists", p.ClaimID))
	}
	shift, ok := shifts[p.ShiftID]
	if !ok {
		return note(ev, model.ReconUnknownShift, fmt.Sprintf("shift %s is not in this device's catalog", p.ShiftID))
	}

	claim := &model.ShiftClaim{
		ID:            p.ClaimID,
		ShiftID:       p.ShiftID,
		ParticipantID: ev.Origin,
		Status:        model.ClaimStatusClaimed,
		ClaimedAt:     ev.TS,
	}

	// Merge arbitration: when concurrent claims over-subscribe a shift, the
	// canonically later ones fold straight to cancelled. Demoting at apply
	// time keeps terminal states terminal as the event set grows.
	if st.ActiveCount(p.ShiftID) >= shift.Capacity {
		claim.Status = model.ClaimStatusCancelled
		claim.CancelReason = model.ReasonCapacityExceeded
		st.Claims[p.ClaimID] = claim
		return note(ev, model.ReconCapacityDemotion,
			fmt.Sprintf("shift %s already has %d active claims", p.ShiftID, shift.Capacity))
	}

	st.Claims[p.ClaimID] = claim
	return nil
}

func applyCheckIn(st *State, ev model.Event, p model.CheckInPayload) []model.Reconciliation {
	claim := st.Claims[p.ClaimID]
	if claim == nil {
		return note(ev, model.ReconUnknownClaim, fmt.Sprintf("claim %s does not exist", p.ClaimID))
	}
	if ev.Origin != claim.ParticipantID {
		return note(ev, model.ReconUnauthorized, fmt.Sprintf("only %s may check in claim %s", claim.ParticipantID, claim.ID))
	}
	if claim.Status != model.ClaimStatusClaimed {
		return note(ev, model.ReconInvalidTransition, transitionDetail(claim, model.ClaimStatusInProgress))
	}
	claim.Status = model.ClaimStatusInProgress
	return nil
}

func applyComplete(st *State, roster map[string]model.Participant, ev model.Event, p model.CompletePayload) []model.Reconciliation {
	claim := st.Claims[p.ClaimID]
	if claim == nil {
		return note(ev, model.ReconUnknownClaim, fmt.Sprintf("claim %s does not exist", p.ClaimID))
	}
	if ev.Origin != claim.ParticipantID && !isLead(roster, ev.Origin) {
		return note(ev, model.ReconUnauthorized, fmt.Sprintf("only %s or a lead may complete claim %s", claim.ParticipantID, claim.ID))
	}
	if !claim.Status.Active() {
		return note(ev, model.ReconInvalidTransition, transitionDetail(claim, model.ClaimStatusCompleted))
	}
	claim.Status = model.ClaimStatusCompleted
	claim.CompletedAt = ev.TS
	return nil
}

func applyNoShow(st *State, roster map[string]model.Participant, ev model.Event, p model.NoShowPayload) []model.Reconciliation {
	claim := st.Claims[p.ClaimID]
	if claim == nil {
		return note(ev, model.ReconUnknownClaim, fmt.Sprintf("claim %s does not exist", p.ClaimID))
	}
	if !isLead(roster, ev.Origin) {
		return note(ev, model.ReconUnauthorized, fmt.Sprintf("only a lead may mark claim %s as a no-show", claim.ID))
	}
	if !claim.Status.Active() {
		return note(ev, model.ReconInvalidTransition, transitionDetail(claim, model.ClaimStatusNoShow))
	}
	claim.Status = model.ClaimStatusNoShow
	claim.NoShowAt = p.OccurredAt
	return nil
}

func applyCancel(st *State, roster map[string]model.Participant, ev model.Event, p model.CancelClaimPayload) []model.Reconciliation {
	claim := st.Claims[p.ClaimID]
	if claim == nil {
		return note(ev, model.ReconUnknownClaim, fmt.Sprintf("claim %s does not exist", p.ClaimID))
	}
	if ev.Origin != claim.ParticipantID && !isLead(roster, ev.Origin) {
		return note(ev, model.ReconUnauthorized, fmt.Sprintf("only %s or a lead may cancel claim %s", claim.ParticipantID, claim.ID))
	}
	if !claim.Status.Active() {
		return note(ev, model.ReconInvalidTransition, transitionDetail(claim, model.ClaimStatusCancelled))
	}
	claim.Status = model.ClaimStatusCancelled
	claim.CancelReason = model.ReasonWithdrawn
	return nil
}

func isLead(roster map[string]model.Participant, participantID string) bool {
	p, ok := roster[participantID]
	return ok && p.IsLead()
}

func transitionDetail(claim *model.ShiftClaim, to model.ClaimStatus) string {
	return fmt.Sprintf("claim %s cannot move from %s to %s", claim.ID, claim.Status, to)
}

func note(ev model.Event, kind model.ReconciliationKind, detail string) []model.Reconciliation {
	return []model.Reconciliation{{
		EventID:   ev.ID,
		EventKind: ev.Kind,
		Origin:    ev.Origin,
		Kind:      kind,
		Detail:    detail,
	}}
}
