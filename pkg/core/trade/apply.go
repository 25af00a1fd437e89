package trade

import (
	"fmt"

	"github.com/emberfield/meshrota/pkg/core/arbiter"
	"github.com/emberfield/meshrota/pkg/core/model"
)

// Apply folds one trade-lifecycle event into the state. Like the claim
// fold, it reconciles instead of failing: events that lost a race or carry
// bad references produce notes and leave state untouched.
//
// Expiry is deliberately absent here. A fully approved trade finalizes
// even if some device's wall clock passed expiresAt first; only trades
// whose approval set never completes read as expired, and that happens at
// query time.
func Apply(st *State, claims *arbiter.State, roster map[string]model.Participant, ev model.Event) []model.Reconciliation {
	switch p := ev.Payload.(type) {
	case model.ProposeTradePayload:
		return applyPropose(st, claims, roster, ev, p)
	case model.ApproveTradePayload:
		return applyApprove(st, roster, ev, p)
	case model.RejectTradePayload:
		return applyReject(st, roster, ev, p)
	case model.CancelTradePayload:
		return applyCancel(st, ev, p)
	case model.TradeFinalizedPayload:
		return applyFinalized(st, claims, ev, p)
	default:
		return note(ev, model.ReconInvalidTransition, fmt.Sprintf("event kind %s is not a trade event", ev.Kind))
	}
}

func applyPropose(st *State, claims *arbiter.State, roster map[string]model.Participant, ev model.Event, p model.ProposeTradePayload) []model.Reconciliation {
	if st.Trades[p.TradeID] != nil {
		return note(ev, model.ReconDuplicateID, fmt.Sprintf("trade id %s already exists", p.TradeID))
	}
	claim := claims.Claim(p.SourceClaimID)
	if claim == nil {
		return note(ev, model.ReconUnknownClaim, fmt.Sprintf("trade %s references unknown claim %s", p.TradeID, p.SourceClaimID))
	}
	if claim.ParticipantID != ev.Origin {
		return note(ev, model.ReconUnauthorized, fmt.Sprintf("claim %s is held by %s, not %s", claim.ID, claim.ParticipantID, ev.Origin))
	}
	if p.ReceiverID == ev.Origin {
		return note(ev, model.ReconUnauthorized, fmt.Sprintf("trade %s offers the claim back to its own holder", p.TradeID))
	}
	if _, ok := roster[p.ReceiverID]; !ok {
		return note(ev, model.ReconUnauthorized, fmt.Sprintf("trade %s receiver %s is not in the roster", p.TradeID, p.ReceiverID))
	}

	st.Trades[p.TradeID] = &model.TradeRequest{
		ID:                p.TradeID,
		SourceClaimID:     p.SourceClaimID,
		RequesterID:       ev.Origin,
		ReceiverID:        p.ReceiverID,
		Message:           p.Message,
		Status:            model.TradeStatusPending,
		RequiresLead:      p.RequiresLead,
		RequesterApproved: true, // proposing is consenting
		CreatedAt:         p.CreatedAt,
		ExpiresAt:         p.ExpiresAt,
		ProposedAt:        ev.TS,
	}
	return nil
}

func applyApprove(st *State, roster map[string]model.Participant, ev model.Event, p model.ApproveTradePayload) []model.Reconciliation {
	t := st.Trades[p.TradeID]
	if t == nil {
		return note(ev, model.ReconUnknownTrade, fmt.Sprintf("trade %s does not exist", p.TradeID))
	}
	if bad := checkRole(t, roster, ev.Origin, p.Role); bad != "" {
		return note(ev, model.ReconUnauthorized, bad)
	}
	if t.Status.Terminal() {
		return note(ev, model.ReconInvalidTransition, fmt.Sprintf("approval arrived after trade %s was already %s", t.ID, t.Status))
	}

	switch p.Role {
	case model.ApprovalRequester:
		t.RequesterApproved = true
	case model.ApprovalReceiver:
		t.ReceiverApproved = true
	case model.ApprovalLead:
		t.LeadApproved = true
	}
	recomputeStatus(t)
	return nil
}

func applyReject(st *State, roster map[string]model.Participant, ev model.Event, p model.RejectTradePayload) []model.Reconciliation {
	t := st.Trades[p.TradeID]
	if t == nil {
		return note(ev, model.ReconUnknownTrade, fmt.Sprintf("trade %s does not exist", p.TradeID))
	}
	if bad := checkRole(t, roster, ev.Origin, p.Role); bad != "" {
		return note(ev, model.ReconUnauthorized, bad)
	}
	if t.Status.Terminal() {
		return note(ev, model.ReconInvalidTransition, fmt.Sprintf("rejection arrived after trade %s was already %s", t.ID, t.Status))
	}

	t.Status = model.TradeStatusRejected
	t.RejectReason = p.Reason
	return nil
}

func applyCancel(st *State, ev model.Event, p model.CancelTradePayload) []model.Reconciliation {
	t := st.Trades[p.TradeID]
	if t == nil {
		return note(ev, model.ReconUnknownTrade, fmt.Sprintf("trade %s does not exist", p.TradeID))
	}
	if ev.Origin != t.RequesterID {
		return note(ev, model.ReconUnauthorized, fmt.Sprintf("only the requester %s may cancel trade %s", t.RequesterID, t.ID))
	}
	if t.Status.Terminal() {
		return note(ev, model.ReconInvalidTransition, fmt.Sprintf("cancellation arrived after trade %s was already %s", t.ID, t.Status))
	}

	t.Status = model.TradeStatusCancelled
	return nil
}

// applyFinalized applies a transfer, or records why it lost. Several
// devices may emit trade_finalized for the same trade concurrently; the
// canonically first one wins, all later ones land here as stale.
func applyFinalized(st *State, claims *arbiter.State, ev model.Event, p model.TradeFinalizedPayload) []model.Reconciliation {
	t := st.Trades[p.TradeID]
	if t == nil {
		return note(ev, model.ReconUnknownTrade, fmt.Sprintf("trade %s does not exist", p.TradeID))
	}
	if t.Finalized() {
		return note(ev, model.ReconStaleFinalize, fmt.Sprintf("trade %s was already finalized by %s", t.ID, t.FinalizedBy))
	}
	if t.Status != model.TradeStatusApproved {
		return note(ev, model.ReconInvalidTransition, fmt.Sprintf("trade %s is %s, not approved", t.ID, t.Status))
	}
	claim := claims.Claim(t.SourceClaimID)
	if claim == nil {
		return note(ev, model.ReconUnknownClaim, fmt.Sprintf("trade %s source claim %s does not exist", t.ID, t.SourceClaimID))
	}
	if !claim.Status.Active() {
		return note(ev, model.ReconStaleFinalize, fmt.Sprintf("trade %s source claim %s is already %s", t.ID, claim.ID, claim.Status))
	}
	if claims.Claim(p.NewClaimID) != nil {
		return note(ev, model.ReconDuplicateID, fmt.Sprintf("trade %s new claim id %s already exists", t.ID, p.NewClaimID))
	}

	// Transfer the spot. The new claim takes the event's id so every device
	// agrees on its identity, and capacity is not re-checked because the
	// spot is inherited, not newly taken.
	claim.Status = model.ClaimStatusCancelled
	claim.CancelReason = model.ReasonTraded
	claims.Claims[p.NewClaimID] = &model.ShiftClaim{
		ID:            p.NewClaimID,
		ShiftID:       claim.ShiftID,
		ParticipantID: t.ReceiverID,
		Status:        model.ClaimStatusClaimed,
		ClaimedAt:     ev.TS,
	}
	t.FinalizedBy = ev.Origin
	t.NewClaimID = p.NewClaimID
	st.Transferred[t.SourceClaimID] = t.ID
	return nil
}

// SweepClosedSources rejects open trades whose source claim can no longer
// be transferred, either because a competing trade won it or because the
// claim ended some other way. The engine runs this after every folded
// event, so competing trades settle at the same fold position everywhere.
// Notes reference ev, the event whose application closed the claim.
func (s *State) SweepClosedSources(claims *arbiter.State, ev model.Event) []model.Reconciliation {
	var notes []model.Reconciliation
	for _, id := range s.SortedIDs() {
		t := s.Trades[id]
		if t.Status.Terminal() {
			continue
		}
		claim := claims.Claim(t.SourceClaimID)
		if claim == nil || claim.Status.Active() {
			continue
		}

		t.Status = model.TradeStatusRejected
		detail := ""
		if winner, ok := s.Transferred[t.SourceClaimID]; ok && winner != t.ID {
			t.RejectReason = model.RejectReasonTransferred
			detail = fmt.Sprintf("trade %s lost claim %s to trade %s", t.ID, claim.ID, winner)
		} else {
			t.RejectReason = model.RejectReasonSourceClosed
			detail = fmt.Sprintf("trade %s closed because claim %s ended as %s", t.ID, claim.ID, claim.Status)
		}
		notes = append(notes, note(ev, model.ReconSourceClosed, detail)...)
	}
	return notes
}

func recomputeStatus(t *model.TradeRequest) {
	if t.Status != model.TradeStatusPending && t.Status != model.TradeStatusAwaitingLead {
		return
	}
	if !t.RequesterApproved || !t.ReceiverApproved {
		return
	}
	if t.RequiresLead && !t.LeadApproved {
		t.Status = model.TradeStatusAwaitingLead
		return
	}
	t.Status = model.TradeStatusApproved
}

func checkRole(t *model.TradeRequest, roster map[string]model.Participant, origin string, role model.ApprovalRole) string {
	switch role {
	case model.ApprovalRequester:
		if origin != t.RequesterID {
			return fmt.Sprintf("%s is not the requester of trade %s", origin, t.ID)
		}
	case model.ApprovalReceiver:
		if origin != t.ReceiverID {
			return fmt.Sprintf("%s is not the receiver of trade %s", origin, t.ID)
		}
	case model.ApprovalLead:
		p, ok := roster[origin]
		if !ok || !p.IsLead() {
			return fmt.Sprintf("%s is not a lead", origin)
		}
	default:
		return fmt.Sprintf("unknown approval role %q", role)
	}
	return ""
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
