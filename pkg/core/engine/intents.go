package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emberfield/meshrota/pkg/core/arbiter"
	"github.com/emberfield/meshrota/pkg/core/model"
	"github.com/emberfield/meshrota/pkg/core/trade"
)

// Intents validate against the current fold, emit one event, and refold.
// The emitted event is canonically last, so a passing check holds in the
// folded result; it can still lose later merge arbitration once more of
// the camp's history arrives, which is surfaced as a reconciliation.

// SubmitClaim claims one spot on a shift for this device's participant.
func (e *Engine) SubmitClaim(ctx context.Context, shiftID string) (model.ShiftClaim, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := arbiter.CheckClaim(e.claims, e.shifts, e.self.ID, shiftID); err != nil {
		return model.ShiftClaim{}, err
	}
	claimID := uuid.New().String()
	if _, err := e.emitLocked(ctx, model.ClaimPayload{ClaimID: claimID, ShiftID: shiftID}); err != nil {
		return model.ShiftClaim{}, err
	}
	e.refoldLocked()
	e.finalizeLocked(ctx)

	claim := e.claims.Claim(claimID)
	if claim == nil {
		return model.ShiftClaim{}, fmt.Errorf("claim %s missing after fold", claimID)
	}
	return *claim, nil
}

// CheckIn marks this participant's claim in progress at shift start.
func (e *Engine) CheckIn(ctx context.Context, claimID string) (model.ShiftClaim, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	claim := e.claims.Claim(claimID)
	if claim == nil {
		return model.ShiftClaim{}, &model.ClaimError{Kind: model.ErrClaimNotFound, ClaimID: claimID}
	}
	if claim.ParticipantID != e.self.ID {
		return model.ShiftClaim{}, &model.ClaimError{
			Kind: model.ErrClaimNotPermitted, ClaimID: claimID,
			ParticipantID: e.self.ID, Detail: "only the claim holder may check in",
		}
	}
	if claim.Status != model.ClaimStatusClaimed {
		return model.ShiftClaim{}, &model.TransitionError{
			Entity: "claim", ID: claimID,
			From: string(claim.Status), To: string(model.ClaimStatusInProgress),
		}
	}
	if _, err := e.emitLocked(ctx, model.CheckInPayload{ClaimID: claimID}); err != nil {
		return model.ShiftClaim{}, err
	}
	e.refoldLocked()
	return *e.claims.Claim(claimID), nil
}

// Complete marks a claim completed. The holder may complete their own
// claim; a lead may complete anyone's.
func (e *Engine) Complete(ctx context.Context, claimID string) (model.ShiftClaim, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	claim := e.claims.Claim(claimID)
	if claim == nil {
		return model.ShiftClaim{}, &model.ClaimError{Kind: model.ErrClaimNotFound, ClaimID: claimID}
	}
	if claim.ParticipantID != e.self.ID && !e.self.IsLead() {
		return model.ShiftClaim{}, &model.ClaimError{
			Kind: model.ErrClaimNotPermitted, ClaimID: claimID,
			ParticipantID: e.self.ID, Detail: "only the claim holder or a lead may complete",
		}
	}
	if !claim.Status.Active() {
		return model.ShiftClaim{}, &model.TransitionError{
			Entity: "claim", ID: claimID,
			From: string(claim.Status), To: string(model.ClaimStatusCompleted),
		}
	}
	if _, err := e.emitLocked(ctx, model.CompletePayload{ClaimID: claimID}); err != nil {
		return model.ShiftClaim{}, err
	}
	e.refoldLocked()
	return *e.claims.Claim(claimID), nil
}

// ReportNoShow records that a participant missed their shift. Lead only,
// and it feeds the lazy suspension schedule, so OccurredAt is this device's
// wall clock at the moment of reporting.
func (e *Engine) ReportNoShow(ctx context.Context, claimID string) (model.ShiftClaim, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.self.IsLead() {
		return model.ShiftClaim{}, &model.ClaimError{
			Kind: model.ErrClaimNotPermitted, ClaimID: claimID,
			ParticipantID: e.self.ID, Detail: "only a lead may report a no-show",
		}
	}
	claim := e.claims.Claim(claimID)
	if claim == nil {
		return model.ShiftClaim{}, &model.ClaimError{Kind: model.ErrClaimNotFound, ClaimID: claimID}
	}
	if !claim.Status.Active() {
		return model.ShiftClaim{}, &model.TransitionError{
			Entity: "claim", ID: claimID,
			From: string(claim.Status), To: string(model.ClaimStatusNoShow),
		}
	}
	payload := model.NoShowPayload{ClaimID: claimID, OccurredAt: e.now().UTC()}
	if _, err := e.emitLocked(ctx, payload); err != nil {
		return model.ShiftClaim{}, err
	}
	e.refoldLocked()
	return *e.claims.Claim(claimID), nil
}

// CancelClaim withdraws a claim. The holder may cancel their own claim; a
// lead may cancel anyone's.
func (e *Engine) CancelClaim(ctx context.Context, claimID string) (model.ShiftClaim, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	claim := e.claims.Claim(claimID)
	if claim == nil {
		return model.ShiftClaim{}, &model.ClaimError{Kind: model.ErrClaimNotFound, ClaimID: claimID}
	}
	if claim.ParticipantID != e.self.ID && !e.self.IsLead() {
		return model.ShiftClaim{}, &model.ClaimError{
			Kind: model.ErrClaimNotPermitted, ClaimID: claimID,
			ParticipantID: e.self.ID, Detail: "only the claim holder or a lead may cancel",
		}
	}
	if !claim.Status.Active() {
		return model.ShiftClaim{}, &model.TransitionError{
			Entity: "claim", ID: claimID,
			From: string(claim.Status), To: string(model.ClaimStatusCancelled),
		}
	}
	if _, err := e.emitLocked(ctx, model.CancelClaimPayload{ClaimID: claimID}); err != nil {
		return model.ShiftClaim{}, err
	}
	e.refoldLocked()
	e.finalizeLocked(ctx)
	return *e.claims.Claim(claimID), nil
}

// ProposeTrade offers one of this participant's active claims to another
// camp member. Proposing is consenting, so the requester's approval is
// implicit; expiry and the lead-approval requirement are stamped into the
// event from this device's clock and policy.
func (e *Engine) ProposeTrade(ctx context.Context, sourceClaimID, receiverID, message string) (model.TradeRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := trade.CheckPropose(e.claims, e.roster, e.self.ID, sourceClaimID, receiverID); err != nil {
		return model.TradeRequest{}, err
	}
	now := e.now().UTC()
	payload := model.ProposeTradePayload{
		TradeID:       uuid.New().String(),
		SourceClaimID: sourceClaimID,
		ReceiverID:    receiverID,
		Message:       message,
		RequiresLead:  e.policy.LeadApprovalRequired,
		CreatedAt:     now,
		ExpiresAt:     now.Add(e.policy.TradeTTL),
	}
	if _, err := e.emitLocked(ctx, payload); err != nil {
		return model.TradeRequest{}, err
	}
	e.refoldLocked()

	t := e.trades.Trade(payload.TradeID)
	if t == nil {
		return model.TradeRequest{}, fmt.Errorf("trade %s missing after fold", payload.TradeID)
	}
	return *t, nil
}

// ApproveTrade records this participant's consent in the given role.
func (e *Engine) ApproveTrade(ctx context.Context, tradeID string, role model.ApprovalRole) (model.TradeRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := trade.CheckApprove(e.trades, e.roster, tradeID, e.self.ID, role, e.now()); err != nil {
		return model.TradeRequest{}, err
	}
	if _, err := e.emitLocked(ctx, model.ApproveTradePayload{TradeID: tradeID, Role: role}); err != nil {
		return model.TradeRequest{}, err
	}
	e.refoldLocked()
	e.finalizeLocked(ctx)
	return *e.trades.Trade(tradeID), nil
}

// RejectTrade declines a trade in the given role.
func (e *Engine) RejectTrade(ctx context.Context, tradeID string, role model.ApprovalRole, reason string) (model.TradeRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := trade.CheckReject(e.trades, e.roster, tradeID, e.self.ID, role, e.now()); err != nil {
		return model.TradeRequest{}, err
	}
	payload := model.RejectTradePayload{TradeID: tradeID, Role: role, Reason: reason}
	if _, err := e.emitLocked(ctx, payload); err != nil {
		return model.TradeRequest{}, err
	}
	e.refoldLocked()
	return *e.trades.Trade(tradeID), nil
}

// CancelTrade withdraws a trade this participant proposed.
func (e *Engine) CancelTrade(ctx context.Context, tradeID string) (model.TradeRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := trade.CheckCancel(e.trades, tradeID, e.self.ID, e.now()); err != nil {
		return model.TradeRequest{}, err
	}
	if _, err := e.emitLocked(ctx, model.CancelTradePayload{TradeID: tradeID}); err != nil {
		return model.TradeRequest{}, err
	}
	e.refoldLocked()
	return *e.trades.Trade(tradeID), nil
}

// ApprovalRoleFor infers which role this participant would act as on a
// trade: receiver first, then lead, then requester.
func (e *Engine) ApprovalRoleFor(tradeID string) (model.ApprovalRole, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.trades.Trade(tradeID)
	if t == nil {
		return "", &model.TradeError{Kind: model.ErrTradeNotFound, TradeID: tradeID}
	}
	switch {
	case t.ReceiverID == e.self.ID:
		return model.ApprovalReceiver, nil
	case e.self.IsLead():
		return model.ApprovalLead, nil
	case t.RequesterID == e.self.ID:
		return model.ApprovalRequester, nil
	}
	return "", &model.TradeError{
		Kind: model.ErrTradeUnauthorized, TradeID: tradeID,
		Detail: fmt.Sprintf("%s has no role on this trade", e.self.ID),
	}
}

// Ingest folds one event from the mesh. The bool reports whether the event
// was new.
func (e *Engine) Ingest(ctx context.Context, ev model.Event) (bool, error) {
	added, err := e.IngestBatch(ctx, []model.Event{ev})
	return added > 0, err
}

// IngestBatch appends remote events, skipping duplicates, then refolds
// once. Malformed events are dropped with a warning; the Lamport clock
// observes every timestamp either way so local events keep ordering after
// everything this device has seen.
func (e *Engine) IngestBatch(ctx context.Context, events []model.Event) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	added := 0
	for _, ev := range events {
		if ev.ID == "" || ev.Origin == "" || ev.Payload == nil || ev.Kind != ev.Payload.EventKind() {
			if e.metrics != nil {
				e.metrics.EventsInvalid.Inc()
			}
			e.logger.Warn("Dropping malformed event",
				zap.String("event_id", ev.ID), zap.String("kind", string(ev.Kind)))
			continue
		}
		e.clock.Observe(ev.TS)
		if e.log.Contains(ev.ID) {
			if e.metrics != nil {
				e.metrics.EventsDuplicate.Inc()
			}
			continue
		}
		if err := e.appendLocked(ctx, ev, NoteRemoteEvent); err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		e.refoldLocked()
		e.finalizeLocked(ctx)
	}
	return added, nil
}
