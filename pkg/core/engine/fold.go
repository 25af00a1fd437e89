package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emberfield/meshrota/pkg/core/arbiter"
	"github.com/emberfield/meshrota/pkg/core/model"
	"github.com/emberfield/meshrota/pkg/core/standing"
	"github.com/emberfield/meshrota/pkg/core/trade"
	"github.com/emberfield/meshrota/pkg/db"
)

// appendLocked persists and appends a single event. The store write comes
// first so a crash between the two never loses an acknowledged event; a
// dropped in-memory copy is rebuilt on the next load.
func (e *Engine) appendLocked(ctx context.Context, ev model.Event, kind NoteKind) error {
	if e.log.Contains(ev.ID) {
		if e.metrics != nil {
			e.metrics.EventsDuplicate.Inc()
		}
		return nil
	}
	if e.store != nil {
		rec, err := db.RecordFromEvent(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
		}
		if err := e.store.AppendEvents(ctx, []db.Record{rec}); err != nil {
			return fmt.Errorf("failed to persist event %s: %w", ev.ID, err)
		}
	}
	e.log.Append(ev)
	if e.metrics != nil {
		source := "remote"
		if kind == NoteLocalEvent {
			source = "local"
		}
		e.metrics.EventsApplied.WithLabelValues(source).Inc()
	}
	e.logger.Debug("Appended event",
		zap.String("event_id", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.String("origin", ev.Origin),
		zap.Uint64("ts", ev.TS))
	e.notifyLocked(Note{Kind: kind, Event: ev})
	return nil
}

// emitLocked stamps and appends a locally authored event. Tick guarantees
// the new event orders canonically after everything this device has seen,
// so a check made against the current fold cannot be invalidated by events
// already in the log.
func (e *Engine) emitLocked(ctx context.Context, payload model.Payload) (model.Event, error) {
	ev := model.Event{
		ID:      uuid.New().String(),
		Origin:  e.self.ID,
		TS:      e.clock.Tick(),
		Kind:    payload.EventKind(),
		Payload: payload,
	}
	if err := e.appendLocked(ctx, ev, NoteLocalEvent); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// refoldLocked re-derives all state from scratch over the canonically
// ordered event set. Claim events and trade events share the claim state;
// after every event the trade sweep settles trades whose source claim died.
func (e *Engine) refoldLocked() {
	claims := arbiter.NewState()
	trades := trade.NewState()
	finalized := make(map[string]struct{})
	var recons []model.Reconciliation

	for _, ev := range e.log.Ordered() {
		switch ev.Kind {
		case model.KindClaim, model.KindCheckIn, model.KindComplete,
			model.KindNoShow, model.KindCancelClaim:
			recons = append(recons, arbiter.Apply(claims, e.shifts, e.roster, ev)...)
		case model.KindProposeTrade, model.KindApproveTrade, model.KindRejectTrade,
			model.KindCancelTrade, model.KindTradeFinalized:
			recons = append(recons, trade.Apply(trades, claims, e.roster, ev)...)
			if p, ok := ev.Payload.(model.TradeFinalizedPayload); ok {
				finalized[p.TradeID] = struct{}{}
			}
		default:
			e.logger.Warn("Skipping event of unknown kind",
				zap.String("event_id", ev.ID), zap.String("kind", string(ev.Kind)))
			continue
		}
		recons = append(recons, trades.SweepClosedSources(claims, ev)...)
	}

	e.claims = claims
	e.trades = trades
	e.finalized = finalized
	e.recons = recons
	e.standings = standing.Compute(claims.Claims, e.shifts, e.roster)

	if e.metrics != nil {
		e.metrics.LogSize.Set(float64(e.log.Len()))
	}

	// Refolds replay the whole history, so most notes here were already
	// seen. Only genuinely new merge decisions are surfaced.
	for _, r := range recons {
		key := r.EventID + "|" + string(r.Kind) + "|" + r.Detail
		if _, seen := e.seenRecons[key]; seen {
			continue
		}
		e.seenRecons[key] = struct{}{}
		if e.metrics != nil {
			e.metrics.Reconciliations.WithLabelValues(string(r.Kind)).Inc()
		}
		e.logger.Info("Recorded reconciliation",
			zap.String("event_id", r.EventID),
			zap.String("event_kind", string(r.EventKind)),
			zap.String("kind", string(r.Kind)),
			zap.String("detail", r.Detail))
		e.notifyLocked(Note{Kind: NoteReconciliation, Reconciliation: r})
	}
}

// finalizeLocked emits a trade_finalized event for every fully approved
// trade that has none in the log yet. Any device may do this; concurrent
// finalizations are arbitrated during the fold, which keeps the canonically
// first one and marks the rest stale.
func (e *Engine) finalizeLocked(ctx context.Context) {
	for {
		emitted := false
		for _, id := range e.trades.SortedIDs() {
			t := e.trades.Trades[id]
			if t.Status != model.TradeStatusApproved || t.Finalized() {
				continue
			}
			if _, seen := e.finalized[t.ID]; seen {
				continue
			}
			claim := e.claims.Claim(t.SourceClaimID)
			if claim == nil || !claim.Status.Active() {
				continue
			}
			payload := model.TradeFinalizedPayload{
				TradeID:       t.ID,
				SourceClaimID: t.SourceClaimID,
				NewClaimID:    uuid.New().String(),
				ShiftID:       claim.ShiftID,
				ReceiverID:    t.ReceiverID,
			}
			if _, err := e.emitLocked(ctx, payload); err != nil {
				e.logger.Error("Failed to emit trade finalization",
					zap.String("trade_id", t.ID), zap.Error(err))
				return
			}
			e.logger.Info("Finalized trade",
				zap.String("trade_id", t.ID),
				zap.String("source_claim_id", t.SourceClaimID),
				zap.String("new_claim_id", payload.NewClaimID),
				zap.String("receiver_id", t.ReceiverID))
			if e.metrics != nil {
				e.metrics.TradesFinalized.Inc()
			}
			emitted = true
		}
		if !emitted {
			return
		}
		e.refoldLocked()
	}
}
