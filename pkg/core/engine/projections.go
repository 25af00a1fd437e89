package engine

import (
	"sort"

	"github.com/emberfield/meshrota/pkg/core/eventlog"
	"github.com/emberfield/meshrota/pkg/core/leaderboard"
	"github.com/emberfield/meshrota/pkg/core/model"
	"github.com/emberfield/meshrota/pkg/core/standing"
)

// Projections are read-only snapshots computed under the engine lock.
// They return copies, never internal state.

// ShiftAvailability pairs a shift with its live claim count.
type ShiftAvailability struct {
	Shift        model.Shift
	ActiveClaims int
	Remaining    int
}

// ClaimView pairs a claim with its shift for display.
type ClaimView struct {
	Claim model.ShiftClaim
	Shift model.Shift
}

// TradeView decorates a trade with its expiry overlay and display context.
type TradeView struct {
	Trade           model.TradeRequest
	EffectiveStatus model.TradeStatus
	Shift           model.Shift
	SourceClaim     model.ShiftClaim
}

// StandingView pairs a standing record with any suspension in force.
type StandingView struct {
	Record     model.StandingRecord
	Suspension *model.Suspension
}

// AvailableShifts lists shifts that have not ended and still have open
// spots, soonest first.
func (e *Engine) AvailableShifts() []ShiftAvailability {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	out := make([]ShiftAvailability, 0, len(e.shifts))
	for _, s := range e.shifts {
		if !s.End.After(now) {
			continue
		}
		active := e.claims.ActiveCount(s.ID)
		if s.Capacity-active <= 0 {
			continue
		}
		out = append(out, ShiftAvailability{Shift: s, ActiveClaims: active, Remaining: s.Capacity - active})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Shift.Start.Equal(out[j].Shift.Start) {
			return out[i].Shift.Start.Before(out[j].Shift.Start)
		}
		return out[i].Shift.ID < out[j].Shift.ID
	})
	return out
}

// AllShifts returns the full catalog, soonest first.
func (e *Engine) AllShifts() []model.Shift {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Shift, 0, len(e.shifts))
	for _, s := range e.shifts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ClaimsFor lists every claim held by a participant, including terminal
// ones, ordered by shift start.
func (e *Engine) ClaimsFor(participantID string) []ClaimView {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []ClaimView
	for _, c := range e.claims.Claims {
		if c.ParticipantID != participantID {
			continue
		}
		out = append(out, ClaimView{Claim: *c, Shift: e.shifts[c.ShiftID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Shift.Start.Equal(out[j].Shift.Start) {
			return out[i].Shift.Start.Before(out[j].Shift.Start)
		}
		return out[i].Claim.ID < out[j].Claim.ID
	})
	return out
}

// StandingFor returns a participant's derived standing plus any active
// suspension.
func (e *Engine) StandingFor(participantID string) (StandingView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.standings[participantID]
	if !ok {
		return StandingView{}, false
	}
	view := StandingView{Record: *rec}
	noShows := standing.NoShowTimes(e.claims.Claims, participantID)
	if s, active := standing.ActiveSuspension(participantID, noShows, e.now()); active {
		view.Suspension = &s
	}
	return view, true
}

// SuspensionSchedule returns every penalty window a participant's no-show
// history implies, active or not, oldest first.
func (e *Engine) SuspensionSchedule(participantID string) []model.Suspension {
	e.mu.Lock()
	defer e.mu.Unlock()

	noShows := standing.NoShowTimes(e.claims.Claims, participantID)
	return standing.Suspensions(participantID, noShows)
}

// Leaderboard ranks the camp with this device's participant de-anonymized.
func (e *Engine) Leaderboard() []leaderboard.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return leaderboard.Build(e.standings, e.roster, e.self.ID)
}

// TradesNeedingAction lists live trades waiting on this participant: as
// receiver, trades they have not yet answered; as lead, trades awaiting
// lead sign-off.
func (e *Engine) TradesNeedingAction(participantID string) []TradeView {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.roster[participantID]
	now := e.now()
	var out []TradeView
	for _, id := range e.trades.SortedIDs() {
		t := e.trades.Trades[id]
		eff := t.EffectiveStatus(now)
		waitingOnReceiver := t.ReceiverID == participantID &&
			eff == model.TradeStatusPending && !t.ReceiverApproved
		waitingOnLead := ok && p.IsLead() && eff == model.TradeStatusAwaitingLead
		if !waitingOnReceiver && !waitingOnLead {
			continue
		}
		out = append(out, e.tradeViewLocked(t, eff))
	}
	return out
}

// MyPendingTrades lists live trades this participant proposed.
func (e *Engine) MyPendingTrades(participantID string) []TradeView {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var out []TradeView
	for _, id := range e.trades.SortedIDs() {
		t := e.trades.Trades[id]
		if t.RequesterID != participantID {
			continue
		}
		eff := t.EffectiveStatus(now)
		if eff.Terminal() {
			continue
		}
		out = append(out, e.tradeViewLocked(t, eff))
	}
	return out
}

// TradesInvolving lists every trade where the participant is requester or
// receiver, regardless of status.
func (e *Engine) TradesInvolving(participantID string) []TradeView {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var out []TradeView
	for _, id := range e.trades.SortedIDs() {
		t := e.trades.Trades[id]
		if t.RequesterID != participantID && t.ReceiverID != participantID {
			continue
		}
		out = append(out, e.tradeViewLocked(t, t.EffectiveStatus(now)))
	}
	return out
}

// AllTrades lists every trade in the fold, for lead review.
func (e *Engine) AllTrades() []TradeView {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var out []TradeView
	for _, id := range e.trades.SortedIDs() {
		t := e.trades.Trades[id]
		out = append(out, e.tradeViewLocked(t, t.EffectiveStatus(now)))
	}
	return out
}

// TradeByID returns one trade with its expiry overlay applied.
func (e *Engine) TradeByID(tradeID string) (TradeView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.trades.Trade(tradeID)
	if t == nil {
		return TradeView{}, false
	}
	return e.tradeViewLocked(t, t.EffectiveStatus(e.now())), true
}

func (e *Engine) tradeViewLocked(t *model.TradeRequest, eff model.TradeStatus) TradeView {
	view := TradeView{Trade: *t, EffectiveStatus: eff}
	if claim := e.claims.Claim(t.SourceClaimID); claim != nil {
		view.SourceClaim = *claim
		view.Shift = e.shifts[claim.ShiftID]
	}
	return view
}

// Reconciliations returns the merge decisions recorded by the latest fold,
// in fold order.
func (e *Engine) Reconciliations() []model.Reconciliation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Reconciliation, len(e.recons))
	copy(out, e.recons)
	return out
}

// Events returns the whole log in canonical order.
func (e *Engine) Events() []model.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Ordered()
}

// EventsAbove returns events newer than the given per-origin vector, for
// answering pull requests.
func (e *Engine) EventsAbove(vector map[string]uint64) []model.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.EventsAbove(vector)
}

// Digest summarizes the local log per origin for gossip.
func (e *Engine) Digest() eventlog.Digest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Digest()
}

// Snapshot is a deep copy of the folded state, for convergence checks and
// debugging.
type Snapshot struct {
	Claims    map[string]model.ShiftClaim
	Trades    map[string]model.TradeRequest
	Standings map[string]model.StandingRecord
}

// Snapshot captures the current fold.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Claims:    make(map[string]model.ShiftClaim, len(e.claims.Claims)),
		Trades:    make(map[string]model.TradeRequest, len(e.trades.Trades)),
		Standings: make(map[string]model.StandingRecord, len(e.standings)),
	}
	for id, c := range e.claims.Claims {
		snap.Claims[id] = *c
	}
	for id, t := range e.trades.Trades {
		snap.Trades[id] = *t
	}
	for id, r := range e.standings {
		snap.Standings[id] = *r
	}
	return snap
}
