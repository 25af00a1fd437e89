// Package engine is the device's single entry point: local intents and
// mesh events go in, the log grows, and every projection is re-derived
// from the canonically ordered event set.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/emberfield/meshrota/internal/metrics"
	"github.com/emberfield/meshrota/pkg/core/arbiter"
	"github.com/emberfield/meshrota/pkg/core/eventlog"
	"github.com/emberfield/meshrota/pkg/core/model"
	"github.com/emberfield/meshrota/pkg/core/trade"
	"github.com/emberfield/meshrota/pkg/db"
)

// Policy is this camp's trade policy. The lead-approval flag is stamped
// into each proposal event, so devices with stale configs still fold every
// trade identically.
type Policy struct {
	LeadApprovalRequired bool
	TradeTTL             time.Duration
}

const defaultTradeTTL = 24 * time.Hour

// NoteKind tags a change notification.
type NoteKind string

const (
	// NoteLocalEvent: an event authored on this device was appended.
	// Transports broadcast these.
	NoteLocalEvent NoteKind = "local_event"
	// NoteRemoteEvent: an event arriving from the mesh or from another
	// process sharing this device's store was appended.
	NoteRemoteEvent NoteKind = "remote_event"
	// NoteReconciliation: the fold recorded a new merge decision.
	NoteReconciliation NoteKind = "reconciliation"
)

// Note is a change notification delivered to subscribers.
type Note struct {
	Kind           NoteKind
	Event          model.Event
	Reconciliation model.Reconciliation
}

// Subscriber channels are buffered this deep. Sends never block the apply
// path; slow consumers lose notes and should re-read projections instead.
const noteBuffer = 256

// Engine folds the event log into claim, trade and standing state. Every
// intent, ingest and projection is serialized behind one lock; at camp
// scale a full refold per apply costs nothing measurable.
type Engine struct {
	mu     sync.Mutex
	self   model.Participant
	shifts map[string]model.Shift
	roster map[string]model.Participant
	policy Policy

	log   *eventlog.Log
	clock *eventlog.Clock
	store db.EventStore

	logger  *zap.Logger
	metrics *metrics.Core
	now     func() time.Time

	claims     *arbiter.State
	trades     *trade.State
	standings  map[string]*model.StandingRecord
	recons     []model.Reconciliation
	seenRecons map[string]struct{}
	finalized  map[string]struct{}

	subs      map[int]chan Note
	nextSubID int
}

// Options configures a new engine. Store, Metrics and Now are optional;
// Now exists so tests can drive expiry and suspension windows.
type Options struct {
	SelfID  string
	Shifts  []model.Shift
	Roster  []model.Participant
	Policy  Policy
	Store   db.EventStore
	Logger  *zap.Logger
	Metrics *metrics.Core
	Now     func() time.Time
}

// New builds an engine, loads the persisted log if a store is configured,
// and folds it.
func New(ctx context.Context, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	policy := opts.Policy
	if policy.TradeTTL <= 0 {
		policy.TradeTTL = defaultTradeTTL
	}

	roster := make(map[string]model.Participant, len(opts.Roster))
	for _, p := range opts.Roster {
		roster[p.ID] = p
	}
	shifts := make(map[string]model.Shift, len(opts.Shifts))
	for _, s := range opts.Shifts {
		shifts[s.ID] = s
	}
	self, ok := roster[opts.SelfID]
	if !ok {
		return nil, fmt.Errorf("participant %s is not in the roster", opts.SelfID)
	}

	e := &Engine{
		self:       self,
		shifts:     shifts,
		roster:     roster,
		policy:     policy,
		log:        eventlog.NewLog(),
		clock:      &eventlog.Clock{},
		store:      opts.Store,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
		claims:     arbiter.NewState(),
		trades:     trade.NewState(),
		standings:  make(map[string]*model.StandingRecord),
		seenRecons: make(map[string]struct{}),
		finalized:  make(map[string]struct{}),
		subs:       make(map[int]chan Note),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store != nil {
		count, err := e.loadStoreLocked(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded event log", zap.Int("events", count))
	}
	e.refoldLocked()
	e.finalizeLocked(ctx)
	return e, nil
}

func (e *Engine) loadStoreLocked(ctx context.Context) (int, error) {
	records, err := e.store.LoadEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load events: %w", err)
	}
	count := 0
	for _, rec := range records {
		ev, err := rec.Event()
		if err != nil {
			e.logger.Warn("Skipping undecodable stored event",
				zap.String("event_id", rec.EventID), zap.Error(err))
			if e.metrics != nil {
				e.metrics.EventsInvalid.Inc()
			}
			continue
		}
		e.clock.Observe(ev.TS)
		if e.log.Append(ev) {
			count++
		}
	}
	return count, nil
}

// RefreshFromStore folds in events that other processes appended to the
// shared store since this engine loaded it. The sync daemon calls this on
// its digest ticks so claims made through one-shot commands show up in
// its digests.
func (e *Engine) RefreshFromStore(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return 0, nil
	}
	records, err := e.store.LoadEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reload events: %w", err)
	}

	added := 0
	for _, rec := range records {
		if e.log.Contains(rec.EventID) {
			continue
		}
		ev, err := rec.Event()
		if err != nil {
			e.logger.Warn("Skipping undecodable stored event",
				zap.String("event_id", rec.EventID), zap.Error(err))
			if e.metrics != nil {
				e.metrics.EventsInvalid.Inc()
			}
			continue
		}
		e.clock.Observe(ev.TS)
		if e.log.Append(ev) {
			added++
			if e.metrics != nil {
				e.metrics.EventsApplied.WithLabelValues("remote").Inc()
			}
			e.notifyLocked(Note{Kind: NoteRemoteEvent, Event: ev})
		}
	}
	if added > 0 {
		e.refoldLocked()
		e.finalizeLocked(ctx)
	}
	return added, nil
}

// Subscribe registers a change listener. Notes are dropped rather than
// blocking the apply path, so consumers that need a complete picture
// should re-read projections when woken.
func (e *Engine) Subscribe() (int, <-chan Note) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSubID
	e.nextSubID++
	ch := make(chan Note, noteBuffer)
	e.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
	}
}

func (e *Engine) notifyLocked(note Note) {
	for _, ch := range e.subs {
		select {
		case ch <- note:
		default:
		}
	}
}

// Self returns the participant this device acts as.
func (e *Engine) Self() model.Participant {
	return e.self
}

// Shift looks up a catalog shift.
func (e *Engine) Shift(id string) (model.Shift, bool) {
	s, ok := e.shifts[id]
	return s, ok
}

// Participant looks up a roster member.
func (e *Engine) Participant(id string) (model.Participant, bool) {
	p, ok := e.roster[id]
	return p, ok
}
