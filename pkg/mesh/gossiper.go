package mesh

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/emberfield/meshrota/internal/metrics"
	"github.com/emberfield/meshrota/pkg/core/engine"
	"github.com/emberfield/meshrota/pkg/core/eventlog"
	"github.com/emberfield/meshrota/pkg/core/model"
)

// defaultDigestInterval paces anti-entropy. Digests are tiny next to the
// radio's duty cycle, so a minute keeps partitions short-lived without
// crowding out event traffic.
const defaultDigestInterval = time.Minute

// inboundBuffer absorbs receive bursts from the adapter. When it fills the
// frame is dropped; the next digest exchange repairs whatever was in it.
const inboundBuffer = 256

// Gossiper binds an engine to a mesh adapter. It rebroadcasts locally
// authored events, advertises digests on a timer, answers pulls, and pulls
// whatever peer digests show missing.
type Gossiper struct {
	engine  *engine.Engine
	adapter Adapter
	logger  *zap.Logger
	metrics *metrics.Core

	self        string
	digestEvery time.Duration
	frames      chan []byte
}

// GossiperOptions configures a Gossiper. Engine and Adapter are required.
type GossiperOptions struct {
	Engine  *engine.Engine
	Adapter Adapter
	Logger  *zap.Logger
	Metrics *metrics.Core
	// DigestInterval overrides the anti-entropy period. Zero means the
	// default.
	DigestInterval time.Duration
}

// NewGossiper wires the adapter's receive path into an internal queue. The
// queue is drained by Run; nothing is processed until then.
func NewGossiper(opts GossiperOptions) *Gossiper {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.DigestInterval
	if interval <= 0 {
		interval = defaultDigestInterval
	}
	g := &Gossiper{
		engine:      opts.Engine,
		adapter:     opts.Adapter,
		logger:      logger,
		metrics:     opts.Metrics,
		self:        opts.Engine.Self().ID,
		digestEvery: interval,
		frames:      make(chan []byte, inboundBuffer),
	}
	opts.Adapter.OnReceive(func(frame []byte) {
		buf := make([]byte, len(frame))
		copy(buf, frame)
		select {
		case g.frames <- buf:
		default:
			g.logger.Warn("Inbound frame queue full, dropping frame")
		}
	})
	return g
}

// Run gossips until ctx ends. It owns the only goroutine that touches the
// adapter's send side, so adapters need not be safe for concurrent Send.
func (g *Gossiper) Run(ctx context.Context) error {
	subID, notes := g.engine.Subscribe()
	defer g.engine.Unsubscribe(subID)

	// Announce ourselves so peers that were up before us can repair
	// immediately instead of waiting a tick.
	g.sendDigest()

	ticker := time.NewTicker(g.digestEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case note := <-notes:
			if note.Kind == engine.NoteLocalEvent {
				g.broadcastEvent(note.Event)
			}
		case frame := <-g.frames:
			g.handleFrame(ctx, frame)
		case <-ticker.C:
			// One-shot commands append to the shared store behind our
			// back; fold them in before advertising.
			if n, err := g.engine.RefreshFromStore(ctx); err != nil {
				g.logger.Warn("Failed to refresh from store", zap.Error(err))
			} else if n > 0 {
				g.logger.Debug("Folded store events", zap.Int("count", n))
			}
			g.sendDigest()
		}
	}
}

func (g *Gossiper) broadcastEvent(ev model.Event) {
	frame, err := EncodeEventFrame(g.self, ev)
	if err != nil {
		g.logger.Error("Failed to encode event frame", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	if err := g.adapter.Send(frame); err != nil {
		// The digest cycle retransmits; a failed send is not fatal.
		g.logger.Warn("Failed to broadcast event", zap.String("event_id", ev.ID), zap.Error(err))
	}
}

func (g *Gossiper) sendDigest() {
	frame, err := EncodeDigestFrame(g.self, g.engine.Digest())
	if err != nil {
		g.logger.Error("Failed to encode digest frame", zap.Error(err))
		return
	}
	if err := g.adapter.Send(frame); err != nil {
		g.logger.Warn("Failed to send digest", zap.Error(err))
	}
}

func (g *Gossiper) handleFrame(ctx context.Context, raw []byte) {
	frame, err := DecodeFrame(raw)
	if err != nil {
		if g.metrics != nil {
			g.metrics.EventsInvalid.Inc()
		}
		g.logger.Warn("Dropping undecodable frame", zap.Error(err))
		return
	}
	// Spool gateways can echo our own transmissions back at us.
	if frame.From == g.self {
		return
	}

	switch frame.Type {
	case FrameEvent:
		g.handleEvent(ctx, frame)
	case FrameDigest:
		if g.metrics != nil {
			g.metrics.DigestsReceived.Inc()
		}
		g.reconcile(frame)
	case FramePull:
		g.answerPull(frame)
	}
}

func (g *Gossiper) handleEvent(ctx context.Context, frame Frame) {
	ev, err := model.DecodeEvent(frame.Event)
	if err != nil {
		if g.metrics != nil {
			g.metrics.EventsInvalid.Inc()
		}
		g.logger.Warn("Dropping undecodable peer event", zap.String("from", frame.From), zap.Error(err))
		return
	}
	added, err := g.engine.Ingest(ctx, ev)
	if err != nil {
		g.logger.Error("Failed to ingest peer event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	if added {
		g.logger.Debug("Ingested peer event",
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.String("from", frame.From),
		)
	}
}

// reconcile heals both directions off one peer digest: pull what the peer
// has that we lack, and push what we hold above the peer's watermarks.
func (g *Gossiper) reconcile(frame Frame) {
	local := g.engine.Digest()

	vector, full, needed := eventlog.PlanPull(local, frame.Digest)
	if needed {
		pull, err := EncodePullFrame(g.self, vector)
		if err != nil {
			g.logger.Error("Failed to encode pull frame", zap.Error(err))
		} else if err := g.adapter.Send(pull); err != nil {
			g.logger.Warn("Failed to send pull", zap.Error(err))
		} else if full {
			g.logger.Info("Requesting full resend", zap.String("peer", frame.From))
		} else {
			g.logger.Debug("Requesting pull", zap.String("peer", frame.From))
		}
	}

	peerVector := make(map[string]uint64, len(frame.Digest))
	for origin, stat := range frame.Digest {
		peerVector[origin] = stat.MaxTS
	}
	missing := g.engine.EventsAbove(peerVector)
	if len(missing) == 0 {
		return
	}
	g.logger.Debug("Pushing events peer lacks",
		zap.String("peer", frame.From),
		zap.Int("count", len(missing)),
	)
	for _, ev := range missing {
		g.broadcastEvent(ev)
	}
}

func (g *Gossiper) answerPull(frame Frame) {
	events := g.engine.EventsAbove(frame.Vector)
	if len(events) == 0 {
		return
	}
	g.logger.Debug("Answering pull",
		zap.String("peer", frame.From),
		zap.Int("count", len(events)),
	)
	for _, ev := range events {
		g.broadcastEvent(ev)
	}
}
