package eventlog

import (
	"sort"
	"sync"

	"github.com/emberfield/meshrota/pkg/core/model"
)

// OriginStat summarizes one origin's events for anti-entropy digests.
type OriginStat struct {
	MaxTS uint64 `json:"maxTs"`
	Count int    `json:"count"`
}

// Digest maps each known origin to a summary of its events. Comparing
// digests tells a peer whether it is missing anything: a higher MaxTS means
// newer events exist, a higher Count at the same MaxTS means the peer has
// holes from dropped frames.
type Digest map[string]OriginStat

// Log is the append-only, deduplicated event set. Events are never edited
// or removed; all derived state is folded from Ordered(). The log never
// interprets payloads.
type Log struct {
	mu     sync.RWMutex
	byID   map[string]struct{}
	events []model.Event
	stats  Digest
}

func NewLog() *Log {
	return &Log{
		byID:  make(map[string]struct{}),
		stats: make(Digest),
	}
}

// Append adds an event unless its id is already present and reports whether
// the event was new. Duplicate delivery over the mesh is expected, so a
// false return is not an error.
func (l *Log) Append(ev model.Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[ev.ID]; ok {
		return false
	}
	l.byID[ev.ID] = struct{}{}
	l.events = append(l.events, ev)
	st := l.stats[ev.Origin]
	if ev.TS > st.MaxTS {
		st.MaxTS = ev.TS
	}
	st.Count++
	l.stats[ev.Origin] = st
	return true
}

// Contains reports whether an event id is already in the log.
func (l *Log) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byID[id]
	return ok
}

// Len returns the number of distinct events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Ordered returns a copy of the log in canonical (ts, origin, eventId)
// order. Every device sorts the same event set into the same sequence,
// which is what makes the fold deterministic.
func (l *Log) Ordered() []model.Event {
	l.mu.RLock()
	out := make([]model.Event, len(l.events))
	copy(out, l.events)
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Digest returns a copy of the per-origin summary.
func (l *Log) Digest() Digest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(Digest, len(l.stats))
	for origin, st := range l.stats {
		out[origin] = st
	}
	return out
}

// EventsAbove returns, in canonical order, every event whose ts exceeds the
// vector's entry for its origin. Origins absent from the vector count as
// zero, so an empty vector requests the full log.
func (l *Log) EventsAbove(vector map[string]uint64) []model.Event {
	l.mu.RLock()
	var out []model.Event
	for _, ev := range l.events {
		if ev.TS > vector[ev.Origin] {
			out = append(out, ev)
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// PlanPull compares the local digest against a peer's advertisement and
// decides what to request. vector holds the local per-origin watermarks for
// a targeted pull; full is set when an equal watermark hides holes (the
// peer counts more events below it), where only a complete resend heals;
// needed is false when the peer advertises nothing new.
func PlanPull(local, remote Digest) (vector map[string]uint64, full, needed bool) {
	vector = make(map[string]uint64, len(local))
	for origin, stat := range local {
		vector[origin] = stat.MaxTS
	}
	for origin, rstat := range remote {
		lstat, ok := local[origin]
		switch {
		case !ok || lstat.MaxTS < rstat.MaxTS:
			needed = true
		case lstat.MaxTS == rstat.MaxTS && lstat.Count < rstat.Count:
			return nil, true, true
		}
	}
	return vector, false, needed
}
