// Package eventlog holds a device's append-only event history and the
// Lamport clock that stamps locally originated events.
package eventlog

import "sync"

// Clock is the device's Lamport counter. Locally originated events are
// stamped with Tick; every ingested remote event advances the counter
// through Observe so the next local event orders after everything this
// device has already seen.
type Clock struct {
	mu      sync.Mutex
	counter uint64
}

// Tick advances the counter and returns the new value.
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return c.counter
}

// Observe folds a remote timestamp into the counter.
func (c *Clock) Observe(ts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.counter {
		c.counter = ts
	}
}

// Current returns the counter without advancing it.
func (c *Clock) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}
