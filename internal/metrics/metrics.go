// Package metrics defines the prometheus instruments served by the sync
// daemon's metrics endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Core instruments the engine's apply path and the gossiper.
type Core struct {
	EventsApplied   *prometheus.CounterVec
	EventsDuplicate prometheus.Counter
	EventsInvalid   prometheus.Counter
	Reconciliations *prometheus.CounterVec
	TradesFinalized prometheus.Counter
	LogSize         prometheus.Gauge
	DigestsReceived prometheus.Counter
}

// New builds the core instruments and registers them with reg.
func New(reg prometheus.Registerer) *Core {
	c := &Core{
		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshrota_events_applied_total",
			Help: "Events appended to the log, by source (local or remote).",
		}, []string{"source"}),
		EventsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshrota_events_duplicate_total",
			Help: "Events dropped because their id was already in the log.",
		}),
		EventsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshrota_events_invalid_total",
			Help: "Frames or events dropped as undecodable.",
		}),
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshrota_reconciliations_total",
			Help: "Merge decisions that demoted or skipped an event, by kind.",
		}, []string{"kind"}),
		TradesFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshrota_trades_finalized_total",
			Help: "trade_finalized events emitted by this device.",
		}),
		LogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshrota_log_size",
			Help: "Distinct events in the log.",
		}),
		DigestsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshrota_peer_digests_received_total",
			Help: "Digest frames received from peers.",
		}),
	}
	reg.MustRegister(
		c.EventsApplied,
		c.EventsDuplicate,
		c.EventsInvalid,
		c.Reconciliations,
		c.TradesFinalized,
		c.LogSize,
		c.DigestsReceived,
	)
	return c
}
