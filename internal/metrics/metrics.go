// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus metrics about a running scan.
package metrics

import (
	"github.com/bassosimone/slp"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slp"

// StatsFunc returns a snapshot of the dispatcher counters.
type StatsFunc func() slp.Stats

// Metrics owns the collectors of a scan and the registry holding them.
//
// Construct using [New].
type Metrics struct {
	elapsed  *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	registry *prometheus.Registry
}

// New creates the outcome collectors and registers them in a new registry.
func New() *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "outcomes_total",
				Help:      "Delivered query outcomes.",
			},
			[]string{"kind", "err_class"},
		),
		elapsed: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Time from admission to completion in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"ok"},
		),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.outcomes, m.elapsed)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a delivered outcome.
func (m *Metrics) Observe(outcome slp.Outcome) {
	m.outcomes.WithLabelValues(outcome.Kind().String(), outcome.ErrClass).Inc()
	ok := "false"
	if outcome.OK() {
		ok = "true"
	}
	m.elapsed.WithLabelValues(ok).Observe(outcome.Elapsed.Seconds())
}

// RegisterStats exports the dispatcher counters read through stats.
//
// Call it at most once per [*Metrics].
func (m *Metrics) RegisterStats(stats StatsFunc) {
	counter := func(name, help string, field func(slp.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "dispatcher", Name: name, Help: help},
			func() float64 { return float64(field(stats())) },
		)
	}
	gauge := func(name, help string, field func(slp.Stats) int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "dispatcher", Name: name, Help: help},
			func() float64 { return float64(field(stats())) },
		)
	}
	m.registry.MustRegister(
		counter("submitted_total", "Queries accepted by the dispatcher.",
			func(s slp.Stats) int64 { return s.Submitted }),
		counter("rejected_total", "Queries refused after sealing.",
			func(s slp.Stats) int64 { return s.Rejected }),
		counter("timed_out_total", "Queries that exceeded their deadline.",
			func(s slp.Stats) int64 { return s.TimedOut }),
		gauge("in_flight", "Accepted queries whose outcome was not delivered yet.",
			func(s slp.Stats) int64 { return s.InFlight }),
		gauge("active", "Queries holding an admission permit.",
			func(s slp.Stats) int64 { return s.Active }),
	)
}
