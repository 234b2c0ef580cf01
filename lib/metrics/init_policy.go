// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPolicyMetrics() {
	r.DecisionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "membrane_decisions_total",
			Help: "Total number of packet forwarding decisions, by decision",
		},
		[]string{"decision"},
	)

	r.DecisionDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "membrane_decision_duration_seconds",
			Help:    "Time spent obtaining a forwarding decision from the oracle",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 2},
		},
	)

	r.OracleFailuresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "membrane_oracle_failures_total",
			Help: "Total number of failed oracle calls, by operation",
		},
		[]string{"op"},
	)

	r.SweepsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "membrane_sweeps_total",
			Help: "Total number of betrayal sweeps completed",
		},
	)

	r.SweepDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "membrane_sweep_duration_seconds",
			Help:    "Duration of betrayal sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	r.SweepFindingsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "membrane_sweep_findings_total",
			Help: "Total number of anomaly scores at or above the sweep floor",
		},
	)

	r.NodesWatched = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "membrane_nodes_watched",
			Help: "Number of nodes covered by the periodic betrayal sweep",
		},
	)

	r.SlashSignalsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "membrane_slash_signals_total",
			Help: "Total number of slash signals issued",
		},
	)
}
