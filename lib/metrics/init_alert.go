// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initAlertMetrics() {
	r.AlertsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "membrane_alerts_total",
			Help: "Total number of alerts emitted, by priority",
		},
		[]string{"priority"},
	)

	r.AlertStoreSize = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "membrane_alert_store_size",
			Help: "Number of alerts currently held in the bounded store",
		},
	)

	r.AlertsPublishedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "membrane_alerts_published_total",
			Help: "Total number of alerts fanned out to subscribers",
		},
	)

	r.AlertPublishFailures = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "membrane_alert_publish_failures_total",
			Help: "Total number of alerts that could not be published",
		},
	)
}
