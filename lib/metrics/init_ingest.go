// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initIngestMetrics() {
	r.ConnectionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "membrane_connections_total",
			Help: "Total number of transport connections accepted on the event socket",
		},
	)

	r.ConnectionsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "membrane_connections_active",
			Help: "Number of transport connections currently being read",
		},
	)

	r.EventsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "membrane_events_total",
			Help: "Total number of transport events decoded, by kind",
		},
		[]string{"kind"},
	)

	r.FramesDiscardedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "membrane_frames_discarded_total",
			Help: "Total number of frames consumed without producing an event",
		},
		[]string{"reason"},
	)

	r.ProtocolErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "membrane_protocol_errors_total",
			Help: "Total number of connections terminated by a stream error, by kind",
		},
		[]string{"kind"},
	)

	r.EventQueueDepth = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "membrane_event_queue_depth",
			Help: "Events waiting in the listener queue at the last sample",
		},
	)

	r.PeerCredentialFailures = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "membrane_peer_credential_failures_total",
			Help: "Total number of connections whose peer credentials could not be read",
		},
	)
}
