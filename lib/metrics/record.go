// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import "time"

// ConnectionOpened records an accepted transport connection.
func (r *Registry) ConnectionOpened() {
	if r == nil {
		return
	}
	r.ConnectionsTotal.Inc()
	r.ConnectionsActive.Inc()
}

// ConnectionClosed records the end of a transport connection.
func (r *Registry) ConnectionClosed() {
	if r == nil {
		return
	}
	r.ConnectionsActive.Dec()
}

// RecordEvent counts one decoded event of the given kind.
func (r *Registry) RecordEvent(kind string) {
	if r == nil {
		return
	}
	r.EventsTotal.WithLabelValues(kind).Inc()
}

// RecordDiscard counts one frame consumed without an event.
func (r *Registry) RecordDiscard(reason string) {
	if r == nil {
		return
	}
	r.FramesDiscardedTotal.WithLabelValues(reason).Inc()
}

// RecordProtocolError counts a connection terminated by a stream error.
func (r *Registry) RecordProtocolError(kind string) {
	if r == nil {
		return
	}
	r.ProtocolErrorsTotal.WithLabelValues(kind).Inc()
}

// SetQueueDepth samples the listener queue length.
func (r *Registry) SetQueueDepth(depth int) {
	if r == nil {
		return
	}
	r.EventQueueDepth.Set(float64(depth))
}

// RecordPeerCredentialFailure counts a connection whose SO_PEERCRED
// lookup failed.
func (r *Registry) RecordPeerCredentialFailure() {
	if r == nil {
		return
	}
	r.PeerCredentialFailures.Inc()
}

// RecordDecision counts a forwarding decision and its latency.
func (r *Registry) RecordDecision(decision string, duration time.Duration) {
	if r == nil {
		return
	}
	r.DecisionsTotal.WithLabelValues(decision).Inc()
	r.DecisionDuration.Observe(duration.Seconds())
}

// RecordOracleFailure counts a failed oracle call.
func (r *Registry) RecordOracleFailure(operation string) {
	if r == nil {
		return
	}
	r.OracleFailuresTotal.WithLabelValues(operation).Inc()
}

// RecordSweep records a completed betrayal sweep.
func (r *Registry) RecordSweep(duration time.Duration, watched, findings int) {
	if r == nil {
		return
	}
	r.SweepsTotal.Inc()
	r.SweepDuration.Observe(duration.Seconds())
	r.SweepFindingsTotal.Add(float64(findings))
	r.NodesWatched.Set(float64(watched))
}

// RecordSlashSignal counts an issued slash signal.
func (r *Registry) RecordSlashSignal() {
	if r == nil {
		return
	}
	r.SlashSignalsTotal.Inc()
}

// RecordAlert counts an emitted alert and samples the store size.
func (r *Registry) RecordAlert(priority string, storeSize int) {
	if r == nil {
		return
	}
	r.AlertsTotal.WithLabelValues(priority).Inc()
	r.AlertStoreSize.Set(float64(storeSize))
}

// SetAlertStoreSize samples the store size outside of an emission, for
// example after Clear.
func (r *Registry) SetAlertStoreSize(size int) {
	if r == nil {
		return
	}
	r.AlertStoreSize.Set(float64(size))
}

// RecordPublish counts one alert fan-out attempt.
func (r *Registry) RecordPublish(err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.AlertPublishFailures.Inc()
		return
	}
	r.AlertsPublishedTotal.Inc()
}
