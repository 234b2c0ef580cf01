// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the agent's Prometheus collectors.
//
// All recording methods are safe on a nil *Registry, so components take
// an optional registry and record unconditionally.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every membrane collector on a private Prometheus
// registry.
type Registry struct {
	// Ingest
	ConnectionsTotal       prometheus.Counter
	ConnectionsActive      prometheus.Gauge
	EventsTotal            *prometheus.CounterVec
	FramesDiscardedTotal   *prometheus.CounterVec
	ProtocolErrorsTotal    *prometheus.CounterVec
	EventQueueDepth        prometheus.Gauge
	PeerCredentialFailures prometheus.Counter

	// Policy
	DecisionsTotal      *prometheus.CounterVec
	DecisionDuration    prometheus.Histogram
	OracleFailuresTotal *prometheus.CounterVec
	SweepsTotal         prometheus.Counter
	SweepDuration       prometheus.Histogram
	SweepFindingsTotal  prometheus.Counter
	NodesWatched        prometheus.Gauge
	SlashSignalsTotal   prometheus.Counter

	// Alerts
	AlertsTotal          *prometheus.CounterVec
	AlertStoreSize       prometheus.Gauge
	AlertsPublishedTotal prometheus.Counter
	AlertPublishFailures prometheus.Counter

	registry *prometheus.Registry
}

// NewRegistry creates a registry with all collectors initialized, plus
// the standard Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{registry: reg}
	r.initIngestMetrics()
	r.initPolicyMetrics()
	r.initAlertMetrics()
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler exposing the registry in the
// Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on address until ctx is cancelled. It returns
// nil after an orderly shutdown.
func (r *Registry) Serve(ctx context.Context, address string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownContext); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	logger.Info("metrics server listening", "address", address)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
		return nil
	}
	return fmt.Errorf("metrics server on %s: %w", address, err)
}
