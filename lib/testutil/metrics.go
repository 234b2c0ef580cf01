// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// CounterValue reads the current value of a Prometheus counter.
func CounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return metric.Counter.GetValue()
}

// GaugeValue reads the current value of a Prometheus gauge.
func GaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := gauge.Write(&metric); err != nil {
		t.Fatalf("reading gauge: %v", err)
	}
	return metric.Gauge.GetValue()
}
