// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package alert

import (
	"time"

	"github.com/libertaria/membrane/lib/oracle"
)

// Alert is one classified anomaly. Alerts are values; the store never
// modifies one after emission.
type Alert struct {
	Sequence  uint64               `cbor:"sequence"`
	Timestamp time.Time            `cbor:"timestamp"`
	Priority  Priority             `cbor:"priority"`
	Node      uint32               `cbor:"node"`
	Score     float64              `cbor:"score"`
	Reason    oracle.AnomalyReason `cbor:"reason"`
}

// Sink receives every emitted alert. Publish is called outside the
// store's lock, possibly from several goroutines at once.
type Sink interface {
	Publish(Alert)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Alert)

func (f SinkFunc) Publish(a Alert) { f(a) }
