// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"time"

	"github.com/libertaria/membrane/lib/alert"
)

// SweepReport summarizes one betrayal sweep.
type SweepReport struct {
	Watched  int           `cbor:"watched"`
	Failures int           `cbor:"failures"`
	Alerts   []alert.Alert `cbor:"alerts"`
	Duration time.Duration `cbor:"duration"`
}

func (a *Agent) sweepLoop(ctx context.Context) {
	ticker := a.clock.NewTicker(a.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Sweep(ctx)
		}
	}
}

// Sweep runs betrayal detection for every watched node and emits an
// alert for each flagged node scoring at least the sweep floor. A node
// flagged through several watched nodes in one sweep is alerted once.
// Detection failures are logged and counted; they do not stop the
// sweep.
func (a *Agent) Sweep(ctx context.Context) SweepReport {
	a.sweepMutex.Lock()
	defer a.sweepMutex.Unlock()

	started := a.clock.Now()
	nodes := a.Watched()
	report := SweepReport{Watched: len(nodes)}
	flagged := make(map[uint32]bool)

	for _, node := range nodes {
		if ctx.Err() != nil {
			break
		}
		callContext, cancel := context.WithTimeout(ctx, a.oracleTimeout)
		score, err := a.oracle.DetectBetrayal(callContext, node)
		cancel()
		if err != nil {
			report.Failures++
			a.metrics.RecordOracleFailure("detect_betrayal")
			a.logger.Warn("betrayal detection failed", "node", node, "error", err)
			continue
		}
		if score.Score < a.sweepFloor || flagged[score.Node] {
			continue
		}
		flagged[score.Node] = true
		report.Alerts = append(report.Alerts, a.store.Emit(score))
	}

	finished := a.clock.Now()
	report.Duration = finished.Sub(started)
	a.sweeps.Add(1)
	a.lastSweep.Store(finished)
	a.metrics.RecordSweep(report.Duration, report.Watched, len(report.Alerts))
	a.logger.Debug("betrayal sweep finished",
		"watched", report.Watched,
		"alerts", len(report.Alerts),
		"failures", report.Failures,
	)
	return report
}
