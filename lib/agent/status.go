// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"time"

	"github.com/libertaria/membrane/lib/policy"
	"github.com/libertaria/membrane/lib/version"
)

// Status is a point-in-time summary of the agent.
type Status struct {
	Build         version.BuildInfo `cbor:"build"`
	Events        uint64            `cbor:"events"`
	Verdicts      map[string]uint64 `cbor:"verdicts"`
	Watched       []uint32          `cbor:"watched"`
	Alerts        map[string]int    `cbor:"alerts"`
	AlertsEmitted uint64            `cbor:"alerts_emitted"`
	AlertCapacity int               `cbor:"alert_capacity"`
	Sweeps        uint64            `cbor:"sweeps"`
	LastSweep     time.Time         `cbor:"last_sweep,omitempty"`
	DropThreshold float64           `cbor:"drop_threshold"`
	Untrusted     float64           `cbor:"untrusted_threshold"`
}

// Status reports counters, the watch set, and alert counts.
func (a *Agent) Status() Status {
	verdicts := make(map[string]uint64, len(policy.Decisions))
	for _, decision := range policy.Decisions {
		verdicts[decision.String()] = a.verdicts[decision].Load()
	}
	alerts := make(map[string]int)
	for priority, count := range a.store.Counts() {
		alerts[string(priority)] = count
	}
	drop, untrusted := a.enforcer.Thresholds()

	status := Status{
		Build:         version.Build(),
		Events:        a.events.Load(),
		Verdicts:      verdicts,
		Watched:       a.Watched(),
		Alerts:        alerts,
		AlertsEmitted: a.store.Emitted(),
		AlertCapacity: a.store.Capacity(),
		Sweeps:        a.sweeps.Load(),
		DropThreshold: drop,
		Untrusted:     untrusted,
	}
	if last, ok := a.lastSweep.Load().(time.Time); ok {
		status.LastSweep = last
	}
	return status
}
