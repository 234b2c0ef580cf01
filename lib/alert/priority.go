// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package alert

import (
	"fmt"
	"strings"
)

// Priority is an alert's severity class.
type Priority string

const (
	Critical Priority = "critical"
	Warning  Priority = "warning"
	Info     Priority = "info"
)

// Score boundaries for Classify.
const (
	CriticalThreshold = 0.9
	WarningThreshold  = 0.7
)

// Priorities lists every priority from most to least severe.
var Priorities = []Priority{Critical, Warning, Info}

// Classify maps an anomaly score to a priority: at or above 0.9 is
// Critical, at or above 0.7 is Warning, anything else is Info.
func Classify(score float64) Priority {
	switch {
	case score >= CriticalThreshold:
		return Critical
	case score >= WarningThreshold:
		return Warning
	default:
		return Info
	}
}

// Rank orders priorities by severity: 0 is the most severe. An unknown
// priority ranks below Info.
func (p Priority) Rank() int {
	switch p {
	case Critical:
		return 0
	case Warning:
		return 1
	case Info:
		return 2
	default:
		return 3
	}
}

// AtLeast reports whether p is at least as severe as minimum.
func (p Priority) AtLeast(minimum Priority) bool {
	return p.Valid() && p.Rank() <= minimum.Rank()
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p.Rank() < 3
}

// Label returns the operator-facing short form: P0, P1, or P2.
func (p Priority) Label() string {
	if !p.Valid() {
		return "P?"
	}
	return fmt.Sprintf("P%d", p.Rank())
}

// ParsePriority accepts a priority name or its P0/P1/P2 label, case
// insensitive.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "p0":
		return Critical, nil
	case "warning", "p1":
		return Warning, nil
	case "info", "p2":
		return Info, nil
	default:
		return "", fmt.Errorf("unknown priority %q (want critical, warning, info, or p0-p2)", s)
	}
}
