// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import "fmt"

// Decision is a forwarding action for one packet.
type Decision uint8

const (
	Neutral Decision = iota
	Accept
	Deprioritize
	Drop
)

var decisionNames = [...]string{
	Neutral:      "neutral",
	Accept:       "accept",
	Deprioritize: "deprioritize",
	Drop:         "drop",
}

// Decisions lists every decision, for metrics and status output.
var Decisions = []Decision{Accept, Deprioritize, Drop, Neutral}

func (d Decision) String() string {
	if int(d) < len(decisionNames) {
		return decisionNames[d]
	}
	return fmt.Sprintf("decision(%d)", uint8(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	if int(d) >= len(decisionNames) {
		return nil, fmt.Errorf("invalid decision %d", uint8(d))
	}
	return []byte(decisionNames[d]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(text []byte) error {
	for value, name := range decisionNames {
		if name == string(text) {
			*d = Decision(value)
			return nil
		}
	}
	return fmt.Errorf("unknown decision %q", text)
}
