// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"slices"
	"testing"
)

func TestFindNegativeCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		nodes  int
		edges  []RiskEdge
		source uint32
		want   []uint32
	}{
		{
			name:   "no edges",
			nodes:  3,
			source: 0,
		},
		{
			name:  "positive cycle",
			nodes: 3,
			edges: []RiskEdge{
				{From: 0, To: 1, Risk: 0.2},
				{From: 1, To: 2, Risk: 0.2},
				{From: 2, To: 0, Risk: -0.3},
			},
			source: 0,
		},
		{
			name:  "two node betrayal",
			nodes: 3,
			edges: []RiskEdge{
				{From: 0, To: 2, Risk: 0.1},
				{From: 2, To: 1, Risk: -0.8},
				{From: 1, To: 2, Risk: 0.3},
			},
			source: 0,
			want:   []uint32{1, 2},
		},
		{
			name:  "three node cycle rotated to minimum",
			nodes: 5,
			edges: []RiskEdge{
				{From: 0, To: 4, Risk: 0.1},
				{From: 4, To: 2, Risk: -0.5},
				{From: 2, To: 3, Risk: 0.1},
				{From: 3, To: 4, Risk: 0.1},
			},
			source: 0,
			want:   []uint32{2, 3, 4},
		},
		{
			name:  "source out of range",
			nodes: 2,
			edges: []RiskEdge{
				{From: 0, To: 1, Risk: -0.5},
				{From: 1, To: 0, Risk: -0.5},
			},
			source: 7,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := findNegativeCycle(test.nodes, test.edges, test.source)
			if !slices.Equal(got, test.want) {
				t.Errorf("cycle = %v, want %v", got, test.want)
			}
		})
	}
}
