// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import "math"

// findNegativeCycle runs Bellman-Ford from source over a graph of
// nodeCount nodes and returns one negative-weight cycle reachable from
// source, rotated to start at its smallest node id, or nil. Edge risk
// is the weight.
func findNegativeCycle(nodeCount int, edges []RiskEdge, source uint32) []uint32 {
	if int(source) >= nodeCount {
		return nil
	}
	distance := make([]float64, nodeCount)
	predecessor := make([]int64, nodeCount)
	for i := range distance {
		distance[i] = math.Inf(1)
		predecessor[i] = -1
	}
	distance[source] = 0

	for range nodeCount - 1 {
		changed := false
		for _, edge := range edges {
			if relax(distance, predecessor, edge) {
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}

	for _, edge := range edges {
		if !relax(distance, predecessor, edge) {
			continue
		}
		// Walking back nodeCount steps from a vertex still relaxable
		// after nodeCount-1 rounds lands on the cycle.
		vertex := edge.To
		for range nodeCount {
			vertex = uint32(predecessor[vertex])
		}
		cycle := []uint32{vertex}
		for next := uint32(predecessor[vertex]); next != vertex; next = uint32(predecessor[next]) {
			cycle = append(cycle, next)
		}
		reverse(cycle)
		return rotateToMinimum(cycle)
	}
	return nil
}

func relax(distance []float64, predecessor []int64, edge RiskEdge) bool {
	if math.IsInf(distance[edge.From], 1) {
		return false
	}
	candidate := distance[edge.From] + edge.Risk
	if candidate < distance[edge.To] {
		distance[edge.To] = candidate
		predecessor[edge.To] = int64(edge.From)
		return true
	}
	return false
}

func reverse(nodes []uint32) {
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}

func rotateToMinimum(cycle []uint32) []uint32 {
	minimum := 0
	for i, node := range cycle {
		if node < cycle[minimum] {
			minimum = i
		}
	}
	rotated := make([]uint32, 0, len(cycle))
	rotated = append(rotated, cycle[minimum:]...)
	return append(rotated, cycle[:minimum]...)
}
