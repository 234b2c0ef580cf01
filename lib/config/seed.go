// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"time"

	"github.com/libertaria/membrane/lib/oracle"
)

// Apply loads the seed into engine. Nodes must register to ids 1..n in
// order, so a seed node repeating the root or an earlier node fails.
// Edges are stamped with now; a positive TTL sets their expiry.
func (s SeedConfig) Apply(ctx context.Context, engine *oracle.Memory, now time.Time) error {
	for i, node := range s.Nodes {
		id, err := engine.RegisterNode(ctx, node.DID)
		if err != nil {
			return fmt.Errorf("seeding node %s: %w", node.DID.Short(), err)
		}
		if want := uint32(i + 1); id != want {
			return fmt.Errorf("seed node %d (%s) is already registered as node %d", i, node.DID.Short(), id)
		}
		if node.Trust != nil {
			if err := engine.SetTrustScore(ctx, node.DID, *node.Trust); err != nil {
				return fmt.Errorf("seeding trust for node %d: %w", id, err)
			}
		}
		if node.Reputation != nil {
			if err := engine.SetReputation(ctx, id, *node.Reputation); err != nil {
				return fmt.Errorf("seeding reputation for node %d: %w", id, err)
			}
		}
	}
	for i, edge := range s.Edges {
		riskEdge := oracle.RiskEdge{
			From:      edge.From,
			To:        edge.To,
			Risk:      edge.Risk,
			Level:     edge.Level,
			Timestamp: now,
		}
		if edge.TTL > 0 {
			riskEdge.ExpiresAt = now.Add(edge.TTL)
		}
		if err := engine.AddTrustEdge(ctx, riskEdge); err != nil {
			return fmt.Errorf("seeding edge %d (%d->%d): %w", i, edge.From, edge.To, err)
		}
	}
	return nil
}
