// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/libertaria/membrane/lib/clock"
	"github.com/libertaria/membrane/lib/identity"
	"github.com/libertaria/membrane/lib/oracle"
)

var seedTime = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func seedDID(b byte) identity.DID {
	var id identity.DID
	id[0] = b
	return id
}

func newMemory(now time.Time) *oracle.Memory {
	return oracle.NewMemory(oracle.MemoryConfig{
		Clock:  clock.Fake(now),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestSeedApply(t *testing.T) {
	trust, reputation := 0.8, 0.3
	seed := SeedConfig{
		Nodes: []SeedNode{
			{DID: seedDID(1), Trust: &trust},
			{DID: seedDID(2), Reputation: &reputation},
		},
		Edges: []SeedEdge{
			{From: 1, To: 2, Risk: -0.6},
			{From: 2, To: 1, Risk: -0.6, TTL: time.Hour},
		},
	}
	engine := newMemory(seedTime)
	ctx := context.Background()
	if err := seed.Apply(ctx, engine, seedTime); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if score, err := engine.TrustScore(ctx, seedDID(1)); err != nil || score != 0.8 {
		t.Errorf("TrustScore = %v, %v", score, err)
	}
	if score, err := engine.Reputation(ctx, 2); err != nil || score != 0.3 {
		t.Errorf("Reputation = %v, %v", score, err)
	}
	anomaly, err := engine.DetectBetrayal(ctx, 1)
	if err != nil || anomaly.Reason != oracle.ReasonNegativeCycle {
		t.Errorf("DetectBetrayal = %+v, %v; seeded cycle not detected", anomaly, err)
	}
	status, err := engine.Status(ctx)
	if err != nil || status.Nodes != 3 || status.Edges != 2 {
		t.Errorf("Status = %+v, %v", status, err)
	}
}

func TestSeedApplyRejectsDuplicateNode(t *testing.T) {
	seed := SeedConfig{Nodes: []SeedNode{{DID: seedDID(1)}, {DID: seedDID(1)}}}
	if err := seed.Apply(context.Background(), newMemory(seedTime), seedTime); err == nil {
		t.Fatal("Apply accepted a repeated identity")
	}
}

func TestSeedApplyRejectsBadEdge(t *testing.T) {
	seed := SeedConfig{
		Nodes: []SeedNode{{DID: seedDID(1)}},
		Edges: []SeedEdge{{From: 1, To: 5, Risk: 0.1}},
	}
	err := seed.Apply(context.Background(), newMemory(seedTime), seedTime)
	if !errors.Is(err, oracle.ErrMutationFailed) {
		t.Fatalf("err = %v, want ErrMutationFailed", err)
	}
}
