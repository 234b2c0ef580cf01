// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/libertaria/membrane/lib/identity"
	"github.com/libertaria/membrane/lib/oracle"
)

func TestEvidenceHashIsKeyedAndStable(t *testing.T) {
	t.Parallel()
	a := EvidenceHash([]byte("cycle 1->2->1"))
	b := EvidenceHash([]byte("cycle 1->2->1"))
	c := EvidenceHash([]byte("cycle 1->3->1"))
	if a != b {
		t.Error("hash is not deterministic")
	}
	if a == c {
		t.Error("different evidence hashed equal")
	}
	if bytes.Equal(a[:], make([]byte, 32)) {
		t.Error("hash is all zero")
	}
}

func TestPunishIfGuilty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	memory := newMemory(t)
	enforcer := newEnforcer(t, memory)

	one, _ := memory.RegisterNode(ctx, did(0x01))
	two, _ := memory.RegisterNode(ctx, did(0x02))
	memory.AddTrustEdge(ctx, oracle.RiskEdge{From: one, To: two, Risk: -0.7})
	memory.AddTrustEdge(ctx, oracle.RiskEdge{From: two, To: one, Risk: 0.2})

	signal, err := enforcer.PunishIfGuilty(ctx, two)
	if err != nil {
		t.Fatalf("PunishIfGuilty: %v", err)
	}
	if signal.Target() != did(0x02) {
		t.Errorf("Target = %s, want node 2's identity", signal.Target())
	}
	if signal.Reason() != uint8(oracle.ReasonNegativeCycle) {
		t.Errorf("Reason = %d", signal.Reason())
	}

	evidence, err := memory.BetrayalEvidence(ctx, two)
	if err != nil {
		t.Fatal(err)
	}
	if signal.EvidenceHash() != EvidenceHash(evidence) {
		t.Error("signal does not commit to the evidence hash")
	}
}

func TestPunishIfGuiltyPunishesFlaggedNode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	memory := newMemory(t)
	enforcer := newEnforcer(t, memory)

	one, _ := memory.RegisterNode(ctx, did(0x01))
	two, _ := memory.RegisterNode(ctx, did(0x02))
	memory.AddTrustEdge(ctx, oracle.RiskEdge{From: oracle.RootNode, To: one, Risk: 0.1})
	memory.AddTrustEdge(ctx, oracle.RiskEdge{From: one, To: two, Risk: -0.7})
	memory.AddTrustEdge(ctx, oracle.RiskEdge{From: two, To: one, Risk: 0.2})

	// The root reaches the cycle but is not on it; node 1 is flagged.
	signal, err := enforcer.PunishIfGuilty(ctx, oracle.RootNode)
	if err != nil {
		t.Fatalf("PunishIfGuilty: %v", err)
	}
	if signal.Target() != did(0x01) {
		t.Errorf("Target = %s, want the flagged cycle member", signal.Target())
	}
}

func TestPunishIfGuiltyNotGuilty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	memory := newMemory(t)
	enforcer := newEnforcer(t, memory)
	node, _ := memory.RegisterNode(ctx, did(0x03))
	memory.SetAnomaly(ctx, oracle.AnomalyScore{Node: node, Score: 0.7, Reason: oracle.ReasonLowCoverage})

	if _, err := enforcer.PunishIfGuilty(ctx, node); !errors.Is(err, ErrNotGuilty) {
		t.Errorf("err = %v, want ErrNotGuilty", err)
	}
	if _, err := enforcer.PunishIfGuilty(ctx, oracle.RootNode); !errors.Is(err, ErrNotGuilty) {
		t.Errorf("clean root err = %v, want ErrNotGuilty", err)
	}
}

// stepFailingOracle fails one named step of the punish sequence.
type stepFailingOracle struct {
	*oracle.Memory
	failStep string
}

var errStep = errors.New("injected failure")

func (s *stepFailingOracle) ResolveDID(ctx context.Context, node uint32) (identity.DID, error) {
	if s.failStep == "resolve" {
		return identity.DID{}, errStep
	}
	return s.Memory.ResolveDID(ctx, node)
}

func (s *stepFailingOracle) BetrayalEvidence(ctx context.Context, node uint32) ([]byte, error) {
	if s.failStep == "evidence" {
		return nil, errStep
	}
	return s.Memory.BetrayalEvidence(ctx, node)
}

func (s *stepFailingOracle) IssueSlashSignal(ctx context.Context, target identity.DID, reason uint8, hash [32]byte) (oracle.SlashSignal, error) {
	if s.failStep == "slash" {
		return oracle.SlashSignal{}, errStep
	}
	return s.Memory.IssueSlashSignal(ctx, target, reason, hash)
}

func TestPunishIfGuiltyStepFailures(t *testing.T) {
	t.Parallel()
	for _, step := range []string{"resolve", "evidence", "slash"} {
		t.Run(step, func(t *testing.T) {
			ctx := context.Background()
			memory := newMemory(t)
			node, _ := memory.RegisterNode(ctx, did(0x04))
			memory.SetAnomaly(ctx, oracle.AnomalyScore{Node: node, Score: 0.99, Reason: oracle.ReasonNegativeCycle})

			enforcer := newEnforcer(t, &stepFailingOracle{Memory: memory, failStep: step})
			_, err := enforcer.PunishIfGuilty(ctx, node)
			if !errors.Is(err, errStep) {
				t.Fatalf("err = %v, want injected failure", err)
			}
			if errors.Is(err, ErrNotGuilty) {
				t.Fatal("step failure reported as not guilty")
			}
		})
	}
}
