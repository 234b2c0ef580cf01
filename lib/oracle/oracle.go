// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/libertaria/membrane/lib/identity"
)

var (
	// ErrClosed means the handle is invalid or has been released.
	ErrClosed = errors.New("oracle: handle closed")

	// ErrNoData means the engine holds no score for the subject.
	ErrNoData = errors.New("oracle: no data")

	// ErrNotFound means the node or edge does not exist.
	ErrNotFound = errors.New("oracle: not found")

	// ErrMutationFailed means a graph mutation was rejected.
	ErrMutationFailed = errors.New("oracle: mutation failed")

	// ErrInvalidEdge means a risk edge failed validation.
	ErrInvalidEdge = errors.New("oracle: invalid edge")
)

// Oracle is the trust and reputation engine as seen by the agent.
// Implementations must be safe for concurrent use.
type Oracle interface {
	// TrustScore returns the trust in [0, 1] for an identity.
	TrustScore(ctx context.Context, did identity.DID) (float64, error)

	// Reputation returns the reputation in [0, 1] for a node.
	Reputation(ctx context.Context, node uint32) (float64, error)

	// DetectBetrayal runs anomaly detection from node. It fails only
	// when the handle is unusable; a node with no anomaly yields a
	// zero score with ReasonNone.
	DetectBetrayal(ctx context.Context, node uint32) (AnomalyScore, error)

	AddTrustEdge(ctx context.Context, edge RiskEdge) error
	RevokeTrustEdge(ctx context.Context, from, to uint32) error

	// ResolveDID maps a node id back to its identity.
	ResolveDID(ctx context.Context, node uint32) (identity.DID, error)

	// RegisterNode returns the node id for did, assigning one if the
	// identity is new. Registering the same identity twice returns the
	// same id.
	RegisterNode(ctx context.Context, did identity.DID) (uint32, error)

	// BetrayalEvidence returns an opaque, deterministic encoding of
	// the evidence behind node's current anomaly, or ErrNoData.
	BetrayalEvidence(ctx context.Context, node uint32) ([]byte, error)

	IssueSlashSignal(ctx context.Context, target identity.DID, reason uint8, evidenceHash [32]byte) (SlashSignal, error)

	Close() error
}

// AnomalyReason explains an anomaly score. Values 0..3 match the
// engine's wire encoding.
type AnomalyReason uint8

const (
	ReasonNone          AnomalyReason = 0
	ReasonNegativeCycle AnomalyReason = 1
	ReasonLowCoverage   AnomalyReason = 2
	ReasonBPDivergence  AnomalyReason = 3
	ReasonUnknown       AnomalyReason = 0xFF
)

// ReasonFromByte maps an engine reason byte. Anything outside 0..3 is
// ReasonUnknown.
func ReasonFromByte(b uint8) AnomalyReason {
	if b <= uint8(ReasonBPDivergence) {
		return AnomalyReason(b)
	}
	return ReasonUnknown
}

func (r AnomalyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNegativeCycle:
		return "negative_cycle"
	case ReasonLowCoverage:
		return "low_coverage"
	case ReasonBPDivergence:
		return "bp_divergence"
	default:
		return "unknown"
	}
}

// AnomalyScore is the result of betrayal detection for one node.
type AnomalyScore struct {
	Node   uint32        `cbor:"node"`
	Score  float64       `cbor:"score"`
	Reason AnomalyReason `cbor:"reason"`
}

// Trust levels carried on risk edges.
const (
	LevelNone uint8 = iota
	LevelLow
	LevelMedium
	LevelHigh
)

// RiskEdge is a directed, weighted trust relation in the risk graph.
// Negative risk marks betrayal. A zero ExpiresAt never expires.
type RiskEdge struct {
	From      uint32    `cbor:"from"`
	To        uint32    `cbor:"to"`
	Risk      float64   `cbor:"risk"`
	Timestamp time.Time `cbor:"timestamp"`
	Nonce     uint64    `cbor:"nonce"`
	Level     uint8     `cbor:"level"`
	ExpiresAt time.Time `cbor:"expires_at,omitempty"`
}

// Validate checks the edge's own fields. It does not check that the
// endpoints exist.
func (e RiskEdge) Validate() error {
	if e.From == e.To {
		return fmt.Errorf("%w: self-loop on node %d", ErrInvalidEdge, e.From)
	}
	if math.IsNaN(e.Risk) || e.Risk < -1 || e.Risk > 1 {
		return fmt.Errorf("%w: risk %v outside [-1, 1]", ErrInvalidEdge, e.Risk)
	}
	if e.Level > LevelHigh {
		return fmt.Errorf("%w: level %d above %d", ErrInvalidEdge, e.Level, LevelHigh)
	}
	if !e.ExpiresAt.IsZero() && !e.Timestamp.IsZero() && !e.ExpiresAt.After(e.Timestamp) {
		return fmt.Errorf("%w: expires at %s, not after timestamp %s", ErrInvalidEdge, e.ExpiresAt, e.Timestamp)
	}
	return nil
}

// Expired reports whether the edge has expired at now.
func (e RiskEdge) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Status describes an engine, for readiness probes and operator output.
type Status struct {
	Engine string `cbor:"engine"`
	Nodes  int    `cbor:"nodes"`
	Edges  int    `cbor:"edges"`
}
