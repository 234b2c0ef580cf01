// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/libertaria/membrane/lib/identity"
	"github.com/libertaria/membrane/lib/metrics"
	"github.com/libertaria/membrane/lib/oracle"
)

// Default thresholds.
const (
	DefaultDropThreshold      = 0.1
	DefaultUntrustedThreshold = 0.5
)

// BetrayalFloor is the anomaly score a node must exceed to count as a
// betrayal finding.
const BetrayalFloor = 0.7

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithThresholds sets the drop and untrusted thresholds. New rejects
// them unless 0 <= drop < untrusted.
func WithThresholds(drop, untrusted float64) Option {
	return func(e *Enforcer) {
		e.dropThreshold = drop
		e.untrustedThreshold = untrusted
	}
}

// WithLogger sets the logger used for oracle failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enforcer) {
		e.logger = logger
	}
}

// WithMetrics counts oracle failures and slash signals on registry.
func WithMetrics(registry *metrics.Registry) Option {
	return func(e *Enforcer) {
		e.metrics = registry
	}
}

// Enforcer applies trust thresholds to oracle results.
type Enforcer struct {
	oracle             oracle.Oracle
	dropThreshold      float64
	untrustedThreshold float64
	logger             *slog.Logger
	metrics            *metrics.Registry
}

// New returns an Enforcer over o with the default thresholds unless
// overridden.
func New(o oracle.Oracle, options ...Option) (*Enforcer, error) {
	if o == nil {
		return nil, fmt.Errorf("policy: oracle is required")
	}
	e := &Enforcer{
		oracle:             o,
		dropThreshold:      DefaultDropThreshold,
		untrustedThreshold: DefaultUntrustedThreshold,
		logger:             slog.Default(),
	}
	for _, option := range options {
		option(e)
	}
	if err := ValidateThresholds(e.dropThreshold, e.untrustedThreshold); err != nil {
		return nil, err
	}
	return e, nil
}

// ValidateThresholds checks 0 <= drop < untrusted.
func ValidateThresholds(drop, untrusted float64) error {
	if math.IsNaN(drop) || math.IsNaN(untrusted) {
		return fmt.Errorf("policy: thresholds must be numbers")
	}
	if drop < 0 || drop >= untrusted {
		return fmt.Errorf("policy: need 0 <= drop < untrusted, got drop=%v untrusted=%v", drop, untrusted)
	}
	return nil
}

// Thresholds returns the drop and untrusted thresholds.
func (e *Enforcer) Thresholds() (drop, untrusted float64) {
	return e.dropThreshold, e.untrustedThreshold
}

// Oracle returns the oracle handle the enforcer consults.
func (e *Enforcer) Oracle() oracle.Oracle {
	return e.oracle
}

// Assessment is a decision together with the score behind it.
type Assessment struct {
	Decision Decision `cbor:"decision"`
	Score    float64  `cbor:"score"`
	// Err is the oracle failure behind a Neutral decision.
	Err error `cbor:"-"`
}

// Assess scores did and classifies it. On an oracle failure the
// decision is Neutral, Score is zero, and Err holds the failure.
func (e *Enforcer) Assess(ctx context.Context, did identity.DID) Assessment {
	score, err := e.oracle.TrustScore(ctx, did)
	if err != nil {
		e.metrics.RecordOracleFailure("trust_score")
		e.logger.Debug("trust score unavailable",
			"sender", did.Short(),
			"error", err,
		)
		return Assessment{Decision: Neutral, Err: err}
	}
	return Assessment{Decision: e.classify(score), Score: score}
}

// ShouldAcceptPacket returns the forwarding decision for a packet from
// did.
func (e *Enforcer) ShouldAcceptPacket(ctx context.Context, did identity.DID) Decision {
	return e.Assess(ctx, did).Decision
}

func (e *Enforcer) classify(score float64) Decision {
	switch {
	case score < e.dropThreshold:
		return Drop
	case score < e.untrustedThreshold:
		return Deprioritize
	default:
		return Accept
	}
}

// Finding is a node whose anomaly score exceeded BetrayalFloor.
type Finding struct {
	Node   uint32               `cbor:"node"`
	Score  float64              `cbor:"score"`
	Reason oracle.AnomalyReason `cbor:"reason"`
}

// CheckBetrayal runs detection for node and reports whether the score
// is strictly above BetrayalFloor. Oracle failures report no finding.
func (e *Enforcer) CheckBetrayal(ctx context.Context, node uint32) (oracle.AnomalyScore, bool) {
	score, err := e.oracle.DetectBetrayal(ctx, node)
	if err != nil {
		e.metrics.RecordOracleFailure("detect_betrayal")
		e.logger.Debug("betrayal detection failed", "node", node, "error", err)
		return oracle.AnomalyScore{}, false
	}
	return score, score.Score > BetrayalFloor
}

// BatchCheckBetrayal checks each node in order and returns only the
// findings, preserving input order.
func (e *Enforcer) BatchCheckBetrayal(ctx context.Context, nodes []uint32) []Finding {
	var findings []Finding
	for _, node := range nodes {
		if ctx.Err() != nil {
			break
		}
		score, found := e.CheckBetrayal(ctx, node)
		if !found {
			continue
		}
		findings = append(findings, Finding{Node: node, Score: score.Score, Reason: score.Reason})
	}
	return findings
}
