// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libertaria/membrane/lib/alert"
	"github.com/libertaria/membrane/lib/codec"
	"github.com/libertaria/membrane/lib/control"
	"github.com/libertaria/membrane/lib/identity"
	"github.com/libertaria/membrane/lib/policy"
)

// Control socket actions.
const (
	ActionStatus      = "status"
	ActionAlerts      = "alerts"
	ActionDecide      = "decide"
	ActionSweep       = "sweep"
	ActionPunish      = "punish"
	ActionClearAlerts = "clear-alerts"
)

// Error codes sent in control responses.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotGuilty      = "not_guilty"
)

// AlertsRequest selects alerts. Priority picks one class exactly;
// AtOrAbove picks that class and everything more severe; Since skips
// alerts with a sequence number at or below it. Empty fields select
// everything.
type AlertsRequest struct {
	Priority  string `cbor:"priority,omitempty"`
	AtOrAbove string `cbor:"at_or_above,omitempty"`
	Since     uint64 `cbor:"since,omitempty"`
}

// AlertsResponse carries the selected alerts, oldest first.
type AlertsResponse struct {
	Alerts  []alert.Alert `cbor:"alerts"`
	Emitted uint64        `cbor:"emitted"`
}

// DecideRequest asks for the decision a packet from DID would get.
type DecideRequest struct {
	DID identity.DID `cbor:"did"`
}

// DecideResponse is the decision, the score behind it, and the oracle
// failure that made it Neutral, if any.
type DecideResponse struct {
	Decision policy.Decision `cbor:"decision"`
	Score    float64         `cbor:"score"`
	Error    string          `cbor:"error,omitempty"`
}

// PunishRequest names the node to punish.
type PunishRequest struct {
	Node uint32 `cbor:"node"`
}

// PunishResponse describes the issued slash signal.
type PunishResponse struct {
	Target       identity.DID `cbor:"target"`
	Reason       uint8        `cbor:"reason"`
	Severity     uint8        `cbor:"severity"`
	EvidenceHash []byte       `cbor:"evidence_hash"`
	IssuedAt     time.Time    `cbor:"issued_at"`
	Signal       []byte       `cbor:"signal"`
}

// ClearResponse reports how many alerts were removed.
type ClearResponse struct {
	Cleared int `cbor:"cleared"`
}

// Register exposes the agent's operator actions on server.
func (a *Agent) Register(server *control.Server) {
	server.Handle(ActionStatus, func(context.Context, []byte) (any, error) {
		return a.Status(), nil
	})
	server.Handle(ActionAlerts, a.handleAlerts)
	server.Handle(ActionDecide, a.handleDecide)
	server.Handle(ActionSweep, func(ctx context.Context, _ []byte) (any, error) {
		return a.Sweep(ctx), nil
	})
	server.Handle(ActionPunish, a.handlePunish)
	server.Handle(ActionClearAlerts, func(context.Context, []byte) (any, error) {
		cleared := a.store.Len()
		a.store.Clear()
		return ClearResponse{Cleared: cleared}, nil
	})
}

func invalid(format string, args ...any) error {
	return control.WithCode(CodeInvalidRequest, fmt.Errorf(format, args...))
}

func (a *Agent) handleAlerts(_ context.Context, raw []byte) (any, error) {
	var request AlertsRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, invalid("decoding alerts request: %w", err)
	}
	if request.Priority != "" && request.AtOrAbove != "" {
		return nil, invalid("priority and at_or_above are mutually exclusive")
	}

	var alerts []alert.Alert
	switch {
	case request.Priority != "":
		priority, err := alert.ParsePriority(request.Priority)
		if err != nil {
			return nil, invalid("%w", err)
		}
		alerts = a.store.ByPriority(priority)
	case request.AtOrAbove != "":
		priority, err := alert.ParsePriority(request.AtOrAbove)
		if err != nil {
			return nil, invalid("%w", err)
		}
		alerts = a.store.AtOrAbove(priority)
	default:
		alerts = a.store.Snapshot()
	}

	if request.Since > 0 {
		kept := alerts[:0]
		for _, candidate := range alerts {
			if candidate.Sequence > request.Since {
				kept = append(kept, candidate)
			}
		}
		alerts = kept
	}
	return AlertsResponse{Alerts: alerts, Emitted: a.store.Emitted()}, nil
}

func (a *Agent) handleDecide(ctx context.Context, raw []byte) (any, error) {
	var request DecideRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, invalid("decoding decide request: %w", err)
	}
	callContext, cancel := context.WithTimeout(ctx, a.oracleTimeout)
	defer cancel()

	assessment := a.enforcer.Assess(callContext, request.DID)
	response := DecideResponse{Decision: assessment.Decision, Score: assessment.Score}
	if assessment.Err != nil {
		response.Error = assessment.Err.Error()
	}
	return response, nil
}

func (a *Agent) handlePunish(ctx context.Context, raw []byte) (any, error) {
	var request PunishRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, invalid("decoding punish request: %w", err)
	}
	signal, err := a.enforcer.PunishIfGuilty(ctx, request.Node)
	if errors.Is(err, policy.ErrNotGuilty) {
		return nil, control.WithCode(CodeNotGuilty, err)
	}
	if err != nil {
		return nil, err
	}
	hash := signal.EvidenceHash()
	return PunishResponse{
		Target:       signal.Target(),
		Reason:       signal.Reason(),
		Severity:     signal.Severity(),
		EvidenceHash: hash[:],
		IssuedAt:     signal.IssuedAt(),
		Signal:       signal[:],
	}, nil
}
