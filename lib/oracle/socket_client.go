// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/libertaria/membrane/lib/control"
	"github.com/libertaria/membrane/lib/identity"
)

// SocketClient is an Oracle backed by an external engine reachable on
// a control socket. Each call uses its own connection, so the client
// is safe for concurrent use.
type SocketClient struct {
	client *control.Client
	closed atomic.Bool
}

var _ Oracle = (*SocketClient)(nil)

// Dial returns a client for the engine at socketPath after a status
// probe. A failed probe is returned as an error: the agent cannot
// start without its oracle.
func Dial(ctx context.Context, socketPath string) (*SocketClient, error) {
	c := &SocketClient{client: control.NewClient(socketPath)}
	if _, err := c.Status(ctx); err != nil {
		return nil, fmt.Errorf("oracle at %s unreachable: %w", socketPath, err)
	}
	return c, nil
}

func (c *SocketClient) call(ctx context.Context, action string, fields map[string]any, result any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return translate(c.client.Call(ctx, action, fields, result))
}

// Status returns the remote engine's description.
func (c *SocketClient) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.call(ctx, actionStatus, nil, &status)
	return status, err
}

func (c *SocketClient) TrustScore(ctx context.Context, did identity.DID) (float64, error) {
	var response scoreResponse
	if err := c.call(ctx, actionTrustScore, map[string]any{"did": did}, &response); err != nil {
		return 0, err
	}
	return response.Score, nil
}

func (c *SocketClient) Reputation(ctx context.Context, node uint32) (float64, error) {
	var response scoreResponse
	if err := c.call(ctx, actionReputation, map[string]any{"node": node}, &response); err != nil {
		return 0, err
	}
	return response.Score, nil
}

func (c *SocketClient) DetectBetrayal(ctx context.Context, node uint32) (AnomalyScore, error) {
	var score AnomalyScore
	if err := c.call(ctx, actionDetectBetrayal, map[string]any{"node": node}, &score); err != nil {
		return AnomalyScore{}, err
	}
	score.Reason = ReasonFromByte(uint8(score.Reason))
	return score, nil
}

func (c *SocketClient) AddTrustEdge(ctx context.Context, edge RiskEdge) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	return c.call(ctx, actionAddEdge, map[string]any{"edge": edge}, nil)
}

func (c *SocketClient) RevokeTrustEdge(ctx context.Context, from, to uint32) error {
	return c.call(ctx, actionRevokeEdge, map[string]any{"from": from, "to": to}, nil)
}

func (c *SocketClient) ResolveDID(ctx context.Context, node uint32) (identity.DID, error) {
	var response didRequest
	if err := c.call(ctx, actionResolveDID, map[string]any{"node": node}, &response); err != nil {
		return identity.DID{}, err
	}
	return response.DID, nil
}

func (c *SocketClient) RegisterNode(ctx context.Context, did identity.DID) (uint32, error) {
	var response nodeResponse
	if err := c.call(ctx, actionRegisterNode, map[string]any{"did": did}, &response); err != nil {
		return 0, err
	}
	return response.Node, nil
}

func (c *SocketClient) BetrayalEvidence(ctx context.Context, node uint32) ([]byte, error) {
	var evidence []byte
	if err := c.call(ctx, actionBetrayalEvidence, map[string]any{"node": node}, &evidence); err != nil {
		return nil, err
	}
	return evidence, nil
}

func (c *SocketClient) IssueSlashSignal(ctx context.Context, target identity.DID, reason uint8, evidenceHash [32]byte) (SlashSignal, error) {
	var raw []byte
	fields := map[string]any{
		"did":           target,
		"reason":        reason,
		"evidence_hash": evidenceHash[:],
	}
	if err := c.call(ctx, actionIssueSlash, fields, &raw); err != nil {
		return SlashSignal{}, err
	}
	return SlashSignalFromBytes(raw)
}

// Close marks the client closed. The remote engine is not affected.
func (c *SocketClient) Close() error {
	c.closed.Store(true)
	return nil
}
