// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/libertaria/membrane/lib/codec"
	"github.com/libertaria/membrane/lib/control"
	"github.com/libertaria/membrane/lib/identity"
)

// Protocol actions served by Register and called by SocketClient.
const (
	actionStatus           = "status"
	actionTrustScore       = "trust_score"
	actionReputation       = "reputation"
	actionDetectBetrayal   = "detect_betrayal"
	actionAddEdge          = "add_edge"
	actionRevokeEdge       = "revoke_edge"
	actionResolveDID       = "resolve_did"
	actionRegisterNode     = "register_node"
	actionBetrayalEvidence = "betrayal_evidence"
	actionIssueSlash       = "issue_slash"
)

// errorCodes maps sentinel errors to wire codes and back. A mutation
// failure may also wrap ErrNotFound, so it is matched first.
var errorCodes = []struct {
	code string
	err  error
}{
	{"closed", ErrClosed},
	{"mutation_failed", ErrMutationFailed},
	{"invalid_edge", ErrInvalidEdge},
	{"no_data", ErrNoData},
	{"not_found", ErrNotFound},
}

func codeFor(err error) string {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ""
}

// translate turns a remote failure carrying a known code back into the
// matching sentinel, keeping the server's message.
func translate(err error) error {
	var remote *control.Error
	if !errors.As(err, &remote) {
		return err
	}
	for _, entry := range errorCodes {
		if entry.code == remote.Code {
			return fmt.Errorf("%w: %s", entry.err, remote.Message)
		}
	}
	return err
}

type nodeRequest struct {
	Node uint32 `cbor:"node"`
}

type didRequest struct {
	DID identity.DID `cbor:"did"`
}

type edgeRequest struct {
	Edge RiskEdge `cbor:"edge"`
}

type revokeRequest struct {
	From uint32 `cbor:"from"`
	To   uint32 `cbor:"to"`
}

type slashRequest struct {
	DID          identity.DID `cbor:"did"`
	Reason       uint8        `cbor:"reason"`
	EvidenceHash []byte       `cbor:"evidence_hash"`
}

type scoreResponse struct {
	Score float64 `cbor:"score"`
}

type nodeResponse struct {
	Node uint32 `cbor:"node"`
}

// StatusReporter is implemented by engines that can describe
// themselves. Register serves it on the status action.
type StatusReporter interface {
	Status(ctx context.Context) (Status, error)
}

// Register exposes engine on server. Errors are sent with their
// sentinel's code so a SocketClient reproduces them.
func Register(server *control.Server, engine Oracle) {
	handle := func(action string, handler func(ctx context.Context, raw []byte) (any, error)) {
		server.Handle(action, func(ctx context.Context, raw []byte) (any, error) {
			result, err := handler(ctx, raw)
			if err != nil {
				return nil, control.WithCode(codeFor(err), err)
			}
			return result, nil
		})
	}

	handle(actionStatus, func(ctx context.Context, _ []byte) (any, error) {
		if reporter, ok := engine.(StatusReporter); ok {
			return reporter.Status(ctx)
		}
		return Status{Engine: fmt.Sprintf("%T", engine)}, nil
	})

	handle(actionTrustScore, func(ctx context.Context, raw []byte) (any, error) {
		var request didRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		score, err := engine.TrustScore(ctx, request.DID)
		if err != nil {
			return nil, err
		}
		return scoreResponse{Score: score}, nil
	})

	handle(actionReputation, func(ctx context.Context, raw []byte) (any, error) {
		var request nodeRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		score, err := engine.Reputation(ctx, request.Node)
		if err != nil {
			return nil, err
		}
		return scoreResponse{Score: score}, nil
	})

	handle(actionDetectBetrayal, func(ctx context.Context, raw []byte) (any, error) {
		var request nodeRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return engine.DetectBetrayal(ctx, request.Node)
	})

	handle(actionAddEdge, func(ctx context.Context, raw []byte) (any, error) {
		var request edgeRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return nil, engine.AddTrustEdge(ctx, request.Edge)
	})

	handle(actionRevokeEdge, func(ctx context.Context, raw []byte) (any, error) {
		var request revokeRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return nil, engine.RevokeTrustEdge(ctx, request.From, request.To)
	})

	handle(actionResolveDID, func(ctx context.Context, raw []byte) (any, error) {
		var request nodeRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		did, err := engine.ResolveDID(ctx, request.Node)
		if err != nil {
			return nil, err
		}
		return didRequest{DID: did}, nil
	})

	handle(actionRegisterNode, func(ctx context.Context, raw []byte) (any, error) {
		var request didRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		node, err := engine.RegisterNode(ctx, request.DID)
		if err != nil {
			return nil, err
		}
		return nodeResponse{Node: node}, nil
	})

	handle(actionBetrayalEvidence, func(ctx context.Context, raw []byte) (any, error) {
		var request nodeRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return engine.BetrayalEvidence(ctx, request.Node)
	})

	handle(actionIssueSlash, func(ctx context.Context, raw []byte) (any, error) {
		var request slashRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		if len(request.EvidenceHash) != 32 {
			return nil, fmt.Errorf("evidence hash is %d bytes, want 32", len(request.EvidenceHash))
		}
		var hash [32]byte
		copy(hash[:], request.EvidenceHash)
		signal, err := engine.IssueSlashSignal(ctx, request.DID, request.Reason, hash)
		if err != nil {
			return nil, err
		}
		return signal[:], nil
	})
}
