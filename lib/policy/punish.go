// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/libertaria/membrane/lib/oracle"
)

// ErrNotGuilty means the node has no betrayal finding, so no slash
// signal was issued.
var ErrNotGuilty = errors.New("policy: no betrayal finding")

// evidenceDomainKey keys the BLAKE3 hash of betrayal evidence. The
// bytes are the ASCII domain name, zero-padded to 32. Changing it
// changes every evidence hash.
var evidenceDomainKey = [32]byte{
	'm', 'e', 'm', 'b', 'r', 'a', 'n', 'e', '.', 's', 'l', 'a', 's', 'h', '.', 'e',
	'v', 'i', 'd', 'e', 'n', 'c', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// EvidenceHash returns the keyed BLAKE3 digest of evidence that a
// slash signal commits to.
func EvidenceHash(evidence []byte) [32]byte {
	hasher, err := blake3.NewKeyed(evidenceDomainKey[:])
	if err != nil {
		// NewKeyed only fails on a key that is not 32 bytes.
		panic("policy: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(evidence)
	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// PunishIfGuilty issues a slash signal against node if it has a
// betrayal finding. The sequence is: detect, resolve the node's
// identity, fetch the evidence, hash it, issue the signal with the
// finding's reason. It returns ErrNotGuilty when there is no finding;
// any other failure names the step that failed.
func (e *Enforcer) PunishIfGuilty(ctx context.Context, node uint32) (oracle.SlashSignal, error) {
	anomaly, err := e.oracle.DetectBetrayal(ctx, node)
	if err != nil {
		e.metrics.RecordOracleFailure("detect_betrayal")
		return oracle.SlashSignal{}, fmt.Errorf("detecting betrayal for node %d: %w", node, err)
	}
	if anomaly.Score <= BetrayalFloor {
		return oracle.SlashSignal{}, fmt.Errorf("%w: node %d scored %.2f", ErrNotGuilty, node, anomaly.Score)
	}

	// The detected anomaly may flag a different node than the one
	// checked (a cycle member); punish the flagged one.
	target := anomaly.Node
	did, err := e.oracle.ResolveDID(ctx, target)
	if err != nil {
		e.metrics.RecordOracleFailure("resolve_did")
		return oracle.SlashSignal{}, fmt.Errorf("resolving identity of node %d: %w", target, err)
	}

	evidence, err := e.oracle.BetrayalEvidence(ctx, node)
	if err != nil {
		e.metrics.RecordOracleFailure("betrayal_evidence")
		return oracle.SlashSignal{}, fmt.Errorf("fetching evidence for node %d: %w", node, err)
	}

	signal, err := e.oracle.IssueSlashSignal(ctx, did, uint8(anomaly.Reason), EvidenceHash(evidence))
	if err != nil {
		e.metrics.RecordOracleFailure("issue_slash_signal")
		return oracle.SlashSignal{}, fmt.Errorf("issuing slash signal for node %d: %w", target, err)
	}

	e.metrics.RecordSlashSignal()
	e.logger.Warn("slash signal issued",
		"node", target,
		"target", did.Short(),
		"score", anomaly.Score,
		"reason", anomaly.Reason.String(),
	)
	return signal, nil
}
