// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/libertaria/membrane/lib/clock"
	"github.com/libertaria/membrane/lib/codec"
	"github.com/libertaria/membrane/lib/identity"
)

// RootNode is the local identity's node id in a Memory engine.
const RootNode uint32 = 0

// NegativeCycleScore is the anomaly score Memory reports for a node
// that reaches a negative-weight cycle.
const NegativeCycleScore = 0.95

// DefaultReputation is returned for registered nodes with no recorded
// reputation.
const DefaultReputation = 0.5

// MemoryConfig configures a Memory engine.
type MemoryConfig struct {
	// Root is the local identity, registered as RootNode.
	Root   identity.DID
	Clock  clock.Clock
	Logger *slog.Logger
}

type edgeKey struct {
	from, to uint32
}

// Memory is an in-process trust engine. It keeps a registry of
// identities, explicit trust and reputation scores, and a risk graph
// whose negative-weight cycles count as betrayal. Scripted anomalies
// set with SetAnomaly take precedence over graph detection.
//
// All methods are safe for concurrent use.
type Memory struct {
	clock  clock.Clock
	logger *slog.Logger

	mu         sync.Mutex
	closed     bool
	dids       []identity.DID // indexed by node id
	nodes      map[identity.DID]uint32
	trust      map[identity.DID]float64
	reputation map[uint32]float64
	edges      map[edgeKey]RiskEdge
	anomalies  map[uint32]AnomalyScore
}

// NewMemory creates an engine with config.Root registered as node 0.
func NewMemory(config MemoryConfig) *Memory {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	m := &Memory{
		clock:      config.Clock,
		logger:     config.Logger,
		nodes:      make(map[identity.DID]uint32),
		trust:      make(map[identity.DID]float64),
		reputation: make(map[uint32]float64),
		edges:      make(map[edgeKey]RiskEdge),
		anomalies:  make(map[uint32]AnomalyScore),
	}
	m.register(config.Root)
	return m
}

var _ Oracle = (*Memory)(nil)

// register assigns the next node id to did. Caller holds mu.
func (m *Memory) register(did identity.DID) uint32 {
	if node, ok := m.nodes[did]; ok {
		return node
	}
	node := uint32(len(m.dids))
	m.dids = append(m.dids, did)
	m.nodes[did] = node
	return node
}

// lock acquires mu and fails if the engine is closed or ctx is done.
// On success the caller must unlock.
func (m *Memory) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func (m *Memory) known(node uint32) bool {
	return int(node) < len(m.dids)
}

func checkScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return fmt.Errorf("score %v outside [0, 1]", score)
	}
	return nil
}

// SetTrustScore records the trust score for did, registering it if
// needed.
func (m *Memory) SetTrustScore(ctx context.Context, did identity.DID, score float64) error {
	if err := checkScore(score); err != nil {
		return err
	}
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()
	m.register(did)
	m.trust[did] = score
	return nil
}

// SetReputation records the reputation for a registered node.
func (m *Memory) SetReputation(ctx context.Context, node uint32, score float64) error {
	if err := checkScore(score); err != nil {
		return err
	}
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if !m.known(node) {
		return fmt.Errorf("%w: node %d", ErrNotFound, node)
	}
	m.reputation[node] = score
	return nil
}

// SetAnomaly scripts the detection result for score.Node, overriding
// graph detection until ClearAnomaly.
func (m *Memory) SetAnomaly(ctx context.Context, score AnomalyScore) error {
	if err := checkScore(score.Score); err != nil {
		return err
	}
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if !m.known(score.Node) {
		return fmt.Errorf("%w: node %d", ErrNotFound, score.Node)
	}
	m.anomalies[score.Node] = score
	return nil
}

// ClearAnomaly removes a scripted anomaly.
func (m *Memory) ClearAnomaly(ctx context.Context, node uint32) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()
	delete(m.anomalies, node)
	return nil
}

// Status reports the registry and graph sizes.
func (m *Memory) Status(ctx context.Context) (Status, error) {
	if err := m.lock(ctx); err != nil {
		return Status{}, err
	}
	defer m.mu.Unlock()
	return Status{Engine: "memory", Nodes: len(m.dids), Edges: len(m.edges)}, nil
}

func (m *Memory) TrustScore(ctx context.Context, did identity.DID) (float64, error) {
	if err := m.lock(ctx); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	if _, ok := m.nodes[did]; !ok {
		return 0, fmt.Errorf("%w: identity %s", ErrNotFound, did.Short())
	}
	score, ok := m.trust[did]
	if !ok {
		return 0, fmt.Errorf("%w: no trust score for %s", ErrNoData, did.Short())
	}
	return score, nil
}

func (m *Memory) Reputation(ctx context.Context, node uint32) (float64, error) {
	if err := m.lock(ctx); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	if !m.known(node) {
		return 0, fmt.Errorf("%w: node %d", ErrNotFound, node)
	}
	if score, ok := m.reputation[node]; ok {
		return score, nil
	}
	return DefaultReputation, nil
}

func (m *Memory) DetectBetrayal(ctx context.Context, node uint32) (AnomalyScore, error) {
	if err := m.lock(ctx); err != nil {
		return AnomalyScore{}, err
	}
	defer m.mu.Unlock()
	score, _, _ := m.detect(node)
	return score, nil
}

// detect returns the anomaly for node plus the cycle and edges behind a
// NegativeCycle finding. Caller holds mu.
func (m *Memory) detect(node uint32) (AnomalyScore, []uint32, []RiskEdge) {
	if scripted, ok := m.anomalies[node]; ok {
		return scripted, nil, nil
	}
	if !m.known(node) {
		return AnomalyScore{Node: node, Reason: ReasonNone}, nil, nil
	}
	cycle := findNegativeCycle(len(m.dids), m.activeEdges(), node)
	if cycle == nil {
		return AnomalyScore{Node: node, Reason: ReasonNone}, nil, nil
	}
	flagged := cycle[0]
	for _, member := range cycle {
		if member == node {
			flagged = node
			break
		}
	}
	return AnomalyScore{Node: flagged, Score: NegativeCycleScore, Reason: ReasonNegativeCycle},
		cycle, m.cycleEdges(cycle)
}

// activeEdges returns unexpired edges in (from, to) order so detection
// is deterministic. Caller holds mu.
func (m *Memory) activeEdges() []RiskEdge {
	now := m.clock.Now()
	edges := make([]RiskEdge, 0, len(m.edges))
	for _, edge := range m.edges {
		if !edge.Expired(now) {
			edges = append(edges, edge)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

func (m *Memory) cycleEdges(cycle []uint32) []RiskEdge {
	edges := make([]RiskEdge, 0, len(cycle))
	for i, from := range cycle {
		to := cycle[(i+1)%len(cycle)]
		edges = append(edges, m.edges[edgeKey{from, to}])
	}
	return edges
}

func (m *Memory) AddTrustEdge(ctx context.Context, edge RiskEdge) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if !m.known(edge.From) || !m.known(edge.To) {
		return fmt.Errorf("%w: edge %d->%d references an unregistered node: %w",
			ErrMutationFailed, edge.From, edge.To, ErrNotFound)
	}
	if edge.Timestamp.IsZero() {
		edge.Timestamp = m.clock.Now()
	}
	m.edges[edgeKey{edge.From, edge.To}] = edge
	m.logger.Debug("trust edge added",
		"from", edge.From,
		"to", edge.To,
		"risk", edge.Risk,
		"level", edge.Level,
	)
	return nil
}

func (m *Memory) RevokeTrustEdge(ctx context.Context, from, to uint32) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()
	key := edgeKey{from, to}
	if _, ok := m.edges[key]; !ok {
		return fmt.Errorf("%w: edge %d->%d", ErrNotFound, from, to)
	}
	delete(m.edges, key)
	m.logger.Debug("trust edge revoked", "from", from, "to", to)
	return nil
}

func (m *Memory) ResolveDID(ctx context.Context, node uint32) (identity.DID, error) {
	if err := m.lock(ctx); err != nil {
		return identity.DID{}, err
	}
	defer m.mu.Unlock()
	if !m.known(node) {
		return identity.DID{}, fmt.Errorf("%w: node %d", ErrNotFound, node)
	}
	return m.dids[node], nil
}

func (m *Memory) RegisterNode(ctx context.Context, did identity.DID) (uint32, error) {
	if err := m.lock(ctx); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	return m.register(did), nil
}

// Evidence is the record Memory encodes for BetrayalEvidence.
type Evidence struct {
	Source     uint32        `cbor:"source"`
	Flagged    uint32        `cbor:"flagged"`
	Reason     AnomalyReason `cbor:"reason"`
	Score      float64       `cbor:"score"`
	Cycle      []uint32      `cbor:"cycle,omitempty"`
	Edges      []RiskEdge    `cbor:"edges,omitempty"`
	DetectedAt time.Time     `cbor:"detected_at"`
}

func (m *Memory) BetrayalEvidence(ctx context.Context, node uint32) ([]byte, error) {
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	score, cycle, edges := m.detect(node)
	if score.Reason == ReasonNone || score.Score == 0 {
		return nil, fmt.Errorf("%w: no anomaly for node %d", ErrNoData, node)
	}
	evidence, err := codec.Marshal(Evidence{
		Source:     node,
		Flagged:    score.Node,
		Reason:     score.Reason,
		Score:      score.Score,
		Cycle:      cycle,
		Edges:      edges,
		DetectedAt: m.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding evidence for node %d: %w", node, err)
	}
	return evidence, nil
}

func (m *Memory) IssueSlashSignal(ctx context.Context, target identity.DID, reason uint8, evidenceHash [32]byte) (SlashSignal, error) {
	if err := m.lock(ctx); err != nil {
		return SlashSignal{}, err
	}
	defer m.mu.Unlock()
	var severity uint8
	if node, ok := m.nodes[target]; ok {
		score, _, _ := m.detect(node)
		severity = severityFor(score.Score)
	}
	signal := NewSlashSignal(target, reason, evidenceHash, m.clock.Now(), severity)
	m.logger.Info("slash signal issued",
		"target", target.Short(),
		"reason", ReasonFromByte(reason).String(),
		"severity", severity,
	)
	return signal, nil
}

// Close releases the engine. Further calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
