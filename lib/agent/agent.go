// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libertaria/membrane/lib/alert"
	"github.com/libertaria/membrane/lib/clock"
	"github.com/libertaria/membrane/lib/identity"
	"github.com/libertaria/membrane/lib/metrics"
	"github.com/libertaria/membrane/lib/oracle"
	"github.com/libertaria/membrane/lib/policy"
	"github.com/libertaria/membrane/lib/wire"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultSweepInterval   = 30 * time.Second
	DefaultSweepFloor      = 0.5
	DefaultDecisionWorkers = 4
	DefaultOracleTimeout   = 2 * time.Second
)

// EventSource supplies decoded L0 events. The channel is closed when
// the source shuts down. *listener.Listener implements it.
type EventSource interface {
	Events() <-chan wire.Event
}

// Config configures an Agent. Source, Enforcer, and Store are
// required.
type Config struct {
	Source   EventSource
	Enforcer *policy.Enforcer
	Store    *alert.Store

	// Oracle defaults to the enforcer's oracle.
	Oracle oracle.Oracle

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Registry

	SweepInterval   time.Duration
	SweepFloor      float64
	DecisionWorkers int
	OracleTimeout   time.Duration

	// WatchNodes are swept from the start. Peers announced by
	// ConnectionEstablished are added as they register.
	WatchNodes []uint32

	// OnDecision receives every verdict. It is called from the
	// decision workers, concurrently.
	OnDecision func(Verdict)
}

// Verdict is the forwarding decision for one received packet.
type Verdict struct {
	Sender      identity.DID    `cbor:"sender"`
	PacketType  uint8           `cbor:"packet_type"`
	PayloadSize uint32          `cbor:"payload_size"`
	Decision    policy.Decision `cbor:"decision"`
	Score       float64         `cbor:"score"`
	DecidedAt   time.Time       `cbor:"decided_at"`
}

// Agent is the orchestrator. Create with New, start with Run.
type Agent struct {
	source     EventSource
	enforcer   *policy.Enforcer
	store      *alert.Store
	oracle     oracle.Oracle
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Registry
	onDecision func(Verdict)

	sweepInterval time.Duration
	sweepFloor    float64
	workers       int
	oracleTimeout time.Duration

	watchMutex sync.Mutex
	watched    map[uint32]struct{}

	events   atomic.Uint64
	verdicts [policy.Drop + 1]atomic.Uint64
	sweeps   atomic.Uint64
	// lastSweep holds a time.Time.
	lastSweep atomic.Value
	// sweepMutex serializes sweeps from the timer and the control
	// socket.
	sweepMutex sync.Mutex
}

// New validates config and builds an Agent.
func New(config Config) (*Agent, error) {
	if config.Source == nil {
		return nil, errors.New("agent: event source is required")
	}
	if config.Enforcer == nil {
		return nil, errors.New("agent: policy enforcer is required")
	}
	if config.Store == nil {
		return nil, errors.New("agent: alert store is required")
	}
	if config.Oracle == nil {
		config.Oracle = config.Enforcer.Oracle()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if config.SweepFloor <= 0 {
		config.SweepFloor = DefaultSweepFloor
	}
	if config.DecisionWorkers <= 0 {
		config.DecisionWorkers = DefaultDecisionWorkers
	}
	if config.OracleTimeout <= 0 {
		config.OracleTimeout = DefaultOracleTimeout
	}

	a := &Agent{
		source:        config.Source,
		enforcer:      config.Enforcer,
		store:         config.Store,
		oracle:        config.Oracle,
		clock:         config.Clock,
		logger:        config.Logger,
		metrics:       config.Metrics,
		onDecision:    config.OnDecision,
		sweepInterval: config.SweepInterval,
		sweepFloor:    config.SweepFloor,
		workers:       config.DecisionWorkers,
		oracleTimeout: config.OracleTimeout,
		watched:       make(map[uint32]struct{}),
	}
	for _, node := range config.WatchNodes {
		a.watched[node] = struct{}{}
	}
	return a, nil
}

// Run consumes events until the source closes its channel, which the
// listener does after ctx is cancelled. Events still queued when ctx
// is done are drained without decisions. Run returns nil once the
// workers and the sweeper have stopped.
func (a *Agent) Run(ctx context.Context) error {
	jobs := make(chan wire.Event, a.workers)

	var workers sync.WaitGroup
	for range a.workers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for event := range jobs {
				if ctx.Err() != nil {
					continue
				}
				a.handle(ctx, event)
			}
		}()
	}

	sweepContext, stopSweeper := context.WithCancel(ctx)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		a.sweepLoop(sweepContext)
	}()

	a.logger.Info("agent running",
		"workers", a.workers,
		"sweep_interval", a.sweepInterval,
		"watched", len(a.Watched()),
	)

	for event := range a.source.Events() {
		a.events.Add(1)
		if ctx.Err() != nil {
			continue
		}
		select {
		case jobs <- event:
		case <-ctx.Done():
		}
	}

	close(jobs)
	workers.Wait()
	stopSweeper()
	<-sweeperDone
	a.logger.Info("agent stopped", "events", a.events.Load())
	return nil
}

// handle runs on a decision worker.
func (a *Agent) handle(ctx context.Context, event wire.Event) {
	switch event := event.(type) {
	case wire.PacketReceived:
		a.decide(ctx, event)
	case wire.ConnectionEstablished:
		a.registerPeer(ctx, event.Peer)
	case wire.ConnectionDropped:
		a.logger.Debug("peer dropped", "peer", event.Peer.Short(), "reason", event.Reason)
	}
}

func (a *Agent) decide(ctx context.Context, packet wire.PacketReceived) {
	callContext, cancel := context.WithTimeout(ctx, a.oracleTimeout)
	defer cancel()

	started := a.clock.Now()
	assessment := a.enforcer.Assess(callContext, packet.Sender)
	decidedAt := a.clock.Now()

	a.verdicts[assessment.Decision].Add(1)
	a.metrics.RecordDecision(assessment.Decision.String(), decidedAt.Sub(started))

	verdict := Verdict{
		Sender:      packet.Sender,
		PacketType:  packet.PacketType,
		PayloadSize: packet.PayloadSize,
		Decision:    assessment.Decision,
		Score:       assessment.Score,
		DecidedAt:   decidedAt,
	}
	if assessment.Decision == policy.Drop {
		a.logger.Info("dropping packet",
			"sender", packet.Sender.Short(),
			"score", assessment.Score,
			"packet_type", packet.PacketType,
		)
	}
	if a.onDecision != nil {
		a.onDecision(verdict)
	}
}

func (a *Agent) registerPeer(ctx context.Context, peer identity.DID) {
	callContext, cancel := context.WithTimeout(ctx, a.oracleTimeout)
	defer cancel()

	node, err := a.oracle.RegisterNode(callContext, peer)
	if err != nil {
		a.metrics.RecordOracleFailure("register_node")
		a.logger.Warn("registering peer failed", "peer", peer.Short(), "error", err)
		return
	}
	a.Watch(node)
	a.logger.Info("peer registered", "peer", peer.Short(), "node", node)
}

// Watch adds node to the sweep set.
func (a *Agent) Watch(node uint32) {
	a.watchMutex.Lock()
	a.watched[node] = struct{}{}
	a.watchMutex.Unlock()
}

// Watched returns the sweep set in ascending order.
func (a *Agent) Watched() []uint32 {
	a.watchMutex.Lock()
	nodes := make([]uint32, 0, len(a.watched))
	for node := range a.watched {
		nodes = append(nodes, node)
	}
	a.watchMutex.Unlock()
	slices.Sort(nodes)
	return nodes
}

// Store returns the alert store the agent emits into.
func (a *Agent) Store() *alert.Store {
	return a.store
}

// Enforcer returns the policy enforcer.
func (a *Agent) Enforcer() *policy.Enforcer {
	return a.enforcer
}
