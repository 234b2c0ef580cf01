// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package alert

import (
	"log/slog"
	"sync"

	"github.com/libertaria/membrane/lib/clock"
	"github.com/libertaria/membrane/lib/metrics"
	"github.com/libertaria/membrane/lib/oracle"
)

// DefaultCapacity is the store size when none is configured.
const DefaultCapacity = 1000

// StoreConfig configures a Store. Zero values select defaults.
type StoreConfig struct {
	Capacity int
	Clock    clock.Clock
	Logger   *slog.Logger
	Sink     Sink
	Metrics  *metrics.Registry
}

// Store is a fixed-capacity ring of alerts. When full, each new alert
// overwrites the oldest. All methods are safe for concurrent use.
type Store struct {
	clock   clock.Clock
	logger  *slog.Logger
	sink    Sink
	metrics *metrics.Registry

	mutex sync.Mutex
	ring  []Alert
	// head is the index of the oldest alert; count is how many slots
	// hold alerts.
	head  int
	count int
	// emitted is the sequence number of the most recent alert.
	emitted uint64
}

// NewStore creates an empty store.
func NewStore(config StoreConfig) *Store {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Store{
		clock:   config.Clock,
		logger:  config.Logger,
		sink:    config.Sink,
		metrics: config.Metrics,
		ring:    make([]Alert, config.Capacity),
	}
}

// Emit classifies score, timestamps it, and stores it, evicting the
// oldest alert if the store is full. The alert is logged at a level
// matching its priority and handed to the sink, if any.
func (s *Store) Emit(score oracle.AnomalyScore) Alert {
	alert := Alert{
		Priority: Classify(score.Score),
		Node:     score.Node,
		Score:    score.Score,
		Reason:   score.Reason,
	}

	// Stamped under the lock so timestamps never run backwards against
	// sequence numbers.
	s.mutex.Lock()
	alert.Timestamp = s.clock.Now()
	s.emitted++
	alert.Sequence = s.emitted
	capacity := len(s.ring)
	if s.count < capacity {
		s.ring[(s.head+s.count)%capacity] = alert
		s.count++
	} else {
		s.ring[s.head] = alert
		s.head = (s.head + 1) % capacity
	}
	s.metrics.RecordAlert(string(alert.Priority), s.count)
	s.mutex.Unlock()

	s.log(alert)
	if s.sink != nil {
		s.sink.Publish(alert)
	}
	return alert
}

func (s *Store) log(alert Alert) {
	attributes := []any{
		"node", alert.Node,
		"score", alert.Score,
		"reason", alert.Reason.String(),
		"sequence", alert.Sequence,
	}
	switch alert.Priority {
	case Critical:
		s.logger.Error("critical betrayal alert", attributes...)
	case Warning:
		s.logger.Warn("betrayal warning", attributes...)
	default:
		s.logger.Info("anomaly noted", attributes...)
	}
}

// collect returns the stored alerts matching keep, oldest first.
func (s *Store) collect(keep func(Alert) bool) []Alert {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var result []Alert
	capacity := len(s.ring)
	for i := range s.count {
		alert := s.ring[(s.head+i)%capacity]
		if keep == nil || keep(alert) {
			result = append(result, alert)
		}
	}
	return result
}

// Snapshot returns every stored alert, oldest first.
func (s *Store) Snapshot() []Alert {
	return s.collect(nil)
}

// ByPriority returns the stored alerts with exactly priority p.
func (s *Store) ByPriority(p Priority) []Alert {
	return s.collect(func(a Alert) bool { return a.Priority == p })
}

// AtOrAbove returns the stored alerts at least as severe as minimum.
func (s *Store) AtOrAbove(minimum Priority) []Alert {
	return s.collect(func(a Alert) bool { return a.Priority.AtLeast(minimum) })
}

// Critical returns the stored Critical alerts.
func (s *Store) Critical() []Alert {
	return s.ByPriority(Critical)
}

// Since returns the stored alerts with a sequence number above
// sequence. Alerts already evicted are not returned.
func (s *Store) Since(sequence uint64) []Alert {
	return s.collect(func(a Alert) bool { return a.Sequence > sequence })
}

// CountByPriority returns how many stored alerts have priority p.
func (s *Store) CountByPriority(p Priority) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	total := 0
	capacity := len(s.ring)
	for i := range s.count {
		if s.ring[(s.head+i)%capacity].Priority == p {
			total++
		}
	}
	return total
}

// Counts returns the per-priority counts in one pass.
func (s *Store) Counts() map[Priority]int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	counts := make(map[Priority]int, len(Priorities))
	for _, p := range Priorities {
		counts[p] = 0
	}
	capacity := len(s.ring)
	for i := range s.count {
		counts[s.ring[(s.head+i)%capacity].Priority]++
	}
	return counts
}

// Len returns the number of stored alerts.
func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.count
}

// Capacity returns the maximum number of stored alerts.
func (s *Store) Capacity() int {
	return len(s.ring)
}

// Emitted returns the sequence number of the most recent alert, which
// is also the number of alerts ever emitted.
func (s *Store) Emitted() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.emitted
}

// Clear removes every stored alert. Sequence numbering continues.
func (s *Store) Clear() {
	s.mutex.Lock()
	clear(s.ring)
	s.head = 0
	s.count = 0
	s.metrics.SetAlertStoreSize(0)
	s.mutex.Unlock()

	s.logger.Info("alert store cleared")
}
