// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package alertpub

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/libertaria/membrane/lib/alert"
	"github.com/libertaria/membrane/lib/metrics"
	"github.com/libertaria/membrane/lib/oracle"
	"github.com/libertaria/membrane/lib/testutil"
)

const testTimeout = 10 * time.Second

var addressCounter atomic.Int64

func inprocAddress(t *testing.T) string {
	return fmt.Sprintf("inproc://%s-%d", t.Name(), addressCounter.Add(1))
}

func sampleAlert(sequence uint64, priority alert.Priority) alert.Alert {
	return alert.Alert{
		Sequence:  sequence,
		Timestamp: time.Date(2026, 2, 1, 9, 0, 0, 123, time.UTC),
		Priority:  priority,
		Node:      uint32(sequence),
		Score:     0.95,
		Reason:    oracle.ReasonNegativeCycle,
	}
}

// publishUntil republishes the given alerts until stop is closed.
// PUB/SUB delivers nothing until the subscriber's connection is up, so
// tests cannot rely on a single send arriving.
func publishUntil(publisher *Publisher, stop <-chan struct{}, alerts ...alert.Alert) {
	ticker := time.NewTicker(5 * time.Millisecond) //nolint:realclock pacing real sockets
	defer ticker.Stop()
	for {
		for _, a := range alerts {
			publisher.Publish(a)
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func TestMessageRoundTrip(t *testing.T) {
	t.Parallel()
	original := sampleAlert(42, alert.Warning)
	message, err := EncodeMessage(original)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	if string(message[:len("warning\x00")]) != "warning\x00" {
		t.Fatalf("message does not start with its topic: %q", message[:16])
	}
	decoded, err := DecodeMessage(message)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if decoded.Sequence != 42 || decoded.Priority != alert.Warning || decoded.Reason != oracle.ReasonNegativeCycle ||
		!decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestDecodeMessageRejectsMalformed(t *testing.T) {
	t.Parallel()
	good, err := EncodeMessage(sampleAlert(1, alert.Critical))
	if err != nil {
		t.Fatal(err)
	}
	mismatched := append([]byte("info\x00"), good[len("critical\x00"):]...)

	for name, message := range map[string][]byte{
		"no separator":   []byte("critical"),
		"bad body":       []byte("critical\x00\xff\xff"),
		"topic mismatch": mismatched,
	} {
		if _, err := DecodeMessage(message); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", name, err)
		}
	}
}

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()
	address := inprocAddress(t)
	registry := metrics.NewRegistry()
	publisher, err := Listen(address, testutil.Logger(), registry)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer publisher.Close()

	subscriber, err := Subscribe(address)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer subscriber.Close()

	stop := make(chan struct{})
	defer close(stop)
	go publishUntil(publisher, stop, sampleAlert(7, alert.Info))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	received, err := subscriber.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if received.Sequence != 7 || received.Priority != alert.Info {
		t.Errorf("received %+v", received)
	}
	if testutil.CounterValue(t, registry.AlertsPublishedTotal) < 1 {
		t.Error("published counter not incremented")
	}
}

func TestSubscribeFiltersByPriority(t *testing.T) {
	t.Parallel()
	address := "ipc://" + filepath.Join(testutil.SocketDir(t), "alerts.ipc")
	publisher, err := Listen(address, testutil.Logger(), nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer publisher.Close()

	subscriber, err := Subscribe(address, alert.Critical)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer subscriber.Close()

	stop := make(chan struct{})
	defer close(stop)
	go publishUntil(publisher, stop,
		sampleAlert(1, alert.Info),
		sampleAlert(2, alert.Critical),
		sampleAlert(3, alert.Warning),
	)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	for range 5 {
		received, err := subscriber.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if received.Priority != alert.Critical {
			t.Fatalf("critical-only subscriber received %s alert", received.Priority)
		}
	}
}

func TestStoreSinkPublishes(t *testing.T) {
	t.Parallel()
	address := inprocAddress(t)
	publisher, err := Listen(address, testutil.Logger(), nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer publisher.Close()
	subscriber, err := Subscribe(address, alert.Warning)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer subscriber.Close()

	store := alert.NewStore(alert.StoreConfig{Capacity: 4, Logger: testutil.Logger(), Sink: publisher})

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	received := make(chan alert.Alert, 1)
	go func() {
		a, err := subscriber.Receive(ctx)
		if err == nil {
			received <- a
		}
	}()

	ticker := time.NewTicker(5 * time.Millisecond) //nolint:realclock pacing real sockets
	defer ticker.Stop()
	for {
		store.Emit(oracle.AnomalyScore{Node: 9, Score: 0.75, Reason: oracle.ReasonLowCoverage})
		select {
		case a := <-received:
			if a.Node != 9 || a.Reason != oracle.ReasonLowCoverage {
				t.Errorf("received %+v", a)
			}
			return
		case <-ctx.Done():
			t.Fatal("no alert reached the subscriber")
		case <-ticker.C:
		}
	}
}

func TestReceiveHonoursContext(t *testing.T) {
	t.Parallel()
	address := inprocAddress(t)
	publisher, err := Listen(address, testutil.Logger(), nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer publisher.Close()
	subscriber, err := Subscribe(address)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer subscriber.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := subscriber.Receive(ctx)
		done <- err
	}()
	cancel()
	if err := testutil.RequireReceive(t, done, testTimeout, "Receive after cancel"); !errors.Is(err, context.Canceled) {
		t.Errorf("Receive error = %v, want context.Canceled", err)
	}
}

func TestSubscribeRejectsUnknownPriority(t *testing.T) {
	t.Parallel()
	if _, err := Subscribe(inprocAddress(t), alert.Priority("urgent")); err == nil {
		t.Fatal("Subscribe accepted an unknown priority")
	}
}

func TestPublishAfterCloseCountsFailure(t *testing.T) {
	t.Parallel()
	registry := metrics.NewRegistry()
	publisher, err := Listen(inprocAddress(t), testutil.Logger(), registry)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	publisher.Close()
	publisher.Publish(sampleAlert(1, alert.Info))
	if got := testutil.CounterValue(t, registry.AlertPublishFailures); got != 1 {
		t.Errorf("publish failures = %v, want 1", got)
	}
}
