// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	if got, want := clock.Now(), epoch.Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfter(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	channel := clock.After(3 * time.Second)

	clock.Advance(2 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	clock.Advance(time.Second)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at its deadline")
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after one-shot fired, want 0", clock.PendingCount())
	}
}

func TestFakeClockAfterNonPositive(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) should deliver immediately")
	}
}

func TestFakeClockTicker(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	ticker := clock.NewTicker(10 * time.Second)

	for i := 0; i < 3; i++ {
		clock.Advance(10 * time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d not delivered", i)
		}
	}

	ticker.Stop()
	clock.Advance(10 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}

func TestFakeClockTickerDropsWhenFull(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)

	// Five intervals in one advance: the buffered channel holds one tick.
	clock.Advance(5 * time.Second)
	<-ticker.C
	select {
	case <-ticker.C:
		t.Fatal("expected surplus ticks to be dropped")
	default:
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	registered := make(chan struct{})
	fired := make(chan struct{})

	go func() {
		channel := clock.After(time.Minute)
		close(registered)
		<-channel
		close(fired)
	}()

	<-registered
	clock.WaitForTimers(1)
	clock.Advance(time.Minute)
	<-fired
}
