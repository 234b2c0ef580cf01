// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package listener

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/libertaria/membrane/lib/identity"
	"github.com/libertaria/membrane/lib/metrics"
	"github.com/libertaria/membrane/lib/testutil"
	"github.com/libertaria/membrane/lib/wire"
)

const testTimeout = 5 * time.Second

type runningListener struct {
	listener *Listener
	cancel   context.CancelFunc
	done     chan error
}

// startListener serves a listener in the background and registers a
// cleanup that shuts it down.
func startListener(t *testing.T, config Config) *runningListener {
	t.Helper()
	if config.SocketPath == "" {
		config.SocketPath = filepath.Join(testutil.SocketDir(t), "l0.sock")
	}
	if config.Logger == nil {
		config.Logger = testutil.Logger()
	}

	listener := New(config)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- listener.Serve(ctx)
		close(done)
	}()
	testutil.RequireClosed(t, listener.Ready(), testTimeout, "listener ready")

	running := &runningListener{listener: listener, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(testTimeout): //nolint:realclock test hang prevention
			t.Error("Serve did not return after cancel")
		}
	})
	return running
}

func (r *runningListener) dial(t *testing.T) net.Conn {
	t.Helper()
	connection, err := net.Dial("unix", r.listener.SocketPath())
	if err != nil {
		t.Fatalf("dial %s: %v", r.listener.SocketPath(), err)
	}
	t.Cleanup(func() { connection.Close() })
	return connection
}

func (r *runningListener) stop(t *testing.T) error {
	t.Helper()
	r.cancel()
	return testutil.RequireReceive(t, r.done, testTimeout, "Serve returned")
}

func did(b byte) identity.DID {
	var d identity.DID
	for i := range d {
		d[i] = b
	}
	return d
}

func writeEvent(t *testing.T, w io.Writer, event wire.Event) {
	t.Helper()
	if err := wire.WriteEvent(w, event); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
}

func TestListenerDeliversEventsInWireOrder(t *testing.T) {
	t.Parallel()

	running := startListener(t, Config{})
	connection := running.dial(t)

	want := []wire.Event{
		wire.ConnectionEstablished{Peer: did(0x01)},
		wire.PacketReceived{Sender: did(0x01), PacketType: 7, PayloadSize: 100},
		wire.PacketReceived{Sender: did(0x01), PacketType: 8, PayloadSize: 200},
	}
	var stream bytes.Buffer
	for _, event := range want {
		writeEvent(t, &stream, event)
	}
	if _, err := connection.Write(stream.Bytes()); err != nil {
		t.Fatal(err)
	}

	for i, expected := range want {
		got := testutil.RequireReceive(t, running.listener.Events(), testTimeout, "event %d", i)
		if got != expected {
			t.Errorf("event %d = %v, want %v", i, got, expected)
		}
	}
}

func TestListenerSkipsShortFrames(t *testing.T) {
	t.Parallel()

	running := startListener(t, Config{})
	connection := running.dial(t)

	stream := wire.AppendFrame(nil, wire.FramePacketReceived, 0, make([]byte, 10))
	stream = wire.AppendFrame(stream, wire.FrameType(0x33), 0, []byte{1})
	stream = wire.AppendFrame(stream, wire.FrameConnectionEstablished, 0, did(0x05).Bytes())
	if _, err := connection.Write(stream); err != nil {
		t.Fatal(err)
	}

	got := testutil.RequireReceive(t, running.listener.Events(), testTimeout, "event after discarded frames")
	if got != (wire.ConnectionEstablished{Peer: did(0x05)}) {
		t.Fatalf("event = %v, want ConnectionEstablished for 0x05", got)
	}
}

func TestListenerBadMagicClosesOnlyThatConnection(t *testing.T) {
	t.Parallel()

	running := startListener(t, Config{})
	bad := running.dial(t)
	good := running.dial(t)

	if _, err := bad.Write([]byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}); err != nil {
		t.Fatal(err)
	}

	// The server closes the bad connection: our read sees EOF.
	bad.SetReadDeadline(time.Now().Add(testTimeout)) //nolint:realclock socket deadline
	if _, err := bad.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("read on bad connection = %v, want EOF", err)
	}

	writeEvent(t, good, wire.PacketReceived{Sender: did(0x02), PacketType: 1, PayloadSize: 1})
	got := testutil.RequireReceive(t, running.listener.Events(), testTimeout, "event from healthy connection")
	if packet, ok := got.(wire.PacketReceived); !ok || packet.Sender != did(0x02) {
		t.Fatalf("event = %v, want PacketReceived from 0x02", got)
	}

	// A new connection is still accepted.
	late := running.dial(t)
	writeEvent(t, late, wire.ConnectionEstablished{Peer: did(0x03)})
	got = testutil.RequireReceive(t, running.listener.Events(), testTimeout, "event from later connection")
	if got != (wire.ConnectionEstablished{Peer: did(0x03)}) {
		t.Fatalf("event = %v, want ConnectionEstablished for 0x03", got)
	}
}

func TestListenerBackpressureDropsNothing(t *testing.T) {
	t.Parallel()

	running := startListener(t, Config{QueueSize: 1})
	connection := running.dial(t)

	const count = 20
	var stream bytes.Buffer
	for i := range count {
		writeEvent(t, &stream, wire.PacketReceived{Sender: did(0x09), PacketType: uint8(i), PayloadSize: uint32(i)})
	}
	if _, err := connection.Write(stream.Bytes()); err != nil {
		t.Fatal(err)
	}

	for i := range count {
		got := testutil.RequireReceive(t, running.listener.Events(), testTimeout, "event %d", i)
		packet := got.(wire.PacketReceived)
		if packet.PacketType != uint8(i) {
			t.Fatalf("event %d has packet type %d: order not preserved", i, packet.PacketType)
		}
	}
}

func TestListenerRemovesStaleSocket(t *testing.T) {
	t.Parallel()

	path := filepath.Join(testutil.SocketDir(t), "stale.sock")
	stale, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	stale.(*net.UnixListener).SetUnlinkOnClose(false)
	stale.Close()

	running := startListener(t, Config{SocketPath: path})
	connection := running.dial(t)
	writeEvent(t, connection, wire.ConnectionEstablished{Peer: did(0x04)})
	testutil.RequireReceive(t, running.listener.Events(), testTimeout, "event after stale socket removal")
}

func TestListenerCreatesParentDirectoryAndSetsMode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(testutil.SocketDir(t), "run", "l0.sock")
	startListener(t, Config{SocketPath: path})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("socket missing: %v", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		t.Fatalf("%s is not a socket: %s", path, info.Mode())
	}
	if perm := info.Mode().Perm(); perm != DefaultSocketMode {
		t.Errorf("socket mode = %o, want %o", perm, DefaultSocketMode)
	}
}

func TestListenerShutdown(t *testing.T) {
	t.Parallel()

	running := startListener(t, Config{})
	running.dial(t)

	// Wait until the idle connection is tracked so shutdown has to
	// close it.
	deadline := time.Now().Add(testTimeout) //nolint:realclock test hang prevention
	for running.listener.ActiveConnections() == 0 {
		if time.Now().After(deadline) { //nolint:realclock test hang prevention
			t.Fatal("connection never became active")
		}
		time.Sleep(time.Millisecond) //nolint:realclock polling a real socket
	}

	if err := running.stop(t); err != nil {
		t.Fatalf("Serve returned %v, want nil", err)
	}
	testutil.RequireClosed(t, running.listener.Events(), testTimeout, "event channel closed")
	if _, ok := <-running.listener.Events(); ok {
		t.Fatal("event channel still open after shutdown")
	}
	if _, err := os.Lstat(running.listener.SocketPath()); !os.IsNotExist(err) {
		t.Errorf("socket file still present after shutdown: %v", err)
	}
	if running.listener.ActiveConnections() != 0 {
		t.Errorf("ActiveConnections = %d after shutdown", running.listener.ActiveConnections())
	}
}

func TestListenerStopTwice(t *testing.T) {
	t.Parallel()

	running := startListener(t, Config{})
	if err := running.stop(t); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := running.stop(t); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestListenerShutdownUnblocksFullQueue(t *testing.T) {
	t.Parallel()

	running := startListener(t, Config{QueueSize: 1})
	connection := running.dial(t)
	var stream bytes.Buffer
	for range 5 {
		writeEvent(t, &stream, wire.ConnectionEstablished{Peer: did(0x07)})
	}
	if _, err := connection.Write(stream.Bytes()); err != nil {
		t.Fatal(err)
	}
	testutil.RequireReceive(t, running.listener.Events(), testTimeout, "first event")

	// The handler is now blocked on a full queue; cancelling must not
	// hang.
	if err := running.stop(t); err != nil {
		t.Fatalf("Serve returned %v", err)
	}
}

func TestListenerBindFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	listener := New(Config{SocketPath: path, Logger: testutil.Logger()})
	if err := listener.Serve(context.Background()); err == nil {
		t.Fatal("Serve succeeded on a path occupied by a regular file")
	}
	if _, ok := <-listener.Events(); ok {
		t.Fatal("event channel open after bind failure")
	}
}

func TestListenerRecordsMetrics(t *testing.T) {
	t.Parallel()

	registry := metrics.NewRegistry()
	running := startListener(t, Config{Metrics: registry})

	good := running.dial(t)
	writeEvent(t, good, wire.PacketReceived{Sender: did(0x0A)})
	good.Write(wire.AppendFrame(nil, wire.FrameType(0x44), 0, nil))
	writeEvent(t, good, wire.PacketReceived{Sender: did(0x0B)})
	testutil.RequireReceive(t, running.listener.Events(), testTimeout, "first event")
	testutil.RequireReceive(t, running.listener.Events(), testTimeout, "second event")

	bad := running.dial(t)
	bad.Write([]byte{0x12, 0x34, 0, 0, 0, 0, 0, 0})
	bad.SetReadDeadline(time.Now().Add(testTimeout)) //nolint:realclock socket deadline
	bad.Read(make([]byte, 1))

	if got := testutil.CounterValue(t, registry.EventsTotal.WithLabelValues("packet_received")); got != 2 {
		t.Errorf("packet_received events = %v, want 2", got)
	}
	if got := testutil.CounterValue(t, registry.FramesDiscardedTotal.WithLabelValues("unknown_type")); got != 1 {
		t.Errorf("unknown_type discards = %v, want 1", got)
	}
	if got := testutil.CounterValue(t, registry.ProtocolErrorsTotal.WithLabelValues("bad_magic")); got != 1 {
		t.Errorf("bad_magic protocol errors = %v, want 1", got)
	}
	if got := testutil.CounterValue(t, registry.ConnectionsTotal); got != 2 {
		t.Errorf("ConnectionsTotal = %v, want 2", got)
	}
}
