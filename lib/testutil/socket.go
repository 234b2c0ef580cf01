// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"log/slog"
	"net"
	"os"
	"testing"
	"time"
)

// SocketDir creates a short-named temporary directory directly in /tmp
// for Unix domain sockets. It is removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "membrane-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// WaitForSocket dials path until it accepts a connection or timeout
// elapses. The probe connection is closed immediately.
func WaitForSocket(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout) //nolint:realclock test hang prevention
	for {
		connection, err := net.Dial("unix", path)
		if err == nil {
			connection.Close()
			return
		}
		if time.Now().After(deadline) { //nolint:realclock test hang prevention
			t.Fatalf("socket %s not ready after %v: %v", path, timeout, err)
		}
		time.Sleep(5 * time.Millisecond) //nolint:realclock polling a real socket
	}
}

// Logger returns a logger that only writes errors, to stderr.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
