// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for membrane packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix domain sockets have a 108-byte path limit
// (sun_path in sockaddr_un), and t.TempDir() paths under a deep
// TMPDIR can exceed it. The directory is removed when the test
// completes.
//
// [RequireReceive], [RequireSend], [RequireClosed], and
// [RequireNoReceive] encapsulate the timeout safety valve pattern
// (select with time.After fallback) so that individual tests do not
// need direct time.After calls.
//
// [WaitForSocket] polls until a server's socket accepts connections.
//
// [CounterValue] and [GaugeValue] read Prometheus collectors.
//
// [Logger] returns a slog.Logger that only emits errors, to keep test
// output readable.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
