// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the small socket helpers shared by the event
// listener, the control server, and the alert publisher.
//
// PrepareSocketPath readies a filesystem path for net.Listen("unix"):
// it creates the parent directory and removes a stale socket left by a
// previous process. It refuses to remove anything that is not a socket.
//
// IsExpectedCloseError classifies errors that occur during normal
// connection teardown, so callers log them at debug instead of error.
package netutil
