// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package listener accepts transport connections on the agent's event
// socket and turns each connection's byte stream into wire events on a
// single bounded queue.
//
// One goroutine accepts; each accepted connection gets its own handler
// goroutine that decodes frames in order and pushes events onto the
// queue. The queue preserves per-connection wire order; events from
// different connections interleave arbitrarily. A full queue blocks the
// producing handler until the consumer catches up: events are never
// dropped for lack of space.
//
// A stream error (bad magic, truncation, I/O failure) closes only the
// offending connection. The listener and every other connection keep
// running.
//
// Shutdown is driven by the context passed to Serve. Cancelling it
// closes the listening socket and every active connection, waits for
// the handlers to exit, closes the event channel, and removes the
// socket file. A consumer ranging over Events therefore terminates
// after the last event has been delivered.
package listener
