// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package oracle defines the agent's boundary to the trust and
// reputation engine, and two implementations of it.
//
// The engine owns the risk graph: it scores identities, detects
// betrayal (negative-weight cycles in the risk graph), mutates trust
// edges, and issues slash signals. The agent only consumes it through
// the [Oracle] interface.
//
// [Memory] is an in-process engine used for standalone operation and
// tests. [SocketClient] talks to an external engine over the control
// protocol; [Register] exposes any Oracle on a control server, which
// is how the membrane-oracle binary serves a Memory engine.
//
// Every Oracle implementation must be safe for concurrent use: the
// agent calls it from several decision workers and the sweep at once.
// Once Close returns, every method fails with [ErrClosed].
package oracle
