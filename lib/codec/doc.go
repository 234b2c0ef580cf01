// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by the control
// socket, the oracle socket client, and the alert fan-out stream.
//
// The L0 event protocol is a fixed little-endian binary layout and is
// handled by lib/wire; everything the agent exchanges with its own
// tooling and with the trust engine is CBOR encoded here so that every
// package produces identical bytes for the same value.
package codec
