// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the L0 transport event protocol: the framed
// binary stream the transport layer writes to the agent's Unix socket.
//
// Every frame is an 8-byte little-endian header followed by a payload:
//
//	magic  u16  always 0x55AA
//	type   u8   payload interpretation (see FrameType constants)
//	flags  u8   reserved, ignored
//	length u32  payload byte count, zero allowed
//
// Decoding separates two failure classes. A bad magic or a stream that
// ends inside a frame is fatal to the connection: there is no resync
// marker, so the reader cannot find the next frame boundary. A frame of
// a known type whose payload is too short, or a frame of an unknown
// type, is consumed whole and produces no event; decoding continues
// with the next frame. ConnectionDropped has no frame type in this
// protocol version and is never produced by the decoder.
package wire
