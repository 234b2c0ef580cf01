// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package control implements the CBOR request-response protocol used
// on membrane's local sockets: the agent's operator control socket and
// the external trust oracle's socket.
//
// Each connection carries exactly one request and one response. The
// request is a CBOR map with an "action" field used for routing plus
// action-specific fields. The response is the [Response] envelope
// {ok, error, code, data}. CBOR is self-delimiting, so no additional
// framing is needed.
//
// Handlers attach a machine-readable code to a failure by returning a
// [CodedError]; [Client.Call] surfaces failures as *[Error] carrying
// the action, code, and message, so callers can map codes back to
// their own sentinel errors.
package control
