// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package alertpub fans alerts out over a nanomsg PUB socket.
//
// Each message is the alert's priority name, a NUL byte, and the
// CBOR-encoded [alert.Alert]. Subscribers filter by priority with a
// prefix subscription on the topic, so "critical\x00" matches only
// critical alerts and the empty prefix matches everything.
//
// [Publisher] implements [alert.Sink] and is attached to the alert
// store by the agent. PUB sockets never block: a slow or absent
// subscriber loses messages rather than stalling emission.
// [Subscriber] is the receiving side used by membranectl watch.
//
// Addresses are mangos URLs: ipc:///run/membrane/alerts.ipc,
// tcp://127.0.0.1:7450, or inproc://name in tests.
package alertpub
