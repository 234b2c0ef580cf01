// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package alert classifies anomaly scores into prioritized alerts and
// keeps the most recent ones in a bounded, concurrently accessed store.
//
// Priority is fixed when an alert is emitted and never changes. The
// store holds at most its capacity; once full, each new alert evicts
// exactly the oldest one. Queries return copies in insertion order, so
// callers never share memory with the store.
//
// Every emitted alert gets a sequence number, starting at 1, that
// keeps increasing across evictions and Clear. [Store.Since] uses it
// to let a poller fetch only what it has not yet seen.
package alert
