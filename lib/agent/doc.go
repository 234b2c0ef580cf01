// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent ties the membrane together: it consumes the listener's
// event queue, asks the policy enforcer for a forwarding decision on
// every packet, registers connecting peers with the trust oracle, and
// sweeps watched nodes for betrayal on a timer, turning anomalies into
// alerts.
//
// Oracle calls run on a fixed pool of decision workers, never on the
// queue consumer, the accept loop, or a connection handler, so a slow
// engine delays verdicts without stalling ingestion beyond the queue's
// backpressure. Each call is bounded by [Config.OracleTimeout].
//
// [Agent.Register] exposes the agent on a control socket for
// membranectl: status, alerts, decide, sweep, punish, and clear-alerts.
package agent
