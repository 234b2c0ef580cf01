// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy turns oracle scores into enforcement actions.
//
// [Enforcer.ShouldAcceptPacket] maps a sender's trust score onto a
// forwarding [Decision] with two thresholds:
//
//	score <  drop       Drop
//	score <  untrusted  Deprioritize
//	otherwise           Accept
//
// Any oracle failure yields Neutral: the caller applies its default
// handling rather than guessing.
//
// [Enforcer.CheckBetrayal] reports a finding when the oracle's anomaly
// score for a node is strictly above [BetrayalFloor].
// [Enforcer.PunishIfGuilty] turns a finding into a slash signal.
//
// An Enforcer holds only its thresholds and the oracle handle; it is
// safe for concurrent use if the oracle is.
package policy
