// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/libertaria/membrane/lib/identity"
)

// Event is a decoded L0 transport event. The concrete types are
// PacketReceived, ConnectionEstablished, and ConnectionDropped.
type Event interface {
	// Kind returns a stable lowercase name, used as a metrics label.
	Kind() string
	isEvent()
}

// PacketReceived reports a packet delivered by a peer (frame type 0x01).
type PacketReceived struct {
	Sender      identity.DID
	PacketType  uint8
	PayloadSize uint32
}

// ConnectionEstablished reports a new peer session (frame type 0x02).
type ConnectionEstablished struct {
	Peer identity.DID
}

// ConnectionDropped reports a lost peer session. No frame type carries
// it yet.
type ConnectionDropped struct {
	Peer   identity.DID
	Reason string
}

func (PacketReceived) Kind() string        { return "packet_received" }
func (ConnectionEstablished) Kind() string { return "connection_established" }
func (ConnectionDropped) Kind() string     { return "connection_dropped" }

func (PacketReceived) isEvent()        {}
func (ConnectionEstablished) isEvent() {}
func (ConnectionDropped) isEvent()     {}

func (e PacketReceived) String() string {
	return fmt.Sprintf("PacketReceived{sender=%s type=%d size=%d}", e.Sender.Short(), e.PacketType, e.PayloadSize)
}

func (e ConnectionEstablished) String() string {
	return fmt.Sprintf("ConnectionEstablished{peer=%s}", e.Peer.Short())
}

func (e ConnectionDropped) String() string {
	return fmt.Sprintf("ConnectionDropped{peer=%s reason=%q}", e.Peer.Short(), e.Reason)
}
