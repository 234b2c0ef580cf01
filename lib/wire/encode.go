// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/libertaria/membrane/lib/identity"
)

// AppendFrame appends a complete frame (header and payload) to dst.
func AppendFrame(dst []byte, frameType FrameType, flags uint8, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, Magic)
	dst = append(dst, byte(frameType), flags)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// WriteFrame writes one frame to w.
func WriteFrame(w io.Writer, frameType FrameType, payload []byte) error {
	if len(payload) > MaxPayloadLength {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if _, err := w.Write(AppendFrame(nil, frameType, 0, payload)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// EncodePacketReceived returns the payload for a PacketReceived frame.
func EncodePacketReceived(event PacketReceived) []byte {
	payload := make([]byte, 0, packetReceivedLength)
	payload = append(payload, event.Sender[:]...)
	payload = append(payload, event.PacketType)
	return binary.LittleEndian.AppendUint32(payload, event.PayloadSize)
}

// EncodeConnectionEstablished returns the payload for a
// ConnectionEstablished frame.
func EncodeConnectionEstablished(event ConnectionEstablished) []byte {
	payload := make([]byte, identity.Size)
	copy(payload, event.Peer[:])
	return payload
}

// WriteEvent encodes and writes an event that has a frame type.
func WriteEvent(w io.Writer, event Event) error {
	switch e := event.(type) {
	case PacketReceived:
		return WriteFrame(w, FramePacketReceived, EncodePacketReceived(e))
	case ConnectionEstablished:
		return WriteFrame(w, FrameConnectionEstablished, EncodeConnectionEstablished(e))
	default:
		return fmt.Errorf("wire: %s has no frame type", event.Kind())
	}
}
