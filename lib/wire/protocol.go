// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/libertaria/membrane/lib/identity"
)

// Magic opens every frame header.
const Magic uint16 = 0x55AA

// HeaderLength is the fixed header size in bytes.
const HeaderLength = 8

// MaxPayloadLength bounds the allocation made for a single frame. The
// transport layer never sends more than a few dozen bytes per event;
// 16 MB leaves room for future frame types without letting a corrupt
// length field exhaust memory.
const MaxPayloadLength = 16 * 1024 * 1024

// FrameType selects how a payload is interpreted.
type FrameType uint8

const (
	// FramePacketReceived payload: sender[32] | packet_type u8 |
	// payload_size u32 LE.
	FramePacketReceived FrameType = 0x01

	// FrameConnectionEstablished payload: peer[32].
	FrameConnectionEstablished FrameType = 0x02
)

// Minimum payload lengths for the known frame types.
const (
	packetReceivedLength        = identity.Size + 1 + 4
	connectionEstablishedLength = identity.Size
)

var (
	// ErrBadMagic means the header did not start with Magic. Fatal to
	// the connection.
	ErrBadMagic = errors.New("wire: invalid frame magic")

	// ErrTruncated means the stream ended inside a header or payload.
	ErrTruncated = errors.New("wire: truncated frame")

	// ErrPayloadTooLarge means the header declared more than
	// MaxPayloadLength bytes.
	ErrPayloadTooLarge = errors.New("wire: payload too large")

	// ErrShortPayload means a known frame type carried fewer bytes
	// than its layout needs. The frame was consumed; not fatal.
	ErrShortPayload = errors.New("wire: payload shorter than frame layout")

	// ErrUnknownType means the frame type has no decoder. The frame was
	// consumed; not fatal.
	ErrUnknownType = errors.New("wire: unknown frame type")
)

// Header is the fixed 8-byte frame header.
type Header struct {
	Magic  uint16
	Type   FrameType
	Flags  uint8
	Length uint32
}

// Frame is one header plus its payload.
type Frame struct {
	Header  Header
	Payload []byte
}

// ParseHeader decodes a raw header without validating it.
func ParseHeader(raw [HeaderLength]byte) Header {
	return Header{
		Magic:  binary.LittleEndian.Uint16(raw[0:2]),
		Type:   FrameType(raw[2]),
		Flags:  raw[3],
		Length: binary.LittleEndian.Uint32(raw[4:8]),
	}
}

// ReadFrame reads exactly one header and its payload from r.
//
// It returns io.EOF, unwrapped, only when r is exhausted before the
// first header byte: that is a clean end of stream. Every other error
// is fatal for the stream. A declared length above MaxPayloadLength is
// rejected with ErrPayloadTooLarge instead of being read and skipped.
func ReadFrame(r io.Reader) (Frame, error) {
	var raw [HeaderLength]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: header: %w", ErrTruncated, err)
		}
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}

	header := ParseHeader(raw)
	if header.Magic != Magic {
		return Frame{}, fmt.Errorf("%w: got 0x%04x", ErrBadMagic, header.Magic)
	}
	if header.Length > MaxPayloadLength {
		return Frame{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, header.Length, MaxPayloadLength)
	}

	payload := make([]byte, header.Length)
	if header.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, fmt.Errorf("%w: payload of %d bytes: %w", ErrTruncated, header.Length, io.ErrUnexpectedEOF)
			}
			return Frame{}, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return Frame{Header: header, Payload: payload}, nil
}

// DecodeEvent interprets a frame's payload. It returns ErrShortPayload
// or ErrUnknownType (both non-fatal) when the frame yields no event.
// Bytes past the layout's end are ignored.
func DecodeEvent(frame Frame) (Event, error) {
	payload := frame.Payload
	switch frame.Header.Type {
	case FramePacketReceived:
		if len(payload) < packetReceivedLength {
			return nil, fmt.Errorf("%w: type 0x%02x has %d bytes, need %d",
				ErrShortPayload, uint8(frame.Header.Type), len(payload), packetReceivedLength)
		}
		var event PacketReceived
		copy(event.Sender[:], payload[:identity.Size])
		event.PacketType = payload[identity.Size]
		event.PayloadSize = binary.LittleEndian.Uint32(payload[identity.Size+1 : identity.Size+5])
		return event, nil

	case FrameConnectionEstablished:
		if len(payload) < connectionEstablishedLength {
			return nil, fmt.Errorf("%w: type 0x%02x has %d bytes, need %d",
				ErrShortPayload, uint8(frame.Header.Type), len(payload), connectionEstablishedLength)
		}
		var event ConnectionEstablished
		copy(event.Peer[:], payload[:identity.Size])
		return event, nil

	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownType, uint8(frame.Header.Type))
	}
}

// ReadEvent reads one frame and decodes it. A consumed frame that
// yields no event returns (nil, nil); a clean end of stream returns
// (nil, io.EOF); any other error is fatal for the stream.
func ReadEvent(r io.Reader) (Event, error) {
	frame, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	event, err := DecodeEvent(frame)
	if err != nil {
		return nil, nil
	}
	return event, nil
}

// IsDiscard reports whether err marks a frame that was consumed without
// producing an event.
func IsDiscard(err error) bool {
	return errors.Is(err, ErrShortPayload) || errors.Is(err, ErrUnknownType)
}

// Stats counts what a Decoder has consumed.
type Stats struct {
	Frames        uint64
	Events        uint64
	ShortPayloads uint64
	UnknownTypes  uint64
}

// Decoder reads events from a buffered stream, skipping frames that
// yield no event. Not safe for concurrent use; each connection owns
// its own Decoder.
type Decoder struct {
	reader *bufio.Reader
	stats  Stats

	// OnDiscard, if set, is called for each frame consumed without an
	// event, with the reason (ErrShortPayload or ErrUnknownType).
	OnDiscard func(Header, error)
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

// Next returns the next event on the stream, in wire order. It returns
// io.EOF on a clean end of stream and a wrapped ErrBadMagic,
// ErrTruncated, ErrPayloadTooLarge, or I/O error otherwise.
func (d *Decoder) Next() (Event, error) {
	for {
		frame, err := ReadFrame(d.reader)
		if err != nil {
			return nil, err
		}
		d.stats.Frames++

		event, err := DecodeEvent(frame)
		if err == nil {
			d.stats.Events++
			return event, nil
		}
		if errors.Is(err, ErrShortPayload) {
			d.stats.ShortPayloads++
		} else {
			d.stats.UnknownTypes++
		}
		if d.OnDiscard != nil {
			d.OnDiscard(frame.Header, err)
		}
	}
}

// Stats returns the counters accumulated so far.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Discarded returns how many frames were consumed without an event.
func (d *Decoder) Discarded() uint64 {
	return d.stats.ShortPayloads + d.stats.UnknownTypes
}
