// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/libertaria/membrane/lib/identity"
)

// SlashSignalSize is the fixed size of a slash signal.
const SlashSignalSize = 82

// SlashSignal is the engine's fixed-size punishment record:
//
//	[0:32]   target DID
//	[32]     reason
//	[33:65]  evidence hash
//	[65:73]  issued at, unix nanoseconds, little-endian
//	[73]     severity, 0..3
//	[74:82]  reserved, zero
//
// Engines other than Memory may leave bytes 65..82 zero.
type SlashSignal [SlashSignalSize]byte

// NewSlashSignal lays out a slash signal.
func NewSlashSignal(target identity.DID, reason uint8, evidenceHash [32]byte, issuedAt time.Time, severity uint8) SlashSignal {
	var signal SlashSignal
	copy(signal[0:32], target[:])
	signal[32] = reason
	copy(signal[33:65], evidenceHash[:])
	binary.LittleEndian.PutUint64(signal[65:73], uint64(issuedAt.UnixNano()))
	signal[73] = severity
	return signal
}

// SlashSignalFromBytes copies an encoded signal, checking its length.
func SlashSignalFromBytes(b []byte) (SlashSignal, error) {
	var signal SlashSignal
	if len(b) != SlashSignalSize {
		return signal, fmt.Errorf("slash signal is %d bytes, want %d", len(b), SlashSignalSize)
	}
	copy(signal[:], b)
	return signal, nil
}

func (s SlashSignal) Target() identity.DID {
	var target identity.DID
	copy(target[:], s[0:32])
	return target
}

func (s SlashSignal) Reason() uint8 {
	return s[32]
}

func (s SlashSignal) EvidenceHash() [32]byte {
	var hash [32]byte
	copy(hash[:], s[33:65])
	return hash
}

// IssuedAt returns the issue time, or the zero time if the engine did
// not record one.
func (s SlashSignal) IssuedAt() time.Time {
	nanos := binary.LittleEndian.Uint64(s[65:73])
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(nanos)).UTC()
}

func (s SlashSignal) Severity() uint8 {
	return s[73]
}

// String returns the signal as hex.
func (s SlashSignal) String() string {
	return hex.EncodeToString(s[:])
}

// severityFor buckets an anomaly score into the 0..3 severity scale.
func severityFor(score float64) uint8 {
	switch {
	case score >= 0.9:
		return 3
	case score >= 0.7:
		return 2
	case score >= 0.5:
		return 1
	default:
		return 0
	}
}
