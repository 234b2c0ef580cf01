// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity defines the peer identifier carried on the L0 wire
// and exchanged with the trust oracle.
package identity

import (
	"encoding/hex"
	"fmt"
)

// Size is the byte length of a DID.
const Size = 32

// DID is an opaque 32-byte peer identity handle. Two DIDs are equal
// only when every byte matches; there is no canonical form beyond the
// raw bytes.
type DID [Size]byte

// FromBytes copies a DID out of b. b must be exactly Size bytes.
func FromBytes(b []byte) (DID, error) {
	var did DID
	if len(b) != Size {
		return did, fmt.Errorf("identity: DID must be %d bytes, got %d", Size, len(b))
	}
	copy(did[:], b)
	return did, nil
}

// Parse decodes the 64-character hex form produced by String.
func Parse(s string) (DID, error) {
	var did DID
	if len(s) != 2*Size {
		return did, fmt.Errorf("identity: DID hex must be %d characters, got %d", 2*Size, len(s))
	}
	if _, err := hex.Decode(did[:], []byte(s)); err != nil {
		return did, fmt.Errorf("identity: invalid DID hex: %w", err)
	}
	return did, nil
}

// String returns the lowercase hex form.
func (d DID) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first eight hex characters, for log lines.
func (d DID) Short() string {
	return hex.EncodeToString(d[:4])
}

// Bytes returns a copy of the raw identifier.
func (d DID) Bytes() []byte {
	return append([]byte(nil), d[:]...)
}

// IsZero reports whether every byte is zero.
func (d DID) IsZero() bool {
	return d == DID{}
}

// MarshalText implements encoding.TextMarshaler.
func (d DID) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
