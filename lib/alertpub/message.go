// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package alertpub

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/libertaria/membrane/lib/alert"
	"github.com/libertaria/membrane/lib/codec"
)

// topicSeparator ends the topic prefix of every message.
const topicSeparator = 0x00

// ErrMalformed is returned by DecodeMessage for messages that lack a
// topic or whose topic disagrees with the encoded alert.
var ErrMalformed = errors.New("alertpub: malformed message")

// Topic returns the subscription prefix selecting alerts of priority p.
func Topic(p alert.Priority) []byte {
	return append([]byte(p), topicSeparator)
}

// EncodeMessage builds the wire form of a.
func EncodeMessage(a alert.Alert) ([]byte, error) {
	body, err := codec.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encoding alert %d: %w", a.Sequence, err)
	}
	return append(Topic(a.Priority), body...), nil
}

// DecodeMessage parses a message built by EncodeMessage.
func DecodeMessage(message []byte) (alert.Alert, error) {
	topic, body, found := bytes.Cut(message, []byte{topicSeparator})
	if !found {
		return alert.Alert{}, fmt.Errorf("%w: no topic separator", ErrMalformed)
	}
	var decoded alert.Alert
	if err := codec.Unmarshal(body, &decoded); err != nil {
		return alert.Alert{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if string(topic) != string(decoded.Priority) {
		return alert.Alert{}, fmt.Errorf("%w: topic %q carries a %s alert", ErrMalformed, topic, decoded.Priority)
	}
	return decoded, nil
}
