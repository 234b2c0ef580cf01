// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package alertpub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register transports.
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/libertaria/membrane/lib/alert"
)

// pollInterval bounds how long Receive blocks in the socket before
// rechecking its context.
const pollInterval = 250 * time.Millisecond

// Subscriber receives alerts from a Publisher.
type Subscriber struct {
	socket mangos.Socket
}

// Subscribe dials address and subscribes to the given priorities, or
// to every alert when none are given. The dial completes in the
// background, so alerts published before the connection is up are
// not seen.
func Subscribe(address string, priorities ...alert.Priority) (*Subscriber, error) {
	socket, err := sub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("creating alert SUB socket: %w", err)
	}
	topics := [][]byte{{}}
	if len(priorities) > 0 {
		topics = topics[:0]
		for _, p := range priorities {
			if !p.Valid() {
				socket.Close()
				return nil, fmt.Errorf("subscribing to unknown priority %q", p)
			}
			topics = append(topics, Topic(p))
		}
	}
	for _, topic := range topics {
		if err := socket.SetOption(mangos.OptionSubscribe, topic); err != nil {
			socket.Close()
			return nil, fmt.Errorf("setting subscription %q: %w", topic, err)
		}
	}
	if err := socket.SetOption(mangos.OptionRecvDeadline, pollInterval); err != nil {
		socket.Close()
		return nil, fmt.Errorf("setting receive deadline: %w", err)
	}
	if err := socket.DialOptions(address, map[string]any{mangos.OptionDialAsynch: true}); err != nil {
		socket.Close()
		return nil, fmt.Errorf("dialing alert publisher %s: %w", address, err)
	}
	return &Subscriber{socket: socket}, nil
}

// Receive blocks until a matching alert arrives or ctx is done.
// Malformed messages are returned as ErrMalformed; the subscriber
// remains usable.
func (s *Subscriber) Receive(ctx context.Context) (alert.Alert, error) {
	for {
		if err := ctx.Err(); err != nil {
			return alert.Alert{}, err
		}
		message, err := s.socket.Recv()
		if errors.Is(err, mangos.ErrRecvTimeout) {
			continue
		}
		if err != nil {
			return alert.Alert{}, fmt.Errorf("receiving alert: %w", err)
		}
		return DecodeMessage(message)
	}
}

// Close shuts the socket down. A Receive in progress returns an error.
func (s *Subscriber) Close() error {
	return s.socket.Close()
}
