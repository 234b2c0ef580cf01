// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package alertpub

import (
	"fmt"
	"log/slog"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	// Register transports.
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/libertaria/membrane/lib/alert"
	"github.com/libertaria/membrane/lib/metrics"
)

// Publisher broadcasts alerts on a bound PUB socket. It is safe for
// concurrent use.
type Publisher struct {
	socket  mangos.Socket
	address string
	logger  *slog.Logger
	metrics *metrics.Registry
}

var _ alert.Sink = (*Publisher)(nil)

// Listen creates a PUB socket bound to address. registry may be nil.
func Listen(address string, logger *slog.Logger, registry *metrics.Registry) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	socket, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("creating alert PUB socket: %w", err)
	}
	if err := socket.Listen(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("binding alert publisher to %s: %w", address, err)
	}
	logger.Info("alert publisher listening", "address", address)
	return &Publisher{
		socket:  socket,
		address: address,
		logger:  logger,
		metrics: registry,
	}, nil
}

// Address returns the URL the publisher is bound to.
func (p *Publisher) Address() string {
	return p.address
}

// Publish sends a to every subscriber whose filter matches. Failures
// are logged and counted; they never reach the alert store.
func (p *Publisher) Publish(a alert.Alert) {
	message, err := EncodeMessage(a)
	if err == nil {
		err = p.socket.Send(message)
	}
	p.metrics.RecordPublish(err)
	if err != nil {
		p.logger.Warn("publishing alert failed", "sequence", a.Sequence, "error", err)
	}
}

// Close shuts the socket down. Publish after Close fails and is logged.
func (p *Publisher) Close() error {
	return p.socket.Close()
}
