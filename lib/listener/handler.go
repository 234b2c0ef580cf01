// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package listener

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/libertaria/membrane/lib/netutil"
	"github.com/libertaria/membrane/lib/wire"
)

// handleConnection decodes one connection's stream until it ends, fails,
// or the listener shuts down. It owns the connection and closes it on
// every exit path.
func (l *Listener) handleConnection(ctx context.Context, connection net.Conn) {
	defer func() {
		connection.Close()
		l.untrack(connection)
		l.metrics.ConnectionClosed()
	}()

	logger := l.logger
	if credentials, err := peerCredentials(connection); err == nil {
		logger = logger.With(
			"peer_pid", credentials.PID,
			"peer_uid", credentials.UID,
			"peer_gid", credentials.GID,
		)
	} else if !errors.Is(err, errCredentialsUnsupported) {
		l.metrics.RecordPeerCredentialFailure()
		logger.Debug("reading peer credentials", "error", err)
	}
	logger.Info("transport connected")

	decoder := wire.NewDecoder(connection)
	decoder.OnDiscard = func(header wire.Header, reason error) {
		l.metrics.RecordDiscard(discardReason(reason))
		logger.Debug("frame discarded",
			"type", uint8(header.Type),
			"length", header.Length,
			"reason", reason,
		)
	}

	for {
		event, err := decoder.Next()
		if err != nil {
			l.finishStream(ctx, logger, decoder, err)
			return
		}
		l.metrics.RecordEvent(event.Kind())

		select {
		case l.events <- event:
			l.metrics.SetQueueDepth(len(l.events))
		case <-ctx.Done():
			// Consumer gone: stop without reporting an error.
			return
		}
	}
}

// finishStream logs why a connection's stream ended. Clean ends and
// closes caused by shutdown are routine; protocol violations and I/O
// failures are warnings that affect only this connection.
func (l *Listener) finishStream(ctx context.Context, logger *slog.Logger, decoder *wire.Decoder, err error) {
	stats := decoder.Stats()
	switch {
	case err == io.EOF:
		logger.Info("transport disconnected",
			"frames", stats.Frames,
			"events", stats.Events,
			"discarded", decoder.Discarded(),
		)
	case ctx.Err() != nil:
		logger.Debug("connection closed for shutdown", "frames", stats.Frames)
	case netutil.IsExpectedCloseError(err):
		logger.Debug("transport connection closed", "error", err, "frames", stats.Frames)
	default:
		kind := protocolErrorKind(err)
		l.metrics.RecordProtocolError(kind)
		logger.Warn("closing transport connection after stream error",
			"kind", kind,
			"error", err,
			"frames", stats.Frames,
		)
	}
}

func protocolErrorKind(err error) string {
	switch {
	case errors.Is(err, wire.ErrBadMagic):
		return "bad_magic"
	case errors.Is(err, wire.ErrTruncated):
		return "truncated"
	case errors.Is(err, wire.ErrPayloadTooLarge):
		return "payload_too_large"
	default:
		return "io"
	}
}

func discardReason(err error) string {
	if errors.Is(err, wire.ErrShortPayload) {
		return "short_payload"
	}
	return "unknown_type"
}
