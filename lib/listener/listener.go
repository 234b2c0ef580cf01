// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package listener

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/libertaria/membrane/lib/metrics"
	"github.com/libertaria/membrane/lib/netutil"
	"github.com/libertaria/membrane/lib/wire"
)

// DefaultSocketPath is where the transport layer connects unless
// configured otherwise.
const DefaultSocketPath = "/tmp/libertaria_l0.sock"

// DefaultQueueSize bounds the event queue.
const DefaultQueueSize = 1000

// DefaultSocketMode restricts the event socket to the owner and group.
const DefaultSocketMode fs.FileMode = 0o660

// Config configures a Listener. Zero values select the defaults.
type Config struct {
	SocketPath string
	SocketMode fs.FileMode
	QueueSize  int
	Logger     *slog.Logger
	Metrics    *metrics.Registry
}

// Listener owns the event socket and the event queue.
type Listener struct {
	socketPath string
	socketMode fs.FileMode
	logger     *slog.Logger
	metrics    *metrics.Registry

	events chan wire.Event
	ready  chan struct{}

	// handlers tracks connection goroutines; Serve waits for all of
	// them before closing the event channel.
	handlers sync.WaitGroup

	mu          sync.Mutex
	connections map[net.Conn]struct{}
	closing     bool
}

// New creates a Listener. Call Serve to bind and start accepting.
func New(config Config) *Listener {
	if config.SocketPath == "" {
		config.SocketPath = DefaultSocketPath
	}
	if config.SocketMode == 0 {
		config.SocketMode = DefaultSocketMode
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Listener{
		socketPath:  config.SocketPath,
		socketMode:  config.SocketMode,
		logger:      config.Logger,
		metrics:     config.Metrics,
		events:      make(chan wire.Event, config.QueueSize),
		ready:       make(chan struct{}),
		connections: make(map[net.Conn]struct{}),
	}
}

// Events returns the receive side of the event queue. The channel is
// closed when Serve returns.
func (l *Listener) Events() <-chan wire.Event {
	return l.events
}

// Ready is closed once the socket is bound and accepting.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// SocketPath returns the path the listener binds.
func (l *Listener) SocketPath() string {
	return l.socketPath
}

// QueueDepth returns the number of events waiting in the queue.
func (l *Listener) QueueDepth() int {
	return len(l.events)
}

// ActiveConnections returns the number of connections being read.
func (l *Listener) ActiveConnections() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.connections)
}

// Serve binds the socket and accepts connections until ctx is
// cancelled. A bind failure is returned immediately. After an orderly
// shutdown Serve returns nil. Serve must be called at most once.
func (l *Listener) Serve(ctx context.Context) error {
	defer close(l.events)

	if err := netutil.PrepareSocketPath(l.socketPath); err != nil {
		return err
	}

	listener, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.socketPath, err)
	}
	defer func() {
		listener.Close()
		if err := netutil.RemoveSocket(l.socketPath); err != nil {
			l.logger.Warn("socket cleanup failed", "error", err)
		}
	}()

	if err := os.Chmod(l.socketPath, l.socketMode); err != nil {
		return fmt.Errorf("setting mode %o on %s: %w", l.socketMode, l.socketPath, err)
	}

	// Unblock Accept and every blocked Read when the context is
	// cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
		l.closeConnections()
	}()

	l.logger.Info("event listener ready",
		"path", l.socketPath,
		"queue_size", cap(l.events),
	)
	close(l.ready)

	for {
		connection, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			l.logger.Error("accept failed", "error", err)
			continue
		}

		if !l.track(connection) {
			connection.Close()
			break
		}
		l.metrics.ConnectionOpened()
		l.handlers.Add(1)
		go func() {
			defer l.handlers.Done()
			l.handleConnection(ctx, connection)
		}()
	}

	l.closeConnections()
	l.handlers.Wait()
	l.logger.Info("event listener stopped", "path", l.socketPath)
	return nil
}

// track registers an active connection. It returns false once shutdown
// has begun.
func (l *Listener) track(connection net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing {
		return false
	}
	l.connections[connection] = struct{}{}
	return true
}

func (l *Listener) untrack(connection net.Conn) {
	l.mu.Lock()
	delete(l.connections, connection)
	l.mu.Unlock()
}

// closeConnections closes every active connection, unblocking their
// handlers' reads. Idempotent.
func (l *Listener) closeConnections() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closing = true
	for connection := range l.connections {
		connection.Close()
	}
}
