// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/libertaria/membrane/lib/codec"
	"github.com/libertaria/membrane/lib/netutil"
)

// ActionFunc processes a request for a specific action. The raw
// parameter is the full CBOR request (including the "action" field);
// the handler decodes its own fields from it.
//
// A non-nil result is marshaled into the response's data field.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire envelope for every response.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Code  string           `cbor:"code,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// CodedError attaches a machine-readable code to a handler error. The
// server copies Code into the response envelope.
type CodedError struct {
	Code string
	Err  error
}

func (e *CodedError) Error() string { return e.Err.Error() }
func (e *CodedError) Unwrap() error { return e.Err }

// WithCode wraps err in a CodedError. A nil err stays nil.
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Err: err}
}

// Server serves the request-response protocol on a Unix socket.
// Register actions with Handle before calling Serve; unknown actions
// receive an error response.
type Server struct {
	socketPath string
	socketMode fs.FileMode
	handlers   map[string]ActionFunc
	logger     *slog.Logger
	ready      chan struct{}

	// activeConnections tracks in-flight request handlers. Serve waits
	// for all of them before returning.
	activeConnections sync.WaitGroup
}

// NewServer creates a server that will listen on socketPath with mode
// 0600.
func NewServer(socketPath string, logger *slog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		socketMode: 0o600,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// SetSocketMode changes the mode applied to the socket file after bind.
func (s *Server) SetSocketMode(mode fs.FileMode) {
	s.socketMode = mode
}

// SocketPath returns the path the server binds.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Ready is closed once the socket is bound and accepting.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Handle registers a handler for the given action name. Panics if the
// action is already registered.
func (s *Server) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("control.Server: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Actions returns the registered action names.
func (s *Server) Actions() []string {
	actions := make([]string, 0, len(s.handlers))
	for action := range s.handlers {
		actions = append(actions, action)
	}
	return actions
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting and waits for in-flight requests to complete. A stale
// socket at the configured path is removed before listening; the
// socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := netutil.PrepareSocketPath(s.socketPath); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	if err := os.Chmod(s.socketPath, s.socketMode); err != nil {
		return fmt.Errorf("setting mode %o on %s: %w", s.socketMode, s.socketPath, err)
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("control socket listening", "path", s.socketPath)
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout is how long we wait for the client to send its request.
const readTimeout = 30 * time.Second

// writeTimeout is how long we wait for the response to be written.
const writeTimeout = 10 * time.Second

// maxRequestSize bounds a single CBOR request. Requests carry a few
// identifiers and a risk edge at most.
const maxRequestSize = 1024 * 1024

// handleConnection processes one request-response cycle.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing (readiness probe).
			return
		}
		s.writeError(conn, "", fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, "", fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "", "missing required field: action")
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, "", fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed",
			"action", header.Action,
			"error", err,
		)
		var coded *CodedError
		code := ""
		if errors.As(err, &coded) {
			code = coded.Code
		}
		s.writeError(conn, code, err.Error())
		return
	}

	s.writeSuccess(conn, result)
}

// writeError sends {ok: false, error, code}. Write failures are logged
// at debug level; the connection is closing regardless.
func (s *Server) writeError(conn net.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{
		OK:    false,
		Error: message,
		Code:  code,
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

// writeSuccess sends {ok: true} with the marshaled result, if any, in
// the data field.
func (s *Server) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, "internal", fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
