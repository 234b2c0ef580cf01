// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/libertaria/membrane/lib/codec"
	"github.com/libertaria/membrane/lib/testutil"
)

// startServer serves s in the background until the test ends.
func startServer(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx)
	}()
	testutil.RequireClosed(t, s.Ready(), 5*time.Second, "control server ready")
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "Serve returned"); err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	})
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(filepath.Join(testutil.SocketDir(t), "control.sock"), testutil.Logger())
}

// sendRaw writes an arbitrary CBOR value and decodes the envelope.
func sendRaw(t *testing.T, socketPath string, request any) Response {
	t.Helper()
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to socket: %v", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	conn.(*net.UnixConn).CloseWrite()

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

func TestCallReturnsData(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Verbose bool `cbor:"verbose"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]any{"events": 42, "verbose": request.Verbose}, nil
	})
	startServer(t, server)

	var result struct {
		Events  int  `cbor:"events"`
		Verbose bool `cbor:"verbose"`
	}
	client := NewClient(server.SocketPath())
	if err := client.Call(context.Background(), "status", map[string]any{"verbose": true}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Events != 42 || !result.Verbose {
		t.Errorf("result = %+v, want events=42 verbose=true", result)
	}
}

func TestCallNilResult(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	server.Handle("clear", func(context.Context, []byte) (any, error) { return nil, nil })
	startServer(t, server)

	if err := NewClient(server.SocketPath()).Call(context.Background(), "clear", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
}

func TestCallHandlerErrorCarriesCode(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	server.Handle("lookup", func(context.Context, []byte) (any, error) {
		return nil, WithCode("not_found", errors.New("node 9 is not registered"))
	})
	startServer(t, server)

	err := NewClient(server.SocketPath()).Call(context.Background(), "lookup", nil, nil)
	var controlErr *Error
	if !errors.As(err, &controlErr) {
		t.Fatalf("err = %v (%T), want *Error", err, err)
	}
	if controlErr.Action != "lookup" || controlErr.Code != "not_found" || controlErr.Message != "node 9 is not registered" {
		t.Errorf("Error = %+v", controlErr)
	}
}

func TestServerUnknownAndMissingAction(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	startServer(t, server)

	response := sendRaw(t, server.SocketPath(), map[string]string{"action": "nope"})
	if response.OK || response.Error != `unknown action "nope"` {
		t.Errorf("unknown action response = %+v", response)
	}

	response = sendRaw(t, server.SocketPath(), map[string]string{"other": "x"})
	if response.OK || response.Error != "missing required field: action" {
		t.Errorf("missing action response = %+v", response)
	}

	response = sendRaw(t, server.SocketPath(), "not a map")
	if response.OK {
		t.Errorf("non-map request accepted: %+v", response)
	}
}

func TestServerIgnoresEmptyConnection(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	server.Handle("ping", func(context.Context, []byte) (any, error) { return "pong", nil })
	startServer(t, server)

	testutil.WaitForSocket(t, server.SocketPath(), 5*time.Second)

	var result string
	if err := NewClient(server.SocketPath()).Call(context.Background(), "ping", nil, &result); err != nil || result != "pong" {
		t.Fatalf("Call after probe = %q, %v", result, err)
	}
}

func TestServerConcurrentRequests(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			N int `cbor:"n"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return request.N, nil
	})
	startServer(t, server)

	client := NewClient(server.SocketPath())
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got int
			if err := client.Call(context.Background(), "echo", map[string]any{"n": i}, &got); err != nil {
				errs <- err
				return
			}
			if got != i {
				errs <- errors.New("echo mismatch")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "control.sock")
	server := NewServer(socketPath, testutil.Logger())

	handlerStarted := make(chan struct{})
	handlerRelease := make(chan struct{})
	server.Handle("slow", func(context.Context, []byte) (any, error) {
		close(handlerStarted)
		<-handlerRelease
		return map[string]any{"completed": true}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server ready")

	responses := make(chan Response, 1)
	go func() {
		responses <- sendRaw(t, socketPath, map[string]string{"action": "slow"})
	}()

	testutil.RequireClosed(t, handlerStarted, 5*time.Second, "handler started")
	close(handlerRelease)
	cancel()

	response := testutil.RequireReceive(t, responses, 5*time.Second, "in-flight response")
	if !response.OK {
		t.Errorf("in-flight request failed: %+v", response)
	}
	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve returned"); err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file not cleaned up after Serve returned")
	}
}

func TestServerDuplicateHandlerPanics(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	server.Handle("status", func(context.Context, []byte) (any, error) { return nil, nil })

	defer func() {
		if recover() == nil {
			t.Error("duplicate Handle did not panic")
		}
	}()
	server.Handle("status", func(context.Context, []byte) (any, error) { return nil, nil })
}

func TestCallUnreachableSocket(t *testing.T) {
	t.Parallel()

	client := NewClient(filepath.Join(testutil.SocketDir(t), "missing.sock"))
	err := client.Call(context.Background(), "status", nil, nil)
	if err == nil {
		t.Fatal("Call on missing socket succeeded")
	}
	var controlErr *Error
	if errors.As(err, &controlErr) {
		t.Fatalf("connection failure reported as server error: %v", err)
	}
}

func TestCallHonoursContextCancellation(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	release := make(chan struct{})
	server.Handle("hang", func(context.Context, []byte) (any, error) {
		<-release
		return nil, nil
	})
	startServer(t, server)
	// Registered after startServer so it runs first: Serve waits for
	// the hung handler.
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := NewClient(server.SocketPath()).Call(ctx, "hang", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}
