// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/libertaria/membrane/lib/agent"
	"github.com/libertaria/membrane/lib/alert"
	"github.com/libertaria/membrane/lib/clock"
	"github.com/libertaria/membrane/lib/config"
	"github.com/libertaria/membrane/lib/control"
	"github.com/libertaria/membrane/lib/identity"
	"github.com/libertaria/membrane/lib/policy"
	"github.com/libertaria/membrane/lib/testutil"
	"github.com/libertaria/membrane/lib/wire"
)

const testTimeout = 10 * time.Second

func testDID(b byte) identity.DID {
	var id identity.DID
	for i := range id {
		id[i] = b
	}
	return id
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	directory := testutil.SocketDir(t)
	cfg := config.Default()
	cfg.Listener.SocketPath = filepath.Join(directory, "l0.sock")
	cfg.Control.SocketPath = filepath.Join(directory, "control.sock")
	low, high := 0.05, 0.9
	cfg.Oracle.Seed = config.SeedConfig{
		Nodes: []config.SeedNode{
			{DID: testDID(1), Trust: &low},
			{DID: testDID(2), Trust: &high},
		},
		Edges: []config.SeedEdge{
			{From: 1, To: 2, Risk: -0.5},
			{From: 2, To: 1, Risk: -0.5},
		},
	}
	cfg.Agent.WatchNodes = []uint32{1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

// waitForEvents polls the status action until the agent has consumed
// want events.
func waitForEvents(t *testing.T, client *control.Client, want uint64) agent.Status {
	t.Helper()
	deadline := time.Now().Add(testTimeout) //nolint:realclock test hang prevention
	for {
		var status agent.Status
		if err := client.Call(context.Background(), agent.ActionStatus, nil, &status); err != nil {
			t.Fatalf("status: %v", err)
		}
		if status.Events >= want {
			return status
		}
		if time.Now().After(deadline) { //nolint:realclock test hang prevention
			t.Fatalf("agent consumed %d events, want %d", status.Events, want)
		}
		time.Sleep(5 * time.Millisecond) //nolint:realclock polling a real socket
	}
}

func TestServeEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, testutil.Logger(), clock.Fake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)))
	}()
	testutil.WaitForSocket(t, cfg.Listener.SocketPath, testTimeout)
	testutil.WaitForSocket(t, cfg.Control.SocketPath, testTimeout)
	client := control.NewClient(cfg.Control.SocketPath)

	connection, err := net.Dial("unix", cfg.Listener.SocketPath)
	if err != nil {
		t.Fatalf("connecting to L0 socket: %v", err)
	}
	for _, event := range []wire.Event{
		wire.ConnectionEstablished{Peer: testDID(3)},
		wire.PacketReceived{Sender: testDID(1), PacketType: 1, PayloadSize: 64},
		wire.PacketReceived{Sender: testDID(2), PacketType: 1, PayloadSize: 64},
	} {
		if err := wire.WriteEvent(connection, event); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}
	connection.Close()

	status := waitForEvents(t, client, 3)
	if status.Events != 3 {
		t.Errorf("Events = %d", status.Events)
	}

	var decision agent.DecideResponse
	if err := client.Call(ctx, agent.ActionDecide, map[string]any{"did": testDID(1)}, &decision); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Decision != policy.Drop {
		t.Errorf("decision for low-trust sender = %s, want drop", decision.Decision)
	}

	var report agent.SweepReport
	if err := client.Call(ctx, agent.ActionSweep, nil, &report); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(report.Alerts) != 1 || report.Alerts[0].Node != 1 || report.Alerts[0].Priority != alert.Critical {
		t.Errorf("sweep report = %+v, want one critical alert for node 1", report)
	}

	var alerts agent.AlertsResponse
	if err := client.Call(ctx, agent.ActionAlerts, map[string]any{"at_or_above": "critical"}, &alerts); err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(alerts.Alerts) != 1 {
		t.Errorf("critical alerts = %d, want 1", len(alerts.Alerts))
	}

	cancel()
	if err := testutil.RequireReceive(t, done, testTimeout, "serve returned"); err != nil {
		t.Fatalf("serve: %v", err)
	}
	for _, path := range []string{cfg.Listener.SocketPath, cfg.Control.SocketPath} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s not removed on shutdown: %v", path, err)
		}
	}
}

func TestServeFailsWithoutOracle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Oracle.Mode = config.OracleSocket
	cfg.Oracle.SocketPath = filepath.Join(testutil.SocketDir(t), "absent.sock")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	err := serve(ctx, cfg, testutil.Logger(), clock.Real())
	if err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Fatalf("serve = %v, want unreachable oracle error", err)
	}
}

func TestServeFailsWhenSocketCannotBind(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(testutil.SocketDir(t), "regular-file")
	if err := os.WriteFile(blocker, []byte("not a socket"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.Listener.SocketPath = blocker

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := serve(ctx, cfg, testutil.Logger(), clock.Real()); err == nil {
		t.Fatal("serve succeeded with an unbindable listener socket")
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listener.SocketPath != config.Default().Listener.SocketPath {
		t.Errorf("socket_path = %s", cfg.Listener.SocketPath)
	}

	path := filepath.Join(t.TempDir(), "membrane.yaml")
	if err := os.WriteFile(path, []byte("alerts:\n  capacity: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvironmentVariable, path)
	if cfg, err = loadConfig(""); err != nil || cfg.Alerts.Capacity != 5 {
		t.Errorf("loadConfig via environment = %+v, %v", cfg, err)
	}
}

func TestControlErrorsReachClient(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, testutil.Logger(), clock.Real()) }()
	testutil.WaitForSocket(t, cfg.Control.SocketPath, testTimeout)

	err := control.NewClient(cfg.Control.SocketPath).Call(ctx, agent.ActionPunish, map[string]any{"node": uint32(99)}, nil)
	var remote *control.Error
	if !errors.As(err, &remote) || remote.Code != agent.CodeNotGuilty {
		t.Errorf("punish unknown node = %v, want %s", err, agent.CodeNotGuilty)
	}
	cancel()
	testutil.RequireReceive(t, done, testTimeout, "serve returned")
}
