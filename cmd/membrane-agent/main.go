// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Membrane-agent is the enforcement edge of a trust-based network
// defense node. It listens on a Unix socket for L0 transport events,
// asks the trust oracle for a forwarding decision on every packet,
// sweeps known peers for betrayal, and keeps a bounded store of
// prioritized alerts.
//
// Configuration comes from --config or MEMBRANE_CONFIG; with neither,
// built-in defaults are used. Startup fails if the configuration is
// invalid, the oracle is unreachable, or a socket cannot be bound.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/libertaria/membrane/lib/agent"
	"github.com/libertaria/membrane/lib/alert"
	"github.com/libertaria/membrane/lib/alertpub"
	"github.com/libertaria/membrane/lib/clock"
	"github.com/libertaria/membrane/lib/config"
	"github.com/libertaria/membrane/lib/control"
	"github.com/libertaria/membrane/lib/listener"
	"github.com/libertaria/membrane/lib/metrics"
	"github.com/libertaria/membrane/lib/oracle"
	"github.com/libertaria/membrane/lib/policy"
	"github.com/libertaria/membrane/lib/process"
	"github.com/libertaria/membrane/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		socketPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the YAML or JSONC config file (default $"+config.EnvironmentVariable+")")
	flag.StringVar(&socketPath, "socket", "", "override listener.socket_path")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("membrane-agent %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Listener.SocketPath = socketPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger, clock.Real())
}

// loadConfig reads path, or MEMBRANE_CONFIG when path is empty, or
// falls back to the defaults when neither is set.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// serve builds every component from cfg and runs them until ctx is
// cancelled or one of them fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, clk clock.Clock) error {
	registry := metrics.NewRegistry()

	engine, err := openOracle(ctx, cfg.Oracle, logger, clk)
	if err != nil {
		return err
	}
	defer engine.Close()

	enforcer, err := policy.New(engine,
		policy.WithThresholds(cfg.Policy.DropThreshold, cfg.Policy.UntrustedThreshold),
		policy.WithLogger(logger),
		policy.WithMetrics(registry),
	)
	if err != nil {
		return err
	}

	storeConfig := alert.StoreConfig{
		Capacity: cfg.Alerts.Capacity,
		Clock:    clk,
		Logger:   logger,
		Metrics:  registry,
	}
	if cfg.Alerts.Publish != "" {
		publisher, err := alertpub.Listen(cfg.Alerts.Publish, logger, registry)
		if err != nil {
			return err
		}
		defer publisher.Close()
		storeConfig.Sink = publisher
	}
	store := alert.NewStore(storeConfig)

	socketMode, err := cfg.Listener.Mode()
	if err != nil {
		return err
	}
	events := listener.New(listener.Config{
		SocketPath: cfg.Listener.SocketPath,
		SocketMode: socketMode,
		QueueSize:  cfg.Listener.QueueSize,
		Logger:     logger,
		Metrics:    registry,
	})

	orchestrator, err := agent.New(agent.Config{
		Source:          events,
		Enforcer:        enforcer,
		Store:           store,
		Oracle:          engine,
		Clock:           clk,
		Logger:          logger,
		Metrics:         registry,
		SweepInterval:   cfg.Agent.SweepInterval,
		SweepFloor:      cfg.Agent.SweepFloor,
		DecisionWorkers: cfg.Agent.DecisionWorkers,
		OracleTimeout:   cfg.Agent.OracleTimeout,
		WatchNodes:      cfg.Agent.WatchNodes,
	})
	if err != nil {
		return err
	}

	group, groupContext := errgroup.WithContext(ctx)
	group.Go(func() error { return events.Serve(groupContext) })
	group.Go(func() error { return orchestrator.Run(groupContext) })
	if cfg.Control.SocketPath != "" {
		server := control.NewServer(cfg.Control.SocketPath, logger)
		orchestrator.Register(server)
		group.Go(func() error { return server.Serve(groupContext) })
	}
	if cfg.Metrics.Address != "" {
		group.Go(func() error { return registry.Serve(groupContext, cfg.Metrics.Address, logger) })
	}

	logger.Info("membrane agent starting",
		"version", version.Info(),
		"socket", cfg.Listener.SocketPath,
		"control", cfg.Control.SocketPath,
		"oracle", cfg.Oracle.Mode,
	)
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("membrane agent stopped")
	return nil
}

// openOracle acquires the trust engine handle: a seeded in-process
// engine or a client for an external one.
func openOracle(ctx context.Context, cfg config.OracleConfig, logger *slog.Logger, clk clock.Clock) (oracle.Oracle, error) {
	switch cfg.Mode {
	case config.OracleSocket:
		client, err := oracle.Dial(ctx, cfg.SocketPath)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to trust engine", "socket", cfg.SocketPath)
		return client, nil
	case config.OracleMemory:
		engine := oracle.NewMemory(oracle.MemoryConfig{Root: cfg.Root, Clock: clk, Logger: logger})
		if err := cfg.Seed.Apply(ctx, engine, clk.Now()); err != nil {
			engine.Close()
			return nil, err
		}
		logger.Info("using in-process trust engine",
			"seed_nodes", len(cfg.Seed.Nodes),
			"seed_edges", len(cfg.Seed.Edges),
		)
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown oracle mode %q", cfg.Mode)
	}
}
