// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Membrane-oracle serves an in-process trust engine on a Unix socket so
// that membrane agents configured with oracle.mode "socket" can share
// one trust graph. The graph is seeded from the oracle.seed section of
// the configuration file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/libertaria/membrane/lib/clock"
	"github.com/libertaria/membrane/lib/config"
	"github.com/libertaria/membrane/lib/control"
	"github.com/libertaria/membrane/lib/oracle"
	"github.com/libertaria/membrane/lib/process"
	"github.com/libertaria/membrane/lib/version"
)

// DefaultSocketPath is used when neither --socket nor
// oracle.socket_path names one.
const DefaultSocketPath = "/tmp/membrane_oracle.sock"

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
	flag.StringVar(&socketPath, "socket", "", "socket to serve on (default oracle.socket_path, then "+DefaultSocketPath+")")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("membrane-oracle %s\n", version.Full())
		return nil
	}

	cfg := config.Default()
	if configPath != "" || os.Getenv(config.EnvironmentVariable) != "" {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if socketPath == "" {
		socketPath = cfg.Oracle.SocketPath
	}
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, socketPath, cfg.Oracle, logger, clock.Real())
}

// serve seeds a fresh engine and answers oracle requests on socketPath
// until ctx is cancelled.
func serve(ctx context.Context, socketPath string, cfg config.OracleConfig, logger *slog.Logger, clk clock.Clock) error {
	engine := oracle.NewMemory(oracle.MemoryConfig{Root: cfg.Root, Clock: clk, Logger: logger})
	defer engine.Close()
	if err := cfg.Seed.Apply(ctx, engine, clk.Now()); err != nil {
		return err
	}

	server := control.NewServer(socketPath, logger)
	oracle.Register(server, engine)

	logger.Info("trust engine serving",
		"version", version.Info(),
		"socket", socketPath,
		"seed_nodes", len(cfg.Seed.Nodes),
		"seed_edges", len(cfg.Seed.Edges),
	)
	if err := server.Serve(ctx); err != nil {
		return err
	}
	logger.Info("trust engine stopped")
	return nil
}
