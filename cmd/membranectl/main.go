// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Membranectl talks to a running membrane-agent over its control
// socket: status, alert queries, ad-hoc decisions, sweeps and
// punishment. It can also inject synthetic L0 frames into the agent's
// event socket and follow the agent's alert publisher.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/libertaria/membrane/lib/process"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRoot(os.Stdout).Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		process.Fatal(err)
	}
}
