// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that timestamp alerts or run periodic sweeps take a Clock
// instead of calling time.Now or time.NewTicker directly. Production
// wiring passes Real(); tests pass Fake() and drive time with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	agent := agent.New(agent.Config{Clock: c, ...})
//	go agent.Run(ctx)
//	c.WaitForTimers(1)          // sweep loop has registered its ticker
//	c.Advance(30 * time.Second) // fire exactly one sweep
package clock
