// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by membrane
// binaries. Each main calls run() and hands any error to [Fatal], so
// startup failures (bad config, unreachable oracle, bind errors) exit
// non-zero with one line on stderr whether or not a logger exists yet.
package process
