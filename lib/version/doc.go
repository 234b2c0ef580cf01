// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for membrane binaries.
//
// [Commit], [Dirty], and [BuildTime] are injected with -ldflags -X;
// [Number] is set by hand for releases. Development builds and test
// runs see the defaults "unknown" and "0.1.0-dev".
//
// [Info] is the one-line --version output and [Full] adds the Go
// toolchain and platform. [Build] returns the same data as a struct for
// the agent's status action.
package version
