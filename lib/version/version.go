// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/libertaria/membrane/lib/version.Commit=...".
var (
	Commit    = "unknown"
	Dirty     = "false"
	BuildTime = "unknown"
	Number    = "0.1.0-dev"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `cbor:"version"`
	Commit    string `cbor:"commit"`
	Dirty     bool   `cbor:"dirty"`
	BuildTime string `cbor:"build_time"`
	Go        string `cbor:"go"`
}

// Build returns the injected build information.
func Build() BuildInfo {
	return BuildInfo{
		Version:   Number,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildTime: BuildTime,
		Go:        runtime.Version(),
	}
}

// Info returns "0.1.0-dev (abc1234-dirty, 2026-02-10T...)".
func Info() string {
	build := Build()
	suffix := ""
	if build.Dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", build.Version, build.Commit, suffix, build.BuildTime)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
