// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Fatal reports err on stderr and exits 1. A context.Canceled error,
// which run() returns after an interrupt, exits 0 instead.
func Fatal(err error) {
	os.Exit(report(os.Stderr, filepath.Base(os.Args[0]), err))
}

// report writes err for program to w and returns the exit code.
func report(w io.Writer, program string, err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	fmt.Fprintf(w, "%s: error: %v\n", program, err)
	return 1
}
