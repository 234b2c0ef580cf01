// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestReport(t *testing.T) {
	t.Parallel()
	var output bytes.Buffer
	if code := report(&output, "membrane-agent", errors.New("binding listener: address in use")); code != 1 {
		t.Errorf("code = %d, want 1", code)
	}
	if got := output.String(); got != "membrane-agent: error: binding listener: address in use\n" {
		t.Errorf("output = %q", got)
	}

	output.Reset()
	if code := report(&output, "membrane-agent", fmt.Errorf("serving: %w", context.Canceled)); code != 0 || output.Len() != 0 {
		t.Errorf("cancellation: code = %d, output = %q", code, output.String())
	}
}
