// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package listener

import "errors"

// Credentials identifies the process on the other end of a Unix socket
// connection, as reported by the kernel at connect time.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

var errCredentialsUnsupported = errors.New("peer credentials not supported on this platform")
