// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SocketDirectoryMode is the mode used when creating a socket's parent
// directory.
const SocketDirectoryMode fs.FileMode = 0o755

// PrepareSocketPath creates the parent directory of path and removes a
// stale socket file at path. A missing path is not an error. A path
// that exists but is not a socket is left alone and reported, so a
// misconfigured socket path cannot delete an unrelated file.
func PrepareSocketPath(path string) error {
	if path == "" {
		return errors.New("socket path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), SocketDirectoryMode); err != nil {
		return fmt.Errorf("creating socket directory for %s: %w", path, err)
	}

	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking socket path %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("refusing to remove %s: not a socket (mode %s)", path, info.Mode())
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	return nil
}

// RemoveSocket removes the socket file at path, ignoring a missing
// file.
func RemoveSocket(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing socket %s: %w", path, err)
	}
	return nil
}
