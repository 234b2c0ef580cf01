// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package listener

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerCredentials reads SO_PEERCRED from a Unix socket connection.
func peerCredentials(connection net.Conn) (Credentials, error) {
	unixConnection, ok := connection.(*net.UnixConn)
	if !ok {
		return Credentials{}, errCredentialsUnsupported
	}
	raw, err := unixConnection.SyscallConn()
	if err != nil {
		return Credentials{}, fmt.Errorf("raw connection: %w", err)
	}

	var credentials *unix.Ucred
	var sockoptErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Credentials{}, fmt.Errorf("raw control: %w", err)
	}
	if sockoptErr != nil {
		return Credentials{}, fmt.Errorf("getsockopt SO_PEERCRED: %w", sockoptErr)
	}
	return Credentials{
		PID: credentials.Pid,
		UID: credentials.Uid,
		GID: credentials.Gid,
	}, nil
}
