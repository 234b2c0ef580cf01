// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package listener

import "net"

func peerCredentials(net.Conn) (Credentials, error) {
	return Credentials{}, errCredentialsUnsupported
}
