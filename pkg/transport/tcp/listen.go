// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package tcp

import "net"

// listen on the address. The backlog is left to the operating system's default.
func listen(address string, _ int) (net.Listener, error) {
	return net.Listen("tcp", address)
}
