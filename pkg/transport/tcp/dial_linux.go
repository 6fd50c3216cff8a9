// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux

package tcp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// dialControl sets TCP_USER_TIMEOUT, see tcp(7). A blocked WriteAsync of a transfer fails after
// unacknowledgedTimeout instead of the kernel's retransmission limit of several minutes.
func dialControl(_, _ string, rawConn syscall.RawConn) error {
	var sockErr error
	err := rawConn.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT,
			int(unacknowledgedTimeout.Milliseconds()))
	})
	if err != nil {
		return err
	}
	return sockErr
}
