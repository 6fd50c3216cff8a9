// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux

package tcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestDialSocketOptions(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	rawConn, err := conn.(*net.TCPConn).SyscallConn()
	require.NoError(t, err)

	var userTimeout, keepAlive, keepIdle int
	var sockErr error
	require.NoError(t, rawConn.Control(func(fd uintptr) {
		if userTimeout, sockErr = unix.GetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT); sockErr != nil {
			return
		}
		if keepAlive, sockErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE); sockErr != nil {
			return
		}
		keepIdle, sockErr = unix.GetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE)
	}))
	require.NoError(t, sockErr)

	assert.Equal(t, int(unacknowledgedTimeout.Milliseconds()), userTimeout)
	assert.Equal(t, 1, keepAlive)
	assert.Equal(t, int(initiatorKeepAlive.Idle.Seconds()), keepIdle)
}
