// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux

package tcp

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSockaddrFamily(t *testing.T) {
	tests := []struct {
		address   string
		family    int
		dualStack bool
	}{
		{":5672", unix.AF_INET, false},
		{"0.0.0.0:5672", unix.AF_INET, false},
		{"127.0.0.1:5672", unix.AF_INET, false},
		{"[::]:5672", unix.AF_INET6, true},
		{"[::1]:5672", unix.AF_INET6, false},
	}

	for _, test := range tests {
		addr, err := net.ResolveTCPAddr("tcp", test.address)
		require.NoError(t, err)

		family, _, dualStack := sockaddr(addr)
		assert.Equal(t, test.family, family, test.address)
		assert.Equal(t, test.dualStack, dualStack, test.address)
	}
}

func TestListenDualStack(t *testing.T) {
	ln, err := listen("[::]:0", 16)
	if err != nil {
		t.Skipf("IPv6 is not available: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		if conn, err := ln.Accept(); err == nil {
			accepted <- conn
		}
	}()

	conn, err := net.Dial("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)))
	require.NoError(t, err)
	defer conn.Close()

	select {
	case server := <-accepted:
		_ = server.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("IPv4 connection was not accepted")
	}
}
