// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux

package tcp

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// The net package always uses the system's somaxconn as the backlog. To honor the configured backlog, the socket is
// created, bound and put into the listening state here and handed to the net package afterwards.

// sockaddr for a TCP address. A missing host or an IPv4 address results in an IPv4 socket. IPv6 addresses result in
// an IPv6 socket, which also accepts IPv4 connections for the unspecified address "::".
func sockaddr(addr *net.TCPAddr) (family int, sa unix.Sockaddr, dualStack bool) {
	if addr.IP == nil || addr.IP.To4() != nil {
		sa4 := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 := addr.IP.To4(); ip4 != nil {
			copy(sa4.Addr[:], ip4)
		}
		return unix.AF_INET, sa4, false
	}

	sa6 := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa6.Addr[:], addr.IP.To16())
	return unix.AF_INET6, sa6, addr.IP.IsUnspecified()
}

// listen on the address with the given backlog.
func listen(address string, backlog int) (net.Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}

	family, sa, dualStack := sockaddr(tcpAddr)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("creating socket failed: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("setting SO_REUSEADDR failed: %w", err)
	}

	if dualStack {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("setting IPV6_V6ONLY failed: %w", err)
		}
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("binding %s failed: %w", address, err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listening with backlog %d failed: %w", backlog, err)
	}

	// net.FileListener duplicates the descriptor, so the file can be closed afterwards.
	f := os.NewFile(uintptr(fd), "tcp:"+address)
	defer f.Close()

	return net.FileListener(f)
}
