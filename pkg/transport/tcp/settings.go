// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tcp provides the TCP base transport: an Initiator dialing a TCP endpoint and a Listener accepting TCP
// connections. Both wrap the established sockets into transport.StreamTransports.
package tcp

import (
	"fmt"
	"net"
	"strconv"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

const (
	// DefaultPort is the IANA assigned AMQP port.
	DefaultPort = 5672

	// DefaultBacklog is used for a non-positive Settings.Backlog.
	DefaultBacklog = 200

	// DefaultAcceptorCount is used for a non-positive Settings.AcceptorCount.
	DefaultAcceptorCount = 1
)

// Settings of a TCP endpoint.
type Settings struct {
	Host string
	Port int

	// Backlog of the listening socket.
	Backlog int

	// AcceptorCount is the number of parallel accept loops of a Listener.
	AcceptorCount int
}

// ParseSettings from a "host:port" endpoint. A missing port results in DefaultPort.
func ParseSettings(endpoint string) (Settings, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// An endpoint without a port, e.g., "localhost".
		return Settings{Host: endpoint, Port: DefaultPort}, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 0xFFFF {
		return Settings{}, fmt.Errorf("invalid port %q of endpoint %q", portStr, endpoint)
	}

	return Settings{Host: host, Port: port}, nil
}

// Address as "host:port".
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s Settings) backlog() int {
	if s.Backlog <= 0 {
		return DefaultBacklog
	}
	return s.Backlog
}

func (s Settings) acceptorCount() int {
	if s.AcceptorCount <= 0 {
		return DefaultAcceptorCount
	}
	return s.AcceptorCount
}

// CreateInitiator for these Settings.
func (s Settings) CreateInitiator() (transport.Initiator, error) {
	return NewInitiator(s), nil
}

// CreateListener for these Settings. The socket is bound by Listen.
func (s Settings) CreateListener() (transport.Listener, error) {
	return NewListener(s), nil
}

func (s Settings) String() string {
	return fmt.Sprintf("tcp://%s", s.Address())
}
