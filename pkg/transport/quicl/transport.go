// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quicl

import (
	"github.com/quic-go/quic-go"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// Transport over a QUIC connection's first bidirectional stream.
type Transport struct {
	*transport.StreamTransport

	conn quic.Connection
}

func newTransport(conn quic.Connection, stream quic.Stream) *Transport {
	t := &Transport{conn: conn}

	sc := newStreamConn(conn, stream)
	t.StreamTransport = transport.NewStreamTransport(sc, "quic",
		transport.WithOwner(t),
		transport.WithSecure(true),
		transport.WithAuthenticatedFunc(t.authenticated),
		transport.WithAbortFunc(sc.abort))

	return t
}

func (t *Transport) authenticated() bool {
	return len(t.conn.ConnectionState().TLS.VerifiedChains) > 0
}

// Connection returns the underlying QUIC connection.
func (t *Transport) Connection() quic.Connection {
	return t.conn
}
