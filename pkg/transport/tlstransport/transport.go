// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tlstransport

import (
	"crypto/tls"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// Transport encrypts an inner Transport by TLS.
//
// Opening performs the client or server handshake, bounded by the open timeout. Close sends a close_notify alert
// before closing the inner Transport, while Abort directly aborts the inner Transport.
type Transport struct {
	*transport.StreamTransport

	inner transport.Transport
	conn  *tls.Conn
}

// NewTransport wraps an opened inner Transport. The TLS Transport itself still needs to be opened.
func NewTransport(inner transport.Transport, config *tls.Config, isInitiator bool) *Transport {
	t := &Transport{inner: inner}

	adapter := newStreamConn(inner)
	if isInitiator {
		t.conn = tls.Client(adapter, config)
	} else {
		t.conn = tls.Server(adapter, config)
	}

	t.StreamTransport = transport.NewStreamTransport(t.conn, "tls",
		transport.WithOwner(t),
		transport.WithSecure(true),
		transport.WithHandshake(t.conn.HandshakeContext),
		transport.WithAuthenticatedFunc(t.authenticated),
		transport.WithAbortFunc(inner.Abort))

	return t
}

// authenticated reports if the peer presented a certificate chain which was verified.
func (t *Transport) authenticated() bool {
	if t.State() != transport.StateOpened {
		return false
	}
	return len(t.conn.ConnectionState().VerifiedChains) > 0
}

// Inner returns the wrapped Transport.
func (t *Transport) Inner() transport.Transport {
	return t.inner
}

// ConnectionState of the TLS connection.
func (t *Transport) ConnectionState() tls.ConnectionState {
	return t.conn.ConnectionState()
}
