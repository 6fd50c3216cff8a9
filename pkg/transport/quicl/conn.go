// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quicl

import (
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// closeGracePeriod is the time a graceful Close waits for the peer to close the connection after the stream's
// write side was closed, so that the last data is delivered.
const closeGracePeriod = time.Second

// streamConn presents the single bidirectional stream of a QUIC connection as a net.Conn.
type streamConn struct {
	quic.Stream

	conn quic.Connection
}

func newStreamConn(conn quic.Connection, stream quic.Stream) *streamConn {
	return &streamConn{Stream: stream, conn: conn}
}

// Close closes the stream's write side, waits for the peer to close the connection and closes it afterwards.
func (c *streamConn) Close() error {
	_ = c.Stream.Close()

	select {
	case <-c.conn.Context().Done():
	case <-time.After(closeGracePeriod):
	}

	c.Stream.CancelRead(ReadCanceled)
	return c.conn.CloseWithError(NoError, "")
}

// abort closes the connection immediately.
func (c *streamConn) abort() {
	_ = c.conn.CloseWithError(AbortError, "aborted")
}

// CloseWrite closes the stream's write side.
func (c *streamConn) CloseWrite() error {
	return c.Stream.Close()
}

// CloseRead stops receiving on the stream.
func (c *streamConn) CloseRead() error {
	c.Stream.CancelRead(ReadCanceled)
	return nil
}

func (c *streamConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *streamConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
