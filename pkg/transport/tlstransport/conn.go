// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tlstransport

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// streamConn presents an inner Transport as a net.Conn for crypto/tls.
//
// Reads and writes go through a transport.Stream, whose reusable AsyncArgs fail fast with
// transport.ErrConcurrentStreamOperation on re-entrant use. An exceeded deadline aborts the inner Transport, as a
// pending asynchronous operation cannot be withdrawn otherwise.
type streamConn struct {
	inner  transport.Transport
	stream *transport.Stream

	mutex         sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time
}

func newStreamConn(inner transport.Transport) *streamConn {
	return &streamConn{
		inner:  inner,
		stream: transport.NewStream(inner),
	}
}

// deadlineContext derives a context for an operation. An already passed deadline fails without touching the
// inner Transport.
func deadlineContext(deadline time.Time) (context.Context, context.CancelFunc, error) {
	if deadline.IsZero() {
		return context.Background(), func() {}, nil
	}

	if !time.Now().Before(deadline) {
		return nil, nil, os.ErrDeadlineExceeded
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	return ctx, cancel, nil
}

func mapError(err error) error {
	if errors.Is(err, transport.ErrTimeout) {
		return os.ErrDeadlineExceeded
	}
	return err
}

func (c *streamConn) Read(p []byte) (int, error) {
	c.mutex.Lock()
	deadline := c.readDeadline
	c.mutex.Unlock()

	ctx, cancel, err := deadlineContext(deadline)
	if err != nil {
		return 0, err
	}
	defer cancel()

	n, err := c.stream.ReadContext(ctx, p)
	return n, mapError(err)
}

func (c *streamConn) Write(p []byte) (int, error) {
	c.mutex.Lock()
	deadline := c.writeDeadline
	c.mutex.Unlock()

	ctx, cancel, err := deadlineContext(deadline)
	if err != nil {
		return 0, err
	}
	defer cancel()

	n, err := c.stream.WriteContext(ctx, p)
	return n, mapError(err)
}

// Close closes the inner Transport. crypto/tls calls this after its close_notify alert and when a handshake's
// context is done.
func (c *streamConn) Close() error {
	return c.inner.Close()
}

func (c *streamConn) LocalAddr() net.Addr {
	return c.inner.LocalAddr()
}

func (c *streamConn) RemoteAddr() net.Addr {
	return c.inner.RemoteAddr()
}

func (c *streamConn) SetDeadline(t time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.readDeadline = t
	c.writeDeadline = t
	return nil
}

func (c *streamConn) SetReadDeadline(t time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.readDeadline = t
	return nil
}

func (c *streamConn) SetWriteDeadline(t time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.writeDeadline = t
	return nil
}
