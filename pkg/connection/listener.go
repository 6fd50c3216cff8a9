// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package connection

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/frame"
	"github.com/amqpnet/amqpstack/pkg/transport"
)

// DefaultOpenTimeout bounds the open exchange of an accepted connection.
const DefaultOpenTimeout = 30 * time.Second

// Handler takes over an accepted Connection.
type Handler func(c *Connection)

// acceptor runs the open exchange for each Transport of its inner Listener.
type acceptor struct {
	inner    transport.Listener
	settings Settings
}

func (a *acceptor) listen(accept func(ctx context.Context, t transport.Transport)) error {
	return a.inner.Listen(func(args *transport.AsyncArgs) {
		go func(t transport.Transport) {
			timeout := a.settings.OpenTimeout
			if timeout <= 0 {
				timeout = DefaultOpenTimeout
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			accept(ctx, t)
		}(args.Transport)
	})
}

// Close the inner Listener. Accepted Connections are not affected.
func (a *acceptor) Close() error {
	return a.inner.Close()
}

func (a *acceptor) Addr() net.Addr {
	return a.inner.Addr()
}

// ExclusiveListener hands every accepted Connection to a single Handler.
type ExclusiveListener struct {
	acceptor

	handler Handler
}

// NewExclusiveListener on top of a Listener, usually a negotiation.Listener.
func NewExclusiveListener(inner transport.Listener, settings Settings, handler Handler) *ExclusiveListener {
	return &ExclusiveListener{
		acceptor: acceptor{inner: inner, settings: settings},
		handler:  handler,
	}
}

// Listen starts the inner Listener.
func (l *ExclusiveListener) Listen() error {
	return l.listen(l.accept)
}

func (l *ExclusiveListener) accept(ctx context.Context, t transport.Transport) {
	c, err := Accept(ctx, t, l.settings)
	if err != nil {
		l.log().WithError(err).WithField("transport", t).Warn("Accepting connection failed")
		return
	}

	l.handler(c)
}

func (l *ExclusiveListener) log() *log.Entry {
	return log.WithField("listener", l)
}

func (l *ExclusiveListener) String() string {
	return fmt.Sprintf("exclusive(%v)", l.inner)
}

// SharedListener routes accepted Connections by the hostname of their open to the Handler registered for this
// virtual host. Host names are compared case-insensitively.
type SharedListener struct {
	acceptor

	handlers sync.Map
}

// NewSharedListener on top of a Listener, usually a negotiation.Listener.
func NewSharedListener(inner transport.Listener, settings Settings) *SharedListener {
	return &SharedListener{acceptor: acceptor{inner: inner, settings: settings}}
}

// Register a Handler for a virtual host, replacing a previous one.
func (l *SharedListener) Register(host string, handler Handler) {
	l.handlers.Store(strings.ToLower(host), handler)
	l.log().WithField("host", host).Debug("Registered virtual host")
}

// Unregister the Handler of a virtual host. Connections which were already dispatched are not affected.
func (l *SharedListener) Unregister(host string) {
	l.handlers.Delete(strings.ToLower(host))
	l.log().WithField("host", host).Debug("Unregistered virtual host")
}

// Listen starts the inner Listener.
func (l *SharedListener) Listen() error {
	return l.listen(l.accept)
}

func (l *SharedListener) lookup(host string) (Handler, bool) {
	v, ok := l.handlers.Load(strings.ToLower(host))
	if !ok {
		return nil, false
	}
	return v.(Handler), true
}

func (l *SharedListener) accept(ctx context.Context, t transport.Transport) {
	logger := l.log().WithField("transport", t)

	c := newConnection(t, l.settings.open())

	remote, err := c.readOpen(ctx)
	if err != nil {
		logger.WithError(err).Warn("Receiving open failed")
		t.Abort()
		return
	}
	c.remote = remote
	logger = logger.WithField("host", remote.Hostname)

	if remote.Hostname == "" {
		logger.Warn("Rejecting connection without hostname")
		_ = c.reject(ctx, &Error{Condition: frame.ConditionInvalidField, Description: "open without hostname"})
		return
	}

	handler, ok := l.lookup(remote.Hostname)
	if !ok {
		logger.Warn("Rejecting connection for unknown virtual host")
		_ = c.reject(ctx, &Error{
			Condition:   frame.ConditionNotFound,
			Description: fmt.Sprintf("virtual host %q not found", remote.Hostname),
		})
		return
	}

	if err := c.writePerformative(ctx, c.local); err != nil {
		logger.WithError(err).Warn("Sending open failed")
		t.Abort()
		return
	}

	logger.Debug("Dispatching connection")
	handler(c)
}

func (l *SharedListener) log() *log.Entry {
	return log.WithField("listener", l)
}

func (l *SharedListener) String() string {
	return fmt.Sprintf("shared(%v)", l.inner)
}
