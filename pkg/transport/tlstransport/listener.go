// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tlstransport

import (
	"context"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// Listener accepts Transports from an inner Listener and upgrades each of them by a TLS server handshake before
// handing it off. A failed handshake only aborts the affected Transport.
type Listener struct {
	transport.ListenerBase

	inner    transport.Listener
	settings Settings
}

// NewListener wrapping an inner Listener.
func NewListener(inner transport.Listener, settings Settings) *Listener {
	l := &Listener{
		inner:    inner,
		settings: settings,
	}
	l.InitListener(l)
	return l
}

// Listen starts the inner Listener.
func (l *Listener) Listen(onAccept func(args *transport.AsyncArgs)) error {
	if err := l.BeginListen(onAccept); err != nil {
		return err
	}

	l.inner.SetClosedHandler(func(_ transport.Listener, err error) {
		l.NotifyClosed(err)
	})

	return l.inner.Listen(func(args *transport.AsyncArgs) {
		go l.upgrade(args.Transport)
	})
}

func (l *Listener) upgrade(inner transport.Transport) {
	ctx, cancel := context.WithTimeout(context.Background(), l.settings.handshakeTimeout())
	defer cancel()

	t := NewTransport(inner, l.settings.ServerConfig(), false)
	if err := transport.Open(ctx, t); err != nil {
		l.log().WithFields(log.Fields{
			"transport": inner,
			"peer":      inner.RemoteAddr(),
		}).WithError(err).Warn("TLS handshake of accepted connection failed")

		t.Abort()
		return
	}

	l.log().WithFields(log.Fields{
		"transport":     t,
		"authenticated": t.IsAuthenticated(),
	}).Debug("TLS handshake of accepted connection succeeded")

	l.NotifyAccept(t)
}

// Close the inner Listener.
func (l *Listener) Close() error {
	if !l.NotifyClosed(nil) {
		return nil
	}
	return l.inner.Close()
}

func (l *Listener) Addr() net.Addr {
	return l.inner.Addr()
}

func (l *Listener) log() *log.Entry {
	return log.WithField("listener", l)
}

func (l *Listener) String() string {
	return fmt.Sprintf("%v -> %v", l.inner, l.settings)
}
