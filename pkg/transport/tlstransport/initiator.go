// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tlstransport

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// Initiator connects through an inner Initiator and upgrades the Transport by a TLS client handshake.
type Initiator struct {
	inner    transport.Initiator
	settings Settings
}

// NewInitiator wrapping an inner Initiator.
func NewInitiator(inner transport.Initiator, settings Settings) *Initiator {
	return &Initiator{inner: inner, settings: settings}
}

// ConnectAsync connects and performs the handshake on another goroutine. Both steps share the timeout.
func (i *Initiator) ConnectAsync(timeout time.Duration, args *transport.AsyncArgs) (bool, error) {
	if err := args.Begin(); err != nil {
		return false, err
	}

	go func() {
		t, err := i.connect(timeout)
		args.Transport = t
		args.Finish(0, err, false)
	}()

	return true, nil
}

func (i *Initiator) connect(timeout time.Duration) (transport.Transport, error) {
	ctx, cancel := transport.ContextFromTimeout(context.Background(), timeout)
	defer cancel()

	inner, err := transport.Connect(ctx, i.inner)
	if err != nil {
		return nil, err
	}

	t := NewTransport(inner, i.settings.ClientConfig(), true)
	if err := transport.Open(ctx, t); err != nil {
		t.Abort()
		i.log().WithError(err).Debug("TLS handshake failed")
		return nil, fmt.Errorf("TLS handshake with %v failed: %w", inner.RemoteAddr(), err)
	}

	i.log().WithFields(log.Fields{
		"transport":     t,
		"authenticated": t.IsAuthenticated(),
	}).Debug("TLS handshake succeeded")
	return t, nil
}

func (i *Initiator) log() *log.Entry {
	return log.WithField("initiator", i)
}

func (i *Initiator) String() string {
	return fmt.Sprintf("%v -> %v", i.inner, i.settings)
}
