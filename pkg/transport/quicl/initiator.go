// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quicl

import (
	"context"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// Initiator dials QUIC connections and opens their stream.
type Initiator struct {
	settings Settings
}

// NewInitiator for the Settings' endpoint.
func NewInitiator(settings Settings) *Initiator {
	return &Initiator{settings: settings}
}

// ConnectAsync performs the QUIC handshake on another goroutine; it is always pending.
func (i *Initiator) ConnectAsync(timeout time.Duration, args *transport.AsyncArgs) (bool, error) {
	if err := args.Begin(); err != nil {
		return false, err
	}

	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	go func() {
		t, err := i.connect(timeout)
		args.Transport = t
		args.Finish(0, err, false)
	}()

	return true, nil
}

func (i *Initiator) connect(timeout time.Duration) (transport.Transport, error) {
	tlsConf, err := i.settings.tlsConfig(true)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := quic.DialAddr(ctx, i.settings.Address, tlsConf, i.settings.quicConfig(timeout))
	if err != nil {
		i.log().WithError(err).Debug("Dialing failed")
		return nil, transport.WrapContextError(fmt.Errorf("dialing %s failed: %w", i.settings.Address, err))
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(StreamError, "opening stream failed")
		return nil, transport.WrapContextError(fmt.Errorf("opening stream failed: %w", err))
	}

	t := newTransport(conn, stream)
	if _, err := t.OpenAsync(timeout, nil); err != nil {
		t.Abort()
		return nil, err
	}

	i.log().WithFields(log.Fields{
		"transport": t,
		"peer":      conn.RemoteAddr(),
	}).Debug("Dialed successfully")
	return t, nil
}

func (i *Initiator) log() *log.Entry {
	return log.WithField("initiator", i)
}

func (i *Initiator) String() string {
	return i.settings.String()
}
