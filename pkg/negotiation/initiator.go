// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package negotiation

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// Initiator connects by its inner Initiator and negotiates the resulting Transport.
type Initiator struct {
	inner    transport.Initiator
	settings Settings
}

// NewInitiator around an inner Initiator, which creates the base Transport.
func NewInitiator(inner transport.Initiator, settings Settings) *Initiator {
	return &Initiator{inner: inner, settings: settings}
}

// ConnectAsync connects and negotiates on another goroutine; it is always pending. The negotiated Transport is
// opened, but the AMQP header was not yet exchanged.
func (i *Initiator) ConnectAsync(timeout time.Duration, args *transport.AsyncArgs) (bool, error) {
	if err := args.Begin(); err != nil {
		return false, err
	}

	if timeout <= 0 {
		timeout = i.settings.timeout()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		t, err := i.connect(ctx)
		args.Transport = t
		args.Finish(0, err, false)
	}()

	return true, nil
}

func (i *Initiator) connect(ctx context.Context) (transport.Transport, error) {
	base, err := transport.Connect(ctx, i.inner)
	if err != nil {
		return nil, err
	}

	t, err := Negotiate(ctx, base, i.settings.Providers)
	if err != nil {
		i.log().WithError(err).WithField("transport", base).Info("Negotiation failed")
		return nil, err
	}

	i.log().WithFields(log.Fields{
		"transport": t,
		"secure":    t.IsSecure(),
	}).Debug("Negotiation finished")
	return t, nil
}

func (i *Initiator) log() *log.Entry {
	return log.WithField("initiator", i)
}

func (i *Initiator) String() string {
	return fmt.Sprintf("negotiate(%s) over %v", i.settings.providerNames(), i.inner)
}

// Negotiate upgrades an opened Transport as an initiator through the Providers in order. The negotiation stops at
// the AMQP Provider, without sending its header, or when the Providers are exhausted. Any header which was not
// echoed ends the negotiation with a *HeaderMismatchError.
//
// Each step is bounded by the time remaining until the context's deadline. On failure all layers including t are
// aborted.
func Negotiate(ctx context.Context, t transport.Transport, providers []transport.Provider) (transport.Transport, error) {
	current := t

	for _, p := range providers {
		if isTerminal(p) {
			break
		}

		next, err := upgrade(ctx, current, p)
		if err != nil {
			abortAll(current, t)
			return nil, err
		}

		if next == current {
			break
		}
		current = next
	}

	return current, nil
}

// upgrade performs one header exchange and opens the created layer. A failed layer is aborted.
func upgrade(ctx context.Context, current transport.Transport, p transport.Provider) (transport.Transport, error) {
	logger := log.WithFields(log.Fields{
		"transport": current,
		"provider":  p,
	})

	stream := transport.NewStream(current)

	sent := p.DefaultHeader()
	if err := WriteHeader(ctx, stream, sent); err != nil {
		return nil, fmt.Errorf("sending %v failed: %w", sent, err)
	}

	received, err := ReadHeader(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("receiving header failed: %w", err)
	}

	if received != sent {
		logger.WithFields(log.Fields{
			"sent":     sent,
			"received": received,
		}).Debug("Peer did not echo the protocol header")
		return nil, &HeaderMismatchError{Sent: sent, Received: received}
	}

	next, err := p.CreateTransport(current, true)
	if err != nil {
		return nil, fmt.Errorf("creating %v layer failed: %w", p.ProtocolID(), err)
	}
	if next == current {
		return next, nil
	}

	if err := transport.Open(ctx, next); err != nil {
		next.Abort()
		return nil, fmt.Errorf("opening %v layer failed: %w", p.ProtocolID(), err)
	}

	logger.WithField("layer", next).Debug("Upgraded transport")
	return next, nil
}
