// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package negotiation

import (
	"context"
	"errors"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// Listener negotiates each Transport accepted by its inner Listener and hands off the negotiated Transports.
//
// The AMQP header received last was already echoed when a Transport is handed off. A failed negotiation only
// affects its own Transport.
type Listener struct {
	transport.ListenerBase

	inner    transport.Listener
	settings Settings
}

// NewListener around an inner Listener.
func NewListener(inner transport.Listener, settings Settings) *Listener {
	l := &Listener{inner: inner, settings: settings}
	l.InitListener(l)
	inner.SetClosedHandler(func(_ transport.Listener, err error) {
		l.NotifyClosed(err)
	})
	return l
}

// Listen starts the inner Listener.
func (l *Listener) Listen(onAccept func(args *transport.AsyncArgs)) error {
	if err := l.BeginListen(onAccept); err != nil {
		return err
	}

	return l.inner.Listen(func(args *transport.AsyncArgs) {
		go l.negotiate(args.Transport)
	})
}

func (l *Listener) negotiate(t transport.Transport) {
	ctx, cancel := context.WithTimeout(context.Background(), l.settings.timeout())
	defer cancel()

	negotiated, err := Accept(ctx, t, l.settings)
	if err != nil {
		l.log().WithError(err).WithField("transport", t).Warn("Rejected connection")
		if l.settings.OnError != nil {
			l.settings.OnError(err)
		}
		return
	}

	l.log().WithFields(log.Fields{
		"transport":     negotiated,
		"secure":        negotiated.IsSecure(),
		"authenticated": negotiated.IsAuthenticated(),
	}).Debug("Negotiation finished")

	l.NotifyAccept(negotiated)
}

// Close the inner Listener.
func (l *Listener) Close() error {
	if l.Closed() {
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
	return fmt.Sprintf("negotiate(%s) over %v", l.settings.providerNames(), l.inner)
}

// Accept negotiates an accepted, opened Transport as a listener until the AMQP header was echoed. The security
// policy of the Settings is checked against the resulting Transport.
//
// A header which is not supported is answered by a counter-proposal before the Transport is closed: the preferred
// Provider's default header for an unknown protocol, otherwise the default header of the requested protocol. On
// failure all layers including t are closed or aborted.
func Accept(ctx context.Context, t transport.Transport, settings Settings) (transport.Transport, error) {
	if len(settings.Providers) == 0 {
		t.Abort()
		return nil, fmt.Errorf("%w: no providers", ErrProtocolNotSupported)
	}

	current := t

	for {
		next, err := acceptLayer(ctx, current, settings.Providers)
		if err != nil {
			var reject *rejection
			if errors.As(err, &reject) {
				closeAll(current, t)
			} else {
				abortAll(current, t)
			}
			return nil, err
		}

		if next != current {
			current = next
			continue
		}

		if err := checkPolicy(current, settings); err != nil {
			closeAll(current, t)
			return nil, err
		}
		return current, nil
	}
}

// rejection marks errors after which a counter-proposal was sent, so the Transport is closed gracefully.
type rejection struct {
	err error
}

func (r *rejection) Error() string {
	return r.err.Error()
}

func (r *rejection) Unwrap() error {
	return r.err
}

// acceptLayer receives one header, answers it and creates the requested layer. The layer is returned opened.
func acceptLayer(ctx context.Context, current transport.Transport, providers []transport.Provider) (transport.Transport, error) {
	logger := log.WithField("transport", current)
	stream := transport.NewStream(current)

	received, err := ReadHeader(ctx, stream)
	if err != nil {
		if errors.Is(err, transport.ErrInvalidProtocolHeader) {
			return nil, reject(ctx, stream, providers[0].DefaultHeader(),
				fmt.Errorf("%w: %w", ErrProtocolNotSupported, err))
		}
		return nil, fmt.Errorf("receiving header failed: %w", err)
	}

	p := findProvider(providers, received.ID)
	if p == nil {
		logger.WithField("header", received).Debug("Requested protocol is not supported")
		return nil, reject(ctx, stream, providers[0].DefaultHeader(),
			fmt.Errorf("%w: %v", ErrProtocolNotSupported, received))
	}

	if !p.Matches(received) {
		logger.WithField("header", received).Debug("Requested protocol version is not supported")
		return nil, reject(ctx, stream, p.DefaultHeader(),
			fmt.Errorf("%w: %v", ErrProtocolVersionNotSupported, received))
	}

	if err := WriteHeader(ctx, stream, received); err != nil {
		return nil, fmt.Errorf("echoing %v failed: %w", received, err)
	}

	next, err := p.CreateTransport(current, false)
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

// reject sends a counter-proposal and returns err as a rejection.
func reject(ctx context.Context, stream *transport.Stream, counter transport.ProtocolHeader, err error) error {
	if writeErr := WriteHeader(ctx, stream, counter); writeErr != nil {
		return fmt.Errorf("%w, sending counter-proposal failed: %w", err, writeErr)
	}
	return &rejection{err: err}
}

func findProvider(providers []transport.Provider, id transport.ProtocolID) transport.Provider {
	for _, p := range providers {
		if p.ProtocolID() == id {
			return p
		}
	}
	return nil
}

func checkPolicy(t transport.Transport, settings Settings) error {
	if settings.RequireSecureTransport && !t.IsSecure() {
		return ErrSecureTransportRequired
	}
	if !settings.AllowAnonymousConnection && !t.IsAuthenticated() {
		return ErrAuthenticationRequired
	}
	return nil
}

// closeAll closes a layered Transport gracefully. The Transport it was established on is aborted afterwards, which
// has no effect if closing the outer layer already closed it.
func closeAll(outer, base transport.Transport) {
	if err := outer.Close(); err != nil {
		log.WithError(err).WithField("transport", outer).Debug("Closing rejected transport errored")
	}
	abortAll(outer, base)
}
