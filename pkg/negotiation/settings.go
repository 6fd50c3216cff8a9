// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package negotiation upgrades a freshly established Transport through a chain of protocol layers.
//
// Both sides exchange protocol headers, one per layer. An Initiator sends the default header of its next Provider
// and expects it to be echoed; a Listener echoes a header it supports. After each echoed header both sides wrap
// their Transport into that Provider's layer. The negotiation ends at the AMQP protocol, whose Provider does not
// wrap the Transport. Neither side retries after a mismatch.
package negotiation

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// DefaultTimeout bounds a negotiation without a configured Timeout.
const DefaultTimeout = 30 * time.Second

// Settings of a negotiating endpoint. Settings are themselves transport.Settings, so an Initiator or a Listener is
// created the same way as for a base transport.
type Settings struct {
	// Transport creates the base Initiator or Listener, possibly a transport.Stack.
	Transport transport.Settings

	// Providers in priority order. A Listener's first Provider is its preferred one.
	Providers []transport.Provider

	// RequireSecureTransport lets a Listener reject a negotiated Transport which is not secure.
	RequireSecureTransport bool

	// AllowAnonymousConnection lets a Listener accept a negotiated Transport which is not authenticated.
	AllowAnonymousConnection bool

	// Timeout bounds connecting and the whole negotiation of one Transport.
	Timeout time.Duration

	// OnError is called for each failed negotiation of a Listener.
	OnError func(err error)
}

func (s Settings) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return s.Timeout
}

// Validate reports all configuration problems at once.
func (s Settings) Validate() error {
	var errs *multierror.Error

	if s.Transport == nil {
		errs = multierror.Append(errs, fmt.Errorf("no base transport"))
	}
	if len(s.Providers) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("no providers"))
	}

	seen := make(map[transport.ProtocolID]bool)
	for i, p := range s.Providers {
		if p == nil {
			errs = multierror.Append(errs, fmt.Errorf("provider %d is nil", i))
			continue
		}
		if seen[p.ProtocolID()] {
			errs = multierror.Append(errs, fmt.Errorf("protocol %v is provided twice", p.ProtocolID()))
		}
		seen[p.ProtocolID()] = true
	}

	return errs.ErrorOrNil()
}

// CreateInitiator creates the base Initiator and wraps it into a negotiating Initiator.
func (s Settings) CreateInitiator() (transport.Initiator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	inner, err := s.Transport.CreateInitiator()
	if err != nil {
		return nil, err
	}
	return NewInitiator(inner, s), nil
}

// CreateListener creates the base Listener and wraps it into a negotiating Listener.
func (s Settings) CreateListener() (transport.Listener, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	inner, err := s.Transport.CreateListener()
	if err != nil {
		return nil, err
	}
	return NewListener(inner, s), nil
}

func (s Settings) providerNames() string {
	names := make([]string, 0, len(s.Providers))
	for _, p := range s.Providers {
		names = append(names, p.ProtocolID().String())
	}
	return strings.Join(names, ", ")
}

func (s Settings) String() string {
	return fmt.Sprintf("negotiate(%s) over %v", s.providerNames(), s.Transport)
}
