// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package negotiation

import (
	"fmt"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// AMQPProvider is the terminal provider. Reaching it ends the negotiation without a further upgrade.
type AMQPProvider struct {
	transport.ProviderBase
}

// NewAMQPProvider for the given versions, 1.0.0 if none are given.
func NewAMQPProvider(versions ...transport.Version) *AMQPProvider {
	return &AMQPProvider{transport.ProviderBase{ID: transport.ProtocolAMQP, SupportedVersions: versions}}
}

// CreateTransport returns inner itself.
func (p *AMQPProvider) CreateTransport(inner transport.Transport, _ bool) (transport.Transport, error) {
	return inner, nil
}

// SASLFactory creates a Transport performing a SASL exchange on its Open.
type SASLFactory func(inner transport.Transport, isInitiator bool) (transport.Transport, error)

// SASLProvider plugs a SASL implementation into the negotiation.
type SASLProvider struct {
	transport.ProviderBase

	factory SASLFactory
}

// NewSASLProvider based on a factory for the given versions, 1.0.0 if none are given.
func NewSASLProvider(factory SASLFactory, versions ...transport.Version) *SASLProvider {
	return &SASLProvider{
		ProviderBase: transport.ProviderBase{ID: transport.ProtocolSASL, SupportedVersions: versions},
		factory:      factory,
	}
}

func (p *SASLProvider) CreateTransport(inner transport.Transport, isInitiator bool) (transport.Transport, error) {
	if p.factory == nil {
		return nil, fmt.Errorf("%v has no SASL factory", p)
	}
	return p.factory(inner, isInitiator)
}

// isTerminal checks if a Provider ends an Initiator's negotiation.
func isTerminal(p transport.Provider) bool {
	return p.ProtocolID() == transport.ProtocolAMQP
}
