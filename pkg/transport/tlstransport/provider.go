// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tlstransport

import "github.com/amqpnet/amqpstack/pkg/transport"

// Provider offers the TLS upgrade within a protocol negotiation, announced by protocol ID 2.
type Provider struct {
	transport.ProviderBase

	settings Settings
}

// NewProvider for TLS. Without versions, transport.DefaultVersion is supported.
func NewProvider(settings Settings, versions ...transport.Version) *Provider {
	return &Provider{
		ProviderBase: transport.ProviderBase{
			ID:                transport.ProtocolTLS,
			SupportedVersions: versions,
		},
		settings: settings,
	}
}

// CreateTransport wraps inner into a TLS Transport. The returned Transport still needs to be opened, which
// performs the handshake.
func (p *Provider) CreateTransport(inner transport.Transport, isInitiator bool) (transport.Transport, error) {
	return NewTransport(inner, p.settings.Config(isInitiator), isInitiator), nil
}
