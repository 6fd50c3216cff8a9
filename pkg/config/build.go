// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"crypto/tls"
	"fmt"

	"github.com/amqpnet/amqpstack/internal/certs"
	"github.com/amqpnet/amqpstack/pkg/connection"
	"github.com/amqpnet/amqpstack/pkg/negotiation"
	"github.com/amqpnet/amqpstack/pkg/transport"
	"github.com/amqpnet/amqpstack/pkg/transport/quicl"
	"github.com/amqpnet/amqpstack/pkg/transport/tcp"
	"github.com/amqpnet/amqpstack/pkg/transport/tlstransport"
	"github.com/amqpnet/amqpstack/pkg/transport/ws"
)

// Listen is a built Listen-configuration block.
type Listen struct {
	Negotiation negotiation.Settings
	Connection  connection.Settings

	// Hosts of a shared listener; empty for an exclusive one.
	Hosts []string
}

// Connect is a built Connect-configuration block.
type Connect struct {
	Negotiation negotiation.Settings
	Connection  connection.Settings
}

func (tc *TLSConf) listenerSettings() (s tlstransport.Settings, err error) {
	if tc == nil {
		return
	}

	if tc.CertFile != "" {
		var cert tls.Certificate
		if cert, err = tls.LoadX509KeyPair(tc.CertFile, tc.KeyFile); err != nil {
			return s, fmt.Errorf("loading key pair failed: %w", err)
		}
		s.Certificates = []tls.Certificate{cert}
	}

	if tc.ClientCAFile != "" {
		if s.ClientCAs, err = certs.LoadPool(tc.ClientCAFile); err != nil {
			return
		}
		s.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return
}

func (tc *TLSConf) initiatorSettings() (s tlstransport.Settings, err error) {
	if tc == nil {
		return
	}

	s.TargetHost = tc.TargetHost
	s.InsecureSkipVerify = tc.InsecureSkipVerify

	if tc.RootCAFile != "" {
		if s.RootCAs, err = certs.LoadPool(tc.RootCAFile); err != nil {
			return
		}
	}
	if tc.CertFile != "" {
		var cert tls.Certificate
		if cert, err = tls.LoadX509KeyPair(tc.CertFile, tc.KeyFile); err != nil {
			return s, fmt.Errorf("loading key pair failed: %w", err)
		}
		s.Certificates = []tls.Certificate{cert}
	}
	return
}

// baseTransport creates the Settings below the negotiation. The TLS settings secure the base transport itself unless
// TLS is negotiated as a provider.
func baseTransport(name, endpoint, wsPath string, tlsSettings tlstransport.Settings, tlsProvider, isInitiator bool,
	backlog, acceptors int) (transport.Settings, error) {
	var baseTLS *tls.Config
	if !tlsProvider && (len(tlsSettings.Certificates) > 0 || tlsSettings.RootCAs != nil || tlsSettings.InsecureSkipVerify) {
		baseTLS = tlsSettings.Config(isInitiator)
	}

	switch name {
	case "tcp", "tls":
		tcpSettings, err := tcp.ParseSettings(endpoint)
		if err != nil {
			return nil, err
		}
		tcpSettings.Backlog = backlog
		tcpSettings.AcceptorCount = acceptors

		if name == "tls" {
			return transport.NewStack(tcpSettings, tlsSettings), nil
		}
		return tcpSettings, nil

	case "ws":
		return ws.Settings{Address: endpoint, Path: wsPath, TLSConfig: baseTLS}, nil

	case "quic":
		return quicl.Settings{Address: endpoint, TLSConfig: baseTLS}, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}

func buildProviders(names []string, tlsSettings tlstransport.Settings) ([]transport.Provider, error) {
	if len(names) == 0 {
		names = []string{"amqp"}
	}

	providers := make([]transport.Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case "tls":
			providers = append(providers, tlstransport.NewProvider(tlsSettings))
		case "amqp":
			providers = append(providers, negotiation.NewAMQPProvider())
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return providers, nil
}

// Build the listener's settings.
func (lc ListenConf) Build() (l Listen, err error) {
	tlsSettings, err := lc.TLS.listenerSettings()
	if err != nil {
		return
	}

	base, err := baseTransport(lc.Transport, lc.Endpoint, lc.WsPath, tlsSettings, contains(lc.Providers, "tls"), false,
		lc.Backlog, lc.Acceptors)
	if err != nil {
		return
	}

	providers, err := buildProviders(lc.Providers, tlsSettings)
	if err != nil {
		return
	}

	l.Negotiation = negotiation.Settings{
		Transport:                base,
		Providers:                providers,
		RequireSecureTransport:   lc.RequireSecureTransport,
		AllowAnonymousConnection: lc.AllowAnonymousConnection,
		Timeout:                  parseTimeout(lc.Timeout),
	}
	l.Connection = connection.Settings{
		ContainerID: lc.ContainerID,
		OpenTimeout: parseTimeout(lc.Timeout),
	}
	l.Hosts = lc.Hosts

	err = l.Negotiation.Validate()
	return
}

// Build the initiator's settings.
func (cc ConnectConf) Build() (c Connect, err error) {
	tlsSettings, err := cc.TLS.initiatorSettings()
	if err != nil {
		return
	}

	base, err := baseTransport(cc.Transport, cc.Endpoint, cc.WsPath, tlsSettings, contains(cc.Providers, "tls"), true,
		0, 0)
	if err != nil {
		return
	}

	providers, err := buildProviders(cc.Providers, tlsSettings)
	if err != nil {
		return
	}

	c.Negotiation = negotiation.Settings{
		Transport: base,
		Providers: providers,
		Timeout:   parseTimeout(cc.Timeout),
	}
	c.Connection = connection.Settings{
		ContainerID: cc.ContainerID,
		Hostname:    cc.Hostname,
	}

	err = c.Negotiation.Validate()
	return
}
