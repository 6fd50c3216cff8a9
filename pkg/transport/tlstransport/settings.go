// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tlstransport provides TLS as a transport layer: a Transport wrapping an inner Transport, an Initiator and a
// Listener wrapping their inner counterparts and a Provider for the TLS upgrade negotiation.
package tlstransport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// DefaultHandshakeTimeout bounds a listener's handshake with a newly accepted connection.
const DefaultHandshakeTimeout = 30 * time.Second

// Settings of the TLS layer. The first block is used by initiators, the second by listeners.
type Settings struct {
	// TargetHost is the server name to be verified and sent by SNI.
	TargetHost         string
	RootCAs            *x509.CertPool
	InsecureSkipVerify bool

	// Certificates are the server's certificates or a client's certificate for mutual authentication.
	Certificates []tls.Certificate
	ClientCAs    *x509.CertPool
	ClientAuth   tls.ClientAuthType

	HandshakeTimeout time.Duration
}

// ClientConfig for an initiator's handshake.
func (s Settings) ClientConfig() *tls.Config {
	return &tls.Config{
		ServerName:         s.TargetHost,
		RootCAs:            s.RootCAs,
		InsecureSkipVerify: s.InsecureSkipVerify,
		Certificates:       s.Certificates,
		MinVersion:         tls.VersionTLS12,
	}
}

// ServerConfig for a listener's handshake.
func (s Settings) ServerConfig() *tls.Config {
	return &tls.Config{
		Certificates: s.Certificates,
		ClientCAs:    s.ClientCAs,
		ClientAuth:   s.ClientAuth,
		MinVersion:   tls.VersionTLS12,
	}
}

// Config for the given role.
func (s Settings) Config(isInitiator bool) *tls.Config {
	if isInitiator {
		return s.ClientConfig()
	}
	return s.ServerConfig()
}

func (s Settings) handshakeTimeout() time.Duration {
	if s.HandshakeTimeout <= 0 {
		return DefaultHandshakeTimeout
	}
	return s.HandshakeTimeout
}

// WrapInitiator upgrades each Transport of the inner Initiator.
func (s Settings) WrapInitiator(inner transport.Initiator) (transport.Initiator, error) {
	return NewInitiator(inner, s), nil
}

// WrapListener upgrades each Transport of the inner Listener. A certificate is required.
func (s Settings) WrapListener(inner transport.Listener) (transport.Listener, error) {
	if len(s.Certificates) == 0 {
		return nil, fmt.Errorf("TLS listener requires a certificate")
	}
	return NewListener(inner, s), nil
}

func (s Settings) String() string {
	if s.TargetHost != "" {
		return fmt.Sprintf("tls(%s)", s.TargetHost)
	}
	return "tls"
}
