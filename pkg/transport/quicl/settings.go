// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package quicl provides AMQP over a single bidirectional QUIC stream as a base transport.
//
// QUIC always encrypts, so its transports are secure. Without configured certificates the listener creates a
// self-signed certificate and the initiator skips verification; such transports are secure but not authenticated.
package quicl

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/internal/certs"
	"github.com/amqpnet/amqpstack/pkg/transport"
)

// ALPN protocol negotiated for every connection.
const ALPN = "amqp"

const (
	DefaultKeepAlivePeriod  = time.Second
	DefaultMaxIdleTimeout   = 5 * time.Second
	DefaultHandshakeTimeout = 30 * time.Second
)

// Settings of a QUIC endpoint.
type Settings struct {
	// Address is "host:port".
	Address string

	// TLSConfig is cloned and extended by the ALPN. A nil config results in a self-signed listener and an
	// initiator which does not verify its peer.
	TLSConfig *tls.Config

	KeepAlivePeriod time.Duration
	MaxIdleTimeout  time.Duration
}

func (s Settings) tlsConfig(isInitiator bool) (*tls.Config, error) {
	var conf *tls.Config
	switch {
	case s.TLSConfig != nil:
		conf = s.TLSConfig.Clone()

	case isInitiator:
		conf = &tls.Config{InsecureSkipVerify: true}

	default:
		cert, err := certs.GenerateSelfSigned()
		if err != nil {
			return nil, err
		}
		log.WithField("address", s.Address).Debug("QUIC listener uses a self-signed certificate")
		conf = &tls.Config{Certificates: []tls.Certificate{cert.Certificate}}
	}

	conf.NextProtos = []string{ALPN}
	conf.MinVersion = tls.VersionTLS13
	return conf, nil
}

func (s Settings) quicConfig(handshakeTimeout time.Duration) *quic.Config {
	conf := &quic.Config{
		KeepAlivePeriod:    s.KeepAlivePeriod,
		MaxIdleTimeout:     s.MaxIdleTimeout,
		EnableDatagrams:    false,
		MaxIncomingStreams: 1,
	}

	if conf.KeepAlivePeriod <= 0 {
		conf.KeepAlivePeriod = DefaultKeepAlivePeriod
	}
	if conf.MaxIdleTimeout <= 0 {
		conf.MaxIdleTimeout = DefaultMaxIdleTimeout
	}
	if handshakeTimeout > 0 {
		conf.HandshakeIdleTimeout = handshakeTimeout
	}
	return conf
}

func (s Settings) CreateInitiator() (transport.Initiator, error) {
	return NewInitiator(s), nil
}

func (s Settings) CreateListener() (transport.Listener, error) {
	return NewListener(s), nil
}

func (s Settings) String() string {
	return fmt.Sprintf("quic://%s", s.Address)
}
