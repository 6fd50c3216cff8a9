// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqpnet/amqpstack/internal/certs"
	"github.com/amqpnet/amqpstack/pkg/connection"
	"github.com/amqpnet/amqpstack/pkg/transport"
	"github.com/amqpnet/amqpstack/pkg/transport/quicl"
	"github.com/amqpnet/amqpstack/pkg/transport/tcp"
	"github.com/amqpnet/amqpstack/pkg/transport/tlstransport"
	"github.com/amqpnet/amqpstack/pkg/transport/ws"
)

const example = `
[logging]
level = "debug"
report-caller = false
format = "json"

[[listen]]
transport = "tcp"
endpoint = "127.0.0.1:5672"
backlog = 64
acceptors = 2
providers = ["amqp"]
allow-anonymous-connection = true
container-id = "broker"
hosts = ["a.example", "b.example"]
timeout = "5s"

[[listen]]
transport = "ws"
endpoint = "127.0.0.1:8080"
ws-path = "/amqp"
allow-anonymous-connection = true

[[connect]]
transport = "quic"
endpoint = "127.0.0.1:5671"
hostname = "a.example"
`

func TestParse(t *testing.T) {
	conf, err := Parse(example)
	require.NoError(t, err)

	assert.Equal(t, LogConf{Level: "debug", Format: "json"}, conf.Logging)

	require.Len(t, conf.Listen, 2)
	assert.Equal(t, ListenConf{
		Transport:                "tcp",
		Endpoint:                 "127.0.0.1:5672",
		Backlog:                  64,
		Acceptors:                2,
		Providers:                []string{"amqp"},
		AllowAnonymousConnection: true,
		ContainerID:              "broker",
		Hosts:                    []string{"a.example", "b.example"},
		Timeout:                  "5s",
	}, conf.Listen[0])
	assert.Equal(t, "/amqp", conf.Listen[1].WsPath)

	require.Len(t, conf.Connect, 1)
	assert.Equal(t, "a.example", conf.Connect[0].Hostname)
}

func TestLoad(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		errors int
	}{
		{"empty", ``, 0},
		{"level", `[logging]
level = "verbose"`, 1},
		{"format", `[logging]
format = "xml"`, 1},
		{"transport and endpoint", `[[listen]]
transport = "udp"`, 2},
		{"provider", `[[connect]]
transport = "tcp"
endpoint = "localhost"
providers = ["sasl", "amqp"]`, 1},
		{"timeout", `[[connect]]
transport = "tcp"
endpoint = "localhost"
timeout = "soon"`, 1},
		{"tls without block", `[[connect]]
transport = "tls"
endpoint = "localhost"`, 1},
		{"tls listener without certificate", `[[listen]]
transport = "tcp"
endpoint = "localhost"
providers = ["tls", "amqp"]
[listen.tls]
client-ca-file = "ca.pem"`, 1},
		{"key pair", `[[listen]]
transport = "quic"
endpoint = "localhost:5671"
[listen.tls]
cert-file = "cert.pem"`, 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.data)
			if test.errors == 0 {
				assert.NoError(t, err)
				return
			}

			var merr *multierror.Error
			require.ErrorAs(t, err, &merr)
			assert.Len(t, merr.Errors, test.errors, merr.Error())
		})
	}
}

func TestConfigureLogging(t *testing.T) {
	defer func(lvl log.Level, formatter log.Formatter) {
		log.SetLevel(lvl)
		log.SetFormatter(formatter)
	}(log.GetLevel(), log.StandardLogger().Formatter)

	ConfigureLogging(LogConf{Level: "trace", Format: "json"})
	assert.Equal(t, log.TraceLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	ConfigureLogging(LogConf{Level: "nonsense", Format: "text"})
	assert.Equal(t, log.TraceLevel, log.GetLevel(), "an invalid level is ignored")
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}

func TestBuildTransports(t *testing.T) {
	dir := t.TempDir()
	cert, err := certs.GenerateSelfSigned("127.0.0.1")
	require.NoError(t, err)
	certFile, keyFile := filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")
	require.NoError(t, cert.WriteFiles(certFile, keyFile))

	tlsConf := &TLSConf{CertFile: certFile, KeyFile: keyFile}

	tests := []struct {
		conf ListenConf
		base interface{}
	}{
		{ListenConf{Transport: "tcp", Endpoint: "127.0.0.1:5672"}, tcp.Settings{}},
		{ListenConf{Transport: "tls", Endpoint: "127.0.0.1:5671", TLS: tlsConf}, transport.Stack{}},
		{ListenConf{Transport: "ws", Endpoint: "127.0.0.1:8080"}, ws.Settings{}},
		{ListenConf{Transport: "quic", Endpoint: "127.0.0.1:5671"}, quicl.Settings{}},
	}

	for _, test := range tests {
		t.Run(test.conf.Transport, func(t *testing.T) {
			l, err := test.conf.Build()
			require.NoError(t, err)
			assert.IsType(t, test.base, l.Negotiation.Transport)
			require.Len(t, l.Negotiation.Providers, 1)
			assert.Equal(t, transport.ProtocolAMQP, l.Negotiation.Providers[0].ProtocolID())
		})
	}

	t.Run("wss", func(t *testing.T) {
		l, err := ListenConf{Transport: "ws", Endpoint: "127.0.0.1:8443", TLS: tlsConf}.Build()
		require.NoError(t, err)
		require.NotNil(t, l.Negotiation.Transport.(ws.Settings).TLSConfig)
		assert.Len(t, l.Negotiation.Transport.(ws.Settings).TLSConfig.Certificates, 1)
	})

	t.Run("tls provider", func(t *testing.T) {
		l, err := ListenConf{
			Transport: "tcp",
			Endpoint:  "127.0.0.1:5672",
			Providers: []string{"tls", "amqp"},
			TLS:       tlsConf,
		}.Build()
		require.NoError(t, err)
		assert.IsType(t, tcp.Settings{}, l.Negotiation.Transport)
		require.Len(t, l.Negotiation.Providers, 2)
		assert.IsType(t, &tlstransport.Provider{}, l.Negotiation.Providers[0])
	})
}

func TestConfiguredRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cert, err := certs.GenerateSelfSigned("127.0.0.1")
	require.NoError(t, err)
	certFile, keyFile := filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")
	require.NoError(t, cert.WriteFiles(certFile, keyFile))

	conf, err := Parse(fmt.Sprintf(`
[[listen]]
transport = "tcp"
endpoint = "127.0.0.1:0"
providers = ["tls", "amqp"]
require-secure-transport = true
allow-anonymous-connection = true
container-id = "server"
timeout = "5s"

[listen.tls]
cert-file = %q
key-file = %q
`, certFile, keyFile))
	require.NoError(t, err)

	listen, err := conf.Listen[0].Build()
	require.NoError(t, err)

	base, err := listen.Negotiation.CreateListener()
	require.NoError(t, err)

	accepted := make(chan *connection.Connection, 1)
	l := connection.NewExclusiveListener(base, listen.Connection, func(c *connection.Connection) { accepted <- c })
	require.NoError(t, l.Listen())
	defer l.Close()

	connect, err := ConnectConf{
		Transport: "tcp",
		Endpoint:  l.Addr().String(),
		Providers: []string{"tls", "amqp"},
		Hostname:  "localhost",
		TLS:       &TLSConf{TargetHost: "127.0.0.1", RootCAFile: certFile},
	}.Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	initiator, err := connect.Negotiation.CreateInitiator()
	require.NoError(t, err)

	client, err := connection.Dial(ctx, initiator, connect.Connection)
	require.NoError(t, err)
	defer client.Abort()

	assert.IsType(t, &tlstransport.Transport{}, client.Transport())
	assert.True(t, client.Transport().IsAuthenticated())
	assert.Equal(t, "server", client.RemoteOpen().ContainerID)

	var server *connection.Connection
	select {
	case server = <-accepted:
		defer server.Abort()
	case <-ctx.Done():
		t.Fatal("no connection was accepted")
	}

	_, err = client.SendTransfer(ctx, []byte("hello"))
	require.NoError(t, err)

	payload, err := server.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), payload)

	require.NoError(t, client.Close(ctx, nil))

	_, err = server.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestBuildValidatesNegotiation(t *testing.T) {
	_, err := ConnectConf{Transport: "tcp", Endpoint: "localhost", Providers: []string{"amqp", "amqp"}}.Build()
	assert.ErrorContains(t, err, "protocol AMQP is provided twice")
}
