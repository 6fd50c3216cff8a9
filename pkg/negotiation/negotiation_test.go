// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package negotiation

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqpnet/amqpstack/internal/certs"
	"github.com/amqpnet/amqpstack/pkg/transport"
	"github.com/amqpnet/amqpstack/pkg/transport/tcp"
	"github.com/amqpnet/amqpstack/pkg/transport/tlstransport"
)

// pipePair creates two opened StreamTransports connected by net.Pipe.
func pipePair(t *testing.T) (client, server transport.Transport) {
	c, s := net.Pipe()
	client = transport.NewStreamTransport(c, "pipe")
	server = transport.NewStreamTransport(s, "pipe")
	require.NoError(t, transport.Open(context.Background(), client))
	require.NoError(t, transport.Open(context.Background(), server))

	t.Cleanup(func() {
		client.Abort()
		server.Abort()
	})
	return
}

// tcpPair creates two opened StreamTransports connected by a loopback TCP connection.
func tcpPair(t *testing.T) (client, server transport.Transport) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		if conn, err := ln.Accept(); err == nil {
			accepted <- conn
		}
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	serverConn := <-accepted

	client = transport.NewStreamTransport(clientConn, "tcp")
	server = transport.NewStreamTransport(serverConn, "tcp")
	require.NoError(t, transport.Open(context.Background(), client))
	require.NoError(t, transport.Open(context.Background(), server))

	t.Cleanup(func() {
		client.Abort()
		server.Abort()
	})
	return
}

type result struct {
	t   transport.Transport
	err error
}

func acceptAsync(ctx context.Context, t transport.Transport, settings Settings) <-chan result {
	ch := make(chan result, 1)
	go func() {
		negotiated, err := Accept(ctx, t, settings)
		ch <- result{negotiated, err}
	}()
	return ch
}

// exchangeAMQPHeader performs the initiator's part of the final header exchange.
func exchangeAMQPHeader(ctx context.Context, t transport.Transport) (transport.ProtocolHeader, error) {
	s := transport.NewStream(t)
	if err := WriteHeader(ctx, s, NewAMQPProvider().DefaultHeader()); err != nil {
		return transport.ProtocolHeader{}, err
	}
	return ReadHeader(ctx, s)
}

func awaitResult(t *testing.T, ch <-chan result) result {
	select {
	case r := <-ch:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("negotiation did not finish")
		return result{}
	}
}

func TestNegotiateAMQPOnly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, server := pipePair(t)
	providers := []transport.Provider{NewAMQPProvider()}

	accepted := acceptAsync(ctx, server, Settings{Providers: providers, AllowAnonymousConnection: true})

	negotiated, err := Negotiate(ctx, client, providers)
	require.NoError(t, err)
	assert.Same(t, client, negotiated)

	header, err := exchangeAMQPHeader(ctx, negotiated)
	require.NoError(t, err)
	assert.Equal(t, NewAMQPProvider().DefaultHeader(), header)

	r := awaitResult(t, accepted)
	require.NoError(t, r.err)
	assert.Same(t, server, r.t)
}

func TestNegotiateTLS(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverCert, err := certs.GenerateSelfSigned("localhost")
	require.NoError(t, err)
	clientCert, err := certs.GenerateSelfSigned("client")
	require.NoError(t, err)

	clientProviders := []transport.Provider{
		tlstransport.NewProvider(tlstransport.Settings{
			TargetHost:   "localhost",
			RootCAs:      serverCert.Pool,
			Certificates: []tls.Certificate{clientCert.Certificate},
		}),
		NewAMQPProvider(),
	}
	serverSettings := Settings{
		Providers: []transport.Provider{
			tlstransport.NewProvider(tlstransport.Settings{
				Certificates: []tls.Certificate{serverCert.Certificate},
				ClientCAs:    clientCert.Pool,
				ClientAuth:   tls.RequireAndVerifyClientCert,
			}),
			NewAMQPProvider(),
		},
		RequireSecureTransport: true,
	}

	client, server := tcpPair(t)
	accepted := acceptAsync(ctx, server, serverSettings)

	negotiated, err := Negotiate(ctx, client, clientProviders)
	require.NoError(t, err)
	require.IsType(t, &tlstransport.Transport{}, negotiated)
	assert.True(t, negotiated.IsSecure())
	assert.True(t, negotiated.IsAuthenticated())

	_, err = exchangeAMQPHeader(ctx, negotiated)
	require.NoError(t, err)

	r := awaitResult(t, accepted)
	require.NoError(t, r.err)
	require.IsType(t, &tlstransport.Transport{}, r.t)
	assert.True(t, r.t.IsSecure())
	assert.True(t, r.t.IsAuthenticated())

	_, err = transport.NewStream(negotiated).WriteContext(ctx, []byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	require.NoError(t, transport.NewStream(r.t).ReadFull(ctx, buf))
	assert.Equal(t, []byte("hello"), buf)
}

func TestNegotiateNoCommonProtocol(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, server := pipePair(t)

	clientProviders := []transport.Provider{
		tlstransport.NewProvider(tlstransport.Settings{InsecureSkipVerify: true}),
		NewAMQPProvider(),
	}
	accepted := acceptAsync(ctx, server, Settings{
		Providers:                []transport.Provider{NewAMQPProvider()},
		AllowAnonymousConnection: true,
	})

	_, err := Negotiate(ctx, client, clientProviders)
	require.ErrorIs(t, err, ErrProtocolVersionNotSupported)

	var mismatch *HeaderMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, transport.ProtocolTLS, mismatch.Sent.ID)
	assert.Equal(t, NewAMQPProvider().DefaultHeader(), mismatch.Received)
	assert.True(t, client.State().Terminal())

	r := awaitResult(t, accepted)
	assert.ErrorIs(t, r.err, ErrProtocolNotSupported)
	assert.True(t, server.State().Terminal())
}

func TestNegotiateVersionMismatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, server := pipePair(t)

	v2 := transport.Version{Major: 2}
	accepted := acceptAsync(ctx, server, Settings{
		Providers:                []transport.Provider{NewSASLProvider(nil, v2), NewAMQPProvider()},
		AllowAnonymousConnection: true,
	})

	_, err := Negotiate(ctx, client, []transport.Provider{NewSASLProvider(nil), NewAMQPProvider()})
	var mismatch *HeaderMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, transport.NewProtocolHeader(transport.ProtocolSASL, v2), mismatch.Received)

	r := awaitResult(t, accepted)
	assert.ErrorIs(t, r.err, ErrProtocolVersionNotSupported)
}

func TestAcceptWithoutProviders(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, server := pipePair(t)

	_, err := Accept(ctx, server, Settings{AllowAnonymousConnection: true})
	assert.ErrorIs(t, err, ErrProtocolNotSupported)
	assert.Equal(t, transport.StateFaulted, server.State())
}

func TestListenerRejectsInvalidHeader(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, server := pipePair(t)
	accepted := acceptAsync(ctx, server, Settings{
		Providers:                []transport.Provider{NewAMQPProvider()},
		AllowAnonymousConnection: true,
	})

	s := transport.NewStream(client)
	_, err := s.WriteContext(ctx, []byte("GET / HT"))
	require.NoError(t, err)

	header, err := ReadHeader(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, NewAMQPProvider().DefaultHeader(), header)

	r := awaitResult(t, accepted)
	assert.ErrorIs(t, r.err, ErrProtocolNotSupported)
	assert.ErrorIs(t, r.err, transport.ErrInvalidProtocolHeader)
}

func TestListenerSecurityPolicy(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		err      error
	}{
		{"insecure", Settings{RequireSecureTransport: true, AllowAnonymousConnection: true}, ErrSecureTransportRequired},
		{"anonymous", Settings{}, ErrAuthenticationRequired},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			client, server := pipePair(t)

			settings := test.settings
			settings.Providers = []transport.Provider{NewAMQPProvider()}
			accepted := acceptAsync(ctx, server, settings)

			_, err := exchangeAMQPHeader(ctx, client)
			require.NoError(t, err)

			r := awaitResult(t, accepted)
			assert.ErrorIs(t, r.err, test.err)

			_, err = transport.NewStream(client).ReadContext(ctx, make([]byte, 1))
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

// saslTransport fakes an authenticating layer.
type saslTransport struct {
	transport.Transport
}

func (t *saslTransport) OpenAsync(time.Duration, func(error)) (bool, error) {
	return false, nil
}

func (t *saslTransport) IsAuthenticated() bool {
	return true
}

func TestNegotiateSASL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var created atomic.Int32
	factory := func(inner transport.Transport, _ bool) (transport.Transport, error) {
		created.Add(1)
		return &saslTransport{inner}, nil
	}
	providers := []transport.Provider{NewSASLProvider(factory), NewAMQPProvider()}

	client, server := pipePair(t)
	accepted := acceptAsync(ctx, server, Settings{Providers: providers})

	negotiated, err := Negotiate(ctx, client, providers)
	require.NoError(t, err)
	assert.IsType(t, &saslTransport{}, negotiated)

	_, err = exchangeAMQPHeader(ctx, negotiated)
	require.NoError(t, err)

	r := awaitResult(t, accepted)
	require.NoError(t, r.err)
	assert.True(t, r.t.IsAuthenticated())
	assert.EqualValues(t, 2, created.Load())
}

func TestNegotiateTimeout(t *testing.T) {
	client, _ := pipePair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The peer never reads, so the header cannot be sent.
	_, err := Negotiate(ctx, client, []transport.Provider{NewSASLProvider(nil), NewAMQPProvider()})
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Equal(t, transport.StateFaulted, client.State())
}

func TestSettingsValidate(t *testing.T) {
	assert.Error(t, Settings{}.Validate())
	assert.Error(t, Settings{
		Transport: tcp.Settings{},
		Providers: []transport.Provider{NewAMQPProvider(), NewAMQPProvider()},
	}.Validate())
	assert.NoError(t, Settings{
		Transport: tcp.Settings{},
		Providers: []transport.Provider{NewAMQPProvider()},
	}.Validate())
}

func TestListenerInitiator(t *testing.T) {
	var rejected atomic.Int32
	settings := Settings{
		Transport:                tcp.Settings{Host: "127.0.0.1"},
		Providers:                []transport.Provider{NewAMQPProvider()},
		AllowAnonymousConnection: true,
		Timeout:                  5 * time.Second,
		OnError:                  func(error) { rejected.Add(1) },
	}

	l, err := settings.CreateListener()
	require.NoError(t, err)

	accepted := make(chan transport.Transport, 1)
	require.NoError(t, l.Listen(func(args *transport.AsyncArgs) { accepted <- args.Transport }))
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A peer speaking another protocol is rejected without affecting the listener.
	bad, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	_, err = bad.Write([]byte("SSH-2.0-"))
	require.NoError(t, err)
	_, err = io.ReadFull(bad, make([]byte, transport.ProtocolHeaderSize))
	require.NoError(t, err)
	_ = bad.Close()

	clientSettings := settings
	clientSettings.Transport = tcp.Settings{Host: "127.0.0.1", Port: l.Addr().(*net.TCPAddr).Port}
	initiator, err := clientSettings.CreateInitiator()
	require.NoError(t, err)

	client, err := transport.Connect(ctx, initiator)
	require.NoError(t, err)
	defer client.Abort()

	_, err = exchangeAMQPHeader(ctx, client)
	require.NoError(t, err)

	select {
	case server := <-accepted:
		server.Abort()
	case <-ctx.Done():
		t.Fatal("connection was not accepted")
	}

	assert.Eventually(t, func() bool { return rejected.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, l.Close())
	<-l.(*Listener).Done()
}
