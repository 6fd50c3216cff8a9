// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ws provides AMQP over WebSockets as a base transport. An HTTP server routes the upgrade requests of one
// path to the Listener; the Initiator dials a ws:// or wss:// URL.
package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

const (
	// Subprotocol of the AMQP WebSocket binding.
	Subprotocol = "amqp"

	// DefaultPath is used for an empty Settings.Path.
	DefaultPath = "/"

	// DefaultHandshakeTimeout bounds the HTTP upgrade of an initiator without a timeout.
	DefaultHandshakeTimeout = 30 * time.Second
)

// Settings of a WebSocket endpoint.
type Settings struct {
	// Address is "host:port".
	Address string
	Path    string

	// TLSConfig enables wss; the listener requires a certificate.
	TLSConfig *tls.Config
}

func (s Settings) path() string {
	if s.Path == "" {
		return DefaultPath
	}
	return s.Path
}

// URL to be dialed.
func (s Settings) URL() string {
	u := url.URL{Scheme: "ws", Host: s.Address, Path: s.path()}
	if s.TLSConfig != nil {
		u.Scheme = "wss"
	}
	return u.String()
}

func (s Settings) CreateInitiator() (transport.Initiator, error) {
	return &Initiator{settings: s}, nil
}

func (s Settings) CreateListener() (transport.Listener, error) {
	return NewListener(s), nil
}

func (s Settings) String() string {
	return s.URL()
}

// newTransport wraps an established WebSocket.
func newTransport(conn *websocket.Conn, secure bool) *transport.StreamTransport {
	c := newWsConn(conn)
	return transport.NewStreamTransport(c, "ws",
		transport.WithSecure(secure),
		transport.WithAbortFunc(c.abort))
}

// Initiator dials WebSocket connections.
type Initiator struct {
	settings Settings
}

// ConnectAsync dials on another goroutine; it is always pending.
func (i *Initiator) ConnectAsync(timeout time.Duration, args *transport.AsyncArgs) (bool, error) {
	if err := args.Begin(); err != nil {
		return false, err
	}

	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	go func() {
		t, err := i.connect(timeout)
		args.Transport = t
		args.Finish(0, err, false)
	}()

	return true, nil
}

func (i *Initiator) connect(timeout time.Duration) (transport.Transport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		Subprotocols:     []string{Subprotocol},
		TLSClientConfig:  i.settings.TLSConfig,
	}

	conn, _, err := dialer.DialContext(ctx, i.settings.URL(), nil)
	if err != nil {
		return nil, transport.WrapContextError(fmt.Errorf("dialing %s failed: %w", i.settings.URL(), err))
	}

	t := newTransport(conn, i.settings.TLSConfig != nil)
	if _, err := t.OpenAsync(timeout, nil); err != nil {
		t.Abort()
		return nil, err
	}

	log.WithFields(log.Fields{
		"initiator": i,
		"transport": t,
	}).Debug("Dialed successfully")
	return t, nil
}

func (i *Initiator) String() string {
	return i.settings.String()
}

// Listener serves WebSocket upgrades on its path.
type Listener struct {
	transport.ListenerBase

	settings Settings
	upgrader websocket.Upgrader

	mutex  sync.Mutex
	server *http.Server
	ln     net.Listener
}

// NewListener for the Settings' address and path.
func NewListener(settings Settings) *Listener {
	l := &Listener{
		settings: settings,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Subprotocol},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
	}
	l.InitListener(l)
	return l
}

// Listen binds the address and starts the HTTP server.
func (l *Listener) Listen(onAccept func(args *transport.AsyncArgs)) error {
	if err := l.BeginListen(onAccept); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", l.settings.Address)
	if err != nil {
		l.NotifyClosed(err)
		return fmt.Errorf("listening on %s failed: %w", l.settings.Address, err)
	}

	router := mux.NewRouter()
	router.Handle(l.settings.path(), l).Methods(http.MethodGet)

	server := &http.Server{
		Handler:           router,
		TLSConfig:         l.settings.TLSConfig,
		ReadHeaderTimeout: DefaultHandshakeTimeout,
	}

	l.mutex.Lock()
	l.ln = ln
	l.server = server
	l.mutex.Unlock()

	if l.Closed() {
		_ = server.Close()
		_ = ln.Close()
		return transport.ErrListenerClosed
	}

	go func() {
		var err error
		if l.settings.TLSConfig != nil {
			err = server.ServeTLS(ln, "", "")
		} else {
			err = server.Serve(ln)
		}

		if !errors.Is(err, http.ErrServerClosed) {
			log.WithField("listener", l).WithError(err).Error("WebSocket listener's HTTP server failed")
			l.NotifyClosed(fmt.Errorf("%w: %w", transport.ErrListenerClosed, err))
		}
	}()

	log.WithField("listener", l).Info("WebSocket listener started")
	return nil
}

// ServeHTTP upgrades a HTTP connection to a WebSocket connection.
func (l *Listener) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	conn, err := l.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		log.WithField("listener", l).WithError(err).Warn("Upgrading connection errored")
		return
	}

	t := newTransport(conn, l.settings.TLSConfig != nil)
	if _, err := t.OpenAsync(0, nil); err != nil {
		t.Abort()
		return
	}

	log.WithFields(log.Fields{
		"listener":  l,
		"transport": t,
		"peer":      conn.RemoteAddr(),
	}).Debug("Accepted WebSocket connection")

	l.NotifyAccept(t)
}

// Close the HTTP server. Upgraded connections are not affected.
func (l *Listener) Close() error {
	if !l.NotifyClosed(nil) {
		return nil
	}

	l.mutex.Lock()
	server := l.server
	l.mutex.Unlock()

	if server == nil {
		return nil
	}
	return server.Close()
}

func (l *Listener) Addr() net.Addr {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) String() string {
	return l.settings.String()
}
