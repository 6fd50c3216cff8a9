// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quicl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// Listener accepts QUIC connections and hands off a Transport for each connection's first stream.
type Listener struct {
	transport.ListenerBase

	settings Settings

	mutex sync.Mutex
	tr    *quic.Transport
	ln    *quic.Listener

	// conns tracks the connections of handed off transports, which share the listener's UDP socket.
	conns sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewListener for the Settings' endpoint.
func NewListener(settings Settings) *Listener {
	l := &Listener{settings: settings}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.InitListener(l)
	return l
}

// Listen binds the UDP socket and starts accepting.
func (l *Listener) Listen(onAccept func(args *transport.AsyncArgs)) error {
	if err := l.BeginListen(onAccept); err != nil {
		return err
	}

	tlsConf, err := l.settings.tlsConfig(false)
	if err != nil {
		l.NotifyClosed(err)
		return err
	}

	udpAddr, err := net.ResolveUDPAddr("udp", l.settings.Address)
	if err != nil {
		l.NotifyClosed(err)
		return fmt.Errorf("resolving %s failed: %w", l.settings.Address, err)
	}

	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		l.NotifyClosed(err)
		return fmt.Errorf("listening on %s failed: %w", l.settings.Address, err)
	}

	tr := &quic.Transport{Conn: udpConn}
	ln, err := tr.Listen(tlsConf, l.settings.quicConfig(0))
	if err != nil {
		_ = tr.Close()
		l.NotifyClosed(err)
		return fmt.Errorf("listening on %s failed: %w", l.settings.Address, err)
	}

	l.mutex.Lock()
	l.tr = tr
	l.ln = ln
	l.mutex.Unlock()

	if l.Closed() {
		_ = ln.Close()
		_ = tr.Close()
		return transport.ErrListenerClosed
	}

	log.WithField("address", ln.Addr()).Info("QUIC listener started")

	go l.acceptLoop(ln)
	return nil
}

func (l *Listener) acceptLoop(ln *quic.Listener) {
	for {
		conn, err := ln.Accept(l.ctx)
		if err != nil {
			if l.Closed() {
				return
			}

			l.log().WithError(err).Error("Accepting failed, closing listener")
			if l.NotifyClosed(fmt.Errorf("%w: %w", transport.ErrListenerClosed, err)) {
				_ = l.shutdown()
			}
			return
		}

		go l.dispatch(conn)
	}
}

// dispatch waits for the peer's stream. A stream becomes visible once the initiator sent its first bytes.
func (l *Listener) dispatch(conn quic.Connection) {
	stream, err := conn.AcceptStream(l.ctx)
	if err != nil {
		l.log().WithError(err).WithField("peer", conn.RemoteAddr()).Debug("Accepting stream failed")
		if l.Closed() {
			_ = conn.CloseWithError(ListenerShutdown, "listener closed")
		} else {
			_ = conn.CloseWithError(StreamError, "accepting stream failed")
		}
		return
	}

	t := newTransport(conn, stream)
	if _, err := t.OpenAsync(0, nil); err != nil {
		l.log().WithError(err).Warn("Opening accepted transport failed")
		t.Abort()
		return
	}

	l.log().WithFields(log.Fields{
		"transport": t,
		"peer":      conn.RemoteAddr(),
	}).Debug("Accepted connection")

	l.mutex.Lock()
	if l.ln == nil {
		l.mutex.Unlock()
		t.Abort()
		return
	}
	l.conns.Add(1)
	l.mutex.Unlock()

	go func() {
		<-conn.Context().Done()
		l.conns.Done()
	}()

	l.NotifyAccept(t)
}

// Close stops accepting. Connections which are still waiting for their stream are closed as well, while handed off
// transports are not affected. The UDP socket is released after the last of them was closed.
func (l *Listener) Close() error {
	if !l.NotifyClosed(nil) {
		return nil
	}

	l.log().Info("QUIC listener closed")
	return l.shutdown()
}

func (l *Listener) shutdown() error {
	l.cancel()

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.ln == nil {
		return nil
	}

	err := l.ln.Close()
	l.ln = nil

	tr := l.tr
	go func() {
		l.conns.Wait()
		_ = tr.Close()
	}()

	if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, quic.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr of the bound UDP socket.
func (l *Listener) Addr() net.Addr {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.tr == nil {
		return nil
	}
	return l.tr.Conn.LocalAddr()
}

func (l *Listener) log() *log.Entry {
	return log.WithField("listener", l)
}

func (l *Listener) String() string {
	return l.settings.String()
}
