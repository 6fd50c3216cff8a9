// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// Listener is bound to a TCP endpoint and accepts incoming connections on multiple accept loops.
type Listener struct {
	transport.ListenerBase

	settings Settings

	// listenFunc creates the listening socket; replaced within tests.
	listenFunc func(address string, backlog int) (net.Listener, error)

	mutex sync.Mutex
	ln    net.Listener
}

// NewListener for the Settings' endpoint.
func NewListener(settings Settings) *Listener {
	l := &Listener{
		settings:   settings,
		listenFunc: listen,
	}
	l.InitListener(l)
	return l
}

// Listen binds the socket and starts the accept loops.
func (l *Listener) Listen(onAccept func(args *transport.AsyncArgs)) error {
	if err := l.BeginListen(onAccept); err != nil {
		return err
	}

	ln, err := l.listenFunc(l.settings.Address(), l.settings.backlog())
	if err != nil {
		l.NotifyClosed(err)
		return fmt.Errorf("listening on %s failed: %w", l.settings.Address(), err)
	}

	l.mutex.Lock()
	l.ln = ln
	l.mutex.Unlock()

	if l.Closed() {
		_ = ln.Close()
		return transport.ErrListenerClosed
	}

	l.log().WithFields(log.Fields{
		"backlog":   l.settings.backlog(),
		"acceptors": l.settings.acceptorCount(),
	}).Info("TCP listener started")

	for i := 0; i < l.settings.acceptorCount(); i++ {
		go l.acceptLoop(ln, i)
	}
	return nil
}

// acceptLoop accepts connections until the Listener is closed or a non-transient error occurs.
func (l *Listener) acceptLoop(ln net.Listener, acceptor int) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.Closed() {
				return
			}

			if isTransientAcceptError(err) {
				l.log().WithError(err).WithField("acceptor", acceptor).Warn("Transient accept error, retrying")
				continue
			}

			l.log().WithError(err).WithField("acceptor", acceptor).Error("Accepting failed, closing listener")
			l.fail(fmt.Errorf("%w: %w", transport.ErrListenerClosed, err))
			return
		}

		go l.dispatch(conn)
	}
}

// dispatch wraps and opens an accepted connection and hands it off.
func (l *Listener) dispatch(conn net.Conn) {
	t := transport.NewStreamTransport(conn, "tcp")
	if _, err := t.OpenAsync(0, nil); err != nil {
		l.log().WithError(err).Warn("Opening accepted transport failed")
		t.Abort()
		return
	}

	l.log().WithFields(log.Fields{
		"transport": t,
		"peer":      conn.RemoteAddr(),
	}).Debug("Accepted connection")

	l.NotifyAccept(t)
}

func (l *Listener) fail(err error) {
	if l.NotifyClosed(err) {
		l.closeSocket()
	}
}

func (l *Listener) closeSocket() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

// Close the listening socket. Accepted transports are not affected.
func (l *Listener) Close() error {
	if !l.NotifyClosed(nil) {
		return nil
	}

	l.log().Info("TCP listener closed")
	if err := l.closeSocket(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Addr of the bound socket, which might differ from the Settings for port 0.
func (l *Listener) Addr() net.Addr {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) log() *log.Entry {
	return log.WithField("listener", l)
}

func (l *Listener) String() string {
	return l.settings.String()
}

// isTransientAcceptError identifies errors which only affect a single connection attempt.
func isTransientAcceptError(err error) bool {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ENOBUFS, syscall.ETIMEDOUT} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
