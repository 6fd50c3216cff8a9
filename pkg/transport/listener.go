// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Listener accepts incoming Transports.
type Listener interface {
	fmt.Stringer

	// Listen starts accepting. Each accepted and opened Transport is passed to onAccept in args.Transport; onAccept
	// owns the Transport afterwards. onAccept might be called concurrently from different goroutines.
	Listen(onAccept func(args *AsyncArgs)) error

	// Close stops accepting. Already accepted Transports are not affected.
	Close() error

	// Addr of the listening socket, nil before Listen.
	Addr() net.Addr

	// SetClosedHandler registers a function which is called exactly once when the Listener stops, either by Close
	// or by a fatal error.
	SetClosedHandler(handler func(l Listener, err error))
}

// ListenerBase implements the bookkeeping shared by Listeners. It is meant to be embedded.
type ListenerBase struct {
	self Listener

	mutex         sync.Mutex
	listening     bool
	onAccept      func(args *AsyncArgs)
	closedHandler func(l Listener, err error)

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// InitListener must be called once by the embedding Listener.
func (lb *ListenerBase) InitListener(self Listener) {
	lb.self = self
	lb.done = make(chan struct{})
}

// BeginListen stores the accept callback. It fails if the Listener is already listening or closed.
func (lb *ListenerBase) BeginListen(onAccept func(args *AsyncArgs)) error {
	if onAccept == nil {
		return fmt.Errorf("missing accept callback")
	}

	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	select {
	case <-lb.done:
		return ErrListenerClosed
	default:
	}

	if lb.listening {
		return fmt.Errorf("%v is already listening", lb.self)
	}

	lb.listening = true
	lb.onAccept = onAccept
	return nil
}

// SetClosedHandler as described by the Listener interface.
func (lb *ListenerBase) SetClosedHandler(handler func(l Listener, err error)) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	lb.closedHandler = handler
}

// NotifyAccept passes an accepted Transport to the accept callback. A Transport accepted after the Listener was
// closed is aborted.
func (lb *ListenerBase) NotifyAccept(t Transport) {
	select {
	case <-lb.done:
		t.Abort()
		return
	default:
	}

	lb.mutex.Lock()
	onAccept := lb.onAccept
	lb.mutex.Unlock()

	args := NewAsyncArgs(nil)
	args.Transport = t
	onAccept(args)
}

// NotifyClosed marks the Listener as closed and calls the closed handler. Only the first call has an effect, which
// is reported by the return value.
func (lb *ListenerBase) NotifyClosed(err error) (first bool) {
	lb.closeOnce.Do(func() {
		first = true

		lb.mutex.Lock()
		lb.err = err
		handler := lb.closedHandler
		lb.mutex.Unlock()

		close(lb.done)

		log.WithFields(log.Fields{
			"listener": lb.self,
			"error":    err,
		}).Debug("Listener closed")

		if handler != nil {
			handler(lb.self, err)
		}
	})
	return
}

// Done is closed after the Listener was closed.
func (lb *ListenerBase) Done() <-chan struct{} {
	return lb.done
}

// Closed reports if the Listener was closed.
func (lb *ListenerBase) Closed() bool {
	select {
	case <-lb.done:
		return true
	default:
		return false
	}
}

// Err returns the error which closed the Listener, nil for a regular Close.
func (lb *ListenerBase) Err() error {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	return lb.err
}
