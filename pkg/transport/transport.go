// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// ShutdownMode selects the direction(s) of a half-close.
type ShutdownMode int

const (
	ShutdownRead ShutdownMode = iota
	ShutdownWrite
	ShutdownBoth
)

func (m ShutdownMode) String() string {
	switch m {
	case ShutdownRead:
		return "read"
	case ShutdownWrite:
		return "write"
	case ShutdownBoth:
		return "both"
	default:
		return fmt.Sprintf("ShutdownMode(%d)", int(m))
	}
}

// Transport is a stateful byte-stream endpoint, either a plain socket or a layer wrapping another Transport.
type Transport interface {
	fmt.Stringer

	// ID uniquely identifies this Transport.
	ID() uuid.UUID

	// State returns the current State.
	State() State

	// OpenAsync opens the Transport, bounded by timeout; a non-positive timeout is unbounded. It follows the pending
	// convention of ReadAsync, but reports its result as an error: if pending is false, err is the final result and
	// done will not be called; otherwise done is called exactly once.
	OpenAsync(timeout time.Duration, done func(err error)) (pending bool, err error)

	// Close gracefully closes the Transport and everything it wraps.
	Close() error

	// Abort tears the Transport down immediately. It never blocks, is idempotent and lets every pending operation
	// complete with an error.
	Abort()

	// Shutdown half-closes the Transport.
	Shutdown(mode ShutdownMode) error

	// ReadAsync reads up to args.Count bytes into args.Buffer at args.Offset.
	ReadAsync(args *AsyncArgs) (pending bool, err error)

	// WriteAsync writes the args' buffer segment. An asynchronous write completes after all bytes were written or
	// an error occurred.
	WriteAsync(args *AsyncArgs) (pending bool, err error)

	// IsSecure reports if this Transport or a Transport it wraps encrypts the connection.
	IsSecure() bool

	// IsAuthenticated reports if the peer's identity was established.
	IsAuthenticated() bool

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// ContextFromTimeout derives a context bounded by timeout. A non-positive timeout results in a cancelable context
// without a deadline.
func ContextFromTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

// Remaining returns the time left until the context's deadline. Zero is returned for contexts without a deadline,
// a passed deadline results in the smallest positive duration.
func Remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}

	if remaining := time.Until(deadline); remaining > 0 {
		return remaining
	}
	return time.Nanosecond
}

// Open a Transport and wait for its completion. When the context is done first, the Transport is aborted.
func Open(ctx context.Context, t Transport) error {
	if err := ctx.Err(); err != nil {
		t.Abort()
		return WrapContextError(err)
	}

	done := make(chan error, 1)
	pending, err := t.OpenAsync(Remaining(ctx), func(err error) { done <- err })
	if !pending {
		return err
	}

	select {
	case err := <-done:
		return err

	case <-ctx.Done():
		t.Abort()
		<-done
		return WrapContextError(ctx.Err())
	}
}

// Connect establishes a Transport through an Initiator and waits for it.
//
// If the context is canceled while the connection attempt is still pending, an error is returned immediately and a
// late Transport is aborted as soon as it arrives.
func Connect(ctx context.Context, initiator Initiator) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapContextError(err)
	}

	done := make(chan *AsyncArgs, 1)
	args := NewAsyncArgs(func(args *AsyncArgs) { done <- args })

	pending, err := initiator.ConnectAsync(Remaining(ctx), args)
	if err != nil {
		return nil, err
	} else if !pending {
		return args.Transport, args.Err
	}

	select {
	case args := <-done:
		if args.Err != nil {
			return nil, args.Err
		}
		return args.Transport, nil

	case <-ctx.Done():
		go func() {
			if args := <-done; args.Err == nil && args.Transport != nil {
				args.Transport.Abort()
			}
		}()
		return nil, WrapContextError(ctx.Err())
	}
}
