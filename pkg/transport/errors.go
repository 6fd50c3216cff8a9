// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTransportClosed is returned for operations on a closing or closed Transport.
	ErrTransportClosed = errors.New("transport is closed")

	// ErrTransportAborted is wrapped by every error of an operation which was interrupted by Abort.
	ErrTransportAborted = errors.New("transport was aborted")

	// ErrTransportNotOpen is returned for I/O on a Transport which has not been opened yet.
	ErrTransportNotOpen = errors.New("transport is not open")

	// ErrInvalidState is returned when an operation does not fit the Transport's current State.
	ErrInvalidState = errors.New("invalid transport state")

	// ErrOperationInProgress is returned when a second read or write is issued in one direction before the first
	// one has completed.
	ErrOperationInProgress = errors.New("another operation in this direction is in progress")

	// ErrArgsInUse is returned when an AsyncArgs is passed to a second operation while still being in flight.
	ErrArgsInUse = errors.New("async args are in use by another operation")

	// ErrInvalidBuffer is returned when an AsyncArgs' offset and count do not fit its buffer.
	ErrInvalidBuffer = errors.New("invalid buffer offset or count")

	// ErrConcurrentStreamOperation is returned by a Stream on re-entrant use of one direction.
	ErrConcurrentStreamOperation = errors.New("concurrent stream operation")

	// ErrShutdownNotSupported is returned by Shutdown for transports without half-close support.
	ErrShutdownNotSupported = errors.New("shutdown is not supported by this transport")

	// ErrTimeout is wrapped by errors of operations which exceeded their deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrListenerClosed is reported when a Listener stopped accepting connections.
	ErrListenerClosed = errors.New("listener closed")

	// ErrInvalidProtocolHeader is returned when eight received bytes are not a protocol header.
	ErrInvalidProtocolHeader = errors.New("invalid protocol header")
)

// WrapContextError maps a context's error to this package's errors. An exceeded deadline becomes ErrTimeout, a
// canceled context becomes ErrTransportAborted.
func WrapContextError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrTransportAborted, err)
	default:
		return err
	}
}
