// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package negotiation

import (
	"errors"
	"fmt"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

var (
	// ErrProtocolNotSupported is reported by a Listener for a header of an unknown protocol.
	ErrProtocolNotSupported = errors.New("protocol not supported")

	// ErrProtocolVersionNotSupported is reported for a header whose version does not match, and by an Initiator
	// for any header which differs from its own.
	ErrProtocolVersionNotSupported = errors.New("protocol version not supported")

	// ErrSecureTransportRequired is reported by a Listener whose policy rejects an insecure transport.
	ErrSecureTransportRequired = errors.New("secure transport required")

	// ErrAuthenticationRequired is reported by a Listener whose policy rejects anonymous peers.
	ErrAuthenticationRequired = errors.New("authentication required")
)

// HeaderMismatchError is reported by an Initiator if the peer did not echo the sent header.
type HeaderMismatchError struct {
	Sent     transport.ProtocolHeader
	Received transport.ProtocolHeader
}

func (e *HeaderMismatchError) Error() string {
	return fmt.Sprintf("%v: sent %v, received %v", ErrProtocolVersionNotSupported, e.Sent, e.Received)
}

func (e *HeaderMismatchError) Unwrap() error {
	return ErrProtocolVersionNotSupported
}
