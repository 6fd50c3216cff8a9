// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package transport contains the layered byte-stream transports of the AMQP stack.

A Transport is a stateful endpoint which moves through the states Start, Opening, Opened, Closing and End. It might
also be aborted or faulted from any non-terminal state, which is an absorbing state.

All I/O is asynchronous and follows one convention. Each operation is described by an AsyncArgs, which is reused for
all operations of the same direction. Both ReadAsync and WriteAsync return a pending flag:

	pending, err := t.ReadAsync(args)
	switch {
	case err != nil:
		// The operation was never started, e.g., the transport is closed or a read is already in flight.
	case !pending:
		// The operation completed synchronously; its result is already in args. The callback will not fire.
	default:
		// args.Completed will be called exactly once, possibly on another goroutine.
	}

A Stream bridges this convention back to a blocking io.Reader and io.Writer. It is used by layers which need a stream,
e.g., crypto/tls, and by the protocol negotiation.

Transports are stacked: a base transport (TCP, WebSocket, QUIC) is wrapped by layers such as TLS. A Stack describes
such an upgrade plan as the base Settings followed by an ordered list of LayerSettings.
*/
package transport
