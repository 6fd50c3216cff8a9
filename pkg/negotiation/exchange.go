// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package negotiation

import (
	"context"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// WriteHeader sends a protocol header over the Stream.
func WriteHeader(ctx context.Context, s *transport.Stream, header transport.ProtocolHeader) error {
	_, err := s.WriteContext(ctx, header.Bytes())
	return err
}

// ReadHeader receives a protocol header from the Stream.
func ReadHeader(ctx context.Context, s *transport.Stream) (transport.ProtocolHeader, error) {
	buf := make([]byte, transport.ProtocolHeaderSize)
	if err := s.ReadFull(ctx, buf); err != nil {
		return transport.ProtocolHeader{}, err
	}
	return transport.ParseProtocolHeader(buf)
}

// abortAll aborts a layered Transport and the Transport it was established on.
func abortAll(outer, base transport.Transport) {
	if outer != nil {
		outer.Abort()
	}
	if base != nil && base != outer {
		base.Abort()
	}
}
