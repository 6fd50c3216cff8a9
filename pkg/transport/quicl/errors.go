// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quicl

import "github.com/quic-go/quic-go"

const (
	// NoError is sent when a transport is closed gracefully.
	NoError quic.ApplicationErrorCode = 0

	// AbortError is sent when a transport is aborted.
	AbortError quic.ApplicationErrorCode = 1

	// StreamError is sent when the connection's stream could not be established.
	StreamError quic.ApplicationErrorCode = 2

	// ListenerShutdown is sent to connections which were not handed off before their listener closed.
	ListenerShutdown quic.ApplicationErrorCode = 3

	// ReadCanceled cancels the read side of a stream which is closed locally.
	ReadCanceled quic.StreamErrorCode = 1
)
