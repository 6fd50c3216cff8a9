// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcp

import (
	"context"
	"net"
	"time"
)

// initiatorKeepAlive probes an idle connection. AMQP heartbeats are only negotiated by the open frames, so a peer
// vanishing during the protocol header exchange or a TLS handshake is noticed by these probes alone.
var initiatorKeepAlive = net.KeepAliveConfig{
	Enable:   true,
	Idle:     15 * time.Second,
	Interval: 5 * time.Second,
	Count:    3,
}

// unacknowledgedTimeout bounds how long written frames may stay unacknowledged, where supported.
const unacknowledgedTimeout = 30 * time.Second

func dial(ctx context.Context, address string) (net.Conn, error) {
	dialer := &net.Dialer{
		KeepAliveConfig: initiatorKeepAlive,
		Control:         dialControl,
	}
	return dialer.DialContext(ctx, "tcp", address)
}
