// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux

package tcp

import "syscall"

// dialControl is unset, as TCP_USER_TIMEOUT is Linux specific.
var dialControl func(network, address string, rawConn syscall.RawConn) error
