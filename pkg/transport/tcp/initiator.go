// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcp

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/transport"
)

// DefaultConnectTimeout bounds a connection attempt without a timeout.
const DefaultConnectTimeout = 30 * time.Second

// Initiator dials TCP connections.
type Initiator struct {
	settings Settings
}

// NewInitiator for the Settings' endpoint.
func NewInitiator(settings Settings) *Initiator {
	return &Initiator{settings: settings}
}

// ConnectAsync resolves and dials the endpoint on another goroutine. It is always pending; a failed connection
// attempt is only reported to the args' callback.
func (i *Initiator) ConnectAsync(timeout time.Duration, args *transport.AsyncArgs) (bool, error) {
	if err := args.Begin(); err != nil {
		return false, err
	}

	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	go func() {
		t, err := i.connect(timeout)
		args.Transport = t
		args.Finish(0, err, false)
	}()

	return true, nil
}

func (i *Initiator) connect(timeout time.Duration) (transport.Transport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := dial(ctx, i.settings.Address())
	if err != nil {
		i.log().WithError(err).Debug("Dialing failed")
		return nil, transport.WrapContextError(fmt.Errorf("dialing %s failed: %w", i.settings.Address(), err))
	}

	t := transport.NewStreamTransport(conn, "tcp")
	if _, err := t.OpenAsync(timeout, nil); err != nil {
		t.Abort()
		return nil, err
	}

	i.log().WithField("transport", t).Debug("Dialed successfully")
	return t, nil
}

func (i *Initiator) log() *log.Entry {
	return log.WithField("initiator", i)
}

func (i *Initiator) String() string {
	return i.settings.String()
}
