// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/config"
	"github.com/amqpnet/amqpstack/pkg/connection"
)

type listener interface {
	Listen() error
	Close() error
	Addr() net.Addr
}

// daemon holds the started listeners of all Listen-configuration blocks.
type daemon struct {
	listeners []listener
}

// startDaemon builds and starts a listener for each block. Every accepted Connection is passed to the handler.
func startDaemon(confs []config.ListenConf, handler connection.Handler) (*daemon, error) {
	d := &daemon{}

	for i, conf := range confs {
		l, err := buildListener(conf, handler)
		if err == nil {
			err = l.Listen()
		}
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("listen[%d]: %w", i, err)
		}

		log.WithFields(log.Fields{
			"transport": conf.Transport,
			"address":   l.Addr(),
			"hosts":     conf.Hosts,
		}).Info("Started listener")

		d.listeners = append(d.listeners, l)
	}

	return d, nil
}

func buildListener(conf config.ListenConf, handler connection.Handler) (listener, error) {
	built, err := conf.Build()
	if err != nil {
		return nil, err
	}

	base, err := built.Negotiation.CreateListener()
	if err != nil {
		return nil, err
	}

	if len(built.Hosts) == 0 {
		return connection.NewExclusiveListener(base, built.Connection, handler), nil
	}

	shared := connection.NewSharedListener(base, built.Connection)
	for _, host := range built.Hosts {
		shared.Register(host, handler)
	}
	return shared, nil
}

// Close all listeners. Established connections are not affected.
func (d *daemon) Close() error {
	var errs *multierror.Error
	for _, l := range d.listeners {
		if err := l.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	d.listeners = nil
	return errs.ErrorOrNil()
}

// logTransfers receives until the peer closes the Connection.
func logTransfers(c *connection.Connection) {
	go func() {
		defer c.Abort()

		logger := log.WithFields(log.Fields{
			"connection": c,
			"container":  c.RemoteOpen().ContainerID,
			"hostname":   c.RemoteOpen().Hostname,
		})
		logger.Info("Accepted connection")

		for {
			payload, err := c.Receive(context.Background())
			if errors.Is(err, io.EOF) {
				logger.Info("Connection closed by peer")
				return
			} else if err != nil {
				logger.WithError(err).Warn("Connection failed")
				return
			}

			logger.WithField("size", len(payload)).Infof("Received transfer: %q", payload)
		}
	}()
}
