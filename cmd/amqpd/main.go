// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// amqpd listens for AMQP connections as configured and logs each received transfer.
package main

import (
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/config"
)

// waitSigint blocks the current thread until a SIGINT appears.
func waitSigint() {
	signalSyn := make(chan os.Signal, 1)
	signalAck := make(chan struct{})

	signal.Notify(signalSyn, os.Interrupt)

	go func() {
		<-signalSyn
		close(signalAck)
	}()

	<-signalAck
}

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	conf, err := config.Load(os.Args[1])
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Failed to parse config")
	}

	config.ConfigureLogging(conf.Logging)

	d, err := startDaemon(conf.Listen, logTransfers)
	if err != nil {
		log.WithError(err).Fatal("Failed to start listeners")
	}

	waitSigint()
	log.Info("Shutting down..")

	if err := d.Close(); err != nil {
		log.WithError(err).Warn("Closing listeners errored")
	}
}
