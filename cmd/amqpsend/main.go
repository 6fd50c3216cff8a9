// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// amqpsend connects as configured and sends each line from stdin as a transfer.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/config"
	"github.com/amqpnet/amqpstack/pkg/connection"
	"github.com/amqpnet/amqpstack/pkg/frame"
)

func showHelp() {
	fmt.Printf("amqpsend configuration.toml\n\n")
	fmt.Printf("  connects to the first [[connect]] block's endpoint and sends each line from stdin\n\n")
	fmt.Printf("Examples:\n")
	fmt.Printf("  amqpsend client.toml <<< \"hello world\"\n")
}

// send each line of r as a transfer over a new Connection.
func send(conf config.ConnectConf, r io.Reader) (int, error) {
	built, err := conf.Build()
	if err != nil {
		return 0, err
	}

	initiator, err := built.Negotiation.CreateInitiator()
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := connection.Dial(ctx, initiator, built.Connection)
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"connection": c,
		"container":  c.RemoteOpen().ContainerID,
	}).Debug("Connected")

	sent := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if _, err := c.SendTransfer(ctx, scanner.Bytes()); err != nil {
			c.Abort()
			return sent, err
		}
		sent++
	}

	if err := scanner.Err(); err != nil {
		_ = c.Close(ctx, &connection.Error{Condition: frame.ConditionInternalError, Description: err.Error()})
		return sent, err
	}
	return sent, c.Close(ctx, nil)
}

func main() {
	args := os.Args[1:]

	if len(args) != 1 {
		showHelp()
		os.Exit(1)
	}

	switch args[0] {
	case "help", "--help", "-h":
		showHelp()
		return
	}

	conf, err := config.Load(args[0])
	if err != nil {
		log.WithError(err).Fatal("Failed to parse config")
	}
	config.ConfigureLogging(conf.Logging)

	if len(conf.Connect) == 0 {
		log.Fatal("Configuration has no [[connect]] block")
	}

	sent, err := send(conf.Connect[0], os.Stdin)
	if err != nil {
		log.WithError(err).WithField("sent", sent).Fatal("Sending failed")
	}
	log.WithField("sent", sent).Info("Sent transfers")
}
