// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

func parseLevel(level string) (log.Level, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("logging: %w, select one of panic,fatal,error,warn,info,debug,trace", err)
	}
	return lvl, nil
}

// ConfigureLogging applies the Logging-configuration block to the standard logger.
func ConfigureLogging(conf LogConf) {
	if conf.Level != "" {
		if lvl, err := parseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			DisableTimestamp: false,
			FullTimestamp:    true,
			TimestampFormat:  "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.WithField("format", conf.Format).Warn("Unknown logging format")
	}
}
