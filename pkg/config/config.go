// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config reads the TOML configuration of the daemon and the sender and builds their transport stacks.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

// Config describes the TOML-configuration.
type Config struct {
	Logging LogConf
	Listen  []ListenConf
	Connect []ConnectConf
}

// LogConf describes the Logging-configuration block.
type LogConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// TLSConf describes the certificates of a listen or connect block. For a "tls" provider they are used for the
// negotiated TLS layer, otherwise for the base transport itself, i.e., wss or QUIC.
type TLSConf struct {
	// Listener
	CertFile     string `toml:"cert-file"`
	KeyFile      string `toml:"key-file"`
	ClientCAFile string `toml:"client-ca-file"`

	// Initiator
	TargetHost         string `toml:"target-host"`
	RootCAFile         string `toml:"root-ca-file"`
	InsecureSkipVerify bool   `toml:"insecure-skip-verify"`
}

// ListenConf describes a Listen-configuration block.
type ListenConf struct {
	Transport string
	Endpoint  string
	Backlog   int
	Acceptors int
	WsPath    string `toml:"ws-path"`

	Providers                []string
	RequireSecureTransport   bool `toml:"require-secure-transport"`
	AllowAnonymousConnection bool `toml:"allow-anonymous-connection"`
	Timeout                  string

	ContainerID string `toml:"container-id"`

	// Hosts results in a shared listener routing by these virtual hosts, otherwise all connections are accepted.
	Hosts []string

	TLS *TLSConf
}

// ConnectConf describes a Connect-configuration block.
type ConnectConf struct {
	Transport string
	Endpoint  string
	WsPath    string `toml:"ws-path"`

	Providers []string
	Timeout   string

	Hostname    string
	ContainerID string `toml:"container-id"`

	TLS *TLSConf
}

// Load and validate a configuration file.
func Load(filename string) (*Config, error) {
	var conf Config
	if _, err := toml.DecodeFile(filename, &conf); err != nil {
		return nil, err
	}
	return &conf, conf.Validate()
}

// Parse and validate a configuration.
func Parse(data string) (*Config, error) {
	var conf Config
	if _, err := toml.Decode(data, &conf); err != nil {
		return nil, err
	}
	return &conf, conf.Validate()
}

var (
	transports = []string{"tcp", "tls", "ws", "quic"}
	providers  = []string{"tls", "amqp"}
)

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func validateCommon(prefix, transport, endpoint string, providerNames []string, timeout string, tlsConf *TLSConf) (errs *multierror.Error) {
	if !contains(transports, transport) {
		errs = multierror.Append(errs, fmt.Errorf("%s: unknown transport %q, select one of %s",
			prefix, transport, strings.Join(transports, ", ")))
	}
	if endpoint == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s: endpoint is empty", prefix))
	}

	for _, p := range providerNames {
		if !contains(providers, p) {
			errs = multierror.Append(errs, fmt.Errorf("%s: unknown provider %q, select one of %s",
				prefix, p, strings.Join(providers, ", ")))
		}
	}

	if timeout != "" {
		if _, err := time.ParseDuration(timeout); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
	}

	if (transport == "tls" || contains(providerNames, "tls")) && tlsConf == nil {
		errs = multierror.Append(errs, fmt.Errorf("%s: TLS requires a tls block", prefix))
	}
	if tlsConf != nil && (tlsConf.CertFile == "") != (tlsConf.KeyFile == "") {
		errs = multierror.Append(errs, fmt.Errorf("%s: cert-file and key-file must be set together", prefix))
	}
	return
}

// Validate reports all problems of the configuration at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.Logging.Level != "" {
		if _, err := parseLevel(c.Logging.Level); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = multierror.Append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}

	for i, l := range c.Listen {
		prefix := fmt.Sprintf("listen[%d]", i)
		errs = multierror.Append(errs, validateCommon(prefix, l.Transport, l.Endpoint, l.Providers, l.Timeout, l.TLS))

		if (l.Transport == "tls" || contains(l.Providers, "tls")) && (l.TLS == nil || l.TLS.CertFile == "") {
			errs = multierror.Append(errs, fmt.Errorf("%s: TLS listener requires a certificate", prefix))
		}
	}

	for i, cc := range c.Connect {
		prefix := fmt.Sprintf("connect[%d]", i)
		errs = multierror.Append(errs, validateCommon(prefix, cc.Transport, cc.Endpoint, cc.Providers, cc.Timeout, cc.TLS))
	}

	return errs.ErrorOrNil()
}

func parseTimeout(timeout string) time.Duration {
	d, _ := time.ParseDuration(timeout)
	return d
}
