// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"fmt"
	"strings"
	"time"
)

// Initiator establishes outgoing Transports.
type Initiator interface {
	fmt.Stringer

	// ConnectAsync creates and opens a Transport, bounded by timeout. The result is delivered in args.Transport and
	// args.Err, following the pending convention of Transport.ReadAsync.
	ConnectAsync(timeout time.Duration, args *AsyncArgs) (pending bool, err error)
}

// Settings describe a base transport, e.g., TCP, and create its Initiator or Listener. Settings are values and
// might be shared.
type Settings interface {
	fmt.Stringer

	CreateInitiator() (Initiator, error)
	CreateListener() (Listener, error)
}

// LayerSettings describe a layer on top of another transport, e.g., TLS.
type LayerSettings interface {
	fmt.Stringer

	WrapInitiator(inner Initiator) (Initiator, error)
	WrapListener(inner Listener) (Listener, error)
}

// Stack is an upgrade plan: a base transport followed by layers, innermost first. A Stack is Settings itself.
type Stack struct {
	Base   Settings
	Layers []LayerSettings
}

// NewStack from base Settings and its layers, innermost first.
func NewStack(base Settings, layers ...LayerSettings) Stack {
	return Stack{Base: base, Layers: layers}
}

// CreateInitiator creates the base Initiator and wraps it by each layer.
func (s Stack) CreateInitiator() (Initiator, error) {
	if s.Base == nil {
		return nil, fmt.Errorf("stack has no base transport")
	}

	initiator, err := s.Base.CreateInitiator()
	if err != nil {
		return nil, fmt.Errorf("creating %v initiator failed: %w", s.Base, err)
	}

	for _, layer := range s.Layers {
		if initiator, err = layer.WrapInitiator(initiator); err != nil {
			return nil, fmt.Errorf("wrapping initiator by %v failed: %w", layer, err)
		}
	}
	return initiator, nil
}

// CreateListener creates the base Listener and wraps it by each layer.
func (s Stack) CreateListener() (Listener, error) {
	if s.Base == nil {
		return nil, fmt.Errorf("stack has no base transport")
	}

	listener, err := s.Base.CreateListener()
	if err != nil {
		return nil, fmt.Errorf("creating %v listener failed: %w", s.Base, err)
	}

	for _, layer := range s.Layers {
		wrapped, err := layer.WrapListener(listener)
		if err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("wrapping listener by %v failed: %w", layer, err)
		}
		listener = wrapped
	}
	return listener, nil
}

func (s Stack) String() string {
	var b strings.Builder
	if s.Base != nil {
		b.WriteString(s.Base.String())
	}
	for _, layer := range s.Layers {
		b.WriteString(" -> ")
		b.WriteString(layer.String())
	}
	return b.String()
}
