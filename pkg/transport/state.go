// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// State of a Transport.
type State int32

const (
	// StateStart is the state of a newly created Transport.
	StateStart State = iota

	// StateOpening while the Transport is being opened, e.g., during a TLS handshake.
	StateOpening

	// StateOpened allows reading and writing.
	StateOpened

	// StateClosing while a graceful close is in progress.
	StateClosing

	// StateEnd after a graceful close.
	StateEnd

	// StateFaulted after an Abort or a failure. This state is absorbing.
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateOpening:
		return "opening"
	case StateOpened:
		return "opened"
	case StateClosing:
		return "closing"
	case StateEnd:
		return "end"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports if no further transition is possible.
func (s State) Terminal() bool {
	return s == StateEnd || s == StateFaulted
}

// Base implements the state machine and the per-direction guards shared by all Transports. It is meant to be
// embedded and initialized by Init.
type Base struct {
	id    uuid.UUID
	kind  string
	self  Transport
	state atomic.Int32

	reading atomic.Bool
	writing atomic.Bool
}

// Init must be called once by the embedding Transport before its first use.
func (b *Base) Init(self Transport, kind string) {
	b.id = uuid.New()
	b.kind = kind
	b.self = self
	b.state.Store(int32(StateStart))
}

// ID uniquely identifies this Transport, e.g., within log messages.
func (b *Base) ID() uuid.UUID {
	return b.id
}

// State returns the current State.
func (b *Base) State() State {
	return State(b.state.Load())
}

func (b *Base) String() string {
	return fmt.Sprintf("%s(%s)", b.kind, b.id.String()[:8])
}

// Log returns a logrus Entry with this Transport's fields.
func (b *Base) Log() *log.Entry {
	return log.WithFields(log.Fields{
		"transport": b.String(),
		"state":     b.State(),
	})
}

func (b *Base) transition(from, to State) bool {
	return b.state.CompareAndSwap(int32(from), int32(to))
}

// stateError maps a State to the error of an operation which cannot be performed in it.
func stateError(s State) error {
	switch s {
	case StateStart, StateOpening:
		return ErrTransportNotOpen
	case StateClosing, StateEnd:
		return ErrTransportClosed
	case StateFaulted:
		return ErrTransportAborted
	default:
		return ErrInvalidState
	}
}

// BeginOpen moves from Start to Opening.
func (b *Base) BeginOpen() error {
	if !b.transition(StateStart, StateOpening) {
		if s := b.State(); s == StateFaulted || s == StateClosing || s == StateEnd {
			return stateError(s)
		}
		return fmt.Errorf("%w: cannot open %v in state %v", ErrInvalidState, b, b.State())
	}
	return nil
}

// CompleteOpen finishes an opening. A nil error moves to Opened, otherwise to Faulted. If the Transport was aborted
// meanwhile, an error wrapping ErrTransportAborted is returned.
func (b *Base) CompleteOpen(err error) error {
	if err != nil {
		if b.transition(StateOpening, StateFaulted) {
			return err
		}
		b.Fault()
		return b.WrapError(err)
	}

	if !b.transition(StateOpening, StateOpened) {
		return fmt.Errorf("%w: open of %v was interrupted", ErrTransportAborted, b)
	}
	return nil
}

// BeginClose moves to Closing. False is returned if this Transport is already closing or terminated.
func (b *Base) BeginClose() bool {
	for {
		s := b.State()
		if s == StateClosing || s.Terminal() {
			return false
		}
		if b.transition(s, StateClosing) {
			return true
		}
	}
}

// CompleteClose moves from Closing to End, unless an Abort happened in between.
func (b *Base) CompleteClose() {
	b.transition(StateClosing, StateEnd)
}

// BeginAbort moves to Faulted. False is returned if this Transport was already terminated, making Abort idempotent.
func (b *Base) BeginAbort() bool {
	for {
		s := b.State()
		if s.Terminal() {
			return false
		}
		if b.transition(s, StateFaulted) {
			return true
		}
	}
}

// Fault moves into the Faulted state after an I/O failure. A Transport which is already closing is left alone.
func (b *Base) Fault() {
	for {
		s := b.State()
		if s == StateClosing || s.Terminal() {
			return
		}
		if b.transition(s, StateFaulted) {
			return
		}
	}
}

// WrapError relates an I/O error to this Transport's state: after an Abort the error wraps ErrTransportAborted,
// after a graceful close ErrTransportClosed.
func (b *Base) WrapError(err error) error {
	if err == nil {
		return nil
	}

	switch s := b.State(); {
	case s == StateFaulted && !errors.Is(err, ErrTransportAborted):
		return fmt.Errorf("%w: %w", ErrTransportAborted, err)
	case (s == StateClosing || s == StateEnd) && !errors.Is(err, ErrTransportClosed):
		return fmt.Errorf("%w: %w", ErrTransportClosed, err)
	default:
		return err
	}
}

func (b *Base) beginIO(args *AsyncArgs, guard *atomic.Bool) error {
	if args == nil {
		return fmt.Errorf("%w: nil args", ErrInvalidBuffer)
	}

	if s := b.State(); s != StateOpened {
		return stateError(s)
	}

	if !guard.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}

	if err := args.Begin(); err != nil {
		guard.Store(false)
		return err
	}

	if !args.validBuffer() {
		guard.Store(false)
		args.inFlight.Store(false)
		return ErrInvalidBuffer
	}

	args.Transport = b.self
	return nil
}

// BeginRead checks if a read might be issued with these args and marks the read direction as busy.
func (b *Base) BeginRead(args *AsyncArgs) error {
	return b.beginIO(args, &b.reading)
}

// BeginWrite checks if a write might be issued with these args and marks the write direction as busy.
func (b *Base) BeginWrite(args *AsyncArgs) error {
	return b.beginIO(args, &b.writing)
}

// CompleteRead releases the read direction and finishes the args. For asynchronous completions, the callback is
// invoked afterwards.
func (b *Base) CompleteRead(args *AsyncArgs, n int, err error, synchronous bool) {
	err = b.WrapError(err)
	b.reading.Store(false)
	args.Finish(n, err, synchronous)
}

// CompleteWrite releases the write direction and finishes the args.
func (b *Base) CompleteWrite(args *AsyncArgs, n int, err error, synchronous bool) {
	err = b.WrapError(err)
	b.writing.Store(false)
	args.Finish(n, err, synchronous)
}

// FaultRead completes a read which failed with an I/O error and moves the Transport into the Faulted state. The
// error itself is reported unchanged.
func (b *Base) FaultRead(args *AsyncArgs, n int, err error, synchronous bool) {
	err = b.WrapError(err)
	b.Fault()
	b.reading.Store(false)
	args.Finish(n, err, synchronous)
}

// FaultWrite is the write direction's counterpart of FaultRead.
func (b *Base) FaultWrite(args *AsyncArgs, n int, err error, synchronous bool) {
	err = b.WrapError(err)
	b.Fault()
	b.writing.Store(false)
	args.Finish(n, err, synchronous)
}
