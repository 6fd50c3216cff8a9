// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package connection establishes AMQP connections on negotiated transports and routes accepted connections to
// their handlers, either exclusively or by the virtual host a peer declares.
package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/amqpnet/amqpstack/pkg/frame"
	"github.com/amqpnet/amqpstack/pkg/negotiation"
	"github.com/amqpnet/amqpstack/pkg/transport"
)

// Error is an AMQP error condition, received from or sent to a peer.
type Error = frame.Error

// ErrConnectionClosed is returned for operations on a closed Connection.
var ErrConnectionClosed = errors.New("connection closed")

// Settings announced by this side's open.
type Settings struct {
	// ContainerID defaults to a random UUID.
	ContainerID string

	// Hostname is the virtual host an initiator connects to.
	Hostname string

	MaxFrameSize uint32
	ChannelMax   uint16

	// OpenTimeout bounds the open exchange of accepted connections.
	OpenTimeout time.Duration
}

func (s Settings) open() *frame.Open {
	o := &frame.Open{
		ContainerID:  s.ContainerID,
		Hostname:     s.Hostname,
		MaxFrameSize: s.MaxFrameSize,
		ChannelMax:   s.ChannelMax,
	}

	if o.ContainerID == "" {
		o.ContainerID = uuid.NewString()
	}
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = frame.DefaultMaxFrameSize
	}
	return o
}

// Connection is an established AMQP connection, i.e., both opens were exchanged.
//
// Transfers might be sent concurrently, while Receive must not be called concurrently.
type Connection struct {
	t      transport.Transport
	stream *transport.Stream

	local  *frame.Open
	remote *frame.Open

	writeMutex sync.Mutex
	nextID     atomic.Uint32

	closeSent atomic.Bool
}

func newConnection(t transport.Transport, local *frame.Open) *Connection {
	return &Connection{
		t:      t,
		stream: transport.NewStream(t),
		local:  local,
	}
}

// Dial connects by an Initiator, e.g., a negotiation.Initiator, and opens the connection.
func Dial(ctx context.Context, initiator transport.Initiator, settings Settings) (*Connection, error) {
	t, err := transport.Connect(ctx, initiator)
	if err != nil {
		return nil, err
	}

	c, err := Open(ctx, t, settings)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Open establishes a connection as initiator on a negotiated Transport: the AMQP header is exchanged first, followed
// by both opens. On failure the Transport is aborted.
func Open(ctx context.Context, t transport.Transport, settings Settings) (*Connection, error) {
	c := newConnection(t, settings.open())

	if err := c.exchangeHeader(ctx); err != nil {
		t.Abort()
		return nil, err
	}

	if err := c.writePerformative(ctx, c.local); err != nil {
		t.Abort()
		return nil, err
	}

	remote, err := c.readOpen(ctx)
	if err != nil {
		t.Abort()
		return nil, err
	}
	c.remote = remote

	c.log().WithField("remote", remote).Debug("Connection opened")
	return c, nil
}

func (c *Connection) exchangeHeader(ctx context.Context) error {
	sent := negotiation.NewAMQPProvider().DefaultHeader()
	if err := negotiation.WriteHeader(ctx, c.stream, sent); err != nil {
		return fmt.Errorf("sending %v failed: %w", sent, err)
	}

	received, err := negotiation.ReadHeader(ctx, c.stream)
	if err != nil {
		return fmt.Errorf("receiving header failed: %w", err)
	}
	if received != sent {
		return &negotiation.HeaderMismatchError{Sent: sent, Received: received}
	}
	return nil
}

// Accept establishes a connection as listener on a negotiated Transport whose AMQP header was already echoed. On
// failure the Transport is aborted.
func Accept(ctx context.Context, t transport.Transport, settings Settings) (*Connection, error) {
	c := newConnection(t, settings.open())

	remote, err := c.readOpen(ctx)
	if err != nil {
		t.Abort()
		return nil, err
	}
	c.remote = remote

	if err := c.writePerformative(ctx, c.local); err != nil {
		t.Abort()
		return nil, err
	}

	c.log().WithField("remote", remote).Debug("Connection accepted")
	return c, nil
}

// reject answers a received open by an open and a close carrying the error, and closes the Transport.
func (c *Connection) reject(ctx context.Context, amqpErr *Error) error {
	var errs *multierror.Error

	if err := c.writePerformative(ctx, c.local); err != nil {
		errs = multierror.Append(errs, err)
	} else if err := c.writePerformative(ctx, &frame.Close{Error: amqpErr}); err != nil {
		errs = multierror.Append(errs, err)
	}
	c.closeSent.Store(true)

	if err := c.t.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	c.t.Abort()

	return errs.ErrorOrNil()
}

// readOpen reads the first frame, which must be an open.
func (c *Connection) readOpen(ctx context.Context) (*frame.Open, error) {
	p, _, err := c.readPerformative(ctx)
	if err != nil {
		return nil, fmt.Errorf("receiving open failed: %w", err)
	}

	open, ok := p.(*frame.Open)
	if !ok {
		return nil, &Error{Condition: frame.ConditionDecodeError, Description: fmt.Sprintf("expected open, got %v", p)}
	}
	if open.MaxFrameSize < frame.MinMaxFrameSize {
		return nil, &Error{
			Condition:   frame.ConditionFrameSizeTooSmall,
			Description: fmt.Sprintf("max-frame-size %d", open.MaxFrameSize),
		}
	}
	return open, nil
}

// readPerformative returns the next non-empty frame's performative and payload.
func (c *Connection) readPerformative(ctx context.Context) (frame.Performative, []byte, error) {
	r := contextReader{ctx: ctx, stream: c.stream}

	for {
		f, err := frame.ReadFrame(r, c.local.MaxFrameSize)
		if err != nil {
			return nil, nil, err
		}
		if f.Empty() {
			continue
		}
		if f.Type != frame.TypeAMQP {
			return nil, nil, fmt.Errorf("%w: unexpected %v", frame.ErrDecode, f.Header)
		}
		return frame.DecodePerformative(f.Body)
	}
}

func (c *Connection) writePerformative(ctx context.Context, p frame.Performative) error {
	return c.writeFrame(ctx, frame.EncodePerformative(p, nil))
}

func (c *Connection) writeFrame(ctx context.Context, data []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	_, err := c.stream.WriteContext(ctx, data)
	return err
}

// SendTransfer sends a payload as a raw transfer and returns its delivery id. Delivery ids start at zero and are
// incremented per Connection.
func (c *Connection) SendTransfer(ctx context.Context, payload []byte) (uint32, error) {
	if c.closeSent.Load() {
		return 0, ErrConnectionClosed
	}

	id := c.nextID.Add(1) - 1
	data := frame.EncodeTransfer(id, payload)
	if uint64(len(data)) > uint64(c.remote.MaxFrameSize) {
		return 0, fmt.Errorf("transfer of %d bytes exceeds the peer's max-frame-size %d", len(data), c.remote.MaxFrameSize)
	}

	if err := c.writeFrame(ctx, data); err != nil {
		return 0, err
	}
	return id, nil
}

// Receive returns the payload of the next transfer. A close from the peer is answered and ends the Connection; its
// error is returned as *Error, io.EOF for a close without an error.
func (c *Connection) Receive(ctx context.Context) ([]byte, error) {
	for {
		p, payload, err := c.readPerformative(ctx)
		if err != nil {
			if errors.Is(err, frame.ErrDecode) {
				_ = c.Close(ctx, &Error{Condition: frame.ConditionDecodeError, Description: err.Error()})
			}
			return nil, err
		}

		switch p := p.(type) {
		case *frame.Transfer:
			return frame.DecodeTransferPayload(payload)

		case *frame.Close:
			c.log().WithField("close", p).Debug("Peer closed connection")
			_ = c.Close(ctx, nil)

			if p.Error != nil {
				return nil, p.Error
			}
			return nil, io.EOF

		default:
			err := &Error{Condition: frame.ConditionDecodeError, Description: fmt.Sprintf("unexpected %v", p)}
			_ = c.Close(ctx, err)
			return nil, err
		}
	}
}

// Close sends a close, optionally carrying an error, and closes the Transport. Closing twice is a no-op.
func (c *Connection) Close(ctx context.Context, amqpErr *Error) error {
	if !c.closeSent.CompareAndSwap(false, true) {
		return nil
	}

	var errs *multierror.Error
	if err := c.writePerformative(ctx, &frame.Close{Error: amqpErr}); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.t.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}

	entry := c.log()
	if amqpErr != nil {
		entry = entry.WithField("error", amqpErr.Error())
	}
	entry.Debug("Connection closed")

	return errs.ErrorOrNil()
}

// Abort the underlying Transport.
func (c *Connection) Abort() {
	c.closeSent.Store(true)
	c.t.Abort()
}

// Transport of this Connection.
func (c *Connection) Transport() transport.Transport {
	return c.t
}

// LocalOpen is the open sent by this side.
func (c *Connection) LocalOpen() frame.Open {
	return *c.local
}

// RemoteOpen is the open received from the peer.
func (c *Connection) RemoteOpen() frame.Open {
	return *c.remote
}

func (c *Connection) log() *log.Entry {
	return log.WithField("connection", c)
}

func (c *Connection) String() string {
	return fmt.Sprintf("connection(%s, %v)", c.local.ContainerID, c.t)
}

// contextReader reads from a Stream bounded by a context.
type contextReader struct {
	ctx    context.Context
	stream *transport.Stream
}

func (r contextReader) Read(p []byte) (int, error) {
	return r.stream.ReadContext(r.ctx, p)
}
