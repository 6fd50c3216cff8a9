// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

// closeWriteTimeout bounds the time a graceful Close waits for a pending write.
const closeWriteTimeout = 5 * time.Second

// StreamTransport is a Transport backed by a net.Conn, e.g., a TCP socket, a WebSocket, a QUIC stream or a TLS
// connection.
//
// Each direction is served by one goroutine, started by Open, which takes the single in-flight AsyncArgs of its
// direction. A read is completed synchronously if the requested bytes are already buffered.
//
// An optional handshake makes Open asynchronous; the I/O goroutines start after it succeeded.
type StreamTransport struct {
	Base

	conn   net.Conn
	reader *bufio.Reader

	secure            bool
	authenticated     bool
	authenticatedFunc func() bool

	handshake func(ctx context.Context) error
	abortFunc func()

	mutex   sync.Mutex
	started bool
	closed  bool
	readCh  chan *AsyncArgs
	writeCh chan *AsyncArgs

	writerDone chan struct{}
}

// StreamOption configures a StreamTransport.
type StreamOption func(*StreamTransport)

// WithSecure marks the StreamTransport as secure, e.g., for QUIC or wss.
func WithSecure(secure bool) StreamOption {
	return func(t *StreamTransport) { t.secure = secure }
}

// WithAuthenticated marks the peer of the StreamTransport as authenticated.
func WithAuthenticated(authenticated bool) StreamOption {
	return func(t *StreamTransport) { t.authenticated = authenticated }
}

// WithAuthenticatedFunc reports the peer's authentication by a function, e.g., after a handshake.
func WithAuthenticatedFunc(f func() bool) StreamOption {
	return func(t *StreamTransport) { t.authenticatedFunc = f }
}

// WithHandshake runs a handshake on the connection when opening.
func WithHandshake(handshake func(ctx context.Context) error) StreamOption {
	return func(t *StreamTransport) { t.handshake = handshake }
}

// WithAbortFunc replaces closing the net.Conn on Abort. It must not block.
func WithAbortFunc(abort func()) StreamOption {
	return func(t *StreamTransport) { t.abortFunc = abort }
}

// WithOwner sets the Transport which embeds this StreamTransport. It is reported in AsyncArgs.Transport.
func WithOwner(owner Transport) StreamOption {
	return func(t *StreamTransport) { t.self = owner }
}

// NewStreamTransport for an established net.Conn. The kind names the Transport within logs, e.g., "tcp".
func NewStreamTransport(conn net.Conn, kind string, opts ...StreamOption) *StreamTransport {
	t := &StreamTransport{
		conn:       conn,
		reader:     bufio.NewReader(conn),
		readCh:     make(chan *AsyncArgs, 1),
		writeCh:    make(chan *AsyncArgs, 1),
		writerDone: make(chan struct{}),
	}
	t.Init(t, kind)

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Conn returns the underlying net.Conn.
func (t *StreamTransport) Conn() net.Conn {
	return t.conn
}

// OpenAsync starts the I/O goroutines. Without a handshake, it completes synchronously.
func (t *StreamTransport) OpenAsync(timeout time.Duration, done func(error)) (bool, error) {
	if err := t.BeginOpen(); err != nil {
		return false, err
	}

	if t.handshake == nil {
		return false, t.completeOpen(nil)
	}

	go func() {
		ctx, cancel := ContextFromTimeout(context.Background(), timeout)
		defer cancel()

		err := t.completeOpen(WrapContextError(t.handshake(ctx)))
		if done != nil {
			done(err)
		}
	}()
	return true, nil
}

func (t *StreamTransport) completeOpen(err error) error {
	if err == nil {
		t.mutex.Lock()
		if !t.closed {
			t.started = true
			go t.readLoop()
			go t.writeLoop()
		}
		t.mutex.Unlock()
	}

	if err = t.CompleteOpen(err); err != nil {
		t.Log().WithError(err).Debug("Opening stream transport failed")
		t.shutdownLoops()
		t.abortConn()
		return err
	}

	t.Log().Debug("Stream transport opened")
	return nil
}

func (t *StreamTransport) abortConn() {
	if t.abortFunc != nil {
		t.abortFunc()
	} else {
		_ = t.conn.Close()
	}
}

func (t *StreamTransport) readLoop() {
	for args := range t.readCh {
		n, err := t.reader.Read(args.Bytes())
		if err != nil && err != io.EOF {
			t.FaultRead(args, n, err, false)
		} else {
			t.CompleteRead(args, n, err, false)
		}
	}
}

func (t *StreamTransport) writeLoop() {
	defer close(t.writerDone)

	for args := range t.writeCh {
		n, err := t.conn.Write(args.Bytes())
		if err != nil {
			t.FaultWrite(args, n, err, false)
		} else {
			t.CompleteWrite(args, n, nil, false)
		}
	}
}

// ReadAsync as described by the Transport interface.
func (t *StreamTransport) ReadAsync(args *AsyncArgs) (bool, error) {
	if err := t.BeginRead(args); err != nil {
		return false, err
	}

	if args.Count == 0 {
		t.CompleteRead(args, 0, nil, true)
		return false, nil
	}

	// The read guard keeps the read loop idle, so the buffer might be accessed directly.
	if t.reader.Buffered() > 0 {
		n, err := t.reader.Read(args.Bytes())
		t.CompleteRead(args, n, err, true)
		return false, nil
	}

	return t.enqueue(t.readCh, args, t.CompleteRead)
}

// WriteAsync as described by the Transport interface.
func (t *StreamTransport) WriteAsync(args *AsyncArgs) (bool, error) {
	if err := t.BeginWrite(args); err != nil {
		return false, err
	}

	if args.Count == 0 {
		t.CompleteWrite(args, 0, nil, true)
		return false, nil
	}

	return t.enqueue(t.writeCh, args, t.CompleteWrite)
}

// enqueue hands the args to its direction's goroutine. If the Transport was closed meanwhile, the operation is
// completed synchronously with an error.
func (t *StreamTransport) enqueue(ch chan *AsyncArgs, args *AsyncArgs,
	complete func(*AsyncArgs, int, error, bool)) (bool, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		complete(args, 0, stateError(t.State()), true)
		return false, nil
	}

	ch <- args
	return true, nil
}

// shutdownLoops stops both I/O goroutines after their current operation. It reports if the goroutines were
// running and have to be waited for.
func (t *StreamTransport) shutdownLoops() (running bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return false
	}

	t.closed = true
	close(t.readCh)
	close(t.writeCh)
	return t.started
}

// Close waits for a pending write before closing the connection. A pending read completes with an error.
func (t *StreamTransport) Close() error {
	if !t.BeginClose() {
		return nil
	}

	var errs *multierror.Error
	if t.shutdownLoops() {
		if err := t.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout)); err != nil {
			errs = multierror.Append(errs, err)
		}
		<-t.writerDone
	}

	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = multierror.Append(errs, err)
	}

	t.CompleteClose()
	t.Log().Debug("Stream transport closed")

	return errs.ErrorOrNil()
}

// Abort closes the connection immediately, which completes pending operations with an error.
func (t *StreamTransport) Abort() {
	if !t.BeginAbort() {
		return
	}

	t.shutdownLoops()
	t.abortConn()

	t.Log().Debug("Stream transport aborted")
}

type closeReader interface {
	CloseRead() error
}

type closeWriter interface {
	CloseWrite() error
}

// Shutdown half-closes the connection if the net.Conn supports it, e.g., a *net.TCPConn.
func (t *StreamTransport) Shutdown(mode ShutdownMode) error {
	if s := t.State(); s != StateOpened {
		return stateError(s)
	}

	var errs *multierror.Error
	if mode == ShutdownRead || mode == ShutdownBoth {
		if cr, ok := t.conn.(closeReader); !ok {
			errs = multierror.Append(errs, ErrShutdownNotSupported)
		} else if err := cr.CloseRead(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if mode == ShutdownWrite || mode == ShutdownBoth {
		if cw, ok := t.conn.(closeWriter); !ok {
			errs = multierror.Append(errs, ErrShutdownNotSupported)
		} else if err := cw.CloseWrite(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

func (t *StreamTransport) IsSecure() bool {
	return t.secure
}

func (t *StreamTransport) IsAuthenticated() bool {
	if t.authenticatedFunc != nil {
		return t.authenticatedFunc()
	}
	return t.authenticated
}

func (t *StreamTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *StreamTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
