// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// fakeTransport serves reads from a byte slice and collects writes. It completes operations either synchronously
// or on another goroutine. With hold set, reads are pending until release or Abort.
type fakeTransport struct {
	Base

	async bool
	hold  bool

	mutex    sync.Mutex
	source   *bytes.Reader
	sink     bytes.Buffer
	held     *AsyncArgs
	maxChunk int

	// eofWithData reports io.EOF along with the source's last bytes.
	eofWithData bool

	readIssued chan struct{}
	aborts     atomic.Int32
}

func newFakeTransport(data []byte, async bool) *fakeTransport {
	t := &fakeTransport{
		async:      async,
		source:     bytes.NewReader(data),
		readIssued: make(chan struct{}, 16),
	}
	t.Init(t, "fake")
	return t
}

func newOpenedFakeTransport(data []byte, async bool) *fakeTransport {
	t := newFakeTransport(data, async)
	if err := Open(context.Background(), t); err != nil {
		panic(err)
	}
	return t
}

func (t *fakeTransport) OpenAsync(_ time.Duration, done func(error)) (bool, error) {
	if err := t.BeginOpen(); err != nil {
		return false, err
	}

	if !t.async {
		return false, t.CompleteOpen(nil)
	}

	go func() {
		err := t.CompleteOpen(nil)
		if done != nil {
			done(err)
		}
	}()
	return true, nil
}

func (t *fakeTransport) readInto(args *AsyncArgs) (int, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	p := args.Bytes()
	if t.maxChunk > 0 && len(p) > t.maxChunk {
		p = p[:t.maxChunk]
	}
	n, err := t.source.Read(p)
	if err == nil && t.eofWithData && t.source.Len() == 0 {
		err = io.EOF
	}
	return n, err
}

func (t *fakeTransport) ReadAsync(args *AsyncArgs) (bool, error) {
	if err := t.BeginRead(args); err != nil {
		return false, err
	}

	if t.hold {
		t.mutex.Lock()
		t.held = args
		t.mutex.Unlock()
	}

	select {
	case t.readIssued <- struct{}{}:
	default:
	}

	if t.hold {
		return true, nil
	}

	if !t.async {
		n, err := t.readInto(args)
		t.CompleteRead(args, n, err, true)
		return false, nil
	}

	go func() {
		n, err := t.readInto(args)
		t.CompleteRead(args, n, err, false)
	}()
	return true, nil
}

func (t *fakeTransport) WriteAsync(args *AsyncArgs) (bool, error) {
	if err := t.BeginWrite(args); err != nil {
		return false, err
	}

	write := func() (int, error) {
		t.mutex.Lock()
		defer t.mutex.Unlock()
		return t.sink.Write(args.Bytes())
	}

	if !t.async {
		n, err := write()
		t.CompleteWrite(args, n, err, true)
		return false, nil
	}

	go func() {
		n, err := write()
		t.CompleteWrite(args, n, err, false)
	}()
	return true, nil
}

// release completes a held read with the next bytes of the source.
func (t *fakeTransport) release() {
	t.mutex.Lock()
	args := t.held
	t.held = nil
	t.mutex.Unlock()

	if args != nil {
		n, err := t.readInto(args)
		t.CompleteRead(args, n, err, false)
	}
}

func (t *fakeTransport) written() []byte {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]byte(nil), t.sink.Bytes()...)
}

func (t *fakeTransport) Close() error {
	if t.BeginClose() {
		t.CompleteClose()
	}
	return nil
}

func (t *fakeTransport) Abort() {
	if !t.BeginAbort() {
		return
	}
	t.aborts.Add(1)

	t.mutex.Lock()
	args := t.held
	t.held = nil
	t.mutex.Unlock()

	if args != nil {
		go t.CompleteRead(args, 0, io.ErrClosedPipe, false)
	}
}

func (t *fakeTransport) Shutdown(ShutdownMode) error { return ErrShutdownNotSupported }
func (t *fakeTransport) IsSecure() bool               { return false }
func (t *fakeTransport) IsAuthenticated() bool        { return false }
func (t *fakeTransport) LocalAddr() net.Addr          { return nil }
func (t *fakeTransport) RemoteAddr() net.Addr         { return nil }
