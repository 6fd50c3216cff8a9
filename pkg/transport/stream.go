// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"context"
	"io"
	"sync/atomic"
)

// Stream exposes a Transport as a blocking io.Reader and io.Writer.
//
// Each direction owns one reusable AsyncArgs. A direction must not be used by two goroutines at the same time;
// such a re-entrant use is detected and fails with ErrConcurrentStreamOperation.
type Stream struct {
	t Transport

	readArgs  *AsyncArgs
	readDone  chan struct{}
	readInUse atomic.Bool

	writeArgs  *AsyncArgs
	writeDone  chan struct{}
	writeInUse atomic.Bool
}

// NewStream for a Transport.
func NewStream(t Transport) *Stream {
	s := &Stream{
		t:         t,
		readDone:  make(chan struct{}, 1),
		writeDone: make(chan struct{}, 1),
	}

	s.readArgs = NewAsyncArgs(func(*AsyncArgs) { s.readDone <- struct{}{} })
	s.writeArgs = NewAsyncArgs(func(*AsyncArgs) { s.writeDone <- struct{}{} })

	return s
}

// Transport returns the wrapped Transport.
func (s *Stream) Transport() Transport {
	return s.t
}

// wait for a pending operation. If the context is done first, the Transport is aborted, which lets the operation
// complete, and the context's error is returned.
func (s *Stream) wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil

	case <-ctx.Done():
		s.t.Abort()
		<-done
		return WrapContextError(ctx.Err())
	}
}

// ReadContext reads up to len(p) bytes.
func (s *Stream) ReadContext(ctx context.Context, p []byte) (int, error) {
	if !s.readInUse.CompareAndSwap(false, true) {
		return 0, ErrConcurrentStreamOperation
	}
	defer s.readInUse.Store(false)

	if len(p) == 0 {
		return 0, nil
	}

	s.readArgs.SetBuffer(p, 0, len(p))
	if pending, err := s.t.ReadAsync(s.readArgs); err != nil {
		return 0, err
	} else if pending {
		if err := s.wait(ctx, s.readDone); err != nil {
			return 0, err
		}
	}

	n, err := s.readArgs.BytesTransferred, s.readArgs.Err
	s.readArgs.SetBuffer(nil, 0, 0)
	return n, err
}

// ReadFull reads exactly len(p) bytes.
func (s *Stream) ReadFull(ctx context.Context, p []byte) error {
	for off := 0; off < len(p); {
		n, err := s.ReadContext(ctx, p[off:])
		off += n

		if off == len(p) {
			return nil
		} else if err == io.EOF && off > 0 && off < len(p) {
			return io.ErrUnexpectedEOF
		} else if err != nil {
			return err
		} else if n == 0 {
			return io.ErrNoProgress
		}
	}
	return nil
}

// WriteContext writes all of p.
func (s *Stream) WriteContext(ctx context.Context, p []byte) (int, error) {
	if !s.writeInUse.CompareAndSwap(false, true) {
		return 0, ErrConcurrentStreamOperation
	}
	defer s.writeInUse.Store(false)

	written := 0
	for written < len(p) {
		s.writeArgs.SetBuffer(p, written, len(p)-written)
		if pending, err := s.t.WriteAsync(s.writeArgs); err != nil {
			return written, err
		} else if pending {
			if err := s.wait(ctx, s.writeDone); err != nil {
				return written, err
			}
		}

		written += s.writeArgs.BytesTransferred
		if err := s.writeArgs.Err; err != nil {
			return written, err
		} else if s.writeArgs.BytesTransferred == 0 {
			return written, io.ErrShortWrite
		}
	}

	s.writeArgs.SetBuffer(nil, 0, 0)
	return written, nil
}

// Read implements io.Reader without a deadline.
func (s *Stream) Read(p []byte) (int, error) {
	return s.ReadContext(context.Background(), p)
}

// Write implements io.Writer without a deadline.
func (s *Stream) Write(p []byte) (int, error) {
	return s.WriteContext(context.Background(), p)
}
