// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import "sync/atomic"

// AsyncArgs describes one asynchronous operation: a read, a write, a connect or an accept.
//
// An AsyncArgs is meant to be reused, one instance per direction of a Transport. It must not be passed to a second
// operation before the first one has completed; Begin enforces this.
type AsyncArgs struct {
	// Buffer, Offset and Count describe the bytes to be read into or written from.
	Buffer []byte
	Offset int
	Count  int

	// BytesTransferred is set on completion.
	BytesTransferred int

	// Completed is called exactly once for an operation which returned pending. It is never called for
	// synchronously completed operations.
	Completed func(args *AsyncArgs)

	// UserToken is free for the caller's use.
	UserToken any

	// CompletedSynchronously reports if the last operation completed before returning.
	CompletedSynchronously bool

	// Err is the last operation's error.
	Err error

	// Transport is the Transport the operation ran on, or the one created by a connect or an accept.
	Transport Transport

	inFlight atomic.Bool
}

// NewAsyncArgs with a completion callback.
func NewAsyncArgs(completed func(args *AsyncArgs)) *AsyncArgs {
	return &AsyncArgs{Completed: completed}
}

// SetBuffer sets the buffer segment of the next operation.
func (args *AsyncArgs) SetBuffer(buffer []byte, offset, count int) {
	args.Buffer = buffer
	args.Offset = offset
	args.Count = count
}

// Bytes returns the buffer segment described by Offset and Count.
func (args *AsyncArgs) Bytes() []byte {
	return args.Buffer[args.Offset : args.Offset+args.Count]
}

// Transferred returns the part of the buffer segment which was actually transferred.
func (args *AsyncArgs) Transferred() []byte {
	return args.Buffer[args.Offset : args.Offset+args.BytesTransferred]
}

// InFlight reports if an operation is currently using these args.
func (args *AsyncArgs) InFlight() bool {
	return args.inFlight.Load()
}

// validBuffer checks the buffer segment's bounds.
func (args *AsyncArgs) validBuffer() bool {
	return args.Offset >= 0 && args.Count >= 0 && args.Offset+args.Count <= len(args.Buffer)
}

// Begin marks the args as in flight and resets the previous result. ErrArgsInUse is returned if the args are
// already used by another operation.
func (args *AsyncArgs) Begin() error {
	if !args.inFlight.CompareAndSwap(false, true) {
		return ErrArgsInUse
	}

	args.BytesTransferred = 0
	args.Err = nil
	args.CompletedSynchronously = false
	return nil
}

// Finish stores the result and releases the args. Completed is only called for an asynchronous completion, after
// the args were released, so that the callback might directly issue the next operation.
func (args *AsyncArgs) Finish(n int, err error, synchronous bool) {
	args.BytesTransferred = n
	args.Err = err
	args.CompletedSynchronously = synchronous
	args.inFlight.Store(false)

	if !synchronous && args.Completed != nil {
		args.Completed(args)
	}
}
