// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListener struct {
	ListenerBase
	name string
}

func newFakeListener(name string) *fakeListener {
	l := &fakeListener{name: name}
	l.InitListener(l)
	return l
}

func (l *fakeListener) Listen(onAccept func(*AsyncArgs)) error { return l.BeginListen(onAccept) }
func (l *fakeListener) Close() error                          { l.NotifyClosed(nil); return nil }
func (l *fakeListener) Addr() net.Addr                        { return nil }
func (l *fakeListener) String() string                        { return l.name }

type fakeInitiator struct{ name string }

func (i fakeInitiator) ConnectAsync(time.Duration, *AsyncArgs) (bool, error) { return false, nil }
func (i fakeInitiator) String() string                                       { return i.name }

type fakeSettings struct{}

func (fakeSettings) CreateInitiator() (Initiator, error) { return fakeInitiator{"base"}, nil }
func (fakeSettings) CreateListener() (Listener, error)   { return newFakeListener("base"), nil }
func (fakeSettings) String() string                      { return "base" }

type fakeLayer struct{ name string }

func (fl fakeLayer) WrapInitiator(inner Initiator) (Initiator, error) {
	return fakeInitiator{inner.String() + "+" + fl.name}, nil
}

func (fl fakeLayer) WrapListener(inner Listener) (Listener, error) {
	return newFakeListener(inner.String() + "+" + fl.name), nil
}

func (fl fakeLayer) String() string { return fl.name }

func TestListenerBaseClosedOnce(t *testing.T) {
	l := newFakeListener("test")

	var calls atomic.Int32
	var reported error
	l.SetClosedHandler(func(_ Listener, err error) {
		calls.Add(1)
		reported = err
	})

	require.NoError(t, l.Listen(func(*AsyncArgs) {}))
	assert.Error(t, l.Listen(func(*AsyncArgs) {}))

	fatal := errors.New("fatal")
	assert.True(t, l.NotifyClosed(fatal))
	assert.False(t, l.NotifyClosed(nil))
	assert.NoError(t, l.Close())

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, fatal, reported)
	assert.Equal(t, fatal, l.Err())
	assert.True(t, l.Closed())
	assert.ErrorIs(t, l.Listen(func(*AsyncArgs) {}), ErrListenerClosed)
}

func TestListenerBaseAcceptAfterClose(t *testing.T) {
	l := newFakeListener("test")

	var accepted atomic.Int32
	require.NoError(t, l.Listen(func(args *AsyncArgs) { accepted.Add(1) }))

	open := newOpenedFakeTransport(nil, false)
	l.NotifyAccept(open)
	assert.EqualValues(t, 1, accepted.Load())

	require.NoError(t, l.Close())

	late := newOpenedFakeTransport(nil, false)
	l.NotifyAccept(late)
	assert.EqualValues(t, 1, accepted.Load())
	assert.Equal(t, StateFaulted, late.State())
}

func TestStackOrder(t *testing.T) {
	stack := NewStack(fakeSettings{}, fakeLayer{"tls"}, fakeLayer{"sasl"})

	initiator, err := stack.CreateInitiator()
	require.NoError(t, err)
	assert.Equal(t, "base+tls+sasl", initiator.String())

	listener, err := stack.CreateListener()
	require.NoError(t, err)
	assert.Equal(t, "base+tls+sasl", listener.String())

	assert.Equal(t, "base -> tls -> sasl", stack.String())

	_, err = Stack{}.CreateInitiator()
	assert.Error(t, err)
}
