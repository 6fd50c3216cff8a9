// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package frame

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaderInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte{0x00, 0x00, 0x00, 0x08, 0x02}},
		{"doff", []byte{0x00, 0x00, 0x00, 0x08, 0x01, 0x00, 0x00, 0x00}},
		{"size", []byte{0x00, 0x00, 0x00, 0x07, 0x02, 0x00, 0x00, 0x00}},
		{"extended", []byte{0x00, 0x00, 0x00, 0x0C, 0x04, 0x00, 0x00, 0x00}},
	}

	for _, test := range tests {
		_, err := ParseHeader(test.data)
		assert.ErrorIs(t, err, ErrDecode, test.name)
	}
}

func TestReadFrame(t *testing.T) {
	heartbeat := Encode(TypeAMQP, 0, nil)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x08, 0x02, 0x00, 0x00, 0x00}, heartbeat)

	f, err := ReadFrame(bytes.NewReader(heartbeat), 0)
	require.NoError(t, err)
	assert.True(t, f.Empty())

	// An extended header is skipped.
	extended := []byte{0x00, 0x00, 0x00, 0x0D, 0x03, 0x01, 0x00, 0x07, 0xFF, 0xFF, 0xFF, 0xFF, 0x42}
	f, err = ReadFrame(bytes.NewReader(extended), 0)
	require.NoError(t, err)
	assert.Equal(t, TypeSASL, f.Type)
	assert.EqualValues(t, 7, f.Channel)
	assert.Equal(t, []byte{0x42}, f.Body)

	_, err = ReadFrame(bytes.NewReader(extended), 12)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = ReadFrame(bytes.NewReader(extended[:10]), 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadFrame(bytes.NewReader(nil), 0)
	assert.ErrorIs(t, err, io.EOF)
}

func decodeFrame(t *testing.T, data []byte) Performative {
	f, err := ReadFrame(bytes.NewReader(data), 0)
	require.NoError(t, err)

	p, rest, err := DecodePerformative(f.Body)
	require.NoError(t, err)
	assert.Empty(t, rest)
	return p
}

func TestOpenRoundTrip(t *testing.T) {
	tests := []Open{
		{ContainerID: "container", Hostname: "example.org", MaxFrameSize: 512, ChannelMax: 0, IdleTimeout: time.Minute},
		{ContainerID: "c", MaxFrameSize: 0xFFFFFFFF, ChannelMax: 0xFFFF},
		{ContainerID: string(bytes.Repeat([]byte{'x'}, 300)), Hostname: "h", MaxFrameSize: DefaultMaxFrameSize, ChannelMax: 7},
	}

	for _, open := range tests {
		p := decodeFrame(t, EncodePerformative(&open, nil))
		assert.Equal(t, &open, p)
	}
}

func TestOpenTrailingNulls(t *testing.T) {
	w := NewWriter(0)
	(&Open{ContainerID: "c", MaxFrameSize: 0xFFFFFFFF, ChannelMax: 0xFFFF}).Marshal(w)

	// descriptor, list8 of one element
	assert.Equal(t, []byte{0x00, 0x53, 0x10, 0xC0, 0x04, 0x01, 0xA1, 0x01, 'c'}, w.Bytes())
}

func TestCloseRoundTrip(t *testing.T) {
	for _, c := range []Close{
		{},
		{Error: &Error{Condition: ConditionNotFound}},
		{Error: &Error{Condition: ConditionInvalidField, Description: "missing hostname"}},
	} {
		p := decodeFrame(t, EncodePerformative(&c, nil))
		assert.Equal(t, &c, p)
	}

	w := NewWriter(0)
	(&Close{}).Marshal(w)
	assert.Equal(t, []byte{0x00, 0x53, 0x18, 0x45}, w.Bytes())
}

func TestDecodePerformativeInvalid(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"empty", nil},
		{"not described", []byte{0x43}},
		{"unknown performative", []byte{0x00, 0x53, 0x11, 0x45}},
		{"symbolic descriptor", []byte{0x00, 0xA3, 0x01, 'x', 0x45}},
		{"not a list", []byte{0x00, 0x53, 0x10, 0x43}},
		{"open without container-id", []byte{0x00, 0x53, 0x10, 0x45}},
		{"open with binary container-id", []byte{0x00, 0x53, 0x10, 0xC0, 0x03, 0x01, 0xA0, 0x00}},
		{"truncated list", []byte{0x00, 0x53, 0x10, 0xC0, 0x09, 0x01, 0xA1}},
		{"excessive count", []byte{0x00, 0x53, 0x18, 0xC0, 0x02, 0xFF, 0x40}},
	}

	for _, test := range tests {
		_, _, err := DecodePerformative(test.body)
		assert.ErrorIs(t, err, ErrDecode, test.name)
	}
}

func TestReaderValues(t *testing.T) {
	id := uuid.New()
	ts := time.UnixMilli(1700000000000).UTC()

	data := []byte{
		0x56, 0x01,
		0x50, 0x07,
		0x60, 0x01, 0x02,
		0x51, 0xFF,
		0x54, 0xFE,
		0x71, 0xFF, 0xFF, 0xFF, 0xFD,
		0x55, 0x05,
		0x81, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00,
		0x73, 0x00, 0x00, 0x00, 0x41,
		0x83, 0x00, 0x00, 0x01, 0x8B, 0xCF, 0xE5, 0x68, 0x00,
		0x98,
	}
	data = append(data, id[:]...)
	data = append(data,
		0xA3, 0x03, 'a', 'b', 'c',
		0xC1, 0x05, 0x02, 0xA1, 0x01, 'k', 0x43,
		0xE0, 0x04, 0x02, 0x52, 0x01, 0x02,
		0x00, 0xA3, 0x01, 'd', 0x45,
	)

	expected := []any{
		true,
		uint8(7),
		uint16(0x0102),
		int8(-1),
		int32(-2),
		int32(-3),
		int64(5),
		int64(256),
		'A',
		ts,
		id,
		Symbol("abc"),
		[]KeyValue{{Key: "k", Value: uint32(0)}},
		[]any{uint32(1), uint32(2)},
		&Described{Descriptor: Symbol("d"), Value: []any{}},
	}

	r := NewReader(data)
	for i, e := range expected {
		v, err := r.ReadValue()
		require.NoError(t, err, "value %d", i)
		assert.Equal(t, e, v, "value %d", i)
	}
	assert.Zero(t, r.Len())

	_, err := r.ReadValue()
	assert.ErrorIs(t, err, ErrDecode)
}

func TestReaderArrayLimits(t *testing.T) {
	v, err := NewReader([]byte{0xE0, 0x02, 0x03, 0x40}).ReadValue()
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, nil}, v)

	tests := []struct {
		name string
		data []byte
	}{
		{"nulls beyond limit", []byte{0xF0, 0x00, 0x00, 0x00, 0x05, 0x01, 0x31, 0x2D, 0x00, 0x40}},
		{"uint0 beyond limit", []byte{0xF0, 0x00, 0x00, 0x00, 0x05, 0x7F, 0xFF, 0xFF, 0xFF, 0x43}},
		{"count exceeds body", []byte{0xE0, 0x04, 0x05, 0x52, 0x01, 0x02}},
	}

	for _, test := range tests {
		_, err := NewReader(test.data).ReadValue()
		assert.ErrorIs(t, err, ErrDecode, test.name)
	}
}
