// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package frame encodes and decodes AMQP frames and the performatives a connection needs to be established, to
// exchange raw transfers and to be closed.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderSize of the fixed frame header.
	HeaderSize = 8

	// MinDataOffset in 4 byte words, i.e., no extended header.
	MinDataOffset = 2

	// MinMaxFrameSize is the smallest max-frame-size a peer might announce.
	MinMaxFrameSize = 512

	// DefaultMaxFrameSize is announced by this implementation.
	DefaultMaxFrameSize = 64 * 1024
)

// Type of a frame.
type Type uint8

const (
	TypeAMQP Type = 0x00
	TypeSASL Type = 0x01
)

func (t Type) String() string {
	switch t {
	case TypeAMQP:
		return "AMQP"
	case TypeSASL:
		return "SASL"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Header of a frame. Size covers the whole frame including the header.
type Header struct {
	Size    uint32
	DOff    uint8
	Type    Type
	Channel uint16
}

// ParseHeader from the first HeaderSize bytes.
func ParseHeader(p []byte) (Header, error) {
	if len(p) < HeaderSize {
		return Header{}, fmt.Errorf("%w: frame header of %d bytes", ErrDecode, len(p))
	}

	h := Header{
		Size:    binary.BigEndian.Uint32(p[0:4]),
		DOff:    p[4],
		Type:    Type(p[5]),
		Channel: binary.BigEndian.Uint16(p[6:8]),
	}

	if h.DOff < MinDataOffset {
		return Header{}, fmt.Errorf("%w: data offset %d", ErrDecode, h.DOff)
	}
	if h.Size < uint32(h.DOff)*4 {
		return Header{}, fmt.Errorf("%w: frame size %d is smaller than its data offset %d", ErrDecode, h.Size, h.DOff)
	}
	return h, nil
}

// Marshal the Header.
func (h Header) Marshal(w *Writer) {
	w.WriteUint32(h.Size)
	w.code(h.DOff)
	w.code(byte(h.Type))
	w.WriteUint16(h.Channel)
}

func (h Header) String() string {
	return fmt.Sprintf("%v frame(size=%d, doff=%d, channel=%d)", h.Type, h.Size, h.DOff, h.Channel)
}

// Frame is a decoded frame. The Body starts after the extended header.
type Frame struct {
	Header
	Body []byte
}

// Empty frames are used as heartbeats.
func (f Frame) Empty() bool {
	return len(f.Body) == 0
}

// Encode a frame without an extended header around a body.
func Encode(frameType Type, channel uint16, body []byte) []byte {
	w := NewWriter(HeaderSize + len(body))
	Header{
		Size:    uint32(HeaderSize + len(body)),
		DOff:    MinDataOffset,
		Type:    frameType,
		Channel: channel,
	}.Marshal(w)
	w.WriteRaw(body)
	return w.Bytes()
}

// ReadFrame reads the next frame. A frame larger than maxSize is rejected; a maxSize of zero disables this check.
func ReadFrame(r io.Reader, maxSize uint32) (Frame, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, err
	}

	h, err := ParseHeader(buf)
	if err != nil {
		return Frame{}, err
	}
	if maxSize > 0 && h.Size > maxSize {
		return Frame{}, fmt.Errorf("%w: frame size %d exceeds %d", ErrDecode, h.Size, maxSize)
	}

	rest := make([]byte, h.Size-HeaderSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}

	extended := int(h.DOff)*4 - HeaderSize
	return Frame{Header: h, Body: rest[extended:]}, nil
}
