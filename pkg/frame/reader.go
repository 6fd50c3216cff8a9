// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrDecode reports malformed or truncated AMQP data.
var ErrDecode = errors.New("decode error")

// Described is a value with a descriptor, either a numeric code or a Symbol.
type Described struct {
	Descriptor any
	Value      any
}

// KeyValue is one entry of a decoded map. Maps are decoded as ordered slices, as keys might not be comparable.
type KeyValue struct {
	Key   any
	Value any
}

// Reader decodes AMQP values from a buffer. Every read is bounds-checked.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining bytes which were not read yet.
func (r *Reader) Remaining() []byte {
	return r.data[r.pos:]
}

func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, fmt.Errorf("%w: %d bytes required, %d available", ErrDecode, n, r.Len())
	}
	p := r.data[r.pos : r.pos+n]
	r.pos += n
	return p, nil
}

func (r *Reader) ReadByte() (byte, error) {
	p, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	p, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	p, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	p, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}

// readSize reads a one or four byte size, depending on the format code's width.
func (r *Reader) readSize(wide bool) (int, error) {
	if !wide {
		b, err := r.ReadByte()
		return int(b), err
	}

	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: size %d exceeds limit", ErrDecode, v)
	}
	return int(v), nil
}

// ReadValue decodes the next value.
//
// The Go types are nil, bool, the sized integer types, float32, float64, rune, time.Time, uuid.UUID, []byte,
// string, Symbol, []any for lists and arrays, []KeyValue for maps and *Described.
func (r *Reader) ReadValue() (any, error) {
	code, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return r.readValue(code)
}

func (r *Reader) readValue(code byte) (any, error) {
	switch code {
	case codeDescribed:
		descriptor, err := r.ReadValue()
		if err != nil {
			return nil, err
		}
		value, err := r.ReadValue()
		if err != nil {
			return nil, err
		}
		return &Described{Descriptor: descriptor, Value: value}, nil

	case codeNull:
		return nil, nil
	case codeTrue:
		return true, nil
	case codeFalse:
		return false, nil
	case codeBool:
		b, err := r.ReadByte()
		return b != 0, err

	case codeUbyte:
		return r.ReadByte()
	case codeUshort:
		return r.ReadUint16()
	case codeUint0:
		return uint32(0), nil
	case codeSmallUint:
		b, err := r.ReadByte()
		return uint32(b), err
	case codeUint:
		return r.ReadUint32()
	case codeUlong0:
		return uint64(0), nil
	case codeSmallUlong:
		b, err := r.ReadByte()
		return uint64(b), err
	case codeUlong:
		return r.ReadUint64()

	case codeByte:
		b, err := r.ReadByte()
		return int8(b), err
	case codeShort:
		v, err := r.ReadUint16()
		return int16(v), err
	case codeSmallInt:
		b, err := r.ReadByte()
		return int32(int8(b)), err
	case codeInt:
		v, err := r.ReadUint32()
		return int32(v), err
	case codeSmallLong:
		b, err := r.ReadByte()
		return int64(int8(b)), err
	case codeLong:
		v, err := r.ReadUint64()
		return int64(v), err

	case codeFloat:
		v, err := r.ReadUint32()
		return math.Float32frombits(v), err
	case codeDouble:
		v, err := r.ReadUint64()
		return math.Float64frombits(v), err
	case codeChar:
		v, err := r.ReadUint32()
		return rune(v), err
	case codeTimestamp:
		v, err := r.ReadUint64()
		return time.UnixMilli(int64(v)).UTC(), err
	case codeUUID:
		p, err := r.ReadBytes(16)
		if err != nil {
			return nil, err
		}
		return uuid.FromBytes(p)

	case codeVbin8, codeVbin32:
		return r.readVariable(code == codeVbin32)
	case codeStr8, codeStr32:
		p, err := r.readVariable(code == codeStr32)
		return string(p), err
	case codeSym8, codeSym32:
		p, err := r.readVariable(code == codeSym32)
		return Symbol(p), err

	case codeList0:
		return []any{}, nil
	case codeList8, codeList32:
		return r.readList(code == codeList32)
	case codeMap8, codeMap32:
		return r.readMap(code == codeMap32)
	case codeArray8, codeArray32:
		return r.readArray(code == codeArray32)

	default:
		return nil, fmt.Errorf("%w: unknown format code 0x%02X", ErrDecode, code)
	}
}

func (r *Reader) readVariable(wide bool) ([]byte, error) {
	n, err := r.readSize(wide)
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(n)
}

// compound reads the size and count of a list or map and returns a Reader limited to its elements.
func (r *Reader) compound(wide bool) (*Reader, int, error) {
	size, err := r.readSize(wide)
	if err != nil {
		return nil, 0, err
	}
	body, err := r.ReadBytes(size)
	if err != nil {
		return nil, 0, err
	}

	inner := NewReader(body)
	count, err := inner.readSize(wide)
	if err != nil {
		return nil, 0, err
	}
	return inner, count, nil
}

// checkCount rejects counts which cannot fit, as each list or map element takes at least one byte.
func (r *Reader) checkCount(count int) error {
	if count > r.Len() {
		return fmt.Errorf("%w: %d elements in %d bytes", ErrDecode, count, r.Len())
	}
	return nil
}

func (r *Reader) readList(wide bool) ([]any, error) {
	inner, count, err := r.compound(wide)
	if err != nil {
		return nil, err
	}
	if err := inner.checkCount(count); err != nil {
		return nil, err
	}

	list := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := inner.ReadValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func (r *Reader) readMap(wide bool) ([]KeyValue, error) {
	inner, count, err := r.compound(wide)
	if err != nil {
		return nil, err
	}
	if err := inner.checkCount(count); err != nil {
		return nil, err
	}
	if count%2 != 0 {
		return nil, fmt.Errorf("%w: map with an odd number of elements", ErrDecode)
	}

	m := make([]KeyValue, 0, count/2)
	for i := 0; i < count; i += 2 {
		k, err := inner.ReadValue()
		if err != nil {
			return nil, err
		}
		v, err := inner.ReadValue()
		if err != nil {
			return nil, err
		}
		m = append(m, KeyValue{Key: k, Value: v})
	}
	return m, nil
}

// readArray decodes an array, whose elements share a single format code.
// MaxZeroWidthArrayElements limits arrays whose elements carry no bytes of their own, e.g., an array of nulls.
const MaxZeroWidthArrayElements = 1024

func isZeroWidth(code byte) bool {
	switch code {
	case codeNull, codeTrue, codeFalse, codeUint0, codeUlong0, codeList0:
		return true
	default:
		return false
	}
}

func (r *Reader) readArray(wide bool) ([]any, error) {
	inner, count, err := r.compound(wide)
	if err != nil {
		return nil, err
	}

	code, err := inner.ReadByte()
	if err != nil {
		return nil, err
	}

	var descriptor any
	if code == codeDescribed {
		if descriptor, err = inner.ReadValue(); err != nil {
			return nil, err
		}
		if code, err = inner.ReadByte(); err != nil {
			return nil, err
		}
	}

	if isZeroWidth(code) {
		if count > MaxZeroWidthArrayElements {
			return nil, fmt.Errorf("%w: array of %d elements of code 0x%02X", ErrDecode, count, code)
		}
	} else if err := inner.checkCount(count); err != nil {
		return nil, err
	}

	array := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := inner.readValue(code)
		if err != nil {
			return nil, err
		}
		if descriptor != nil {
			v = &Described{Descriptor: descriptor, Value: v}
		}
		array = append(array, v)
	}
	return array, nil
}
