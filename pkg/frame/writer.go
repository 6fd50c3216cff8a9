// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package frame

import (
	"encoding/binary"
	"math"
)

// Symbol is an AMQP symbolic value, e.g., an error condition.
type Symbol string

// Writer appends AMQP encoded values to a growing buffer. Each method selects the most compact encoding.
type Writer struct {
	buf []byte
}

// NewWriter with an initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes written so far. The slice is only valid until the next write.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) WriteByte(b byte) error {
	w.code(b)
	return nil
}

func (w *Writer) code(b byte) {
	w.buf = append(w.buf, b)
}

func (w *Writer) WriteRaw(p []byte) {
	w.buf = append(w.buf, p...)
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

// putUint32 overwrites four bytes at offset, used to patch sizes.
func (w *Writer) putUint32(offset int, v uint32) {
	binary.BigEndian.PutUint32(w.buf[offset:], v)
}

func (w *Writer) WriteNull() {
	w.code(codeNull)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.code(codeTrue)
	} else {
		w.code(codeFalse)
	}
}

func (w *Writer) WriteUbyte(v uint8) {
	w.buf = append(w.buf, codeUbyte, v)
}

func (w *Writer) WriteUshort(v uint16) {
	w.code(codeUshort)
	w.WriteUint16(v)
}

// WriteUint uses uint0 for 0, smalluint up to 255 and uint otherwise.
func (w *Writer) WriteUint(v uint32) {
	switch {
	case v == 0:
		w.code(codeUint0)
	case v <= math.MaxUint8:
		w.buf = append(w.buf, codeSmallUint, byte(v))
	default:
		w.code(codeUint)
		w.WriteUint32(v)
	}
}

// WriteSmallUint uses smalluint up to 255 and uint otherwise.
func (w *Writer) WriteSmallUint(v uint32) {
	if v <= math.MaxUint8 {
		w.buf = append(w.buf, codeSmallUint, byte(v))
		return
	}
	w.code(codeUint)
	w.WriteUint32(v)
}

// WriteUlong uses ulong0 for 0, smallulong up to 255 and ulong otherwise.
func (w *Writer) WriteUlong(v uint64) {
	switch {
	case v == 0:
		w.code(codeUlong0)
	case v <= math.MaxUint8:
		w.buf = append(w.buf, codeSmallUlong, byte(v))
	default:
		w.code(codeUlong)
		w.WriteUint64(v)
	}
}

// WriteDescriptor starts a described value with a numeric descriptor.
func (w *Writer) WriteDescriptor(code uint64) {
	w.code(codeDescribed)
	w.WriteUlong(code)
}

// WriteBinary uses vbin8 for up to 255 bytes and vbin32 otherwise.
func (w *Writer) WriteBinary(p []byte) {
	w.writeVariable(codeVbin8, codeVbin32, p)
}

// WriteBinary32 always uses vbin32.
func (w *Writer) WriteBinary32(p []byte) {
	w.code(codeVbin32)
	w.WriteUint32(uint32(len(p)))
	w.WriteRaw(p)
}

func (w *Writer) WriteString(s string) {
	w.writeVariable(codeStr8, codeStr32, []byte(s))
}

func (w *Writer) WriteSymbol(s Symbol) {
	w.writeVariable(codeSym8, codeSym32, []byte(s))
}

func (w *Writer) writeVariable(code8, code32 byte, p []byte) {
	if len(p) <= math.MaxUint8 {
		w.buf = append(w.buf, code8, byte(len(p)))
	} else {
		w.code(code32)
		w.WriteUint32(uint32(len(p)))
	}
	w.WriteRaw(p)
}

// WriteList writes count already encoded elements as list0, list8 or list32.
func (w *Writer) WriteList(count int, elements []byte) {
	switch {
	case count == 0:
		w.code(codeList0)

	case len(elements)+1 <= math.MaxUint8 && count <= math.MaxUint8:
		w.buf = append(w.buf, codeList8, byte(len(elements)+1), byte(count))
		w.WriteRaw(elements)

	default:
		w.code(codeList32)
		w.WriteUint32(uint32(len(elements) + 4))
		w.WriteUint32(uint32(count))
		w.WriteRaw(elements)
	}
}

// WriteMap writes count already encoded keys and values, so count is twice the number of entries.
func (w *Writer) WriteMap(count int, elements []byte) {
	if len(elements)+1 <= math.MaxUint8 && count <= math.MaxUint8 {
		w.buf = append(w.buf, codeMap8, byte(len(elements)+1), byte(count))
	} else {
		w.code(codeMap32)
		w.WriteUint32(uint32(len(elements) + 4))
		w.WriteUint32(uint32(count))
	}
	w.WriteRaw(elements)
}

// Fields collects the fields of a composite type. Trailing null fields are omitted from the encoding.
type Fields struct {
	w       Writer
	count   int
	nonNull int
	length  int
}

// Field encodes the next field by f; a nil f encodes null.
func (f *Fields) Field(encode func(w *Writer)) {
	f.count++
	if encode == nil {
		f.w.WriteNull()
		return
	}

	encode(&f.w)
	f.nonNull = f.count
	f.length = f.w.Len()
}

// WriteTo appends the fields as a list.
func (f *Fields) WriteTo(w *Writer) {
	w.WriteList(f.nonNull, f.w.Bytes()[:f.length])
}

// WriteComposite writes a described list.
func (w *Writer) WriteComposite(descriptor uint64, fields *Fields) {
	w.WriteDescriptor(descriptor)
	fields.WriteTo(w)
}
