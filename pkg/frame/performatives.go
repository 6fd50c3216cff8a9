// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package frame

import (
	"fmt"
	"math"
	"time"
)

// Performative is the first value of an AMQP frame's body.
type Performative interface {
	fmt.Stringer

	Descriptor() uint64
	Marshal(w *Writer)
}

// Open negotiates the connection parameters. Only the fields used by this implementation are present.
type Open struct {
	ContainerID  string
	Hostname     string
	MaxFrameSize uint32
	ChannelMax   uint16
	IdleTimeout  time.Duration
}

func (o *Open) Descriptor() uint64 {
	return DescriptorOpen
}

func (o *Open) Marshal(w *Writer) {
	var f Fields
	f.Field(func(w *Writer) { w.WriteString(o.ContainerID) })

	if o.Hostname != "" {
		f.Field(func(w *Writer) { w.WriteString(o.Hostname) })
	} else {
		f.Field(nil)
	}

	if o.MaxFrameSize != 0 && o.MaxFrameSize != math.MaxUint32 {
		f.Field(func(w *Writer) { w.WriteUint(o.MaxFrameSize) })
	} else {
		f.Field(nil)
	}

	if o.ChannelMax != math.MaxUint16 {
		f.Field(func(w *Writer) { w.WriteUshort(o.ChannelMax) })
	} else {
		f.Field(nil)
	}

	if o.IdleTimeout > 0 {
		f.Field(func(w *Writer) { w.WriteUint(uint32(o.IdleTimeout.Milliseconds())) })
	} else {
		f.Field(nil)
	}

	w.WriteComposite(DescriptorOpen, &f)
}

func (o *Open) unmarshal(fields []any) error {
	o.MaxFrameSize = math.MaxUint32
	o.ChannelMax = math.MaxUint16

	if len(fields) == 0 {
		return fmt.Errorf("%w: open without container-id", ErrDecode)
	}

	var ok bool
	if o.ContainerID, ok = fields[0].(string); !ok {
		return fmt.Errorf("%w: open's container-id is %T", ErrDecode, fields[0])
	}

	for i, v := range fields[1:] {
		if v == nil {
			continue
		}

		switch i + 1 {
		case 1:
			o.Hostname, ok = v.(string)
		case 2:
			o.MaxFrameSize, ok = v.(uint32)
		case 3:
			o.ChannelMax, ok = v.(uint16)
		case 4:
			var ms uint32
			ms, ok = v.(uint32)
			o.IdleTimeout = time.Duration(ms) * time.Millisecond
		default:
			// Locales, capabilities and properties are not evaluated.
			ok = true
		}

		if !ok {
			return fmt.Errorf("%w: open's field %d is %T", ErrDecode, i+1, v)
		}
	}
	return nil
}

func (o *Open) String() string {
	return fmt.Sprintf("open(container-id=%q, hostname=%q, max-frame-size=%d, channel-max=%d)",
		o.ContainerID, o.Hostname, o.MaxFrameSize, o.ChannelMax)
}

// Error is an AMQP error, sent within a Close.
type Error struct {
	Condition   Symbol
	Description string
}

// Error conditions used by this implementation.
const (
	ConditionInternalError     Symbol = "amqp:internal-error"
	ConditionNotFound          Symbol = "amqp:not-found"
	ConditionDecodeError       Symbol = "amqp:decode-error"
	ConditionInvalidField      Symbol = "amqp:invalid-field"
	ConditionFrameSizeTooSmall Symbol = "amqp:frame-size-too-small"
	ConditionForced            Symbol = "amqp:connection:forced"
)

func (e *Error) marshal(w *Writer) {
	var f Fields
	f.Field(func(w *Writer) { w.WriteSymbol(e.Condition) })
	if e.Description != "" {
		f.Field(func(w *Writer) { w.WriteString(e.Description) })
	}
	w.WriteComposite(DescriptorError, &f)
}

func (e *Error) unmarshal(v any) error {
	fields, err := compositeFields(v, DescriptorError)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: error without condition", ErrDecode)
	}

	var ok bool
	if e.Condition, ok = fields[0].(Symbol); !ok {
		return fmt.Errorf("%w: error's condition is %T", ErrDecode, fields[0])
	}
	if len(fields) > 1 && fields[1] != nil {
		if e.Description, ok = fields[1].(string); !ok {
			return fmt.Errorf("%w: error's description is %T", ErrDecode, fields[1])
		}
	}
	return nil
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Condition)
	}
	return fmt.Sprintf("%s: %s", e.Condition, e.Description)
}

// Close ends a connection, optionally because of an Error.
type Close struct {
	Error *Error
}

func (c *Close) Descriptor() uint64 {
	return DescriptorClose
}

func (c *Close) Marshal(w *Writer) {
	var f Fields
	if c.Error != nil {
		f.Field(c.Error.marshal)
	}
	w.WriteComposite(DescriptorClose, &f)
}

func (c *Close) unmarshal(fields []any) error {
	if len(fields) == 0 || fields[0] == nil {
		return nil
	}

	c.Error = &Error{}
	return c.Error.unmarshal(fields[0])
}

func (c *Close) String() string {
	if c.Error == nil {
		return "close()"
	}
	return fmt.Sprintf("close(%v)", c.Error)
}

// Transfer of a delivery. The payload follows the performative within the frame's body.
type Transfer struct {
	Handle        uint32
	DeliveryID    uint32
	DeliveryTag   []byte
	MessageFormat uint32
	Settled       bool
	More          bool
	Batchable     bool
}

func (t *Transfer) Descriptor() uint64 {
	return DescriptorTransfer
}

// Marshal encodes all fields up to batchable; the four fields before batchable are null. The delivery-id is never
// encoded as uint0.
func (t *Transfer) Marshal(w *Writer) {
	var f Fields
	f.Field(func(w *Writer) { w.WriteUint(t.Handle) })
	f.Field(func(w *Writer) { w.WriteSmallUint(t.DeliveryID) })
	f.Field(func(w *Writer) { w.WriteBinary(t.DeliveryTag) })
	f.Field(func(w *Writer) { w.WriteUint(t.MessageFormat) })
	f.Field(func(w *Writer) { w.WriteBool(t.Settled) })
	f.Field(func(w *Writer) { w.WriteBool(t.More) })
	for i := 0; i < 4; i++ {
		f.Field(nil)
	}
	f.Field(func(w *Writer) { w.WriteBool(t.Batchable) })
	w.WriteComposite(DescriptorTransfer, &f)
}

func (t *Transfer) unmarshal(fields []any) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: transfer without handle", ErrDecode)
	}

	var ok bool
	for i, v := range fields {
		if v == nil {
			continue
		}

		switch i {
		case 0:
			t.Handle, ok = v.(uint32)
		case 1:
			t.DeliveryID, ok = v.(uint32)
		case 2:
			t.DeliveryTag, ok = v.([]byte)
		case 3:
			t.MessageFormat, ok = v.(uint32)
		case 4:
			t.Settled, ok = v.(bool)
		case 5:
			t.More, ok = v.(bool)
		case 10:
			t.Batchable, ok = v.(bool)
		default:
			ok = true
		}

		if !ok {
			return fmt.Errorf("%w: transfer's field %d is %T", ErrDecode, i, v)
		}
	}
	return nil
}

func (t *Transfer) String() string {
	return fmt.Sprintf("transfer(handle=%d, delivery-id=%d, settled=%t)", t.Handle, t.DeliveryID, t.Settled)
}

// compositeFields unwraps a described list with the expected descriptor.
func compositeFields(v any, descriptor uint64) ([]any, error) {
	described, ok := v.(*Described)
	if !ok {
		return nil, fmt.Errorf("%w: expected a described value, got %T", ErrDecode, v)
	}

	if code, ok := described.Descriptor.(uint64); !ok || code != descriptor {
		return nil, fmt.Errorf("%w: unexpected descriptor %v", ErrDecode, described.Descriptor)
	}

	fields, ok := described.Value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list, got %T", ErrDecode, described.Value)
	}
	return fields, nil
}

// EncodePerformative into an AMQP frame on channel 0, followed by an optional payload.
func EncodePerformative(p Performative, payload []byte) []byte {
	w := NewWriter(64 + len(payload))
	p.Marshal(w)
	w.WriteRaw(payload)
	return Encode(TypeAMQP, 0, w.Bytes())
}

// DecodePerformative from a frame's body. The bytes after the performative are returned as payload.
func DecodePerformative(body []byte) (p Performative, payload []byte, err error) {
	r := NewReader(body)
	v, err := r.ReadValue()
	if err != nil {
		return nil, nil, err
	}

	described, ok := v.(*Described)
	if !ok {
		return nil, nil, fmt.Errorf("%w: expected a performative, got %T", ErrDecode, v)
	}
	code, ok := described.Descriptor.(uint64)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unsupported descriptor %v", ErrDecode, described.Descriptor)
	}

	var fields []any
	if fields, err = compositeFields(described, code); err != nil {
		return nil, nil, err
	}

	switch code {
	case DescriptorOpen:
		o := &Open{}
		err = o.unmarshal(fields)
		p = o
	case DescriptorClose:
		c := &Close{}
		err = c.unmarshal(fields)
		p = c
	case DescriptorTransfer:
		t := &Transfer{}
		err = t.unmarshal(fields)
		p = t
	default:
		return nil, nil, fmt.Errorf("%w: unsupported performative 0x%02X", ErrDecode, code)
	}

	if err != nil {
		return nil, nil, err
	}
	return p, r.Remaining(), nil
}
