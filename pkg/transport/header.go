// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"bytes"
	"fmt"
	"io"
)

// ProtocolID identifies the layer a ProtocolHeader announces.
type ProtocolID uint8

const (
	// ProtocolAMQP is the terminal application protocol.
	ProtocolAMQP ProtocolID = 0

	// ProtocolTLS announces a TLS upgrade of the current transport.
	ProtocolTLS ProtocolID = 2

	// ProtocolSASL announces a SASL security layer.
	ProtocolSASL ProtocolID = 3
)

func (id ProtocolID) String() string {
	switch id {
	case ProtocolAMQP:
		return "AMQP"
	case ProtocolTLS:
		return "TLS"
	case ProtocolSASL:
		return "SASL"
	default:
		return fmt.Sprintf("Protocol(%d)", uint8(id))
	}
}

// Version of a protocol layer.
type Version struct {
	Major    uint8
	Minor    uint8
	Revision uint8
}

// DefaultVersion is AMQP 1.0.0, which is also used for the TLS and SASL layers.
var DefaultVersion = Version{Major: 1, Minor: 0, Revision: 0}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Revision)
}

// ProtocolHeaderSize is the length of a serialized ProtocolHeader.
const ProtocolHeaderSize = 8

// protocolHeaderMagic are the four octets every ProtocolHeader starts with.
var protocolHeaderMagic = []byte{'A', 'M', 'Q', 'P'}

// ProtocolHeader is exchanged at the start of a connection and before each upgrade of a transport. Both peers send
// one and inspect the peer's header.
type ProtocolHeader struct {
	ID      ProtocolID
	Version Version
}

// NewProtocolHeader for a protocol ID and Version.
func NewProtocolHeader(id ProtocolID, version Version) ProtocolHeader {
	return ProtocolHeader{ID: id, Version: version}
}

// ParseProtocolHeader decodes a ProtocolHeader from exactly ProtocolHeaderSize bytes.
func ParseProtocolHeader(data []byte) (ph ProtocolHeader, err error) {
	if len(data) != ProtocolHeaderSize {
		err = fmt.Errorf("%w: expected %d octets, got %d", ErrInvalidProtocolHeader, ProtocolHeaderSize, len(data))
		return
	}

	if magic := data[:4]; !bytes.Equal(magic, protocolHeaderMagic) {
		err = fmt.Errorf("%w: magic %x does not match %x", ErrInvalidProtocolHeader, magic, protocolHeaderMagic)
		return
	}

	ph = ProtocolHeader{
		ID: ProtocolID(data[4]),
		Version: Version{
			Major:    data[5],
			Minor:    data[6],
			Revision: data[7],
		},
	}
	return
}

// Bytes returns the wire representation.
func (ph ProtocolHeader) Bytes() []byte {
	return []byte{
		protocolHeaderMagic[0], protocolHeaderMagic[1], protocolHeaderMagic[2], protocolHeaderMagic[3],
		byte(ph.ID), ph.Version.Major, ph.Version.Minor, ph.Version.Revision,
	}
}

// Marshal writes the wire representation to w.
func (ph ProtocolHeader) Marshal(w io.Writer) error {
	data := ph.Bytes()

	if n, err := w.Write(data); err != nil {
		return err
	} else if n != len(data) {
		return fmt.Errorf("wrote %d octets instead of %d", n, len(data))
	}

	return nil
}

// Unmarshal reads a ProtocolHeader from r.
func (ph *ProtocolHeader) Unmarshal(r io.Reader) error {
	data := make([]byte, ProtocolHeaderSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}

	parsed, err := ParseProtocolHeader(data)
	if err != nil {
		return err
	}

	*ph = parsed
	return nil
}

func (ph ProtocolHeader) String() string {
	return fmt.Sprintf("AMQP(%d,%s)", uint8(ph.ID), ph.Version)
}
