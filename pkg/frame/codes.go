// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package frame

// Format codes of the AMQP type system used by this package.
const (
	codeDescribed byte = 0x00

	codeNull  byte = 0x40
	codeTrue  byte = 0x41
	codeFalse byte = 0x42
	codeBool  byte = 0x56

	codeUbyte      byte = 0x50
	codeUshort     byte = 0x60
	codeUint       byte = 0x70
	codeSmallUint  byte = 0x52
	codeUint0      byte = 0x43
	codeUlong      byte = 0x80
	codeSmallUlong byte = 0x53
	codeUlong0     byte = 0x44

	codeByte      byte = 0x51
	codeShort     byte = 0x61
	codeInt       byte = 0x71
	codeSmallInt  byte = 0x54
	codeLong      byte = 0x81
	codeSmallLong byte = 0x55

	codeFloat     byte = 0x72
	codeDouble    byte = 0x82
	codeChar      byte = 0x73
	codeTimestamp byte = 0x83
	codeUUID      byte = 0x98

	codeVbin8  byte = 0xA0
	codeVbin32 byte = 0xB0
	codeStr8   byte = 0xA1
	codeStr32  byte = 0xB1
	codeSym8   byte = 0xA3
	codeSym32  byte = 0xB3

	codeList0   byte = 0x45
	codeList8   byte = 0xC0
	codeList32  byte = 0xD0
	codeMap8    byte = 0xC1
	codeMap32   byte = 0xD1
	codeArray8  byte = 0xE0
	codeArray32 byte = 0xF0
)

// Descriptor codes of the performatives.
const (
	DescriptorOpen     uint64 = 0x10
	DescriptorTransfer uint64 = 0x14
	DescriptorClose    uint64 = 0x18
	DescriptorError    uint64 = 0x1D
)
