// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTransferBytes(t *testing.T) {
	expected := []byte{
		0x00, 0x00, 0x00, 0x23,
		0x02, 0x00, 0x00, 0x00,
		0x00, 0x53, 0x14,
		0xC0, 0x0E, 0x0B,
		0x43,
		0x52, 0x00,
		0xA0, 0x00,
		0x43,
		0x41,
		0x42,
		0x40, 0x40, 0x40, 0x40,
		0x41,
		0xB0, 0x00, 0x00, 0x00, 0x03,
		0x01, 0x02, 0x03,
	}

	assert.Equal(t, expected, EncodeTransfer(0, []byte{0x01, 0x02, 0x03}))
}

func TestEncodeTransferDeliveryID(t *testing.T) {
	tests := []struct {
		id       uint32
		listSize byte
		encoded  []byte
	}{
		{1, 0x0E, []byte{0x52, 0x01}},
		{255, 0x0E, []byte{0x52, 0xFF}},
		{256, 0x11, []byte{0x70, 0x00, 0x00, 0x01, 0x00}},
		{0xDEADBEEF, 0x11, []byte{0x70, 0xDE, 0xAD, 0xBE, 0xEF}},
	}

	for _, test := range tests {
		data := EncodeTransfer(test.id, nil)

		assert.EqualValues(t, len(data), int(data[3]), "frame size of delivery-id %d", test.id)
		assert.Equal(t, test.listSize, data[12], "list size of delivery-id %d", test.id)
		assert.Equal(t, test.encoded, data[15:15+len(test.encoded)], "delivery-id %d", test.id)
	}
}

func TestTransferRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 255, 256, 70000} {
		payload := bytes.Repeat([]byte{0xA5}, size)
		data := EncodeTransfer(300, payload)

		f, err := ReadFrame(bytes.NewReader(data), 0)
		require.NoError(t, err)
		assert.Equal(t, TypeAMQP, f.Type)
		assert.EqualValues(t, len(data), f.Size)

		p, rest, err := DecodePerformative(f.Body)
		require.NoError(t, err)

		transfer, ok := p.(*Transfer)
		require.True(t, ok)
		assert.EqualValues(t, 300, transfer.DeliveryID)
		assert.True(t, transfer.Settled)
		assert.True(t, transfer.Batchable)
		assert.False(t, transfer.More)
		assert.Empty(t, transfer.DeliveryTag)

		decoded, err := DecodeTransferPayload(rest)
		require.NoError(t, err)
		assert.Equal(t, payload, decoded)
	}
}
