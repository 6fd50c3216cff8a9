// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package frame

import "fmt"

// EncodeTransfer creates the frame of a settled raw transfer on handle 0 and channel 0. The payload follows the
// transfer performative as a vbin32 value.
func EncodeTransfer(deliveryID uint32, payload []byte) []byte {
	transfer := Transfer{
		DeliveryID: deliveryID,
		Settled:    true,
		Batchable:  true,
	}

	w := NewWriter(32 + len(payload))
	transfer.Marshal(w)
	w.WriteBinary32(payload)
	return Encode(TypeAMQP, 0, w.Bytes())
}

// DecodeTransferPayload extracts the binary payload following a Transfer performative.
func DecodeTransferPayload(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	r := NewReader(payload)
	v, err := r.ReadValue()
	if err != nil {
		return nil, err
	}

	data, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: transfer payload is %T", ErrDecode, v)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after transfer payload", ErrDecode, r.Len())
	}
	return data, nil
}
