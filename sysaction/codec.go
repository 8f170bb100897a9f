package sysaction

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/tos-network/metagate/core/types"
)

// ErrInvalidSysAction is returned when call data cannot be decoded as a SysAction.
var ErrInvalidSysAction = errors.New("invalid system action payload")

// declaredSize returns the total size (header plus content) the leading RLP
// header of data claims, without requiring the content to be present.
func declaredSize(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, rlp.ErrValueTooLarge
	}
	b := data[0]
	switch {
	case b < 0x80:
		return 1, nil
	case b < 0xB8:
		return 1 + uint64(b-0x80), nil
	case b < 0xC0:
		return longSize(data, int(b-0xB7))
	case b < 0xF8:
		return 1 + uint64(b-0xC0), nil
	default:
		return longSize(data, int(b-0xF7))
	}
}

func longSize(data []byte, lenOfLen int) (uint64, error) {
	if len(data) < 1+lenOfLen {
		return 0, rlp.ErrValueTooLarge
	}
	var size uint64
	for _, c := range data[1 : 1+lenOfLen] {
		if size > (1<<56)-1 {
			return 0, rlp.ErrValueTooLarge
		}
		size = size<<8 | uint64(c)
	}
	return 1 + uint64(lenOfLen) + size, nil
}

// decodeFirst decodes the first RLP value of data into dst. Bytes after the
// first value are ignored. When the header declares more bytes than data
// holds, the missing tail reads as zeroes, up to the call data bound.
func decodeFirst(data []byte, dst interface{}) error {
	size, err := declaredSize(data)
	if err != nil {
		return err
	}
	if size > types.MaxCallDataLen {
		return fmt.Errorf("declared size %d exceeds %d", size, types.MaxCallDataLen)
	}
	item := data
	if uint64(len(data)) < size {
		item = make([]byte, size)
		copy(item, data)
	}
	return rlp.DecodeBytes(item[:size], dst)
}

// Decode parses a SysAction from raw call data.
func Decode(data []byte) (*SysAction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidSysAction)
	}
	var sa SysAction
	if err := decodeFirst(data, &sa); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSysAction, err)
	}
	if sa.Action == "" {
		return nil, fmt.Errorf("%w: missing action field", ErrInvalidSysAction)
	}
	return &sa, nil
}

// DecodePayload decodes sa.Payload into dst with the same tolerance as Decode.
func DecodePayload(sa *SysAction, dst interface{}) error {
	if len(sa.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrInvalidSysAction, sa.Action)
	}
	if err := decodeFirst(sa.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalidSysAction, sa.Action, err)
	}
	return nil
}

// Encode serialises a SysAction to the RLP call data form.
func Encode(sa *SysAction) ([]byte, error) {
	return rlp.EncodeToBytes(sa)
}

// MakeSysAction is a convenience helper that creates and encodes a SysAction.
func MakeSysAction(kind ActionKind, payload interface{}) ([]byte, error) {
	var raw []byte
	if payload != nil {
		b, err := rlp.EncodeToBytes(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return Encode(&SysAction{Action: kind, Payload: raw})
}
