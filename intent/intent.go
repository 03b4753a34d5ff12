// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package intent defines the cross-instance transfer intent and its
// deterministic wire codec. The codec rejects malformed and out-of-range
// fields before the accounting engine ever sees them; the gateway validates
// again at the protocol boundary, so the codec is defense in depth rather
// than the sole gate.
package intent

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// IntentVersion is the current wire version
const IntentVersion = uint8(1)

// Mode selects how the destination treats the delivered value
type Mode uint8

const (
	// ModeTransfer is a fully NAV-neutral cross-instance move
	ModeTransfer Mode = 1
	// ModeSync intentionally moves NAV, optionally partially neutralized
	ModeSync Mode = 2
)

// MaxBps bounds the basis-point fields
const MaxBps = 10000

// Wire layout (big-endian, fixed width):
//
//	version(1) | mode(1) | sourceChain(4) | destChain(4) |
//	inputAsset(20) | outputAsset(20) | inputAmount(32) | outputAmount(32) |
//	navToleranceBps(2) | syncMultiplierBps(2) | unwrap(1)
const EncodedLen = 119

// TransferIntent describes one in-flight transfer. It is created once on
// the source leg, serialized, consumed exactly once on delivery, and never
// mutated in place.
type TransferIntent struct {
	Mode              Mode
	SourceChain       uint32
	DestChain         uint32
	InputAsset        common.Address
	OutputAsset       common.Address
	InputAmount       *big.Int // amount leaving the source
	OutputAmount      *big.Int // expected arrival, <= InputAmount
	NavToleranceBps   uint32
	SyncMultiplierBps uint32 // only meaningful in Sync mode
	Unwrap            bool   // destination post-processing hint
}

// Codec errors
var (
	ErrIntentTooShort       = errors.New("intent payload too short")
	ErrIntentLength         = errors.New("intent payload length mismatch")
	ErrUnknownVersion       = errors.New("unknown intent version")
	ErrInvalidMode          = errors.New("invalid intent mode")
	ErrAmountRequired       = errors.New("intent amount required")
	ErrAmountTooLarge       = errors.New("intent amount does not fit in 256 bits")
	ErrToleranceOutOfRange  = errors.New("nav tolerance out of range")
	ErrMultiplierOutOfRange = errors.New("sync multiplier out of range")
	ErrOutputExceedsInput   = errors.New("output amount exceeds input amount")
	ErrInvalidUnwrapFlag    = errors.New("unwrap flag must be 0 or 1")
)

// Validate checks field bounds without touching any instance state
func (ti *TransferIntent) Validate() error {
	if ti.Mode != ModeTransfer && ti.Mode != ModeSync {
		return ErrInvalidMode
	}
	if ti.InputAmount == nil || ti.InputAmount.Sign() <= 0 {
		return ErrAmountRequired
	}
	if ti.OutputAmount == nil || ti.OutputAmount.Sign() < 0 {
		return ErrAmountRequired
	}
	if ti.OutputAmount.Cmp(ti.InputAmount) > 0 {
		return ErrOutputExceedsInput
	}
	if ti.NavToleranceBps > MaxBps {
		return ErrToleranceOutOfRange
	}
	if ti.SyncMultiplierBps > MaxBps {
		return ErrMultiplierOutOfRange
	}
	return nil
}

// Multiplier returns the effective neutralization multiplier in bps:
// full neutralization in Transfer mode, the intent's own in Sync mode.
func (ti *TransferIntent) Multiplier() uint32 {
	if ti.Mode == ModeSync {
		return ti.SyncMultiplierBps
	}
	return MaxBps
}

// Encode serializes the intent after validating it
func (ti *TransferIntent) Encode() ([]byte, error) {
	if err := ti.Validate(); err != nil {
		return nil, err
	}

	input, overflow := uint256.FromBig(ti.InputAmount)
	if overflow {
		return nil, ErrAmountTooLarge
	}
	output, overflow := uint256.FromBig(ti.OutputAmount)
	if overflow {
		return nil, ErrAmountTooLarge
	}

	out := make([]byte, EncodedLen)
	out[0] = IntentVersion
	out[1] = byte(ti.Mode)
	binary.BigEndian.PutUint32(out[2:6], ti.SourceChain)
	binary.BigEndian.PutUint32(out[6:10], ti.DestChain)
	copy(out[10:30], ti.InputAsset.Bytes())
	copy(out[30:50], ti.OutputAsset.Bytes())

	in32 := input.Bytes32()
	copy(out[50:82], in32[:])
	out32 := output.Bytes32()
	copy(out[82:114], out32[:])

	binary.BigEndian.PutUint16(out[114:116], uint16(ti.NavToleranceBps))
	binary.BigEndian.PutUint16(out[116:118], uint16(ti.SyncMultiplierBps))
	if ti.Unwrap {
		out[118] = 1
	}
	return out, nil
}

// Decode parses and validates a serialized intent. The layout is fixed
// width, so anything but an exact-length payload is rejected.
func Decode(data []byte) (*TransferIntent, error) {
	if len(data) < EncodedLen {
		return nil, ErrIntentTooShort
	}
	if len(data) != EncodedLen {
		return nil, ErrIntentLength
	}
	if data[0] != IntentVersion {
		return nil, ErrUnknownVersion
	}
	if data[118] > 1 {
		return nil, ErrInvalidUnwrapFlag
	}

	ti := &TransferIntent{
		Mode:              Mode(data[1]),
		SourceChain:       binary.BigEndian.Uint32(data[2:6]),
		DestChain:         binary.BigEndian.Uint32(data[6:10]),
		InputAsset:        common.BytesToAddress(data[10:30]),
		OutputAsset:       common.BytesToAddress(data[30:50]),
		InputAmount:       new(uint256.Int).SetBytes(data[50:82]).ToBig(),
		OutputAmount:      new(uint256.Int).SetBytes(data[82:114]).ToBig(),
		NavToleranceBps:   uint32(binary.BigEndian.Uint16(data[114:116])),
		SyncMultiplierBps: uint32(binary.BigEndian.Uint16(data[116:118])),
		Unwrap:            data[118] == 1,
	}

	if err := ti.Validate(); err != nil {
		return nil, err
	}
	return ti, nil
}
