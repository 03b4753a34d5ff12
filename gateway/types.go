// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gateway implements the transfer protocol controller for the
// replicated pool: the source leg that neutralizes departing value and
// hands it to the relay, and the destination leg that reconciles deliveries
// against the NAV baseline under authorization, reentrancy, and deviation
// guards.
package gateway

import (
	"context"
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
)

// Precompile surface for the omnipool gateway
const (
	// GatewayAddress is the gateway precompile (LP-6020)
	GatewayAddress = "0x0000000000000000000000000000000000006020"

	// Gas costs
	GasInitiate     uint64 = 60_000 // Initiate cross-instance transfer
	GasDeliver      uint64 = 50_000 // Reconcile an incoming delivery
	GasNavQuery     uint64 = 5_000  // NAV recompute
	GasVirtualQuery uint64 = 3_000  // Virtual-state audit query
	GasRecordQuery  uint64 = 1_000  // Transfer record lookup
)

// Relay is the external channel that physically moves assets between
// instances: at-most-once, possibly-never, unbounded-delay delivery. It is
// untrusted for correctness but trusted for the identity of its delivery
// call into the destination gateway.
type Relay interface {
	// Send hands the physical amount and the encoded intent to the relay.
	// A nil error means accepted for transport, not delivered.
	Send(ctx context.Context, destChain uint32, asset common.Address, amount *big.Int, payload []byte) error
}

// Unwrapper is the optional destination post-processing hook invoked after
// a committed delivery whose intent carries the unwrap flag. It may call
// back into the gateway, which is what the per-asset delivery guard is for.
type Unwrapper interface {
	Unwrap(asset common.Address, amount *big.Int) error
}

// TransferStatus tracks a source-side transfer record. Outbound transfers
// are observable only until handoff; the relay reports nothing back.
type TransferStatus uint8

const (
	TransferSent TransferStatus = iota + 1
	TransferFailed
)

// DeliveryStatus is the per-asset destination-leg state machine. Aborted
// deliveries reset to idle with no persisted trace.
type DeliveryStatus uint8

const (
	DeliveryIdle DeliveryStatus = iota
	DeliveryReceiving
	DeliveryReconciling
	DeliveryCommitted
	DeliveryAborted
)

// TransferRecord is the observability handle returned by the source leg
type TransferRecord struct {
	ID           [32]byte
	SourceChain  uint32
	DestChain    uint32
	InputAsset   common.Address
	OutputAsset  common.Address
	InputAmount  *big.Int
	OutputAmount *big.Int
	Status       TransferStatus
	Nonce        uint64
}

// DeliveryRecord is kept per committed delivery for monitoring
type DeliveryRecord struct {
	Asset        common.Address
	Delivered    *big.Int
	NavBaseline  *big.Int
	NavAfter     *big.Int
	IntentDigest common.Hash // keccak256 of the raw intent payload
}

// Gateway errors
var (
	ErrRelayRequired        = errors.New("relay not configured")
	ErrSameChain            = errors.New("destination chain equals source chain")
	ErrAssetNotTracked      = errors.New("asset not tracked by this instance")
	ErrNoEquivalence        = errors.New("no cross-chain equivalence for asset pair")
	ErrIntentMismatch       = errors.New("intent does not match transfer arguments")
	ErrWrongDestination     = errors.New("intent destination is not this instance")
	ErrUnauthorizedDelivery = errors.New("delivery not from recognized relay")
	ErrReentrantDelivery    = errors.New("delivery already in flight for asset")
	ErrDeliveredNothing     = errors.New("delivered amount must be positive")
	ErrUnwrapFailed         = errors.New("unwrap post-processing failed")
)
