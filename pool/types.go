// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pool implements the replicated pooled-asset ledger: per-instance
// real balances and issued shares, the signed virtual supply / virtual
// balance offsets, and the NAV accounting that keeps the pool's unitary
// value consistent while assets move between instances through an external
// relay.
package pool

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
)

// Currency represents a pooled asset (native or ERC20).
// Address(0) represents the native asset.
type Currency struct {
	Address common.Address
}

// IsNative returns true if this currency is the native asset
func (c Currency) IsNative() bool {
	return c.Address == common.Address{}
}

// ToBytes serializes currency for storage
func (c Currency) ToBytes() []byte {
	return c.Address.Bytes()
}

// CurrencyFromBytes deserializes currency from storage
func CurrencyFromBytes(data []byte) Currency {
	return Currency{Address: common.BytesToAddress(data)}
}

// Accounting constants
const (
	// BpsDenominator for basis point calculations
	BpsDenominator = 10000

	// MinSupplyRatio bounds how much of an instance's economic backing may
	// be exported in one operation: effectiveSupply may never fall below
	// totalShares / MinSupplyRatio.
	MinSupplyRatio = 8
)

// ShareScale is the fixed-point scale for shares and NAV (1e18).
// NAV is denominated in base-asset units per ShareScale shares.
var ShareScale = big.NewInt(1e18)

// UnitNav is the bootstrap NAV for an instance with zero effective supply:
// one base-asset unit per share.
var UnitNav = big.NewInt(1e18)

// ReconcileParams carries the intent fields the accounting engine needs on
// the destination leg. The gateway decodes and validates the wire intent
// before building these, so the bps fields are already bounds-checked.
type ReconcileParams struct {
	// OutputAmount is the nominal expected arrival; anything delivered
	// beyond it is solver surplus and is never neutralized.
	OutputAmount *big.Int

	// MultiplierBps is the neutralization multiplier: 10000 for Transfer
	// mode, [0,10000] for Sync mode.
	MultiplierBps uint32

	// ToleranceBps bounds |navAfter - navExpected| relative to navExpected.
	ToleranceBps uint32
}

// VirtualState is a read-only audit snapshot of an instance's virtual
// accounting, for monitoring cross-instance drift.
type VirtualState struct {
	ChainID        uint32
	TotalShares    *big.Int
	VirtualSupply  *big.Int
	VirtualBalance map[Currency]*big.Int
}

// NeutralizeReceipt records the virtual-state adjustments one source-side
// neutralization applied. A failed handoff subtracts exactly these, so
// adjustments applied by anything that ran in between survive.
type NeutralizeReceipt struct {
	BurnedSupply *big.Int // burned from positive virtualSupply
	AddedBalance *big.Int // added to virtualBalance[asset], token units
}

// ReconcileReceipt records the adjustments one destination reconciliation
// applied, plus the NAV it settled at.
type ReconcileReceipt struct {
	ClearedBalance *big.Int // cleared from positive virtualBalance[asset]
	MintedSupply   *big.Int // added to virtualSupply
	NavAfter       *big.Int
}

// Ledger errors
var (
	ErrAssetNotTracked      = errors.New("asset not tracked by this instance")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientBalance  = errors.New("insufficient real balance")
	ErrInsufficientShares   = errors.New("insufficient shares")
	ErrZeroShares           = errors.New("would mint zero shares")
	ErrZeroEffectiveSupply  = errors.New("effective supply is zero or negative")
	ErrSupplyFloorBreached  = errors.New("effective supply below floor")
	ErrNavDeviation         = errors.New("nav deviation exceeds tolerance")
	ErrPriceUnavailable     = errors.New("no price feed for asset")
	ErrNavBaselineRequired  = errors.New("nav baseline required")
)
