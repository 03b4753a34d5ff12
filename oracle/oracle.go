// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle defines the value-oracle boundary the pool accounting
// depends on. The ledger never trusts a valuation it did not obtain from a
// successful oracle call.
package oracle

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
)

// PriceScale is the fixed-point scale for quotes: a price is the base-asset
// value of PriceScale units of the quoted asset.
var PriceScale = big.NewInt(1e18)

var (
	ErrNoFeed = errors.New("no price feed for asset")
)

// ValueOracle converts amounts between assets and reports feed availability
type ValueOracle interface {
	// Convert returns the amount of [to] equivalent in value to [amount]
	// of [from]. Amounts are non-negative; callers handle signs.
	Convert(amount *big.Int, from, to common.Address) (*big.Int, error)

	// HasFeed returns true if the asset has a valid price source
	HasFeed(asset common.Address) bool
}

// StaticOracle is an in-process ValueOracle backed by a fixed quote table.
// Quotes are set against a common reference, so any pair with two feeds is
// convertible.
type StaticOracle struct {
	prices map[common.Address]*big.Int
	mu     sync.RWMutex
}

var _ ValueOracle = (*StaticOracle)(nil)

// NewStaticOracle creates an oracle with no feeds
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		prices: make(map[common.Address]*big.Int),
	}
}

// SetPrice installs or replaces the quote for an asset: the reference value
// of PriceScale asset units. A nil or non-positive price removes the feed.
func (o *StaticOracle) SetPrice(asset common.Address, price *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if price == nil || price.Sign() <= 0 {
		delete(o.prices, asset)
		return
	}
	o.prices[asset] = new(big.Int).Set(price)
}

// Convert implements ValueOracle
func (o *StaticOracle) Convert(amount *big.Int, from, to common.Address) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	fromPrice := o.prices[from]
	if fromPrice == nil {
		return nil, ErrNoFeed
	}
	if from == to {
		return new(big.Int).Set(amount), nil
	}
	toPrice := o.prices[to]
	if toPrice == nil {
		return nil, ErrNoFeed
	}

	// out = amount * fromPrice / toPrice
	out := new(big.Int).Mul(amount, fromPrice)
	out.Div(out, toPrice)
	return out, nil
}

// HasFeed implements ValueOracle
func (o *StaticOracle) HasFeed(asset common.Address) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.prices[asset] != nil
}
