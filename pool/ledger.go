// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"math/big"
	"sync"
)

// Ledger is one chain instance's view of the replicated pool: physically
// held balances, locally issued shares, and the signed virtual offsets that
// account for value in flight to or from other instances.
//
// virtualSupply is the net share count this instance owes to (negative) or
// is owed by (positive) other instances. virtualBalance is the per-asset,
// token-denominated offset used when virtualSupply cannot fully absorb a
// transfer's value: positive means value counted as present though
// physically departed, negative is the destination-side mirror.
type Ledger struct {
	chainID   uint32
	baseAsset Currency

	realBalance    map[Currency]*big.Int
	totalShares    *big.Int
	virtualSupply  *big.Int
	virtualBalance map[Currency]*big.Int

	tracked map[Currency]bool

	mu sync.RWMutex
}

// NewLedger creates an empty ledger instance. The base asset is tracked
// from the start.
func NewLedger(chainID uint32, baseAsset Currency) *Ledger {
	l := &Ledger{
		chainID:        chainID,
		baseAsset:      baseAsset,
		realBalance:    make(map[Currency]*big.Int),
		totalShares:    big.NewInt(0),
		virtualSupply:  big.NewInt(0),
		virtualBalance: make(map[Currency]*big.Int),
		tracked:        make(map[Currency]bool),
	}
	l.tracked[baseAsset] = true
	return l
}

// ChainID returns the chain this instance lives on
func (l *Ledger) ChainID() uint32 {
	return l.chainID
}

// BaseAsset returns the accounting denomination asset
func (l *Ledger) BaseAsset() Currency {
	return l.baseAsset
}

// Track registers an asset as actively held by this instance
func (l *Ledger) Track(asset Currency) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracked[asset] = true
}

// Untrack removes an asset from the actively-held set. The base asset can
// never be untracked.
func (l *Ledger) Untrack(asset Currency) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if asset == l.baseAsset {
		return
	}
	delete(l.tracked, asset)
}

// IsTracked returns true if the asset is actively held by this instance
func (l *Ledger) IsTracked(asset Currency) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tracked[asset]
}

// Credit adds physically arrived assets to the real balance
func (l *Ledger) Credit(asset Currency, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.tracked[asset] = true
	bal := l.balanceLocked(asset)
	bal.Add(bal, amount)
	return nil
}

// Debit removes physically departing assets from the real balance
func (l *Ledger) Debit(asset Currency, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(asset)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	return nil
}

// RealBalance returns the physically held amount of an asset
func (l *Ledger) RealBalance(asset Currency) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balanceLocked(asset))
}

// Mint issues shares against deposited value. Share issuance itself is
// outside the reconciliation core; the core only reads totalShares.
func (l *Ledger) Mint(shares *big.Int) error {
	if shares == nil || shares.Sign() <= 0 {
		return ErrZeroShares
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalShares.Add(l.totalShares, shares)
	return nil
}

// Burn retires issued shares
func (l *Ledger) Burn(shares *big.Int) error {
	if shares == nil || shares.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.totalShares.Cmp(shares) < 0 {
		return ErrInsufficientShares
	}
	next := new(big.Int).Sub(l.totalShares, shares)
	if err := l.checkSupplyFloorLocked(next, l.virtualSupply); err != nil {
		return err
	}
	l.totalShares = next
	return nil
}

// TotalShares returns the shares actually issued on this instance
func (l *Ledger) TotalShares() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalShares)
}

// VirtualSupply returns the signed net share count owed across instances
func (l *Ledger) VirtualSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.virtualSupply)
}

// VirtualBalance returns the signed per-asset accounting offset
func (l *Ledger) VirtualBalance(asset Currency) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.virtualBalanceLocked(asset))
}

// EffectiveSupply returns totalShares + virtualSupply, the NAV divisor
func (l *Ledger) EffectiveSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.effectiveSupplyLocked()
}

// VirtualState returns an audit snapshot of the virtual accounting
func (l *Ledger) VirtualState() VirtualState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	vb := make(map[Currency]*big.Int, len(l.virtualBalance))
	for asset, amount := range l.virtualBalance {
		if amount.Sign() != 0 {
			vb[asset] = new(big.Int).Set(amount)
		}
	}
	return VirtualState{
		ChainID:        l.chainID,
		TotalShares:    new(big.Int).Set(l.totalShares),
		VirtualSupply:  new(big.Int).Set(l.virtualSupply),
		VirtualBalance: vb,
	}
}

// Locked helpers. Callers hold l.mu.

func (l *Ledger) balanceLocked(asset Currency) *big.Int {
	bal := l.realBalance[asset]
	if bal == nil {
		bal = big.NewInt(0)
		l.realBalance[asset] = bal
	}
	return bal
}

func (l *Ledger) virtualBalanceLocked(asset Currency) *big.Int {
	vb := l.virtualBalance[asset]
	if vb == nil {
		vb = big.NewInt(0)
		l.virtualBalance[asset] = vb
	}
	return vb
}

func (l *Ledger) effectiveSupplyLocked() *big.Int {
	return new(big.Int).Add(l.totalShares, l.virtualSupply)
}

// checkSupplyFloorLocked validates the floor invariant for a prospective
// (totalShares, virtualSupply) pair: effectiveSupply > 0 when any shares
// exist, and effectiveSupply * MinSupplyRatio >= totalShares.
func (l *Ledger) checkSupplyFloorLocked(totalShares, virtualSupply *big.Int) error {
	eff := new(big.Int).Add(totalShares, virtualSupply)
	if eff.Sign() < 0 {
		return ErrSupplyFloorBreached
	}
	if eff.Sign() == 0 && totalShares.Sign() > 0 {
		return ErrSupplyFloorBreached
	}
	scaled := new(big.Int).Mul(eff, big.NewInt(MinSupplyRatio))
	if scaled.Cmp(totalShares) < 0 {
		return ErrSupplyFloorBreached
	}
	return nil
}

// adjustVirtualSupplyLocked applies a signed delta to virtualSupply,
// enforcing the floor invariant before anything is written.
func (l *Ledger) adjustVirtualSupplyLocked(delta *big.Int) error {
	next := new(big.Int).Add(l.virtualSupply, delta)
	if err := l.checkSupplyFloorLocked(l.totalShares, next); err != nil {
		return err
	}
	l.virtualSupply = next
	return nil
}
