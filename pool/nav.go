// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"math/big"

	"github.com/luxfi/omnipool/oracle"
)

// NAV returns the instance's net asset value: the base-asset value of
// ShareScale shares. The valuation sums real balances and the signed
// virtual-balance offsets through the oracle and divides by the effective
// supply. Any reader with the same state and quotes reproduces the same
// value.
func (l *Ledger) NAV(o oracle.ValueOracle) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.navLocked(o)
}

// NavBaseline returns the NAV to reconcile an incoming delivery against.
// An instance with zero effective supply and no issued shares is
// bootstrapping and values incoming shares at unit NAV.
func (l *Ledger) NavBaseline(o oracle.ValueOracle) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.totalShares.Sign() == 0 && l.virtualSupply.Sign() == 0 {
		return new(big.Int).Set(UnitNav), nil
	}
	return l.navLocked(o)
}

// SourceNeutralize offsets the NAV impact of [valueInBase] worth of [asset]
// about to leave this instance. The value is converted to shares at the
// current NAV; positive virtual supply absorbs as much as it can (shares
// this instance was owed are burned), and the remainder is kept as a
// token-denominated virtual balance so the departed value still counts in
// the valuation. The relay's fee is deliberately not neutralized.
//
// The caller debits the physical amount afterwards; a failure here leaves
// the ledger untouched. The returned receipt records exactly what was
// applied so a failed handoff can be unwound without touching anything
// applied in between.
func (l *Ledger) SourceNeutralize(o oracle.ValueOracle, asset Currency, valueInBase *big.Int) (NeutralizeReceipt, error) {
	var receipt NeutralizeReceipt
	if valueInBase == nil || valueInBase.Sign() <= 0 {
		return receipt, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prevSupply := new(big.Int).Set(l.virtualSupply)
	prevBalance := new(big.Int).Set(l.virtualBalanceLocked(asset))
	restore := func() {
		l.virtualSupply = prevSupply
		l.virtualBalance[asset] = prevBalance
	}

	nav, err := l.navLocked(o)
	if err != nil {
		return receipt, err
	}
	if nav.Sign() <= 0 {
		return receipt, ErrZeroEffectiveSupply
	}

	// shares = value * scale / nav
	shares := new(big.Int).Mul(valueInBase, ShareScale)
	shares.Div(shares, nav)

	burned := big.NewInt(0)
	if l.virtualSupply.Sign() > 0 {
		burned.Set(l.virtualSupply)
		if burned.Cmp(shares) > 0 {
			burned.Set(shares)
		}
		if err := l.adjustVirtualSupplyLocked(new(big.Int).Neg(burned)); err != nil {
			return receipt, err
		}
	}

	added := big.NewInt(0)
	remainder := new(big.Int).Sub(shares, burned)
	if remainder.Sign() > 0 {
		// Back to base value at the same NAV, then to token units.
		remValue := new(big.Int).Mul(remainder, nav)
		remValue.Div(remValue, ShareScale)

		tokenAmount, err := o.Convert(remValue, l.baseAsset.Address, asset.Address)
		if err != nil {
			restore()
			return receipt, ErrPriceUnavailable
		}
		vb := l.virtualBalanceLocked(asset)
		vb.Add(vb, tokenAmount)
		added = tokenAmount
	}

	receipt.BurnedSupply = burned
	receipt.AddedBalance = added
	return receipt, nil
}

// UnwindNeutralize reverses the adjustments a neutralization receipt
// records: the burned virtual supply is re-minted and the added virtual
// balance removed. Anything applied by other operations in between stays.
func (l *Ledger) UnwindNeutralize(asset Currency, r NeutralizeReceipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.AddedBalance != nil && r.AddedBalance.Sign() > 0 {
		vb := l.virtualBalanceLocked(asset)
		vb.Sub(vb, r.AddedBalance)
	}
	if r.BurnedSupply != nil && r.BurnedSupply.Sign() > 0 {
		return l.adjustVirtualSupplyLocked(r.BurnedSupply)
	}
	return nil
}

// DestinationReconcile absorbs a delivered amount into the virtual
// accounting after the gateway has credited it to the real balance.
// [navBaseline] is the NAV captured before the delivery was recognized.
//
// The neutralized portion first clears any positive virtual balance for the
// asset (value this instance previously promised elsewhere coming back);
// what that cannot absorb becomes virtual supply at the baseline NAV. The
// un-neutralized remainder and any solver surplus stay as a pure
// real-balance increase, which is the only part allowed to move NAV.
//
// The returned receipt carries the post-reconciliation NAV and the exact
// adjustments applied, so a caller aborting later can unwind this delivery
// alone. On any error no state change is observable.
func (l *Ledger) DestinationReconcile(o oracle.ValueOracle, asset Currency, delivered *big.Int, params ReconcileParams, navBaseline *big.Int) (ReconcileReceipt, error) {
	var receipt ReconcileReceipt
	if delivered == nil || delivered.Sign() <= 0 {
		return receipt, ErrInvalidAmount
	}
	if navBaseline == nil || navBaseline.Sign() <= 0 {
		return receipt, ErrNavBaselineRequired
	}
	if params.OutputAmount == nil || params.OutputAmount.Sign() < 0 {
		return receipt, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prevSupply := new(big.Int).Set(l.virtualSupply)
	prevBalance := new(big.Int).Set(l.virtualBalanceLocked(asset))
	restore := func() {
		l.virtualSupply = prevSupply
		l.virtualBalance[asset] = prevBalance
	}

	// Surplus beyond the nominal expected arrival is never neutralized.
	basis := new(big.Int).Set(delivered)
	if basis.Cmp(params.OutputAmount) > 0 {
		basis.Set(params.OutputAmount)
	}

	neutralized := new(big.Int).Mul(basis, big.NewInt(int64(params.MultiplierBps)))
	neutralized.Div(neutralized, big.NewInt(BpsDenominator))

	// Clear the asset's positive virtual balance first.
	vb := l.virtualBalanceLocked(asset)
	cleared := big.NewInt(0)
	if vb.Sign() > 0 {
		cleared.Set(vb)
		if cleared.Cmp(neutralized) > 0 {
			cleared.Set(neutralized)
		}
		vb.Sub(vb, cleared)
	}

	// The rest becomes virtual supply at the baseline NAV.
	minted := big.NewInt(0)
	residual := new(big.Int).Sub(neutralized, cleared)
	if residual.Sign() > 0 {
		value, err := o.Convert(residual, asset.Address, l.baseAsset.Address)
		if err != nil {
			restore()
			return receipt, ErrPriceUnavailable
		}
		minted.Mul(value, ShareScale)
		minted.Div(minted, navBaseline)
		if err := l.adjustVirtualSupplyLocked(minted); err != nil {
			restore()
			return receipt, err
		}
	}

	navAfter, err := l.navLocked(o)
	if err != nil {
		restore()
		return receipt, err
	}

	// Expected NAV: baseline plus the increase from the un-neutralized
	// remainder. In Sync mode that movement is the point; the tolerance
	// then only bounds rounding and manipulation.
	expected := new(big.Int).Set(navBaseline)
	free := new(big.Int).Sub(delivered, neutralized)
	if free.Sign() > 0 {
		freeValue, err := o.Convert(free, asset.Address, l.baseAsset.Address)
		if err != nil {
			restore()
			return receipt, ErrPriceUnavailable
		}
		increase := new(big.Int).Mul(freeValue, ShareScale)
		increase.Div(increase, l.effectiveSupplyLocked())
		expected.Add(expected, increase)
	}

	deviation := new(big.Int).Sub(navAfter, expected)
	deviation.Abs(deviation)
	tolerance := new(big.Int).Mul(expected, big.NewInt(int64(params.ToleranceBps)))
	tolerance.Div(tolerance, big.NewInt(BpsDenominator))
	if deviation.Cmp(tolerance) > 0 {
		restore()
		return receipt, ErrNavDeviation
	}

	receipt.ClearedBalance = cleared
	receipt.MintedSupply = minted
	receipt.NavAfter = navAfter
	return receipt, nil
}

// UnwindReconcile reverses the adjustments a reconciliation receipt
// records: the minted virtual supply is removed and the cleared virtual
// balance restored. Adjustments applied by other deliveries in between,
// including ones committed from inside an unwrap hook, stay intact.
func (l *Ledger) UnwindReconcile(asset Currency, r ReconcileReceipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.ClearedBalance != nil && r.ClearedBalance.Sign() > 0 {
		vb := l.virtualBalanceLocked(asset)
		vb.Add(vb, r.ClearedBalance)
	}
	if r.MintedSupply != nil && r.MintedSupply.Sign() > 0 {
		return l.adjustVirtualSupplyLocked(new(big.Int).Neg(r.MintedSupply))
	}
	return nil
}

// navLocked recomputes NAV under l.mu
func (l *Ledger) navLocked(o oracle.ValueOracle) (*big.Int, error) {
	eff := l.effectiveSupplyLocked()
	if eff.Sign() <= 0 {
		return nil, ErrZeroEffectiveSupply
	}

	total, err := l.totalValueLocked(o)
	if err != nil {
		return nil, err
	}

	nav := new(big.Int).Mul(total, ShareScale)
	nav.Div(nav, eff)
	return nav, nil
}

// totalValueLocked sums real and virtual per-asset value in base units
func (l *Ledger) totalValueLocked(o oracle.ValueOracle) (*big.Int, error) {
	total := big.NewInt(0)

	seen := make(map[Currency]bool, len(l.realBalance)+len(l.virtualBalance))
	for asset := range l.realBalance {
		seen[asset] = true
	}
	for asset := range l.virtualBalance {
		seen[asset] = true
	}

	for asset := range seen {
		net := new(big.Int).Set(l.balanceLocked(asset))
		net.Add(net, l.virtualBalanceLocked(asset))
		if net.Sign() == 0 {
			continue
		}

		negative := net.Sign() < 0
		value, err := o.Convert(new(big.Int).Abs(net), asset.Address, l.baseAsset.Address)
		if err != nil {
			return nil, ErrPriceUnavailable
		}
		if negative {
			total.Sub(total, value)
		} else {
			total.Add(total, value)
		}
	}

	return total, nil
}
