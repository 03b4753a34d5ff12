// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
)

// Persisted layout: one scalar slot for total shares, one for virtual
// supply, and prefix-keyed per-asset slots for real and virtual balances.
// Values are a sign byte followed by a 32-byte big-endian magnitude, so the
// on-disk state is auditable with nothing but the key scheme.
var (
	keyTotalShares       = []byte("omnipool/shares")
	keyVirtualSupply     = []byte("omnipool/vsupply")
	prefixRealBalance    = []byte("omnipool/rbal/")
	prefixVirtualBalance = []byte("omnipool/vbal/")
)

var (
	ErrValueTooLarge  = errors.New("value does not fit in 256 bits")
	ErrCorruptedState = errors.New("corrupted ledger state")
)

// Persist writes the ledger's durable state to [db]. Zero-valued entries
// are deleted so the stored set mirrors the audit snapshot.
func (l *Ledger) Persist(db database.Database) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	shares, err := encodeSigned(l.totalShares)
	if err != nil {
		return err
	}
	if err := db.Put(keyTotalShares, shares); err != nil {
		return err
	}

	supply, err := encodeSigned(l.virtualSupply)
	if err != nil {
		return err
	}
	if err := db.Put(keyVirtualSupply, supply); err != nil {
		return err
	}

	if err := persistBalances(db, prefixRealBalance, l.realBalance); err != nil {
		return err
	}
	return persistBalances(db, prefixVirtualBalance, l.virtualBalance)
}

// LoadLedger restores a ledger instance from [db]. Missing keys mean an
// empty instance, not an error.
func LoadLedger(db database.Database, chainID uint32, baseAsset Currency) (*Ledger, error) {
	l := NewLedger(chainID, baseAsset)

	shares, err := loadSigned(db, keyTotalShares)
	if err != nil {
		return nil, err
	}
	if shares.Sign() < 0 {
		return nil, ErrCorruptedState
	}
	l.totalShares = shares

	supply, err := loadSigned(db, keyVirtualSupply)
	if err != nil {
		return nil, err
	}
	l.virtualSupply = supply

	if err := loadBalances(db, prefixRealBalance, func(asset Currency, amount *big.Int) error {
		if amount.Sign() < 0 {
			return ErrCorruptedState
		}
		l.realBalance[asset] = amount
		l.tracked[asset] = true
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadBalances(db, prefixVirtualBalance, func(asset Currency, amount *big.Int) error {
		l.virtualBalance[asset] = amount
		l.tracked[asset] = true
		return nil
	}); err != nil {
		return nil, err
	}

	return l, nil
}

func persistBalances(db database.Database, prefix []byte, balances map[Currency]*big.Int) error {
	for asset, amount := range balances {
		key := balanceKey(prefix, asset)
		if amount.Sign() == 0 {
			if err := db.Delete(key); err != nil {
				return err
			}
			continue
		}
		encoded, err := encodeSigned(amount)
		if err != nil {
			return err
		}
		if err := db.Put(key, encoded); err != nil {
			return err
		}
	}
	return nil
}

func loadBalances(db database.Database, prefix []byte, set func(Currency, *big.Int) error) error {
	it := db.NewIteratorWithPrefix(prefix)
	defer it.Release()

	for it.Next() {
		key := it.Key()
		if len(key) != len(prefix)+20 {
			return ErrCorruptedState
		}
		asset := CurrencyFromBytes(key[len(prefix):])

		amount, err := decodeSigned(it.Value())
		if err != nil {
			return err
		}
		if err := set(asset, amount); err != nil {
			return err
		}
	}
	return it.Error()
}

func loadSigned(db database.Database, key []byte) (*big.Int, error) {
	raw, err := db.Get(key)
	if err == database.ErrNotFound {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSigned(raw)
}

func balanceKey(prefix []byte, asset Currency) []byte {
	key := make([]byte, 0, len(prefix)+20)
	key = append(key, prefix...)
	return append(key, asset.ToBytes()...)
}

func encodeSigned(x *big.Int) ([]byte, error) {
	mag, overflow := uint256.FromBig(new(big.Int).Abs(x))
	if overflow {
		return nil, ErrValueTooLarge
	}

	out := make([]byte, 33)
	if x.Sign() < 0 {
		out[0] = 1
	}
	b32 := mag.Bytes32()
	copy(out[1:], b32[:])
	return out, nil
}

func decodeSigned(raw []byte) (*big.Int, error) {
	if len(raw) != 33 || raw[0] > 1 {
		return nil, ErrCorruptedState
	}

	mag := new(uint256.Int).SetBytes(raw[1:])
	x := mag.ToBig()
	if raw[0] == 1 {
		x.Neg(x)
	}
	return x, nil
}
