// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"context"
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/zeebo/blake3"

	"github.com/luxfi/omnipool/intent"
	"github.com/luxfi/omnipool/oracle"
	"github.com/luxfi/omnipool/pool"
)

// Gateway orchestrates both legs of a cross-instance transfer for one
// ledger instance. It owns the authorization boundary, the per-asset
// delivery guard, and the validation the accounting engine assumes has
// already happened.
type Gateway struct {
	ledger *pool.Ledger
	oracle oracle.ValueOracle
	relay  Relay

	// relayID is the single recognized delivery caller. Authorization is
	// an explicit capability of the delivery call, not an ambient
	// property.
	relayID common.Address

	unwrapper Unwrapper

	// equivalences maps a local asset to its canonical counterpart per
	// destination chain.
	equivalences map[common.Address]map[uint32]common.Address

	records    map[[32]byte]*TransferRecord
	deliveries []*DeliveryRecord

	// Per-call scratch state, keyed by asset and cleared on every exit
	// path so a reverted delivery leaves zero residue.
	inFlight  map[common.Address]bool
	baselines map[common.Address]*big.Int
	status    map[common.Address]DeliveryStatus

	nonce uint64
	log   log.Logger
	mu    sync.Mutex
}

// NewGateway creates a gateway for one ledger instance. [relayID] is the
// only caller OnDelivery will accept.
func NewGateway(ledger *pool.Ledger, o oracle.ValueOracle, relay Relay, relayID common.Address) *Gateway {
	return &Gateway{
		ledger:       ledger,
		oracle:       o,
		relay:        relay,
		relayID:      relayID,
		equivalences: make(map[common.Address]map[uint32]common.Address),
		records:      make(map[[32]byte]*TransferRecord),
		inFlight:     make(map[common.Address]bool),
		baselines:    make(map[common.Address]*big.Int),
		status:       make(map[common.Address]DeliveryStatus),
		log:          log.NewTestLogger(log.InfoLevel),
	}
}

// SetLogger replaces the default logger
func (g *Gateway) SetLogger(logger log.Logger) {
	g.log = logger
}

// SetUnwrapper installs the destination post-processing hook
func (g *Gateway) SetUnwrapper(u Unwrapper) {
	g.unwrapper = u
}

// Ledger returns the instance this gateway fronts
func (g *Gateway) Ledger() *pool.Ledger {
	return g.ledger
}

// RegisterEquivalence declares [local] and [remote] to be the same
// canonical asset across this chain and [destChain].
func (g *Gateway) RegisterEquivalence(local common.Address, destChain uint32, remote common.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.equivalences[local] == nil {
		g.equivalences[local] = make(map[uint32]common.Address)
	}
	g.equivalences[local][destChain] = remote
}

// InitiateTransfer runs the source leg: validate, neutralize the departing
// value against a fresh NAV, debit the real balance, and hand the encoded
// intent to the relay. The returned handle is observability only; once the
// relay accepts, the transfer's outcome cannot be observed locally.
//
// Any error leaves the ledger exactly as it was: no asset has moved, so
// nothing needs recovery.
func (g *Gateway) InitiateTransfer(ctx context.Context, asset common.Address, amount *big.Int, destChain uint32, ti *intent.TransferIntent) ([32]byte, error) {
	var zero [32]byte

	if g.relay == nil {
		return zero, ErrRelayRequired
	}
	if destChain == g.ledger.ChainID() {
		return zero, ErrSameChain
	}
	if err := ti.Validate(); err != nil {
		return zero, err
	}
	if ti.SourceChain != g.ledger.ChainID() || ti.DestChain != destChain {
		return zero, ErrIntentMismatch
	}
	if ti.InputAsset != asset || amount == nil || ti.InputAmount.Cmp(amount) != 0 {
		return zero, ErrIntentMismatch
	}

	cur := pool.Currency{Address: asset}
	if !g.ledger.IsTracked(cur) {
		return zero, ErrAssetNotTracked
	}

	g.mu.Lock()
	remote, ok := g.equivalences[asset][destChain]
	g.mu.Unlock()
	if !ok || remote != ti.OutputAsset {
		return zero, ErrNoEquivalence
	}

	if g.ledger.RealBalance(cur).Cmp(amount) < 0 {
		return zero, pool.ErrInsufficientBalance
	}
	if !g.oracle.HasFeed(asset) {
		return zero, pool.ErrPriceUnavailable
	}

	payload, err := ti.Encode()
	if err != nil {
		return zero, err
	}

	value, err := g.oracle.Convert(amount, asset, g.ledger.BaseAsset().Address)
	if err != nil {
		return zero, pool.ErrPriceUnavailable
	}

	// Never trust a cached NAV: SourceNeutralize recomputes inside.
	receipt, err := g.ledger.SourceNeutralize(g.oracle, cur, value)
	if err != nil {
		return zero, err
	}
	if err := g.ledger.Debit(cur, amount); err != nil {
		if uerr := g.ledger.UnwindNeutralize(cur, receipt); uerr != nil {
			g.log.Error("unwind after failed debit", "asset", asset, "err", uerr)
		}
		return zero, err
	}

	if err := g.relay.Send(ctx, destChain, asset, amount, payload); err != nil {
		if cerr := g.ledger.Credit(cur, amount); cerr != nil {
			g.log.Error("could not return debited amount", "asset", asset, "err", cerr)
		}
		if uerr := g.ledger.UnwindNeutralize(cur, receipt); uerr != nil {
			g.log.Error("unwind after relay failure", "asset", asset, "err", uerr)
		}
		g.log.Warn("relay rejected transfer", "asset", asset, "destChain", destChain, "err", err)
		return zero, err
	}

	g.mu.Lock()
	g.nonce++
	record := &TransferRecord{
		ID:           g.transferID(asset, amount, destChain, g.nonce),
		SourceChain:  g.ledger.ChainID(),
		DestChain:    destChain,
		InputAsset:   asset,
		OutputAsset:  ti.OutputAsset,
		InputAmount:  new(big.Int).Set(ti.InputAmount),
		OutputAmount: new(big.Int).Set(ti.OutputAmount),
		Status:       TransferSent,
		Nonce:        g.nonce,
	}
	g.records[record.ID] = record
	g.mu.Unlock()

	g.log.Info("transfer initiated",
		"id", common.Hash(record.ID),
		"asset", asset,
		"amount", amount,
		"destChain", destChain,
	)
	return record.ID, nil
}

// OnDelivery runs the destination leg. It is the protocol's single
// authorization boundary: only the recognized relay identity may call it.
//
// The NAV baseline is captured before the delivered amount is recognized
// in the ledger and before the intent body is decoded, so a crafted
// payload cannot move the baseline it is validated against. Every failure
// path subtracts exactly the adjustments this delivery applied and clears
// all scratch state; an aborted delivery is indistinguishable from one
// that never happened, while a delivery of another asset committed from
// inside the unwrap hook keeps its accounting.
//
// Deliveries are not deduplicated here: the relay is trusted for call
// identity, and a replayed delivery re-prices against the live NAV and
// re-runs the deviation check.
func (g *Gateway) OnDelivery(ctx context.Context, caller common.Address, asset common.Address, delivered *big.Int, rawIntent []byte) error {
	if caller != g.relayID {
		return ErrUnauthorizedDelivery
	}
	if delivered == nil || delivered.Sign() <= 0 {
		return ErrDeliveredNothing
	}
	if !g.oracle.HasFeed(asset) {
		// Safe to retry: the source-side escrow stays recoverable
		// through the relay's own failure path.
		return pool.ErrPriceUnavailable
	}

	g.mu.Lock()
	if g.inFlight[asset] {
		g.mu.Unlock()
		return ErrReentrantDelivery
	}
	g.inFlight[asset] = true
	g.status[asset] = DeliveryReceiving
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inFlight, asset)
		delete(g.baselines, asset)
		g.status[asset] = DeliveryIdle
		g.mu.Unlock()
	}()

	cur := pool.Currency{Address: asset}
	wasTracked := g.ledger.IsTracked(cur)

	// Baseline first: it must reflect the instance before this delivery.
	baseline, err := g.ledger.NavBaseline(g.oracle)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.baselines[asset] = baseline
	g.mu.Unlock()

	if err := g.ledger.Credit(cur, delivered); err != nil {
		return err
	}

	abort := func(cause error) error {
		if err := g.ledger.Debit(cur, delivered); err != nil {
			g.log.Error("abort could not return delivered amount", "asset", asset, "err", err)
		}
		if !wasTracked {
			g.ledger.Untrack(cur)
		}
		g.setStatus(asset, DeliveryAborted)
		g.log.Warn("delivery aborted", "asset", asset, "delivered", delivered, "err", cause)
		return cause
	}

	ti, err := intent.Decode(rawIntent)
	if err != nil {
		return abort(err)
	}
	if ti.DestChain != g.ledger.ChainID() {
		return abort(ErrWrongDestination)
	}
	if ti.OutputAsset != asset {
		return abort(ErrIntentMismatch)
	}

	g.setStatus(asset, DeliveryReconciling)

	params := pool.ReconcileParams{
		OutputAmount:  ti.OutputAmount,
		MultiplierBps: ti.Multiplier(),
		ToleranceBps:  ti.NavToleranceBps,
	}
	receipt, err := g.ledger.DestinationReconcile(g.oracle, cur, delivered, params, baseline)
	if err != nil {
		return abort(err)
	}

	if ti.Unwrap && g.unwrapper != nil {
		if err := g.unwrapper.Unwrap(asset, delivered); err != nil {
			if uerr := g.ledger.UnwindReconcile(cur, receipt); uerr != nil {
				g.log.Error("unwind after failed unwrap", "asset", asset, "err", uerr)
			}
			return abort(ErrUnwrapFailed)
		}
	}

	g.mu.Lock()
	g.deliveries = append(g.deliveries, &DeliveryRecord{
		Asset:        asset,
		Delivered:    new(big.Int).Set(delivered),
		NavBaseline:  baseline,
		NavAfter:     receipt.NavAfter,
		IntentDigest: common.BytesToHash(crypto.Keccak256(rawIntent)),
	})
	g.status[asset] = DeliveryCommitted
	g.mu.Unlock()

	g.log.Info("delivery reconciled",
		"asset", asset,
		"delivered", delivered,
		"navBaseline", baseline,
		"navAfter", receipt.NavAfter,
	)
	return nil
}

// Record returns the transfer record for a handle
func (g *Gateway) Record(id [32]byte) (*TransferRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	record, ok := g.records[id]
	return record, ok
}

// Deliveries returns committed delivery records
func (g *Gateway) Deliveries() []*DeliveryRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*DeliveryRecord, len(g.deliveries))
	copy(out, g.deliveries)
	return out
}

// DeliveryInFlight reports whether the per-asset guard is held
func (g *Gateway) DeliveryInFlight(asset common.Address) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight[asset]
}

// BaselineScratch returns the transaction-scoped baseline for an asset, if
// one is live. Outside an in-progress delivery it must always be absent.
func (g *Gateway) BaselineScratch(asset common.Address) (*big.Int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	baseline, ok := g.baselines[asset]
	return baseline, ok
}

func (g *Gateway) setStatus(asset common.Address, status DeliveryStatus) {
	g.mu.Lock()
	g.status[asset] = status
	g.mu.Unlock()
}

func (g *Gateway) transferID(asset common.Address, amount *big.Int, destChain uint32, nonce uint64) [32]byte {
	hasher := blake3.New()

	var chain [8]byte
	binary.BigEndian.PutUint32(chain[:4], g.ledger.ChainID())
	binary.BigEndian.PutUint32(chain[4:], destChain)
	hasher.Write(chain[:])
	hasher.Write(asset[:])
	hasher.Write(amount.Bytes())

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	hasher.Write(n[:])

	var id [32]byte
	copy(id[:], hasher.Sum(nil))
	return id
}
