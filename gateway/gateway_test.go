// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/omnipool/intent"
	"github.com/luxfi/omnipool/oracle"
	"github.com/luxfi/omnipool/pool"
)

var (
	baseAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	relayAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	userAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

type relaySend struct {
	destChain uint32
	asset     common.Address
	amount    *big.Int
	payload   []byte
}

// memoryRelay records sends in-process
type memoryRelay struct {
	sends []relaySend
	fail  error
}

func (r *memoryRelay) Send(_ context.Context, destChain uint32, asset common.Address, amount *big.Int, payload []byte) error {
	if r.fail != nil {
		return r.fail
	}
	r.sends = append(r.sends, relaySend{
		destChain: destChain,
		asset:     asset,
		amount:    new(big.Int).Set(amount),
		payload:   append([]byte(nil), payload...),
	})
	return nil
}

func newTestOracle() *oracle.StaticOracle {
	o := oracle.NewStaticOracle()
	o.SetPrice(baseAddr, big.NewInt(1e18))
	o.SetPrice(tokenAddr, big.NewInt(2e18))
	return o
}

// newSourceGateway builds chain 1 with 10000 base against 10000 shares
func newSourceGateway(t *testing.T) (*Gateway, *memoryRelay) {
	t.Helper()

	ledger := pool.NewLedger(1, pool.Currency{Address: baseAddr})
	if err := ledger.Credit(pool.Currency{Address: baseAddr}, big.NewInt(10_000)); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Mint(big.NewInt(10_000)); err != nil {
		t.Fatal(err)
	}

	relay := &memoryRelay{}
	g := NewGateway(ledger, newTestOracle(), relay, relayAddr)
	g.RegisterEquivalence(baseAddr, 2, baseAddr)
	return g, relay
}

// newDestGateway builds an empty bootstrap instance on chain 2
func newDestGateway(t *testing.T) *Gateway {
	t.Helper()
	ledger := pool.NewLedger(2, pool.Currency{Address: baseAddr})
	return NewGateway(ledger, newTestOracle(), nil, relayAddr)
}

func testIntent() *intent.TransferIntent {
	return &intent.TransferIntent{
		Mode:            intent.ModeTransfer,
		SourceChain:     1,
		DestChain:       2,
		InputAsset:      baseAddr,
		OutputAsset:     baseAddr,
		InputAmount:     big.NewInt(1000),
		OutputAmount:    big.NewInt(980),
		NavToleranceBps: 50,
	}
}

func TestInitiateTransfer(t *testing.T) {
	g, relay := newSourceGateway(t)
	ctx := context.Background()

	id, err := g.InitiateTransfer(ctx, baseAddr, big.NewInt(1000), 2, testIntent())
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	ledger := g.Ledger()
	base := pool.Currency{Address: baseAddr}
	if got := ledger.RealBalance(base); got.Cmp(big.NewInt(9000)) != 0 {
		t.Errorf("realBalance = %v, want 9000", got)
	}
	if got := ledger.VirtualBalance(base); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("virtualBalance = %v, want 1000", got)
	}
	nav, err := ledger.NAV(g.oracle)
	if err != nil {
		t.Fatal(err)
	}
	if nav.Cmp(pool.UnitNav) != 0 {
		t.Errorf("nav = %v, want %v", nav, pool.UnitNav)
	}

	if len(relay.sends) != 1 {
		t.Fatalf("relay sends = %d, want 1", len(relay.sends))
	}
	send := relay.sends[0]
	if send.destChain != 2 || send.asset != baseAddr || send.amount.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("unexpected relay send: %+v", send)
	}
	if len(send.payload) != intent.EncodedLen {
		t.Errorf("payload length = %d, want %d", len(send.payload), intent.EncodedLen)
	}

	record, ok := g.Record(id)
	if !ok {
		t.Fatal("transfer record missing")
	}
	if record.Status != TransferSent {
		t.Errorf("record status = %d, want TransferSent", record.Status)
	}
	if record.OutputAmount.Cmp(big.NewInt(980)) != 0 {
		t.Errorf("record output = %v, want 980", record.OutputAmount)
	}
}

func TestInitiateTransferValidation(t *testing.T) {
	ctx := context.Background()

	g, _ := newSourceGateway(t)
	g.relay = nil
	if _, err := g.InitiateTransfer(ctx, baseAddr, big.NewInt(1000), 2, testIntent()); err != ErrRelayRequired {
		t.Errorf("no relay error = %v, want ErrRelayRequired", err)
	}

	g, _ = newSourceGateway(t)
	if _, err := g.InitiateTransfer(ctx, baseAddr, big.NewInt(1000), 1, testIntent()); err != ErrSameChain {
		t.Errorf("same chain error = %v, want ErrSameChain", err)
	}

	ti := testIntent()
	ti.SourceChain = 9
	if _, err := g.InitiateTransfer(ctx, baseAddr, big.NewInt(1000), 2, ti); err != ErrIntentMismatch {
		t.Errorf("chain mismatch error = %v, want ErrIntentMismatch", err)
	}

	ti = testIntent()
	ti.InputAmount = big.NewInt(999)
	ti.OutputAmount = big.NewInt(999)
	if _, err := g.InitiateTransfer(ctx, baseAddr, big.NewInt(1000), 2, ti); err != ErrIntentMismatch {
		t.Errorf("amount mismatch error = %v, want ErrIntentMismatch", err)
	}

	ti = testIntent()
	ti.InputAsset = tokenAddr
	ti.OutputAsset = tokenAddr
	if _, err := g.InitiateTransfer(ctx, tokenAddr, big.NewInt(1000), 2, ti); err != ErrAssetNotTracked {
		t.Errorf("untracked asset error = %v, want ErrAssetNotTracked", err)
	}

	ti = testIntent()
	ti.OutputAsset = tokenAddr
	if _, err := g.InitiateTransfer(ctx, baseAddr, big.NewInt(1000), 2, ti); err != ErrNoEquivalence {
		t.Errorf("equivalence error = %v, want ErrNoEquivalence", err)
	}

	ti = testIntent()
	ti.InputAmount = big.NewInt(20_000)
	ti.OutputAmount = big.NewInt(20_000)
	if _, err := g.InitiateTransfer(ctx, baseAddr, big.NewInt(20_000), 2, ti); err != pool.ErrInsufficientBalance {
		t.Errorf("balance error = %v, want ErrInsufficientBalance", err)
	}
}

func TestInitiateTransferRelayFailureRollsBack(t *testing.T) {
	g, relay := newSourceGateway(t)
	relay.fail = errors.New("relay offline")

	_, err := g.InitiateTransfer(context.Background(), baseAddr, big.NewInt(1000), 2, testIntent())
	if err == nil || err.Error() != "relay offline" {
		t.Fatalf("initiate error = %v, want relay offline", err)
	}

	ledger := g.Ledger()
	base := pool.Currency{Address: baseAddr}
	if got := ledger.RealBalance(base); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Errorf("realBalance = %v, want 10000 after rollback", got)
	}
	if got := ledger.VirtualBalance(base); got.Sign() != 0 {
		t.Errorf("virtualBalance = %v, want 0 after rollback", got)
	}
}

func TestDeliveryEndToEnd(t *testing.T) {
	ctx := context.Background()
	src, relay := newSourceGateway(t)
	dst := newDestGateway(t)

	if _, err := src.InitiateTransfer(ctx, baseAddr, big.NewInt(1000), 2, testIntent()); err != nil {
		t.Fatal(err)
	}
	payload := relay.sends[0].payload

	// The relay takes a 20 unit fee in transit.
	delivered := big.NewInt(980)
	if err := dst.OnDelivery(ctx, relayAddr, baseAddr, delivered, payload); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}

	ledger := dst.Ledger()
	base := pool.Currency{Address: baseAddr}
	if got := ledger.RealBalance(base); got.Cmp(delivered) != 0 {
		t.Errorf("realBalance = %v, want 980", got)
	}
	if got := ledger.VirtualSupply(); got.Cmp(delivered) != 0 {
		t.Errorf("virtualSupply = %v, want 980", got)
	}
	nav, err := ledger.NAV(dst.oracle)
	if err != nil {
		t.Fatal(err)
	}
	if nav.Cmp(pool.UnitNav) != 0 {
		t.Errorf("nav = %v, want %v", nav, pool.UnitNav)
	}

	deliveries := dst.Deliveries()
	if len(deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(deliveries))
	}
	if deliveries[0].NavBaseline.Cmp(pool.UnitNav) != 0 {
		t.Errorf("recorded baseline = %v, want %v", deliveries[0].NavBaseline, pool.UnitNav)
	}

	if dst.DeliveryInFlight(baseAddr) {
		t.Error("delivery guard still held after commit")
	}
	if _, live := dst.BaselineScratch(baseAddr); live {
		t.Error("baseline scratch not cleared after commit")
	}
}

func TestDeliveryAuthorization(t *testing.T) {
	ctx := context.Background()
	dst := newDestGateway(t)

	payload, err := testIntent().Encode()
	if err != nil {
		t.Fatal(err)
	}

	if err := dst.OnDelivery(ctx, userAddr, baseAddr, big.NewInt(980), payload); err != ErrUnauthorizedDelivery {
		t.Errorf("caller error = %v, want ErrUnauthorizedDelivery", err)
	}
	if err := dst.OnDelivery(ctx, relayAddr, baseAddr, big.NewInt(0), payload); err != ErrDeliveredNothing {
		t.Errorf("zero amount error = %v, want ErrDeliveredNothing", err)
	}

	unknown := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	if err := dst.OnDelivery(ctx, relayAddr, unknown, big.NewInt(1), payload); err != pool.ErrPriceUnavailable {
		t.Errorf("no feed error = %v, want ErrPriceUnavailable", err)
	}
}

func TestDeliveryRejectsMismatchedIntent(t *testing.T) {
	ctx := context.Background()
	dst := newDestGateway(t)
	base := pool.Currency{Address: baseAddr}

	ti := testIntent()
	ti.DestChain = 3
	payload, err := ti.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if err := dst.OnDelivery(ctx, relayAddr, baseAddr, big.NewInt(980), payload); err != ErrWrongDestination {
		t.Errorf("wrong chain error = %v, want ErrWrongDestination", err)
	}
	if got := dst.Ledger().RealBalance(base); got.Sign() != 0 {
		t.Errorf("aborted delivery left balance %v", got)
	}

	ti = testIntent()
	ti.OutputAsset = tokenAddr
	payload, err = ti.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if err := dst.OnDelivery(ctx, relayAddr, baseAddr, big.NewInt(980), payload); err != ErrIntentMismatch {
		t.Errorf("asset mismatch error = %v, want ErrIntentMismatch", err)
	}

	if err := dst.OnDelivery(ctx, relayAddr, baseAddr, big.NewInt(980), []byte{1, 2, 3}); err != intent.ErrIntentTooShort {
		t.Errorf("malformed payload error = %v, want ErrIntentTooShort", err)
	}
	if got := dst.Ledger().RealBalance(base); got.Sign() != 0 {
		t.Errorf("aborted delivery left balance %v", got)
	}
}

// failingUnwrapper always rejects
type failingUnwrapper struct{}

func (failingUnwrapper) Unwrap(common.Address, *big.Int) error {
	return errors.New("no native wrapper")
}

func TestDeliveryUnwrapFailureAborts(t *testing.T) {
	ctx := context.Background()
	dst := newDestGateway(t)
	dst.SetUnwrapper(failingUnwrapper{})
	base := pool.Currency{Address: baseAddr}

	ti := testIntent()
	ti.Unwrap = true
	payload, err := ti.Encode()
	if err != nil {
		t.Fatal(err)
	}

	if err := dst.OnDelivery(ctx, relayAddr, baseAddr, big.NewInt(980), payload); err != ErrUnwrapFailed {
		t.Fatalf("delivery error = %v, want ErrUnwrapFailed", err)
	}

	ledger := dst.Ledger()
	if got := ledger.RealBalance(base); got.Sign() != 0 {
		t.Errorf("realBalance = %v, want 0 after abort", got)
	}
	if got := ledger.VirtualSupply(); got.Sign() != 0 {
		t.Errorf("virtualSupply = %v, want 0 after abort", got)
	}
	if len(dst.Deliveries()) != 0 {
		t.Error("aborted delivery was recorded")
	}
}

// recordingUnwrapper captures the unwrap call
type recordingUnwrapper struct {
	asset  common.Address
	amount *big.Int
}

func (u *recordingUnwrapper) Unwrap(asset common.Address, amount *big.Int) error {
	u.asset = asset
	u.amount = new(big.Int).Set(amount)
	return nil
}

func TestDeliveryUnwrapRuns(t *testing.T) {
	ctx := context.Background()
	dst := newDestGateway(t)
	u := &recordingUnwrapper{}
	dst.SetUnwrapper(u)

	ti := testIntent()
	ti.Unwrap = true
	payload, err := ti.Encode()
	if err != nil {
		t.Fatal(err)
	}

	if err := dst.OnDelivery(ctx, relayAddr, baseAddr, big.NewInt(980), payload); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}
	if u.asset != baseAddr || u.amount == nil || u.amount.Cmp(big.NewInt(980)) != 0 {
		t.Errorf("unwrap called with %v %v", u.asset, u.amount)
	}
}

// reentrantUnwrapper calls back into the gateway during post-processing
type reentrantUnwrapper struct {
	gateway *Gateway
	payload []byte
	inner   error
}

func (u *reentrantUnwrapper) Unwrap(asset common.Address, amount *big.Int) error {
	u.inner = u.gateway.OnDelivery(context.Background(), relayAddr, asset, amount, u.payload)
	return u.inner
}

func TestDeliveryReentrancyGuard(t *testing.T) {
	ctx := context.Background()
	dst := newDestGateway(t)

	ti := testIntent()
	ti.Unwrap = true
	payload, err := ti.Encode()
	if err != nil {
		t.Fatal(err)
	}

	u := &reentrantUnwrapper{gateway: dst, payload: payload}
	dst.SetUnwrapper(u)

	if err := dst.OnDelivery(ctx, relayAddr, baseAddr, big.NewInt(980), payload); err != ErrUnwrapFailed {
		t.Fatalf("delivery error = %v, want ErrUnwrapFailed", err)
	}
	if u.inner != ErrReentrantDelivery {
		t.Errorf("reentrant call error = %v, want ErrReentrantDelivery", u.inner)
	}

	ledger := dst.Ledger()
	if got := ledger.RealBalance(pool.Currency{Address: baseAddr}); got.Sign() != 0 {
		t.Errorf("realBalance = %v, want 0 after abort", got)
	}
	if dst.DeliveryInFlight(baseAddr) {
		t.Error("delivery guard still held")
	}
}

// sideDeliveryUnwrapper commits a delivery of a second asset from inside
// the hook, then rejects the outer one.
type sideDeliveryUnwrapper struct {
	gateway *Gateway
	payload []byte
	inner   error
}

func (u *sideDeliveryUnwrapper) Unwrap(common.Address, *big.Int) error {
	u.inner = u.gateway.OnDelivery(context.Background(), relayAddr, tokenAddr, big.NewInt(100), u.payload)
	return errors.New("wrapper unavailable")
}

func TestDeliveryNestedCommitSurvivesOuterAbort(t *testing.T) {
	ctx := context.Background()

	ledger := pool.NewLedger(2, pool.Currency{Address: baseAddr})
	if err := ledger.Credit(pool.Currency{Address: baseAddr}, big.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Mint(big.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	dst := NewGateway(ledger, newTestOracle(), nil, relayAddr)

	side := &intent.TransferIntent{
		Mode:            intent.ModeTransfer,
		SourceChain:     1,
		DestChain:       2,
		InputAsset:      tokenAddr,
		OutputAsset:     tokenAddr,
		InputAmount:     big.NewInt(100),
		OutputAmount:    big.NewInt(100),
		NavToleranceBps: 0,
	}
	sidePayload, err := side.Encode()
	if err != nil {
		t.Fatal(err)
	}
	u := &sideDeliveryUnwrapper{gateway: dst, payload: sidePayload}
	dst.SetUnwrapper(u)

	outer := &intent.TransferIntent{
		Mode:            intent.ModeTransfer,
		SourceChain:     1,
		DestChain:       2,
		InputAsset:      baseAddr,
		OutputAsset:     baseAddr,
		InputAmount:     big.NewInt(500),
		OutputAmount:    big.NewInt(500),
		NavToleranceBps: 0,
		Unwrap:          true,
	}
	payload, err := outer.Encode()
	if err != nil {
		t.Fatal(err)
	}

	if err := dst.OnDelivery(ctx, relayAddr, baseAddr, big.NewInt(500), payload); err != ErrUnwrapFailed {
		t.Fatalf("outer delivery error = %v, want ErrUnwrapFailed", err)
	}
	if u.inner != nil {
		t.Fatalf("inner delivery error = %v, want nil", u.inner)
	}

	// The outer abort must subtract only its own adjustments: the token
	// delivery committed inside the hook keeps its credit and its virtual
	// supply backing.
	base := pool.Currency{Address: baseAddr}
	token := pool.Currency{Address: tokenAddr}
	if got := ledger.RealBalance(base); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("base realBalance = %v, want 1000", got)
	}
	if got := ledger.RealBalance(token); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("token realBalance = %v, want 100", got)
	}
	if got := ledger.VirtualSupply(); got.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("virtualSupply = %v, want 200", got)
	}
	nav, err := ledger.NAV(dst.oracle)
	if err != nil {
		t.Fatal(err)
	}
	if nav.Cmp(pool.UnitNav) != 0 {
		t.Errorf("nav = %v, want %v", nav, pool.UnitNav)
	}

	deliveries := dst.Deliveries()
	if len(deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(deliveries))
	}
	if deliveries[0].Asset != tokenAddr {
		t.Errorf("recorded asset = %v, want %v", deliveries[0].Asset, tokenAddr)
	}
	if dst.DeliveryInFlight(baseAddr) || dst.DeliveryInFlight(tokenAddr) {
		t.Error("delivery guard still held")
	}
}

func TestDeliveryAbortUntracksNewAsset(t *testing.T) {
	ctx := context.Background()
	dst := newDestGateway(t)
	token := pool.Currency{Address: tokenAddr}

	ti := &intent.TransferIntent{
		Mode:            intent.ModeTransfer,
		SourceChain:     1,
		DestChain:       3,
		InputAsset:      tokenAddr,
		OutputAsset:     tokenAddr,
		InputAmount:     big.NewInt(100),
		OutputAmount:    big.NewInt(100),
		NavToleranceBps: 0,
	}
	payload, err := ti.Encode()
	if err != nil {
		t.Fatal(err)
	}

	if err := dst.OnDelivery(ctx, relayAddr, tokenAddr, big.NewInt(100), payload); err != ErrWrongDestination {
		t.Fatalf("delivery error = %v, want ErrWrongDestination", err)
	}
	if dst.Ledger().IsTracked(token) {
		t.Error("aborted delivery left new asset tracked")
	}
	if got := dst.Ledger().RealBalance(token); got.Sign() != 0 {
		t.Errorf("realBalance = %v, want 0 after abort", got)
	}

	// A committed delivery of the same asset does track it.
	ti.DestChain = 2
	payload, err = ti.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if err := dst.OnDelivery(ctx, relayAddr, tokenAddr, big.NewInt(100), payload); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}
	if !dst.Ledger().IsTracked(token) {
		t.Error("committed delivery should track the asset")
	}
}

func TestDeliverySyncMode(t *testing.T) {
	ctx := context.Background()

	ledger := pool.NewLedger(2, pool.Currency{Address: baseAddr})
	if err := ledger.Credit(pool.Currency{Address: baseAddr}, big.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Mint(big.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	dst := NewGateway(ledger, newTestOracle(), nil, relayAddr)

	ti := &intent.TransferIntent{
		Mode:              intent.ModeSync,
		SourceChain:       1,
		DestChain:         2,
		InputAsset:        baseAddr,
		OutputAsset:       baseAddr,
		InputAmount:       big.NewInt(1000),
		OutputAmount:      big.NewInt(1000),
		NavToleranceBps:   100,
		SyncMultiplierBps: 5000,
	}
	payload, err := ti.Encode()
	if err != nil {
		t.Fatal(err)
	}

	if err := dst.OnDelivery(ctx, relayAddr, baseAddr, big.NewInt(1000), payload); err != nil {
		t.Fatalf("sync delivery failed: %v", err)
	}

	if got := ledger.VirtualSupply(); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("virtualSupply = %v, want 500", got)
	}
	nav, err := ledger.NAV(dst.oracle)
	if err != nil {
		t.Fatal(err)
	}
	if nav.Cmp(pool.UnitNav) <= 0 {
		t.Errorf("sync delivery should raise nav, got %v", nav)
	}
}

// TestGatewayRoundTrip runs a full out-and-back transfer between two
// gateways and verifies the source instance ends exactly where it started.
func TestGatewayRoundTrip(t *testing.T) {
	ctx := context.Background()
	relay := &memoryRelay{}

	ledgerA := pool.NewLedger(1, pool.Currency{Address: baseAddr})
	if err := ledgerA.Credit(pool.Currency{Address: baseAddr}, big.NewInt(10_000)); err != nil {
		t.Fatal(err)
	}
	if err := ledgerA.Mint(big.NewInt(10_000)); err != nil {
		t.Fatal(err)
	}
	gwA := NewGateway(ledgerA, newTestOracle(), relay, relayAddr)
	gwA.RegisterEquivalence(baseAddr, 2, baseAddr)

	ledgerB := pool.NewLedger(2, pool.Currency{Address: baseAddr})
	gwB := NewGateway(ledgerB, newTestOracle(), relay, relayAddr)
	gwB.RegisterEquivalence(baseAddr, 1, baseAddr)

	amount := big.NewInt(1000)
	out := &intent.TransferIntent{
		Mode:            intent.ModeTransfer,
		SourceChain:     1,
		DestChain:       2,
		InputAsset:      baseAddr,
		OutputAsset:     baseAddr,
		InputAmount:     amount,
		OutputAmount:    amount,
		NavToleranceBps: 10,
	}
	if _, err := gwA.InitiateTransfer(ctx, baseAddr, amount, 2, out); err != nil {
		t.Fatal(err)
	}
	if err := gwB.OnDelivery(ctx, relayAddr, baseAddr, amount, relay.sends[0].payload); err != nil {
		t.Fatal(err)
	}

	back := &intent.TransferIntent{
		Mode:            intent.ModeTransfer,
		SourceChain:     2,
		DestChain:       1,
		InputAsset:      baseAddr,
		OutputAsset:     baseAddr,
		InputAmount:     amount,
		OutputAmount:    amount,
		NavToleranceBps: 10,
	}
	if _, err := gwB.InitiateTransfer(ctx, baseAddr, amount, 1, back); err != nil {
		t.Fatal(err)
	}
	if err := gwA.OnDelivery(ctx, relayAddr, baseAddr, amount, relay.sends[1].payload); err != nil {
		t.Fatal(err)
	}

	base := pool.Currency{Address: baseAddr}
	if got := ledgerA.RealBalance(base); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Errorf("A realBalance = %v, want 10000", got)
	}
	if got := ledgerA.VirtualBalance(base); got.Sign() != 0 {
		t.Errorf("A virtualBalance = %v, want 0", got)
	}
	if got := ledgerA.VirtualSupply(); got.Sign() != 0 {
		t.Errorf("A virtualSupply = %v, want 0", got)
	}
	if got := ledgerB.RealBalance(base); got.Sign() != 0 {
		t.Errorf("B realBalance = %v, want 0", got)
	}
	if got := ledgerB.VirtualSupply(); got.Sign() != 0 {
		t.Errorf("B virtualSupply = %v, want 0", got)
	}
}
