// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/omnipool/intent"
	"github.com/luxfi/omnipool/modules"
	"github.com/luxfi/omnipool/pool"
)

var _ modules.Precompile = (*GatewayContract)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "omnipoolGatewayConfig"

// ContractGatewayAddress is the gateway precompile address (LP-6020)
var ContractGatewayAddress = common.HexToAddress(GatewayAddress)

// GatewayPrecompile is the singleton instance. The backing gateway is
// installed at configure time; calls before that fail cleanly.
var GatewayPrecompile = &GatewayContract{}

// Module is the precompile module (gateway at 0x6020)
var Module = modules.Module{
	ConfigKey: ConfigKey,
	Address:   ContractGatewayAddress,
	Contract:  GatewayPrecompile,
}

// Method selectors for the gateway
const (
	SelectorInitiate     uint32 = 0x01000000 // initiate(address,uint256,uint32,bytes)
	SelectorDeliver      uint32 = 0x02000000 // deliver(address,uint256,bytes)
	SelectorNav          uint32 = 0x03000000 // nav()
	SelectorVirtualState uint32 = 0x04000000 // virtualState(address)
	SelectorRecord       uint32 = 0x05000000 // record(bytes32)
)

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

// Config selects the relay identity recognized by this instance's gateway
type Config struct {
	RelayID common.Address `json:"relayID,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) Equal(other *Config) bool {
	if other == nil {
		return false
	}
	return c.RelayID == other.RelayID
}

// GatewayContract exposes the gateway as a stateful precompile
type GatewayContract struct {
	gateway *Gateway
}

// Configure installs the backing gateway
func (c *GatewayContract) Configure(g *Gateway) {
	c.gateway = g
}

// Run executes the precompile
func (c *GatewayContract) Run(
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	if c.gateway == nil {
		return nil, suppliedGas, fmt.Errorf("gateway not configured")
	}
	if len(input) < 4 {
		return nil, suppliedGas, fmt.Errorf("input too short")
	}

	selector := binary.BigEndian.Uint32(input[:4])
	data := input[4:]

	switch selector {
	case SelectorInitiate:
		return c.runInitiate(caller, data, suppliedGas, readOnly)
	case SelectorDeliver:
		return c.runDeliver(caller, data, suppliedGas, readOnly)
	case SelectorNav:
		return c.runNav(suppliedGas)
	case SelectorVirtualState:
		return c.runVirtualState(data, suppliedGas)
	case SelectorRecord:
		return c.runRecord(data, suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("unknown method selector: %x", selector)
	}
}

func (c *GatewayContract) runInitiate(
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasInitiate {
		return nil, 0, fmt.Errorf("out of gas")
	}

	// asset (20) + amount (32) + destChain (4) + encoded intent
	if len(input) < 56+intent.EncodedLen {
		return nil, suppliedGas - GasInitiate, fmt.Errorf("input too short")
	}

	asset := common.BytesToAddress(input[:20])
	amount := new(uint256.Int).SetBytes(input[20:52]).ToBig()
	destChain := binary.BigEndian.Uint32(input[52:56])

	ti, err := intent.Decode(input[56 : 56+intent.EncodedLen])
	if err != nil {
		return nil, suppliedGas - GasInitiate, err
	}

	id, err := c.gateway.InitiateTransfer(context.Background(), asset, amount, destChain, ti)
	if err != nil {
		return nil, suppliedGas - GasInitiate, err
	}
	return id[:], suppliedGas - GasInitiate, nil
}

func (c *GatewayContract) runDeliver(
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasDeliver {
		return nil, 0, fmt.Errorf("out of gas")
	}

	// asset (20) + delivered (32) + encoded intent
	if len(input) < 52+intent.EncodedLen {
		return nil, suppliedGas - GasDeliver, fmt.Errorf("input too short")
	}

	asset := common.BytesToAddress(input[:20])
	delivered := new(uint256.Int).SetBytes(input[20:52]).ToBig()
	rawIntent := input[52 : 52+intent.EncodedLen]

	if err := c.gateway.OnDelivery(context.Background(), caller, asset, delivered, rawIntent); err != nil {
		return nil, suppliedGas - GasDeliver, err
	}
	return []byte{1}, suppliedGas - GasDeliver, nil
}

func (c *GatewayContract) runNav(suppliedGas uint64) ([]byte, uint64, error) {
	if suppliedGas < GasNavQuery {
		return nil, 0, fmt.Errorf("out of gas")
	}

	nav, err := c.gateway.ledger.NAV(c.gateway.oracle)
	if err != nil {
		return nil, suppliedGas - GasNavQuery, err
	}

	result := make([]byte, 32)
	nav.FillBytes(result)
	return result, suppliedGas - GasNavQuery, nil
}

func (c *GatewayContract) runVirtualState(
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasVirtualQuery {
		return nil, 0, fmt.Errorf("out of gas")
	}
	if len(input) < 20 {
		return nil, suppliedGas - GasVirtualQuery, fmt.Errorf("input too short")
	}

	ledger := c.gateway.ledger
	cur := pool.Currency{Address: common.BytesToAddress(input[:20])}

	// realBalance (32) | totalShares (32) |
	// virtualSupply sign (1) + abs (32) | virtualBalance sign (1) + abs (32)
	result := make([]byte, 130)
	ledger.RealBalance(cur).FillBytes(result[:32])
	ledger.TotalShares().FillBytes(result[32:64])
	encodeSignedTo(result[64:97], ledger.VirtualSupply())
	encodeSignedTo(result[97:130], ledger.VirtualBalance(cur))
	return result, suppliedGas - GasVirtualQuery, nil
}

func (c *GatewayContract) runRecord(
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasRecordQuery {
		return nil, 0, fmt.Errorf("out of gas")
	}
	if len(input) < 32 {
		return nil, suppliedGas - GasRecordQuery, fmt.Errorf("input too short")
	}

	var id [32]byte
	copy(id[:], input[:32])
	record, ok := c.gateway.Record(id)
	if !ok {
		return nil, suppliedGas - GasRecordQuery, fmt.Errorf("transfer record not found")
	}

	// sourceChain (4) | destChain (4) | inputAsset (20) | outputAsset (20) |
	// inputAmount (32) | outputAmount (32) | status (1)
	result := make([]byte, 113)
	binary.BigEndian.PutUint32(result[0:4], record.SourceChain)
	binary.BigEndian.PutUint32(result[4:8], record.DestChain)
	copy(result[8:28], record.InputAsset.Bytes())
	copy(result[28:48], record.OutputAsset.Bytes())
	record.InputAmount.FillBytes(result[48:80])
	record.OutputAmount.FillBytes(result[80:112])
	result[112] = byte(record.Status)
	return result, suppliedGas - GasRecordQuery, nil
}

// RequiredGas returns the gas required for the precompile input
func (c *GatewayContract) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return GasInitiate
	}

	selector := binary.BigEndian.Uint32(input[:4])
	switch selector {
	case SelectorInitiate:
		return GasInitiate
	case SelectorDeliver:
		return GasDeliver
	case SelectorNav:
		return GasNavQuery
	case SelectorVirtualState:
		return GasVirtualQuery
	case SelectorRecord:
		return GasRecordQuery
	default:
		return GasInitiate
	}
}

// encodeSignedTo writes a signed big.Int as sign byte + 32-byte magnitude
func encodeSignedTo(dst []byte, v *big.Int) {
	if v.Sign() < 0 {
		dst[0] = 1
	}
	new(big.Int).Abs(v).FillBytes(dst[1:33])
}
