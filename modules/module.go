// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules keeps the registry of stateful precompile modules exposed
// by this repository and the reserved address ranges they may claim.
package modules

import (
	"bytes"

	"github.com/luxfi/geth/common"
)

// Precompile is a stateful precompiled contract dispatching on a 4-byte
// selector prefix of the input.
type Precompile interface {
	// Run executes the precompile. readOnly calls must not mutate state.
	Run(caller common.Address, input []byte, suppliedGas uint64, readOnly bool) (ret []byte, remainingGas uint64, err error)

	// RequiredGas returns the gas charged for the given input
	RequiredGas(input []byte) uint64
}

// Module pairs a precompile with its address and config key
type Module struct {
	// ConfigKey is the key used in json config files to specify this
	// precompile's config.
	ConfigKey string

	// Address is the precompile's reserved address
	Address common.Address

	// Contract is the precompile implementation
	Contract Precompile
}

// moduleArray sorts modules by address for deterministic iteration
type moduleArray []Module

func (m moduleArray) Len() int {
	return len(m)
}

func (m moduleArray) Less(i, j int) bool {
	return bytes.Compare(m[i].Address.Bytes(), m[j].Address.Bytes()) < 0
}

func (m moduleArray) Swap(i, j int) {
	m[i], m[j] = m[j], m[i]
}
