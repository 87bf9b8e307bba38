// Copyright (c) 2024 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/mock"
)

// MockEstimator is a mock implementation of the Estimator interface.
type MockEstimator struct {
	mock.Mock
}

// Compile-time interface check.
var _ Estimator = (*MockEstimator)(nil)

// ObserveTransaction records an admitted transaction.
func (m *MockEstimator) ObserveTransaction(txD *TxDesc) {
	m.Called(txD)
}

// RemoveTransaction records a removed transaction.
func (m *MockEstimator) RemoveTransaction(txHash *chainhash.Hash) {
	m.Called(txHash)
}

// RegisterBlock records a processed block.
func (m *MockEstimator) RegisterBlock(height uint32, descs []*TxDesc) {
	m.Called(height, descs)
}

// MockCurrencyState is a mock implementation of the CurrencyState interface.
type MockCurrencyState struct {
	mock.Mock
}

// Compile-time interface check.
var _ CurrencyState = (*MockCurrencyState)(nil)

// ReserveToNative converts the passed reserve amount to native units.
func (m *MockCurrencyState) ReserveToNative(amount int64, atHeight uint32) int64 {
	args := m.Called(amount, atHeight)
	return args.Get(0).(int64)
}
