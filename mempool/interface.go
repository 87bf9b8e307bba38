// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/denza/VerusCoin/wire"
)

// CoinView provides the mempool with a read-only view of the chain state's
// unspent transaction outputs.  It is consulted during reorg-driven removal
// and by the consistency check, and its results are never cached by the pool.
type CoinView interface {
	// IsAvailable returns whether the passed outpoint refers to an
	// unspent output according to the view.
	IsAvailable(op wire.OutPoint) bool

	// HeightOf returns the height of the block that contains the
	// transaction the passed outpoint refers to.  The result is only
	// meaningful when IsAvailable reports the outpoint as unspent.
	HeightOf(op wire.OutPoint) uint32

	// IsCoinbase returns whether the passed outpoint belongs to a
	// coinbase transaction.
	IsCoinbase(op wire.OutPoint) bool

	// Output returns the output the passed outpoint refers to when it is
	// available in the view.
	Output(op wire.OutPoint) (*wire.TxOut, bool)
}

// CurrencyState converts reserve-currency amounts into native chain units.
// The pool queries it only when computing the priority of entries that carry
// a reserve-currency component.
type CurrencyState interface {
	// ReserveToNative converts the passed reserve amount to native units
	// using the currency state as of the given height.
	ReserveToNative(amount int64, atHeight uint32) int64
}

// Estimator is notified of every mempool admission, removal, and processed
// block so it can maintain fee statistics for block assembly and fee
// estimation.  A nil Estimator in the pool configuration disables the
// notifications.
type Estimator interface {
	// ObserveTransaction is called when a new transaction is admitted to
	// the pool.
	ObserveTransaction(desc *TxDesc)

	// RemoveTransaction is called when a transaction leaves the pool
	// without having been mined.
	RemoveTransaction(txHash *chainhash.Hash)

	// RegisterBlock is called with the pool entries confirmed by a newly
	// connected block at the given height.
	RegisterBlock(height uint32, descs []*TxDesc)
}
