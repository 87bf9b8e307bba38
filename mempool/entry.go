// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"time"

	"github.com/denza/VerusCoin/verusutil"
)

// TxDesc is a descriptor containing a transaction in the mempool along with
// the metadata supplied by the validator at admission time.  All fields are
// populated when the descriptor is created and must not be modified
// afterwards since several pool indices rely on them being stable.
type TxDesc struct {
	// Tx is the transaction associated with the entry.
	Tx *verusutil.Tx

	// Added is the time when the entry was added to the pool.
	Added time.Time

	// Height is the best block height when the entry was added to the
	// pool.
	Height uint32

	// Fee is the total fee the transaction pays in native base units.
	Fee verusutil.Amount

	// FeePerKB is the fee the transaction pays in base units per 1000
	// bytes.
	FeePerKB int64

	// StartingPriority is the priority of the transaction when it was
	// added to the pool.
	StartingPriority float64

	// Size is the serialized size of the transaction.
	Size int

	// ModSize is the serialized size with stripped signature data, used
	// by the priority calculation so transactions are not penalized for
	// the bytes required to redeem their own inputs.
	ModSize int

	// SpendsCoinbase is whether the transaction spends one or more
	// coinbase outputs.  Entries with this flag set must be revisited
	// after a reorg since the spent coinbase may no longer be mature.
	SpendsCoinbase bool

	// BranchID is the consensus branch the transaction was validated
	// against.
	BranchID uint32

	// HasReserve is whether any output of the transaction carries
	// reserve-currency value.
	HasReserve bool

	// usage is the cached estimate of the dynamic memory used by the
	// entry.  It is computed once at admission so the aggregate usage
	// counter can be decremented by the exact same value on removal.
	usage uintptr
}

// NewTxDesc returns a new mempool entry for the passed transaction and
// admission metadata.  The caller is expected to have fully validated the
// transaction already; the pool performs no consensus or script checks of its
// own.
func NewTxDesc(tx *verusutil.Tx, fee verusutil.Amount, added time.Time,
	startingPriority float64, height uint32, spendsCoinbase bool,
	branchID uint32, hasReserve bool) *TxDesc {

	size := tx.MsgTx().SerializeSize()
	desc := &TxDesc{
		Tx:               tx,
		Added:            added,
		Height:           height,
		Fee:              fee,
		FeePerKB:         int64(fee) * 1000 / int64(size),
		StartingPriority: startingPriority,
		Size:             size,
		ModSize:          tx.MsgTx().CalculateModifiedSize(size),
		SpendsCoinbase:   spendsCoinbase,
		BranchID:         branchID,
		HasReserve:       hasReserve,
	}
	desc.usage = txDescDynamicUsage(desc)
	return desc
}

// DynamicMemoryUsage returns the estimate of the dynamic memory used by the
// entry computed at admission time.
func (txD *TxDesc) DynamicMemoryUsage() uintptr {
	return txD.usage
}

// Priority returns the scheduling priority of the entry at the given height.
// The priority grows with the age of the transaction's inputs:
//
//	startingPriority + (currentHeight - admissionHeight) * valueIn / modSize
//
// For entries carrying reserve-currency value, the reserve portion of the
// output value is converted to native units through the passed currency
// state.  The conversion intentionally reads the state as of
// currentHeight-1 even when callers pass the next block height; this matches
// the established network behavior and must not be "corrected".
func (txD *TxDesc) Priority(currentHeight uint32, currency CurrencyState) float64 {
	msgTx := txD.Tx.MsgTx()
	valueIn := msgTx.ValueOut() + int64(txD.Fee)
	if txD.HasReserve && currency != nil {
		valueIn += currency.ReserveToNative(msgTx.ReserveValueOut(),
			currentHeight-1)
	}

	deltaPriority := float64(currentHeight-txD.Height) * float64(valueIn) /
		float64(txD.ModSize)
	return txD.StartingPriority + deltaPriority
}

// ReserveTxDescriptor describes the reserve-currency components of a
// transaction.  The pool caches descriptors supplied through
// PrioritiseReserveTransaction so fee deltas can be recomputed when the
// reserve currency state changes.
type ReserveTxDescriptor struct {
	// Tx is the reserve-bearing transaction the descriptor refers to.
	Tx *verusutil.Tx

	// ReserveFees is the portion of the fees paid in the reserve
	// currency.
	ReserveFees verusutil.Amount

	// ReserveConversionFees is the fee paid in reserve currency for
	// currency conversion outputs.
	ReserveConversionFees verusutil.Amount

	// NativeConversionFees is the fee paid in native currency for
	// currency conversion outputs.
	NativeConversionFees verusutil.Amount
}

// IsValid returns whether the descriptor refers to an actual transaction.
func (rd *ReserveTxDescriptor) IsValid() bool {
	return rd != nil && rd.Tx != nil
}
