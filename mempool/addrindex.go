// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/denza/VerusCoin/verusutil"
	"github.com/denza/VerusCoin/wire"
)

// addrKeySize is the number of bytes an address key consumes: one byte for
// the script type followed by the 20-byte hash the script commits to.
const addrKeySize = 1 + 20

// Script type bytes used as the leading byte of an address key.
const (
	addrKeyTypePubKeyHash = 0
	addrKeyTypeScriptHash = 1
)

// AddrKey is the index key derived from a standard output script.  Scripts
// that are not pay-to-pubkey-hash or pay-to-script-hash have no key.
type AddrKey [addrKeySize]byte

// addrKeyForScript extracts the index key from the passed output script.  It
// recognizes the two standard single-hash script templates byte for byte and
// reports false for everything else.
func addrKeyForScript(pkScript []byte) (AddrKey, bool) {
	var key AddrKey

	// Pay-to-pubkey-hash: OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY
	// OP_CHECKSIG.
	if len(pkScript) == 25 && pkScript[0] == 0x76 && pkScript[1] == 0xa9 &&
		pkScript[2] == 0x14 && pkScript[23] == 0x88 && pkScript[24] == 0xac {

		key[0] = addrKeyTypePubKeyHash
		copy(key[1:], pkScript[3:23])
		return key, true
	}

	// Pay-to-script-hash: OP_HASH160 <20 bytes> OP_EQUAL.
	if len(pkScript) == 23 && pkScript[0] == 0xa9 && pkScript[1] == 0x14 &&
		pkScript[22] == 0x87 {

		key[0] = addrKeyTypeScriptHash
		copy(key[1:], pkScript[2:22])
		return key, true
	}

	return key, false
}

// AddressDelta describes a single value movement affecting an address caused
// by an unconfirmed transaction: a negative amount for a consumed output and
// a positive amount for a created one.
type AddressDelta struct {
	// Time is when the movement was indexed.
	Time time.Time

	// Amount is the value moved.  It is negative for spends.
	Amount verusutil.Amount

	// TxHash and Index identify the input or output within the
	// transaction that caused the movement.
	TxHash chainhash.Hash
	Index  uint32

	// Spending indicates whether the movement consumes a previous output.
	Spending bool

	// PrevHash and PrevIndex identify the consumed output when Spending
	// is set.
	PrevHash  chainhash.Hash
	PrevIndex uint32
}

// deltaKey uniquely identifies an address delta within a transaction.
type deltaKey struct {
	txHash   chainhash.Hash
	index    uint32
	spending bool
}

// AddrIndex indexes the value movements of unconfirmed transactions by the
// address keys of the scripts involved.  It maintains its own lock so the
// pool can hand work to it without widening its critical sections.
type AddrIndex struct {
	mtx sync.RWMutex

	// deltasByAddr records, per address key, the movements of each
	// indexed transaction.  addrsByTx tracks which keys each transaction
	// touched so removal does not require rescanning the whole index.
	deltasByAddr map[AddrKey]map[deltaKey]*AddressDelta
	addrsByTx    map[chainhash.Hash]map[AddrKey]struct{}
}

// NewAddrIndex returns a new empty unconfirmed address index.
func NewAddrIndex() *AddrIndex {
	return &AddrIndex{
		deltasByAddr: make(map[AddrKey]map[deltaKey]*AddressDelta),
		addrsByTx:    make(map[chainhash.Hash]map[AddrKey]struct{}),
	}
}

// indexDelta records a single movement for the passed address key.
//
// This function MUST be called with the index lock held (for writes).
func (idx *AddrIndex) indexDelta(key AddrKey, txHash *chainhash.Hash, delta *AddressDelta) {
	deltas, exists := idx.deltasByAddr[key]
	if !exists {
		deltas = make(map[deltaKey]*AddressDelta)
		idx.deltasByAddr[key] = deltas
	}
	deltas[deltaKey{
		txHash:   delta.TxHash,
		index:    delta.Index,
		spending: delta.Spending,
	}] = delta

	addrs, exists := idx.addrsByTx[*txHash]
	if !exists {
		addrs = make(map[AddrKey]struct{})
		idx.addrsByTx[*txHash] = addrs
	}
	addrs[key] = struct{}{}
}

// AddUnconfirmedTx indexes every value movement of the passed entry: one
// negative delta per input whose consumed output script resolves through the
// passed view, and one positive delta per output with a standard script.
// Coin imports contribute no input deltas.
//
// This function is safe for concurrent access.
func (idx *AddrIndex) AddUnconfirmedTx(txD *TxDesc, view CoinView) {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	txHash := txD.Tx.Hash()
	msgTx := txD.Tx.MsgTx()
	now := time.Now()

	if !msgTx.IsCoinImport() {
		for txInIdx, txIn := range msgTx.TxIn {
			prevOut, ok := view.Output(txIn.PreviousOutPoint)
			if !ok {
				continue
			}
			key, ok := addrKeyForScript(prevOut.PkScript)
			if !ok {
				continue
			}
			idx.indexDelta(key, txHash, &AddressDelta{
				Time:      now,
				Amount:    -verusutil.Amount(prevOut.Value),
				TxHash:    *txHash,
				Index:     uint32(txInIdx),
				Spending:  true,
				PrevHash:  txIn.PreviousOutPoint.Hash,
				PrevIndex: txIn.PreviousOutPoint.Index,
			})
		}
	}

	for txOutIdx, txOut := range msgTx.TxOut {
		key, ok := addrKeyForScript(txOut.PkScript)
		if !ok {
			continue
		}
		idx.indexDelta(key, txHash, &AddressDelta{
			Time:   now,
			Amount: verusutil.Amount(txOut.Value),
			TxHash: *txHash,
			Index:  uint32(txOutIdx),
		})
	}
}

// RemoveUnconfirmedTx removes every movement the passed transaction
// contributed to the index.
//
// This function is safe for concurrent access.
func (idx *AddrIndex) RemoveUnconfirmedTx(txHash *chainhash.Hash) {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	for key := range idx.addrsByTx[*txHash] {
		deltas := idx.deltasByAddr[key]
		for dk := range deltas {
			if dk.txHash == *txHash {
				delete(deltas, dk)
			}
		}
		if len(deltas) == 0 {
			delete(idx.deltasByAddr, key)
		}
	}
	delete(idx.addrsByTx, *txHash)
}

// UnconfirmedDeltas returns the indexed movements for the passed address key.
// The second return is false when the key has no movements.
//
// This function is safe for concurrent access.
func (idx *AddrIndex) UnconfirmedDeltas(key AddrKey) ([]*AddressDelta, bool) {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	byKey, exists := idx.deltasByAddr[key]
	if !exists {
		return nil, false
	}
	deltas := make([]*AddressDelta, 0, len(byKey))
	for _, delta := range byKey {
		deltas = append(deltas, delta)
	}
	return deltas, true
}

// SpentValue describes the unconfirmed spend of a single output.
type SpentValue struct {
	// TxHash and InputIndex identify the spending input.
	TxHash     chainhash.Hash
	InputIndex uint32

	// Amount is the value of the consumed output and AddrKey the index
	// key of its script when one could be derived.
	Amount  verusutil.Amount
	AddrKey AddrKey
}

// SpentIndex indexes, per consumed outpoint, the unconfirmed input consuming
// it along with the value and address key of the consumed output.
type SpentIndex struct {
	mtx sync.RWMutex

	byOutpoint map[wire.OutPoint]*SpentValue
	opsByTx    map[chainhash.Hash][]wire.OutPoint
}

// NewSpentIndex returns a new empty unconfirmed spent index.
func NewSpentIndex() *SpentIndex {
	return &SpentIndex{
		byOutpoint: make(map[wire.OutPoint]*SpentValue),
		opsByTx:    make(map[chainhash.Hash][]wire.OutPoint),
	}
}

// AddUnconfirmedTx indexes every outpoint the passed entry consumes.  Coin
// imports contribute nothing.
//
// This function is safe for concurrent access.
func (idx *SpentIndex) AddUnconfirmedTx(txD *TxDesc, view CoinView) {
	msgTx := txD.Tx.MsgTx()
	if msgTx.IsCoinImport() {
		return
	}

	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	txHash := txD.Tx.Hash()
	for txInIdx, txIn := range msgTx.TxIn {
		value := &SpentValue{
			TxHash:     *txHash,
			InputIndex: uint32(txInIdx),
		}
		if prevOut, ok := view.Output(txIn.PreviousOutPoint); ok {
			value.Amount = verusutil.Amount(prevOut.Value)
			if key, ok := addrKeyForScript(prevOut.PkScript); ok {
				value.AddrKey = key
			}
		}
		idx.byOutpoint[txIn.PreviousOutPoint] = value
		idx.opsByTx[*txHash] = append(idx.opsByTx[*txHash],
			txIn.PreviousOutPoint)
	}
}

// RemoveUnconfirmedTx removes every outpoint record the passed transaction
// contributed to the index.
//
// This function is safe for concurrent access.
func (idx *SpentIndex) RemoveUnconfirmedTx(txHash *chainhash.Hash) {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	for _, op := range idx.opsByTx[*txHash] {
		// Another transaction may have overwritten the record after a
		// double spend admission, so only remove records still owned
		// by the removed transaction.
		if value, exists := idx.byOutpoint[op]; exists &&
			value.TxHash == *txHash {

			delete(idx.byOutpoint, op)
		}
	}
	delete(idx.opsByTx, *txHash)
}

// Spend returns the unconfirmed spend record for the passed outpoint.  The
// second return is false when the outpoint is not spent unconfirmed.
//
// This function is safe for concurrent access.
func (idx *SpentIndex) Spend(op wire.OutPoint) (*SpentValue, bool) {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	value, exists := idx.byOutpoint[op]
	return value, exists
}
