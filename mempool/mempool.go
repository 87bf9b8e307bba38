// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/lru"

	"github.com/denza/VerusCoin/verusutil"
	"github.com/denza/VerusCoin/wire"
)

const (
	// defaultCoinbaseMaturity is the number of confirmations a coinbase
	// output must accumulate before it can be spent when the pool policy
	// does not specify one.
	defaultCoinbaseMaturity = 100

	// defaultRecentRemovalsSize is the default number of recently removed
	// transaction ids to remember so the relay layer can avoid
	// re-requesting them.
	defaultRecentRemovalsSize = 1000
)

// ShieldedPool identifies one of the two shielded value pool variants a
// nullifier can belong to.  The set of variants is closed; code that receives
// a value outside of it has a programming error.
type ShieldedPool uint8

const (
	// Sprout is the original shielded pool driven by joinsplit
	// descriptions.
	Sprout ShieldedPool = iota

	// Sapling is the shielded pool driven by Sapling spend descriptions.
	Sapling

	// numShieldedPools is the number of shielded pool variants.  It must
	// be last in the declaration.
	numShieldedPools
)

// String returns the ShieldedPool as a human-readable name.
func (p ShieldedPool) String() string {
	switch p {
	case Sprout:
		return "sprout"
	case Sapling:
		return "sapling"
	}
	return "unknown"
}

// Policy houses the configuration parameters which are used to control the
// mempool.
type Policy struct {
	// CoinbaseMaturity is the number of confirmations required before a
	// coinbase output can be spent.  Zero selects the chain default.
	CoinbaseMaturity uint32

	// TimeLockThreshold is the output value at or above which coinbase
	// outputs are subject to the chain's block unlock time in addition to
	// the regular maturity requirement.  Zero disables the rule.
	TimeLockThreshold verusutil.Amount

	// SanityCheckRatio is the probability, in the range [0, 1], that any
	// given call to the pool's consistency check actually performs the
	// audit.  Zero disables the check entirely since its cost is
	// proportional to the pool size.
	SanityCheckRatio float64

	// RecentRemovalsSize is the number of recently removed transaction
	// ids to track.  Zero selects the default.
	RecentRemovalsSize uint
}

// Config is a descriptor containing the memory pool configuration.
type Config struct {
	// Policy defines the various mempool configuration options related to
	// policy.
	Policy Policy

	// Estimator defines the fee estimator to notify of admissions,
	// removals, and processed blocks.  It can be nil if fee estimation is
	// not required.
	Estimator Estimator

	// AddrIndex defines the optional address index instance to use for
	// indexing the unconfirmed transactions in the memory pool.  This can
	// be nil if the address index is not enabled.
	AddrIndex *AddrIndex

	// SpentIndex defines the optional spent index instance to use for
	// indexing the outpoints spent by unconfirmed transactions.  This can
	// be nil if the spent index is not enabled.
	SpentIndex *SpentIndex

	// BlockUnlockTime defines the function to use to determine the height
	// at which a time-locked coinbase produced at the passed height
	// becomes spendable.  It can be nil when the chain has no block
	// unlock schedule.
	BlockUnlockTime func(height uint32) uint32
}

// priorityDelta is the accumulated externally applied adjustment for a single
// transaction.
type priorityDelta struct {
	priority float64
	fee      verusutil.Amount
}

// TxPool is used as a source of transactions that have been accepted as
// individually valid but are not yet confirmed in a block.  It is safe for
// concurrent access from multiple callers.
type TxPool struct {
	// The following variables must only be used atomically.
	lastUpdated int64 // last time pool was updated

	mtx sync.RWMutex
	cfg Config

	// pool is the primary record store.  It exclusively owns the entries;
	// every other index stores transaction ids only and resolves through
	// this map.
	pool map[chainhash.Hash]*TxDesc

	// outpoints maps each outpoint consumed by an in-pool transaction to
	// the id of the consuming transaction.
	outpoints map[wire.OutPoint]chainhash.Hash

	// nullifiers maps each spent shielded nullifier to the id of the
	// consuming transaction, tracked per shielded pool variant.
	nullifiers [numShieldedPools]map[chainhash.Hash]chainhash.Hash

	// deltas holds the externally applied priority and fee adjustments.
	// Records are erased when the transaction leaves the pool for any
	// reason.
	deltas map[chainhash.Hash]*priorityDelta

	// reserveTxs caches reserve transaction descriptors supplied by the
	// reserve prioritisation path, cleared together with deltas.
	reserveTxs map[chainhash.Hash]*ReserveTxDescriptor

	// recentlyAdded accumulates admitted transactions until a consumer
	// drains them.  addedSequence increases monotonically with every
	// admission so a consumer can detect admissions racing its drain.
	recentlyAdded    map[chainhash.Hash]*verusutil.Tx
	addedSequence    uint64
	notifiedSequence uint64

	// totalTxSize is the total serialized size of all entries and
	// cachedInnerUsage the total estimated dynamic memory they hold.
	// Both must equal the sum over the current entries at all times.
	totalTxSize      uint64
	cachedInnerUsage uint64

	// transactionsUpdated counts pool mutations and is exposed so callers
	// such as block template generation can cheaply detect changes.
	transactionsUpdated uint64

	// checkFrequency is the scaled sampling frequency of the consistency
	// check.  Zero disables it.
	checkFrequency uint32

	// recentRemovals remembers ids of recently removed transactions.
	recentRemovals lru.Cache
}

// New returns a new memory pool for holding validated transactions until they
// are mined into a block.
func New(cfg *Config) *TxPool {
	mp := &TxPool{
		cfg:           *cfg,
		pool:          make(map[chainhash.Hash]*TxDesc),
		outpoints:     make(map[wire.OutPoint]chainhash.Hash),
		deltas:        make(map[chainhash.Hash]*priorityDelta),
		reserveTxs:    make(map[chainhash.Hash]*ReserveTxDescriptor),
		recentlyAdded: make(map[chainhash.Hash]*verusutil.Tx),
	}
	for i := range mp.nullifiers {
		mp.nullifiers[i] = make(map[chainhash.Hash]chainhash.Hash)
	}
	if mp.cfg.Policy.CoinbaseMaturity == 0 {
		mp.cfg.Policy.CoinbaseMaturity = defaultCoinbaseMaturity
	}
	removalsSize := mp.cfg.Policy.RecentRemovalsSize
	if removalsSize == 0 {
		removalsSize = defaultRecentRemovalsSize
	}
	mp.recentRemovals = lru.NewCache(removalsSize)
	mp.SetSanityCheck(cfg.Policy.SanityCheckRatio)
	return mp
}

// SetSanityCheck sets the probability that any given call to Check performs
// the full consistency audit.  A ratio of zero disables the audit and one
// runs it on every call.
func (mp *TxPool) SetSanityCheck(ratio float64) {
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	atomic.StoreUint32(&mp.checkFrequency, uint32(ratio*4294967295.0))
}

// nullifierMap returns the nullifier index for the passed shielded pool
// variant.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *TxPool) nullifierMap(pool ShieldedPool) map[chainhash.Hash]chainhash.Hash {
	if pool >= numShieldedPools {
		panic(AssertError("invalid shielded pool variant"))
	}
	return mp.nullifiers[pool]
}

// forEachNullifier invokes f for every nullifier the passed transaction
// spends along with the shielded pool variant it belongs to.  Iteration stops
// early when f returns false.
func forEachNullifier(msgTx *wire.MsgTx, f func(pool ShieldedPool, nf chainhash.Hash) bool) {
	for _, js := range msgTx.JoinSplits {
		for _, nf := range js.Nullifiers {
			if !f(Sprout, nf) {
				return
			}
		}
	}
	for _, spend := range msgTx.SaplingSpends {
		if !f(Sapling, spend.Nullifier) {
			return
		}
	}
}

// AddUnchecked adds the passed transaction and its admission metadata to the
// memory pool without validating it.  The caller is expected to have already
// performed all consensus and script checks via the validation path.
//
// The admission fails, without any partial mutation, when the transaction id
// already exists in the pool or one of the transaction's shielded nullifiers
// is already recorded; an existing nullifier record is never silently
// overwritten.
//
// This function is safe for concurrent access.
func (mp *TxPool) AddUnchecked(txD *TxDesc) bool {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	txHash := txD.Tx.Hash()
	if _, exists := mp.pool[*txHash]; exists {
		return false
	}

	// Refuse the whole admission before mutating anything if any of the
	// transaction's nullifiers is already spent by a pool member.  The
	// validator is expected to have rejected such a transaction already.
	msgTx := txD.Tx.MsgTx()
	conflict := false
	forEachNullifier(msgTx, func(pool ShieldedPool, nf chainhash.Hash) bool {
		if _, exists := mp.nullifierMap(pool)[nf]; exists {
			conflict = true
			return false
		}
		return true
	})
	if conflict {
		log.Warnf("Rejecting transaction %v: shielded nullifier "+
			"already spent in the pool", txHash)
		return false
	}

	mp.pool[*txHash] = txD
	mp.recentlyAdded[*txHash] = txD.Tx
	mp.addedSequence++

	// Coin imports carry a synthetic input that does not reference an
	// output on this chain and therefore contribute no spend edges.
	if !msgTx.IsCoinImport() {
		for _, txIn := range msgTx.TxIn {
			mp.outpoints[txIn.PreviousOutPoint] = *txHash
		}
	}
	forEachNullifier(msgTx, func(pool ShieldedPool, nf chainhash.Hash) bool {
		mp.nullifierMap(pool)[nf] = *txHash
		return true
	})

	mp.transactionsUpdated++
	mp.totalTxSize += uint64(txD.Size)
	mp.cachedInnerUsage += uint64(txD.DynamicMemoryUsage())
	atomic.StoreInt64(&mp.lastUpdated, time.Now().Unix())

	if mp.cfg.Estimator != nil {
		mp.cfg.Estimator.ObserveTransaction(txD)
	}

	log.Debugf("Accepted transaction %v (pool size: %v)", txHash,
		len(mp.pool))

	return true
}

// AcceptTransaction admits the passed pre-validated entry, reporting a
// refusal as a RuleError describing the specific rule that fired.  The
// tipHeight is the height the transaction would confirm at and is used for
// the expiry check.
//
// This function is safe for concurrent access.
func (mp *TxPool) AcceptTransaction(txD *TxDesc, tipHeight uint32) error {
	txHash := txD.Tx.Hash()
	msgTx := txD.Tx.MsgTx()
	if msgTx.IsExpired(tipHeight) {
		str := fmt.Sprintf("transaction %v expired at height %d",
			txHash, msgTx.ExpiryHeight)
		return ruleError(ErrExpired, str)
	}

	if mp.AddUnchecked(txD) {
		return nil
	}
	if mp.HaveTransaction(txHash) {
		str := fmt.Sprintf("already have transaction %v", txHash)
		return ruleError(ErrDuplicate, str)
	}
	str := fmt.Sprintf("transaction %v spends a shielded nullifier "+
		"already spent in the pool", txHash)
	return ruleError(ErrNullifierConflict, str)
}

// AddAddressIndex feeds the value movements of an admitted entry to the
// configured address index.  It is a separate step from admission because the
// consumed output scripts must be resolved through the coin view, which is
// owned by the caller.  It does nothing when the index is disabled.
//
// This function is safe for concurrent access.
func (mp *TxPool) AddAddressIndex(txD *TxDesc, view CoinView) {
	if mp.cfg.AddrIndex == nil {
		return
	}
	mp.cfg.AddrIndex.AddUnconfirmedTx(txD, view)
}

// AddSpentIndex feeds the consumed outpoints of an admitted entry to the
// configured spent index.  It does nothing when the index is disabled.
//
// This function is safe for concurrent access.
func (mp *TxPool) AddSpentIndex(txD *TxDesc, view CoinView) {
	if mp.cfg.SpentIndex == nil {
		return
	}
	mp.cfg.SpentIndex.AddUnconfirmedTx(txD, view)
}

// UnconfirmedAddressDeltas returns the unconfirmed value movements indexed
// for the passed address key.  The second return is false when the address
// index is disabled or the key has no movements.
//
// This function is safe for concurrent access.
func (mp *TxPool) UnconfirmedAddressDeltas(key AddrKey) ([]*AddressDelta, bool) {
	if mp.cfg.AddrIndex == nil {
		return nil, false
	}
	return mp.cfg.AddrIndex.UnconfirmedDeltas(key)
}

// UnconfirmedSpend returns the unconfirmed spend record for the passed
// outpoint.  The second return is false when the spent index is disabled or
// the outpoint is not spent unconfirmed.
//
// This function is safe for concurrent access.
func (mp *TxPool) UnconfirmedSpend(op wire.OutPoint) (*SpentValue, bool) {
	if mp.cfg.SpentIndex == nil {
		return nil, false
	}
	return mp.cfg.SpentIndex.Spend(op)
}

// removeEntry retracts a single entry from the primary store and every
// derived index, updates the aggregate counters, and notifies the fee
// estimator.  The entry must be present in the pool.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) removeEntry(txD *TxDesc) {
	txHash := txD.Tx.Hash()
	msgTx := txD.Tx.MsgTx()

	delete(mp.recentlyAdded, *txHash)

	for _, txIn := range msgTx.TxIn {
		delete(mp.outpoints, txIn.PreviousOutPoint)
	}
	forEachNullifier(msgTx, func(pool ShieldedPool, nf chainhash.Hash) bool {
		delete(mp.nullifierMap(pool), nf)
		return true
	})

	if mp.cfg.AddrIndex != nil {
		mp.cfg.AddrIndex.RemoveUnconfirmedTx(txHash)
	}
	if mp.cfg.SpentIndex != nil {
		mp.cfg.SpentIndex.RemoveUnconfirmedTx(txHash)
	}

	mp.totalTxSize -= uint64(txD.Size)
	mp.cachedInnerUsage -= uint64(txD.DynamicMemoryUsage())
	delete(mp.pool, *txHash)
	mp.transactionsUpdated++
	atomic.StoreInt64(&mp.lastUpdated, time.Now().Unix())

	if mp.cfg.Estimator != nil {
		mp.cfg.Estimator.RemoveTransaction(txHash)
	}
	mp.clearPrioritisation(txHash)
	mp.recentRemovals.Add(*txHash)
}

// removeTransaction is the internal function which implements the public
// RemoveTransaction.  See the comment for RemoveTransaction for more details.
//
// The traversal uses an explicit worklist rather than recursion so its depth
// is bounded by the pool size and the discovery order is deterministic.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) removeTransaction(tx *verusutil.Tx, removeRedeemers bool) []*TxDesc {
	txHash := tx.Hash()
	workList := make([]chainhash.Hash, 0, 8)
	workList = append(workList, *txHash)

	// If recursively removing but the root isn't in the mempool, remove
	// any children that are.  This can happen during chain reorgs if the
	// root wasn't re-accepted into the pool for some reason.
	if removeRedeemers {
		if _, exists := mp.pool[*txHash]; !exists {
			prevOut := wire.OutPoint{Hash: *txHash}
			for txOutIdx := range tx.MsgTx().TxOut {
				prevOut.Index = uint32(txOutIdx)
				if spender, exists := mp.outpoints[prevOut]; exists {
					workList = append(workList, spender)
				}
			}
		}
	}

	var removed []*TxDesc
	for len(workList) > 0 {
		hash := workList[0]
		workList = workList[1:]

		txD, exists := mp.pool[hash]
		if !exists {
			continue
		}

		if removeRedeemers {
			// Queue any transactions which rely on this one.
			prevOut := wire.OutPoint{Hash: hash}
			for txOutIdx := range txD.Tx.MsgTx().TxOut {
				prevOut.Index = uint32(txOutIdx)
				if spender, exists := mp.outpoints[prevOut]; exists {
					workList = append(workList, spender)
				}
			}
		}

		mp.removeEntry(txD)
		removed = append(removed, txD)
	}

	return removed
}

// RemoveTransaction removes the passed transaction from the mempool.  When
// the removeRedeemers flag is set, any transactions that redeem outputs from
// the removed transaction are also removed from the mempool, transitively, as
// they would otherwise become orphans.  The descriptors of every removed
// entry are returned in the order of discovery.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveTransaction(tx *verusutil.Tx, removeRedeemers bool) []*TxDesc {
	mp.mtx.Lock()
	removed := mp.removeTransaction(tx, removeRedeemers)
	mp.mtx.Unlock()

	return removed
}

// removeConflicts is the internal function which implements the public
// RemoveConflicts.  See the comment for RemoveConflicts for more details.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) removeConflicts(tx *verusutil.Tx) []*TxDesc {
	var removed []*TxDesc
	txHash := tx.Hash()
	msgTx := tx.MsgTx()

	for _, txIn := range msgTx.TxIn {
		spender, exists := mp.outpoints[txIn.PreviousOutPoint]
		if !exists || spender == *txHash {
			continue
		}
		if conflict, exists := mp.pool[spender]; exists {
			removed = append(removed,
				mp.removeTransaction(conflict.Tx, true)...)
		}
	}

	forEachNullifier(msgTx, func(pool ShieldedPool, nf chainhash.Hash) bool {
		spender, exists := mp.nullifierMap(pool)[nf]
		if !exists || spender == *txHash {
			return true
		}
		if conflict, exists := mp.pool[spender]; exists {
			removed = append(removed,
				mp.removeTransaction(conflict.Tx, true)...)
		}
		return true
	})

	return removed
}

// RemoveConflicts removes every transaction from the mempool which spends one
// of the passed transaction's input outpoints or shielded nullifiers, along
// with all of its dependants.  The passed transaction itself is never
// removed.  This is necessary when a newly confirmed or newly admitted
// transaction double spends against pool members.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveConflicts(tx *verusutil.Tx) []*TxDesc {
	mp.mtx.Lock()
	removed := mp.removeConflicts(tx)
	mp.mtx.Unlock()

	return removed
}

// RemoveForReorg removes every transaction which is no longer valid after the
// chain tip moved to the passed height: transactions that fail the supplied
// finality check as well as transactions spending a coinbase output the view
// now reports as immature or still time-locked.  The isFinal check may be nil
// to skip it.
//
// The coin view is queried directly and never cached.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveForReorg(view CoinView, poolHeight uint32,
	isFinal func(*TxDesc) bool) []*TxDesc {

	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	var toRemove []*TxDesc
	for _, txD := range mp.pool {
		if isFinal != nil && !isFinal(txD) {
			toRemove = append(toRemove, txD)
			continue
		}
		if txD.SpendsCoinbase && mp.spendsImmatureOutput(view, txD, poolHeight) {
			toRemove = append(toRemove, txD)
		}
	}

	var removed []*TxDesc
	for _, txD := range toRemove {
		removed = append(removed, mp.removeTransaction(txD.Tx, true)...)
	}
	return removed
}

// spendsImmatureOutput determines whether the passed entry spends an output
// the view reports as missing, as an immature coinbase, or as a time-locked
// output that is still locked at the passed height.  Inputs provided by
// other pool members are skipped since they have no confirmation depth to
// check.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *TxPool) spendsImmatureOutput(view CoinView, txD *TxDesc,
	poolHeight uint32) bool {

	for _, txIn := range txD.Tx.MsgTx().TxIn {
		prevOut := txIn.PreviousOutPoint
		if _, exists := mp.pool[prevOut.Hash]; exists {
			continue
		}

		if !view.IsAvailable(prevOut) {
			return true
		}

		coinHeight := view.HeightOf(prevOut)
		if view.IsCoinbase(prevOut) &&
			int64(poolHeight)-int64(coinHeight) < int64(mp.cfg.Policy.CoinbaseMaturity) {

			return true
		}

		// The block unlock schedule applies to any sufficiently large
		// output of the producing transaction, coinbase or not.
		if mp.cfg.BlockUnlockTime != nil && mp.cfg.Policy.TimeLockThreshold > 0 {
			out, ok := view.Output(wire.OutPoint{Hash: prevOut.Hash})
			if ok && verusutil.Amount(out.Value) >= mp.cfg.Policy.TimeLockThreshold &&
				poolHeight < mp.cfg.BlockUnlockTime(coinHeight) {

				return true
			}
		}
	}
	return false
}

// RemoveWithAnchor removes every transaction which commits to the passed
// commitment tree anchor in the given shielded pool variant, along with all
// of its dependants.  This is required when a block is disconnected from the
// tip and the anchor is no longer part of the active chain.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveWithAnchor(invalidRoot *chainhash.Hash, pool ShieldedPool) []*TxDesc {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	var toRemove []*TxDesc
	for _, txD := range mp.pool {
		if txSpendsAnchor(txD.Tx.MsgTx(), invalidRoot, pool) {
			toRemove = append(toRemove, txD)
		}
	}

	var removed []*TxDesc
	for _, txD := range toRemove {
		removed = append(removed, mp.removeTransaction(txD.Tx, true)...)
	}
	return removed
}

// txSpendsAnchor returns whether any shielded spend of the passed transaction
// in the given pool variant commits to the passed anchor.
func txSpendsAnchor(msgTx *wire.MsgTx, anchor *chainhash.Hash, pool ShieldedPool) bool {
	switch pool {
	case Sprout:
		for _, js := range msgTx.JoinSplits {
			if js.Anchor == *anchor {
				return true
			}
		}
	case Sapling:
		for _, spend := range msgTx.SaplingSpends {
			if spend.Anchor == *anchor {
				return true
			}
		}
	default:
		panic(AssertError("invalid shielded pool variant"))
	}
	return false
}

// RemoveExpired removes every transaction whose expiry height has been
// reached at the passed height, along with all of its dependants.  When the
// optional validAtTip check is non-nil, transactions failing it are removed
// as well; this is used for chain rules such as time-locked value interest
// validation against the current tip.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveExpired(height uint32, validAtTip func(*TxDesc) bool) []*TxDesc {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	var toRemove []*TxDesc
	for _, txD := range mp.pool {
		if txD.Tx.MsgTx().IsExpired(height) ||
			(validAtTip != nil && !validAtTip(txD)) {

			toRemove = append(toRemove, txD)
		}
	}

	var removed []*TxDesc
	for _, txD := range toRemove {
		log.Debugf("Removing expired transaction %v", txD.Tx.Hash())
		removed = append(removed, mp.removeTransaction(txD.Tx, true)...)
	}
	return removed
}

// RemoveForBlock removes every transaction in the passed ordered block
// transaction list from the mempool.  The removal is non-transitive since
// remaining dependants are either in the block as well or will be evicted by
// the conflict pass, which additionally removes every pool member double
// spending an outpoint or nullifier consumed by the block.  The evicted
// conflicts are returned and the confirmed entries are forwarded to the fee
// estimator as a block-processed batch.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveForBlock(blockTxns []*verusutil.Tx, height uint32) []*TxDesc {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	// Collect the descriptors of the confirmed entries before they are
	// removed so the estimator can be informed of the batch afterwards.
	var entries []*TxDesc
	for _, tx := range blockTxns {
		if txD, exists := mp.pool[*tx.Hash()]; exists {
			entries = append(entries, txD)
		}
	}

	var conflicts []*TxDesc
	for _, tx := range blockTxns {
		mp.removeTransaction(tx, false)
		conflicts = append(conflicts, mp.removeConflicts(tx)...)
		mp.clearPrioritisation(tx.Hash())
	}

	// After the confirmed transactions have been removed from the pool,
	// update the fee estimator statistics.
	if mp.cfg.Estimator != nil {
		mp.cfg.Estimator.RegisterBlock(height, entries)
	}

	numRemoved := len(entries) + len(conflicts)
	log.Debugf("Removed %d %s for block at height %d (%d conflicting)",
		numRemoved, pickNoun(numRemoved, "transaction", "transactions"),
		height, len(conflicts))

	return conflicts
}

// RemoveWithoutBranchID removes every transaction which was not validated
// against the passed consensus branch id, along with all of its dependants.
// This is invoked whenever the chain tip changes across a network upgrade
// boundary.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveWithoutBranchID(branchID uint32) []*TxDesc {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	var toRemove []*TxDesc
	for _, txD := range mp.pool {
		if txD.BranchID != branchID {
			toRemove = append(toRemove, txD)
		}
	}

	var removed []*TxDesc
	for _, txD := range toRemove {
		removed = append(removed, mp.removeTransaction(txD.Tx, true)...)
	}
	return removed
}

// Clear discards every entry along with all derived indices, prioritisation
// records, and aggregate counters.
//
// This function is safe for concurrent access.
func (mp *TxPool) Clear() {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	mp.pool = make(map[chainhash.Hash]*TxDesc)
	mp.outpoints = make(map[wire.OutPoint]chainhash.Hash)
	for i := range mp.nullifiers {
		mp.nullifiers[i] = make(map[chainhash.Hash]chainhash.Hash)
	}
	mp.deltas = make(map[chainhash.Hash]*priorityDelta)
	mp.reserveTxs = make(map[chainhash.Hash]*ReserveTxDescriptor)
	mp.recentlyAdded = make(map[chainhash.Hash]*verusutil.Tx)
	mp.totalTxSize = 0
	mp.cachedInnerUsage = 0
	mp.transactionsUpdated++
	atomic.StoreInt64(&mp.lastUpdated, time.Now().Unix())
}

// PrioritiseTransaction applies an additive priority and fee adjustment to
// the passed transaction for block assembly ordering.  Repeated calls
// accumulate.  The record is created on first use and erased automatically
// when the transaction leaves the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) PrioritiseTransaction(txHash *chainhash.Hash,
	priorityDeltaVal float64, feeDelta verusutil.Amount) {

	mp.mtx.Lock()
	delta, exists := mp.deltas[*txHash]
	if !exists {
		delta = &priorityDelta{}
		mp.deltas[*txHash] = delta
	}
	delta.priority += priorityDeltaVal
	delta.fee += feeDelta
	mp.mtx.Unlock()

	log.Infof("PrioritiseTransaction: %v priority += %f, fee += %v",
		txHash, priorityDeltaVal, feeDelta)
}

// ApplyDeltas returns the accumulated priority and fee adjustment for the
// passed transaction, or zero values when no adjustment has been applied.
//
// This function is safe for concurrent access.
func (mp *TxPool) ApplyDeltas(txHash *chainhash.Hash) (float64, verusutil.Amount) {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	delta, exists := mp.deltas[*txHash]
	if !exists {
		return 0, 0
	}
	return delta.priority, delta.fee
}

// clearPrioritisation erases the prioritisation record and any cached reserve
// transaction descriptor for the passed transaction.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) clearPrioritisation(txHash *chainhash.Hash) {
	delete(mp.deltas, *txHash)
	delete(mp.reserveTxs, *txHash)
}

// PrioritiseReserveTransaction caches the passed reserve transaction
// descriptor and applies a fee adjustment equal to the descriptor's reserve
// fees converted to native units through the passed currency state, plus its
// native conversion fees.  It returns false without any effect when the
// descriptor is invalid.
//
// This function is safe for concurrent access.
func (mp *TxPool) PrioritiseReserveTransaction(rtxd *ReserveTxDescriptor,
	currency CurrencyState, height uint32) bool {

	if !rtxd.IsValid() {
		return false
	}

	txHash := rtxd.Tx.Hash()
	mp.mtx.Lock()
	mp.reserveTxs[*txHash] = rtxd
	mp.mtx.Unlock()

	feeDelta := verusutil.Amount(currency.ReserveToNative(
		int64(rtxd.ReserveFees+rtxd.ReserveConversionFees), height)) +
		rtxd.NativeConversionFees
	mp.PrioritiseTransaction(txHash, float64(feeDelta)*100.0, feeDelta)
	return true
}

// IsKnownReserveTransaction returns the cached reserve transaction descriptor
// for the passed transaction when one exists and the transaction is still in
// the pool.  A stale descriptor for a transaction that already left the pool
// is erased on access.
//
// This function is safe for concurrent access.
func (mp *TxPool) IsKnownReserveTransaction(txHash *chainhash.Hash) (*ReserveTxDescriptor, bool) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	rtxd, exists := mp.reserveTxs[*txHash]
	if !exists || !rtxd.IsValid() {
		return nil, false
	}

	txD, exists := mp.pool[*txHash]
	if !exists {
		mp.clearPrioritisation(txHash)
		return nil, false
	}

	// Refresh the descriptor's transaction from the pool so it always
	// refers to the owned copy.
	rtxd.Tx = txD.Tx
	return rtxd, true
}

// HasNoInputsOf returns whether none of the passed transaction's inputs are
// provided by other pool members.
//
// This function is safe for concurrent access.
func (mp *TxPool) HasNoInputsOf(tx *verusutil.Tx) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	for _, txIn := range tx.MsgTx().TxIn {
		if _, exists := mp.pool[txIn.PreviousOutPoint.Hash]; exists {
			return false
		}
	}
	return true
}

// SpentOutputs returns the output indexes of the passed transaction that are
// currently consumed by pool members.  A coins view layered on top of the
// pool uses this to mask outputs that are already spent unconfirmed.
//
// This function is safe for concurrent access.
func (mp *TxPool) SpentOutputs(txHash *chainhash.Hash) []uint32 {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	var spent []uint32
	for outpoint := range mp.outpoints {
		if outpoint.Hash == *txHash {
			spent = append(spent, outpoint.Index)
		}
	}
	return spent
}

// CheckSpend checks whether the passed outpoint is already spent by a
// transaction in the mempool.  If that's the case the spending transaction
// will be returned, if not nil will be returned.
//
// This function is safe for concurrent access.
func (mp *TxPool) CheckSpend(op wire.OutPoint) *verusutil.Tx {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	spender, exists := mp.outpoints[op]
	if !exists {
		return nil
	}
	txD, exists := mp.pool[spender]
	if !exists {
		return nil
	}
	return txD.Tx
}

// NullifierExists returns whether the passed nullifier is spent by a pool
// member in the given shielded pool variant.
//
// This function is safe for concurrent access.
func (mp *TxPool) NullifierExists(nf *chainhash.Hash, pool ShieldedPool) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	_, exists := mp.nullifierMap(pool)[*nf]
	return exists
}

// isTransactionInPool returns whether or not the passed transaction already
// exists in the pool.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *TxPool) isTransactionInPool(hash *chainhash.Hash) bool {
	_, exists := mp.pool[*hash]
	return exists
}

// HaveTransaction returns whether or not the passed transaction already
// exists in the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) HaveTransaction(hash *chainhash.Hash) bool {
	mp.mtx.RLock()
	haveTx := mp.isTransactionInPool(hash)
	mp.mtx.RUnlock()

	return haveTx
}

// FetchTransaction returns the requested transaction from the transaction
// pool along with whether it was found.
//
// This function is safe for concurrent access.
func (mp *TxPool) FetchTransaction(txHash *chainhash.Hash) (*verusutil.Tx, bool) {
	mp.mtx.RLock()
	txD, exists := mp.pool[*txHash]
	mp.mtx.RUnlock()

	if !exists {
		return nil, false
	}
	return txD.Tx, true
}

// FetchEntry returns the full mempool entry for the requested transaction
// along with whether it was found.  The descriptor must be treated as read
// only.
//
// This function is safe for concurrent access.
func (mp *TxPool) FetchEntry(txHash *chainhash.Hash) (*TxDesc, bool) {
	mp.mtx.RLock()
	txD, exists := mp.pool[*txHash]
	mp.mtx.RUnlock()

	return txD, exists
}

// Count returns the number of transactions in the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) Count() int {
	mp.mtx.RLock()
	count := len(mp.pool)
	mp.mtx.RUnlock()

	return count
}

// TotalTxSize returns the total serialized size of all entries in the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) TotalTxSize() uint64 {
	mp.mtx.RLock()
	size := mp.totalTxSize
	mp.mtx.RUnlock()

	return size
}

// DynamicMemoryUsage returns the cached estimate of the dynamic memory held
// by all entries in the pool together with the pool's own index overhead.
//
// This function is safe for concurrent access.
func (mp *TxPool) DynamicMemoryUsage() uint64 {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	// Estimate the index overhead from the number of tracked keys; the
	// per-entry usage is already part of the cached counter.
	overhead := uint64(len(mp.outpoints)+len(mp.deltas)) * 64
	for i := range mp.nullifiers {
		overhead += uint64(len(mp.nullifiers[i])) * 64
	}
	return mp.cachedInnerUsage + overhead
}

// TxHashes returns a slice of hashes for all of the transactions in the
// memory pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) TxHashes() []*chainhash.Hash {
	mp.mtx.RLock()
	hashes := make([]*chainhash.Hash, len(mp.pool))
	i := 0
	for hash := range mp.pool {
		hashCopy := hash
		hashes[i] = &hashCopy
		i++
	}
	mp.mtx.RUnlock()

	return hashes
}

// TxDescs returns a slice of descriptors for all the transactions in the
// pool.  The descriptors are to be treated as read only.
//
// This function is safe for concurrent access.
func (mp *TxPool) TxDescs() []*TxDesc {
	mp.mtx.RLock()
	descs := make([]*TxDesc, len(mp.pool))
	i := 0
	for _, desc := range mp.pool {
		descs[i] = desc
		i++
	}
	mp.mtx.RUnlock()

	return descs
}

// TransactionsUpdated returns the number of mutations the pool has performed
// since it was created.
//
// This function is safe for concurrent access.
func (mp *TxPool) TransactionsUpdated() uint64 {
	mp.mtx.RLock()
	updated := mp.transactionsUpdated
	mp.mtx.RUnlock()

	return updated
}

// AddTransactionsUpdated adds the passed count to the pool's mutation
// counter.  Callers use this to force consumers keyed on the counter, such as
// block template generation, to refresh.
//
// This function is safe for concurrent access.
func (mp *TxPool) AddTransactionsUpdated(n uint64) {
	mp.mtx.Lock()
	mp.transactionsUpdated += n
	mp.mtx.Unlock()
}

// LastUpdated returns the last time a transaction was added to or removed
// from the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) LastUpdated() time.Time {
	return time.Unix(atomic.LoadInt64(&mp.lastUpdated), 0)
}

// WasRecentlyRemoved returns whether the passed transaction id was removed
// from the pool recently.  The relay layer uses this to avoid re-requesting
// transactions the pool just evicted.
//
// This function is safe for concurrent access.
func (mp *TxPool) WasRecentlyRemoved(txHash *chainhash.Hash) bool {
	return mp.recentRemovals.Contains(*txHash)
}

// DrainRecentlyAdded returns the batch of transactions admitted since the
// previous drain along with the admission sequence number observed at the
// time of the drain.  The pool's recently-added list is emptied.  Exactly one
// external consumer is expected to drain the pool at a time.
//
// This function is safe for concurrent access.
func (mp *TxPool) DrainRecentlyAdded() ([]*verusutil.Tx, uint64) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	sequence := mp.addedSequence
	txns := make([]*verusutil.Tx, 0, len(mp.recentlyAdded))
	for _, tx := range mp.recentlyAdded {
		txns = append(txns, tx)
	}
	mp.recentlyAdded = make(map[chainhash.Hash]*verusutil.Tx)

	return txns, sequence
}

// MarkNotified records that every admission up to and including the passed
// sequence number has been delivered to the notification consumer.
//
// This function is safe for concurrent access.
func (mp *TxPool) MarkNotified(sequence uint64) {
	mp.mtx.Lock()
	if sequence > mp.notifiedSequence {
		mp.notifiedSequence = sequence
	}
	mp.mtx.Unlock()
}

// IsFullyNotified returns whether every admission so far has been delivered
// to the notification consumer.  An admission racing a drain leaves the pool
// reporting false until the next drain completes.
//
// This function is safe for concurrent access.
func (mp *TxPool) IsFullyNotified() bool {
	mp.mtx.RLock()
	notified := mp.addedSequence == mp.notifiedSequence
	mp.mtx.RUnlock()

	return notified
}

// Check audits the pool against every structural invariant: spend graph and
// nullifier injectivity relative to the primary store, aggregate counter
// equality, and resolvability of every derived record.  The audit only runs
// with the probability configured through the sanity check ratio since its
// cost is proportional to the pool size; a zero ratio disables it.
//
// Any violation indicates an internal bookkeeping bug and panics with an
// AssertError rather than attempting recovery.
//
// This function is safe for concurrent access.
func (mp *TxPool) Check(view CoinView) {
	checkFrequency := atomic.LoadUint32(&mp.checkFrequency)
	if checkFrequency == 0 {
		return
	}
	if rand.Uint32() >= checkFrequency {
		return
	}

	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	log.Debugf("Checking mempool with %d transactions and %d inputs",
		len(mp.pool), len(mp.outpoints))

	var checkTotal, checkUsage uint64
	for hash, txD := range mp.pool {
		checkTotal += uint64(txD.Size)
		checkUsage += uint64(txD.DynamicMemoryUsage())

		msgTx := txD.Tx.MsgTx()
		poolAssert(*txD.Tx.Hash() == hash,
			"entry stored under a foreign transaction id")

		if !msgTx.IsCoinImport() {
			for _, txIn := range msgTx.TxIn {
				prevOut := txIn.PreviousOutPoint

				// Every input must refer either to another pool
				// member that actually has the output, or to an
				// output the chain view reports as unspent.
				if parent, exists := mp.pool[prevOut.Hash]; exists {
					parentOuts := parent.Tx.MsgTx().TxOut
					poolAssert(int(prevOut.Index) < len(parentOuts),
						"input refers to a nonexistent output of a pool member")
				} else if view != nil {
					poolAssert(view.IsAvailable(prevOut),
						"input refers to an unavailable output")
				}

				spender, exists := mp.outpoints[prevOut]
				poolAssert(exists,
					"input is not marked in the spend graph")
				poolAssert(spender == hash,
					"spend graph maps an input to a foreign transaction")
			}
		}

		forEachNullifier(msgTx, func(pool ShieldedPool, nf chainhash.Hash) bool {
			spender, exists := mp.nullifierMap(pool)[nf]
			poolAssert(exists, "nullifier is not recorded")
			poolAssert(spender == hash,
				"nullifier record maps to a foreign transaction")
			return true
		})
	}

	// Every edge must resolve back to a live entry which actually spends
	// the edge's key.
	for outpoint, spender := range mp.outpoints {
		txD, exists := mp.pool[spender]
		poolAssert(exists, "spend graph edge refers to a removed entry")

		found := false
		for _, txIn := range txD.Tx.MsgTx().TxIn {
			if txIn.PreviousOutPoint == outpoint {
				found = true
				break
			}
		}
		poolAssert(found, "spend graph edge is not an input of its entry")
	}
	for pool := Sprout; pool < numShieldedPools; pool++ {
		mp.checkNullifiers(pool)
	}

	poolAssert(checkTotal == mp.totalTxSize,
		"aggregate size counter diverged from entries")
	poolAssert(checkUsage == mp.cachedInnerUsage,
		"aggregate usage counter diverged from entries")
}

// checkNullifiers verifies that every nullifier record in the passed shielded
// pool variant resolves to a live entry that spends it.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *TxPool) checkNullifiers(pool ShieldedPool) {
	for nf, spender := range mp.nullifierMap(pool) {
		txD, exists := mp.pool[spender]
		poolAssert(exists, "nullifier record refers to a removed entry")

		found := false
		forEachNullifier(txD.Tx.MsgTx(), func(p ShieldedPool, candidate chainhash.Hash) bool {
			if p == pool && candidate == nf {
				found = true
				return false
			}
			return true
		})
		poolAssert(found, "nullifier record is not spent by its entry")
	}
}
