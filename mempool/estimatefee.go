// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/denza/VerusCoin/verusutil"
)

const (
	// estimateFeeDepth is the maximum number of blocks before confirmation
	// that the estimator tracks.
	estimateFeeDepth = 25

	// estimateFeeBinSize is the default number of transactions stored per
	// confirmation depth bin.
	estimateFeeBinSize = 100

	// estimateFeeMaxReplacements is the default maximum number of
	// replacements that can be made by the transactions of a single block.
	estimateFeeMaxReplacements = 10

	// bytesPerKb is the divisor used to convert per-byte rates to per-kb
	// rates.
	bytesPerKb = 1000

	// estimateFeeSaveVersion is the version of the snapshot format written
	// by Serialize.
	estimateFeeSaveVersion = 1

	// estimateFeeMinVersion is the oldest snapshot format version that
	// Restore understands.
	estimateFeeMinVersion = 1
)

// SatoshiPerByte is a fee rate in satoshis per byte.
type SatoshiPerByte float64

// Fee returns the fee for a transaction of the given size for the given fee
// rate.
func (rate SatoshiPerByte) Fee(size int) verusutil.Amount {
	// If our rate is the error value, return that.
	if rate == SatoshiPerByte(-1) {
		return verusutil.Amount(-1)
	}
	return verusutil.Amount(float64(rate) * float64(size))
}

// ToSatoshiPerKb converts the rate to satoshis per kilobyte.
func (rate SatoshiPerByte) ToSatoshiPerKb() int64 {
	return int64(float64(rate) * bytesPerKb)
}

// newSatoshiPerByte creates a SatoshiPerByte from an Amount and a size.
func newSatoshiPerByte(fee verusutil.Amount, size int) SatoshiPerByte {
	return SatoshiPerByte(float64(fee) / float64(size))
}

// observedTransaction represents a transaction observed by the fee estimator.
type observedTransaction struct {
	// hash is the transaction id.
	hash chainhash.Hash

	// feeRate is the fee per byte of the transaction.
	feeRate SatoshiPerByte

	// observed is the block height at which the transaction was observed.
	observed uint32

	// mined is the block height at which the transaction was mined, or
	// zero while it is unconfirmed.
	mined uint32
}

func (o *observedTransaction) serialize(w io.Writer) error {
	if _, err := w.Write(o.hash[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, float64(o.feeRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, o.observed); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, o.mined)
}

func deserializeObservedTransaction(r io.Reader) (*observedTransaction, error) {
	ot := observedTransaction{}
	if _, err := io.ReadFull(r, ot.hash[:]); err != nil {
		return nil, err
	}
	var rate float64
	if err := binary.Read(r, binary.LittleEndian, &rate); err != nil {
		return nil, err
	}
	ot.feeRate = SatoshiPerByte(rate)
	if err := binary.Read(r, binary.LittleEndian, &ot.observed); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &ot.mined); err != nil {
		return nil, err
	}
	return &ot, nil
}

// FeeEstimator manages the data necessary to create fee estimations.  It
// observes transactions as they enter the pool and records the number of
// blocks it took each one to confirm.  It satisfies the Estimator interface
// and is safe for concurrent access.
type FeeEstimator struct {
	mtx sync.RWMutex

	binSize         int
	maxReplacements int
	lastKnownHeight uint32

	// numBlocksRegistered counts the blocks registered with the estimator
	// since it was created or restored.  Estimates are refused until at
	// least one block has been seen.
	numBlocksRegistered uint32

	// observed tracks every transaction the estimator currently knows
	// about, confirmed or not.
	observed map[chainhash.Hash]*observedTransaction

	// bin stores the confirmed observations grouped by the number of
	// blocks each took to confirm.
	bin [estimateFeeDepth][]*observedTransaction

	// cached is the sorted estimate set computed lazily after each
	// registered block.
	cached []SatoshiPerByte
}

// NewFeeEstimator creates a FeeEstimator.  Zero arguments select the
// defaults.
func NewFeeEstimator(binSize, maxReplacements int) *FeeEstimator {
	if binSize == 0 {
		binSize = estimateFeeBinSize
	}
	if maxReplacements == 0 {
		maxReplacements = estimateFeeMaxReplacements
	}
	return &FeeEstimator{
		binSize:         binSize,
		maxReplacements: maxReplacements,
		observed:        make(map[chainhash.Hash]*observedTransaction),
	}
}

// ObserveTransaction is called when a new transaction is admitted to the
// pool.
//
// This function is safe for concurrent access.
func (ef *FeeEstimator) ObserveTransaction(txD *TxDesc) {
	ef.mtx.Lock()
	defer ef.mtx.Unlock()

	hash := *txD.Tx.Hash()
	if _, ok := ef.observed[hash]; ok {
		return
	}
	ef.observed[hash] = &observedTransaction{
		hash:     hash,
		feeRate:  newSatoshiPerByte(txD.Fee, txD.Size),
		observed: txD.Height,
	}
}

// RemoveTransaction is called when a transaction leaves the pool without
// being mined.  The observation is discarded since no confirmation time will
// ever be known for it.
//
// This function is safe for concurrent access.
func (ef *FeeEstimator) RemoveTransaction(txHash *chainhash.Hash) {
	ef.mtx.Lock()
	defer ef.mtx.Unlock()

	ot, ok := ef.observed[*txHash]
	if !ok || ot.mined != 0 {
		return
	}
	delete(ef.observed, *txHash)
}

// RegisterBlock informs the fee estimator of a new block to take into account.
//
// This function is safe for concurrent access.
func (ef *FeeEstimator) RegisterBlock(height uint32, descs []*TxDesc) {
	ef.mtx.Lock()
	defer ef.mtx.Unlock()

	ef.cached = nil
	ef.numBlocksRegistered++
	ef.lastKnownHeight = height

	// Count the number of replacements we make per bin so that we don't
	// replace too many in any one block.
	var replacementCounts [estimateFeeDepth]int

	for _, txD := range descs {
		ot, ok := ef.observed[*txD.Tx.Hash()]
		if !ok || ot.mined != 0 {
			continue
		}

		// Put the observed tx in the appropriate bin.
		blocksToConfirm := height - ot.observed
		if blocksToConfirm < 1 {
			blocksToConfirm = 1
		}
		if blocksToConfirm > estimateFeeDepth {
			delete(ef.observed, ot.hash)
			continue
		}
		bin := int(blocksToConfirm - 1)

		ot.mined = height
		if len(ef.bin[bin]) < ef.binSize {
			ef.bin[bin] = append(ef.bin[bin], ot)
			continue
		}

		// The bin is full; randomly evict an earlier observation, up
		// to the per-block replacement budget.
		if replacementCounts[bin] >= ef.maxReplacements {
			delete(ef.observed, ot.hash)
			continue
		}
		replacementCounts[bin]++
		evict := rand.Intn(len(ef.bin[bin]))
		delete(ef.observed, ef.bin[bin][evict].hash)
		ef.bin[bin][evict] = ot
	}
}

// LastKnownHeight returns the height of the last block registered with the
// estimator.
//
// This function is safe for concurrent access.
func (ef *FeeEstimator) LastKnownHeight() uint32 {
	ef.mtx.RLock()
	defer ef.mtx.RUnlock()

	return ef.lastKnownHeight
}

// estimates recomputes the cached per-depth estimate set when necessary.
//
// This function MUST be called with the estimator lock held (for writes).
func (ef *FeeEstimator) estimates() []SatoshiPerByte {
	if ef.cached != nil {
		return ef.cached
	}

	// Gather every confirmed observation sorted descending by fee rate,
	// then take the cumulative per-depth median position the way the bins
	// are ordered: transactions confirming faster at a given rate push
	// the estimate for deeper targets down.
	var all []*observedTransaction
	for bin := 0; bin < estimateFeeDepth; bin++ {
		all = append(all, ef.bin[bin]...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].feeRate != all[j].feeRate {
			return all[i].feeRate > all[j].feeRate
		}
		return bytes.Compare(all[i].hash[:], all[j].hash[:]) < 0
	})

	cached := make([]SatoshiPerByte, estimateFeeDepth)
	for depth := 0; depth < estimateFeeDepth; depth++ {
		// Count the observations that confirmed within the target
		// depth and use the median fee rate among them.
		var within []SatoshiPerByte
		for _, ot := range all {
			if int(ot.mined-ot.observed) <= depth+1 {
				within = append(within, ot.feeRate)
			}
		}
		if len(within) == 0 {
			cached[depth] = SatoshiPerByte(-1)
			continue
		}
		cached[depth] = within[len(within)/2]
	}
	ef.cached = cached
	return cached
}

// EstimateFee estimates the fee per byte required for a transaction to be
// mined within numBlocks blocks of being admitted to the pool.
//
// This function is safe for concurrent access.
func (ef *FeeEstimator) EstimateFee(numBlocks uint32) (SatoshiPerByte, error) {
	ef.mtx.Lock()
	defer ef.mtx.Unlock()

	if numBlocks == 0 {
		return -1, errors.New("cannot confirm transaction in zero blocks")
	}
	if numBlocks > estimateFeeDepth {
		return -1, errors.Errorf(
			"can only estimate fees for up to %d blocks from now",
			estimateFeeDepth)
	}
	if ef.numBlocksRegistered == 0 {
		return -1, errors.New("no block has been registered yet")
	}

	return ef.estimates()[numBlocks-1], nil
}

// Serialize encodes the current state of the estimator so it can be restored
// after a restart.
//
// This function is safe for concurrent access.
func (ef *FeeEstimator) Serialize() ([]byte, error) {
	ef.mtx.RLock()
	defer ef.mtx.RUnlock()

	w := new(bytes.Buffer)
	if err := binary.Write(w, binary.LittleEndian,
		uint32(estimateFeeSaveVersion)); err != nil {

		return nil, errors.Wrap(err, "serialize fee estimator")
	}
	binary.Write(w, binary.LittleEndian, uint32(estimateFeeMinVersion))
	binary.Write(w, binary.LittleEndian, ef.lastKnownHeight)
	binary.Write(w, binary.LittleEndian, ef.numBlocksRegistered)
	binary.Write(w, binary.LittleEndian, uint32(ef.binSize))
	binary.Write(w, binary.LittleEndian, uint32(ef.maxReplacements))

	// The confirmed observations, bin by bin.
	for bin := 0; bin < estimateFeeDepth; bin++ {
		if err := binary.Write(w, binary.LittleEndian,
			uint32(len(ef.bin[bin]))); err != nil {

			return nil, errors.Wrap(err, "serialize fee estimator")
		}
		for _, ot := range ef.bin[bin] {
			if err := ot.serialize(w); err != nil {
				return nil, errors.Wrap(err,
					"serialize fee estimator")
			}
		}
	}

	return w.Bytes(), nil
}

// RestoreFeeEstimator recreates a FeeEstimator from a snapshot produced by
// Serialize.  A snapshot written by a newer, unknown format version yields an
// error the caller should treat as non-fatal: the estimator simply starts
// fresh.
func RestoreFeeEstimator(data []byte) (*FeeEstimator, error) {
	r := bytes.NewReader(data)

	var version, minVersion uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, errors.Wrap(err, "restore fee estimator")
	}
	if err := binary.Read(r, binary.LittleEndian, &minVersion); err != nil {
		return nil, errors.Wrap(err, "restore fee estimator")
	}
	if minVersion > estimateFeeSaveVersion {
		return nil, errors.Errorf("fee estimator snapshot version %d "+
			"requires at least version %d to read", version,
			minVersion)
	}

	ef := &FeeEstimator{
		observed: make(map[chainhash.Hash]*observedTransaction),
	}
	var binSize, maxReplacements uint32
	binary.Read(r, binary.LittleEndian, &ef.lastKnownHeight)
	binary.Read(r, binary.LittleEndian, &ef.numBlocksRegistered)
	if err := binary.Read(r, binary.LittleEndian, &binSize); err != nil {
		return nil, errors.Wrap(err, "restore fee estimator")
	}
	if err := binary.Read(r, binary.LittleEndian, &maxReplacements); err != nil {
		return nil, errors.Wrap(err, "restore fee estimator")
	}
	ef.binSize = int(binSize)
	ef.maxReplacements = int(maxReplacements)

	for bin := 0; bin < estimateFeeDepth; bin++ {
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, errors.Wrap(err, "restore fee estimator")
		}
		for i := uint32(0); i < count; i++ {
			ot, err := deserializeObservedTransaction(r)
			if err != nil {
				return nil, errors.Wrap(err,
					"restore fee estimator")
			}
			ef.bin[bin] = append(ef.bin[bin], ot)
			ef.observed[ot.hash] = ot
		}
	}

	return ef, nil
}
