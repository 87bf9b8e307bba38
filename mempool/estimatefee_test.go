// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/denza/VerusCoin/verusutil"
	"github.com/denza/VerusCoin/wire"
)

// estimatorTx builds a pool descriptor with the passed fee observed at the
// passed height, unique per nonce.
func estimatorTx(nonce uint64, fee verusutil.Amount, height uint32) *TxDesc {
	sigScript := make([]byte, 8)
	binary.LittleEndian.PutUint64(sigScript, nonce)

	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(&wire.TxIn{
		SignatureScript: sigScript,
		Sequence:        wire.MaxTxInSequenceNum,
	})
	msgTx.AddTxOut(&wire.TxOut{Value: 1e8, PkScript: p2pkhScript(0x44)})
	return NewTxDesc(verusutil.NewTx(msgTx), fee, time.Now(), 10.0, height,
		false, 1, false)
}

// TestEstimateFee ensures basic observation and block registration produce
// estimates and that the error paths fire for out-of-range targets.
func TestEstimateFee(t *testing.T) {
	ef := NewFeeEstimator(0, 0)

	// No estimate is available before any block has been registered.
	_, err := ef.EstimateFee(1)
	require.Error(t, err)

	var descs []*TxDesc
	for i := uint64(0); i < 10; i++ {
		txD := estimatorTx(i, verusutil.Amount(10000+int64(i)*1000), 100)
		ef.ObserveTransaction(txD)
		descs = append(descs, txD)
	}
	ef.RegisterBlock(101, descs)
	require.Equal(t, uint32(101), ef.LastKnownHeight())

	rate, err := ef.EstimateFee(1)
	require.NoError(t, err)
	require.Greater(t, float64(rate), 0.0)

	// Deeper targets never demand a higher rate than shallower ones.
	deep, err := ef.EstimateFee(estimateFeeDepth)
	require.NoError(t, err)
	require.LessOrEqual(t, float64(deep), float64(rate))

	_, err = ef.EstimateFee(0)
	require.Error(t, err)
	_, err = ef.EstimateFee(estimateFeeDepth + 1)
	require.Error(t, err)
}

// TestEstimatorRemoveTransaction ensures removing an unmined observation
// forgets it while mined observations are retained.
func TestEstimatorRemoveTransaction(t *testing.T) {
	ef := NewFeeEstimator(0, 0)

	mined := estimatorTx(1, 10000, 100)
	unmined := estimatorTx(2, 20000, 100)
	ef.ObserveTransaction(mined)
	ef.ObserveTransaction(unmined)
	ef.RegisterBlock(101, []*TxDesc{mined})

	ef.RemoveTransaction(unmined.Tx.Hash())
	ef.RemoveTransaction(mined.Tx.Hash())

	ef.mtx.RLock()
	_, haveUnmined := ef.observed[*unmined.Tx.Hash()]
	_, haveMined := ef.observed[*mined.Tx.Hash()]
	ef.mtx.RUnlock()
	require.False(t, haveUnmined)
	require.True(t, haveMined)
}

// TestEstimatorSnapshotRoundTrip ensures the serialized state restores to an
// estimator producing the same estimates.
func TestEstimatorSnapshotRoundTrip(t *testing.T) {
	ef := NewFeeEstimator(0, 0)

	var descs []*TxDesc
	for i := uint64(0); i < 20; i++ {
		txD := estimatorTx(i, verusutil.Amount(5000+int64(i)*500), 100)
		ef.ObserveTransaction(txD)
		descs = append(descs, txD)
	}
	ef.RegisterBlock(102, descs)

	data, err := ef.Serialize()
	require.NoError(t, err)

	restored, err := RestoreFeeEstimator(data)
	require.NoError(t, err)
	require.Equal(t, ef.LastKnownHeight(), restored.LastKnownHeight())

	for target := uint32(1); target <= estimateFeeDepth; target++ {
		want, err1 := ef.EstimateFee(target)
		got, err2 := restored.EstimateFee(target)
		require.Equal(t, err1 == nil, err2 == nil, "target %d", target)
		if err1 == nil {
			require.Equal(t, want, got, "target %d", target)
		}
	}
}

// TestEstimatorSnapshotFutureVersion ensures a snapshot demanding a newer
// reader version yields an error instead of a bad restore.
func TestEstimatorSnapshotFutureVersion(t *testing.T) {
	ef := NewFeeEstimator(0, 0)
	ef.RegisterBlock(101, nil)
	data, err := ef.Serialize()
	require.NoError(t, err)

	// Bump both the written version and the minimum required version
	// past what this reader understands.
	binary.LittleEndian.PutUint32(data[0:4], estimateFeeSaveVersion+1)
	binary.LittleEndian.PutUint32(data[4:8], estimateFeeSaveVersion+1)

	_, err = RestoreFeeEstimator(data)
	require.Error(t, err)
}

// TestEstimatorSnapshotTruncated ensures a truncated snapshot is rejected.
func TestEstimatorSnapshotTruncated(t *testing.T) {
	ef := NewFeeEstimator(0, 0)
	ef.RegisterBlock(101, nil)
	data, err := ef.Serialize()
	require.NoError(t, err)

	_, err = RestoreFeeEstimator(data[:len(data)/2])
	require.Error(t, err)
}

// TestEstimatorBinReplacement ensures a full bin evicts older observations
// instead of growing and honors the per-block replacement budget.
func TestEstimatorBinReplacement(t *testing.T) {
	ef := NewFeeEstimator(4, 2)

	var descs []*TxDesc
	for i := uint64(0); i < 4; i++ {
		txD := estimatorTx(i, 10000, 100)
		ef.ObserveTransaction(txD)
		descs = append(descs, txD)
	}
	ef.RegisterBlock(101, descs)
	require.Len(t, ef.bin[0], 4)

	// Six more candidates for the same bin: at most two replacements may
	// happen and the bin must not grow.
	descs = descs[:0]
	for i := uint64(100); i < 106; i++ {
		txD := estimatorTx(i, 20000, 101)
		ef.ObserveTransaction(txD)
		descs = append(descs, txD)
	}
	ef.RegisterBlock(102, descs)
	require.Len(t, ef.bin[0], 4)

	replaced := 0
	for _, ot := range ef.bin[0] {
		if ot.feeRate > newSatoshiPerByte(10000, descs[0].Size) {
			replaced++
		}
	}
	require.LessOrEqual(t, replaced, 2)
}

// TestSatoshiPerByte exercises the fee rate helpers.
func TestSatoshiPerByte(t *testing.T) {
	rate := newSatoshiPerByte(10000, 1000)
	require.Equal(t, SatoshiPerByte(10), rate)
	require.Equal(t, verusutil.Amount(2500), rate.Fee(250))
	require.Equal(t, int64(10000), rate.ToSatoshiPerKb())

	bad := SatoshiPerByte(-1)
	require.Equal(t, verusutil.Amount(-1), bad.Fee(250))
}
