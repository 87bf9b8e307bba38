// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"bytes"
	"testing"
	"time"

	"github.com/denza/VerusCoin/verusutil"
	"github.com/denza/VerusCoin/wire"
)

// p2shScript returns a pay-to-script-hash script committing to a hash filled
// with the passed byte.
func p2shScript(fill byte) []byte {
	script := make([]byte, 23)
	script[0] = 0xa9
	script[1] = 0x14
	for i := 2; i < 22; i++ {
		script[i] = fill
	}
	script[22] = 0x87
	return script
}

// TestAddrKeyForScript ensures address keys are derived from the two
// standard script templates and refused for everything else.
func TestAddrKeyForScript(t *testing.T) {
	key, ok := addrKeyForScript(p2pkhScript(0xab))
	if !ok {
		t.Fatal("p2pkh script yielded no key")
	}
	if key[0] != addrKeyTypePubKeyHash {
		t.Fatalf("p2pkh key type: got %d, want %d", key[0],
			addrKeyTypePubKeyHash)
	}
	if !bytes.Equal(key[1:], bytes.Repeat([]byte{0xab}, 20)) {
		t.Fatal("p2pkh key hash mismatch")
	}

	key, ok = addrKeyForScript(p2shScript(0xcd))
	if !ok {
		t.Fatal("p2sh script yielded no key")
	}
	if key[0] != addrKeyTypeScriptHash {
		t.Fatalf("p2sh key type: got %d, want %d", key[0],
			addrKeyTypeScriptHash)
	}

	nonStandard := [][]byte{
		nil,
		{0x6a},                         // op_return
		p2pkhScript(0x01)[:24],         // truncated
		append(p2shScript(0x01), 0x00), // trailing byte
	}
	for i, script := range nonStandard {
		if _, ok := addrKeyForScript(script); ok {
			t.Fatalf("non-standard script %d yielded a key", i)
		}
	}
}

// TestAddrIndex ensures the unconfirmed address index records one negative
// delta per resolved input and one positive delta per standard output, and
// that removal erases everything the transaction contributed.
func TestAddrIndex(t *testing.T) {
	harness := newPoolHarness(t)
	idx := NewAddrIndex()
	harness.txPool.cfg.AddrIndex = idx

	op := harness.chain.addCoin(10e8, 50, false)
	tx := harness.createTx([]wire.OutPoint{op}, 10e8, 2, 100)
	desc := harness.addTx(t, tx, 100)
	harness.txPool.AddAddressIndex(desc, harness.chain)

	// The funding output's script commits to 0x11 and the created
	// outputs to 0x22.
	fundKey, _ := addrKeyForScript(p2pkhScript(0x11))
	outKey, _ := addrKeyForScript(p2pkhScript(0x22))

	deltas, ok := harness.txPool.UnconfirmedAddressDeltas(fundKey)
	if !ok || len(deltas) != 1 {
		t.Fatalf("funding deltas: got %d, want 1", len(deltas))
	}
	if !deltas[0].Spending || deltas[0].Amount != -10e8 {
		t.Fatalf("funding delta: spending=%v amount=%v",
			deltas[0].Spending, deltas[0].Amount)
	}
	if deltas[0].PrevHash != op.Hash || deltas[0].PrevIndex != op.Index {
		t.Fatal("funding delta records the wrong consumed output")
	}

	deltas, ok = idx.UnconfirmedDeltas(outKey)
	if !ok || len(deltas) != 2 {
		t.Fatalf("output deltas: got %d, want 2", len(deltas))
	}
	for _, delta := range deltas {
		if delta.Spending || delta.Amount <= 0 {
			t.Fatalf("output delta: spending=%v amount=%v",
				delta.Spending, delta.Amount)
		}
	}

	// Pool removal retracts the index entries automatically.
	harness.txPool.RemoveTransaction(tx, true)
	if _, ok := idx.UnconfirmedDeltas(fundKey); ok {
		t.Fatal("funding deltas survived removal")
	}
	if _, ok := idx.UnconfirmedDeltas(outKey); ok {
		t.Fatal("output deltas survived removal")
	}
}

// TestSpentIndex ensures the unconfirmed spent index resolves consumed
// outpoints to their spending inputs and forgets them on removal.
func TestSpentIndex(t *testing.T) {
	harness := newPoolHarness(t)
	idx := NewSpentIndex()
	harness.txPool.cfg.SpentIndex = idx

	op := harness.chain.addCoin(10e8, 50, false)
	tx := harness.createTx([]wire.OutPoint{op}, 10e8, 1, 100)
	desc := harness.addTx(t, tx, 100)
	harness.txPool.AddSpentIndex(desc, harness.chain)

	value, ok := harness.txPool.UnconfirmedSpend(op)
	if !ok {
		t.Fatal("spent index missing consumed outpoint")
	}
	if value.TxHash != *tx.Hash() || value.InputIndex != 0 {
		t.Fatal("spent index records the wrong spender")
	}
	if value.Amount != 10e8 {
		t.Fatalf("spent index amount: got %v, want 10e8", value.Amount)
	}
	wantKey, _ := addrKeyForScript(p2pkhScript(0x11))
	if value.AddrKey != wantKey {
		t.Fatal("spent index records the wrong address key")
	}

	harness.txPool.RemoveTransaction(tx, true)
	if _, ok := idx.Spend(op); ok {
		t.Fatal("spent index entry survived removal")
	}
}

// TestSpentIndexCoinImport ensures coin imports contribute nothing to the
// spent index.
func TestSpentIndexCoinImport(t *testing.T) {
	idx := NewSpentIndex()

	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Index: wire.CoinImportPrevOutIndex,
		},
		Sequence: wire.MaxTxInSequenceNum,
	})
	msgTx.AddTxOut(&wire.TxOut{Value: 10e8, PkScript: p2pkhScript(0x33)})
	desc := NewTxDesc(verusutil.NewTx(msgTx), 0, time.Now(), 10.0, 200,
		false, 1, false)

	chain := &fakeChain{utxos: make(map[wire.OutPoint]fakeCoin)}
	idx.AddUnconfirmedTx(desc, chain)
	if _, ok := idx.Spend(msgTx.TxIn[0].PreviousOutPoint); ok {
		t.Fatal("coin import produced a spent index entry")
	}
}

// TestIndexesDisabled ensures the pool's index feed methods are no-ops when
// no index is configured.
func TestIndexesDisabled(t *testing.T) {
	harness := newPoolHarness(t)
	op := harness.chain.addCoin(10e8, 50, false)
	tx := harness.createTx([]wire.OutPoint{op}, 10e8, 1, 100)
	desc := harness.addTx(t, tx, 100)

	// Neither feed nor removal may touch a nil index, and queries report
	// not found.
	harness.txPool.AddAddressIndex(desc, harness.chain)
	harness.txPool.AddSpentIndex(desc, harness.chain)

	key, _ := addrKeyForScript(p2pkhScript(0x11))
	if _, ok := harness.txPool.UnconfirmedAddressDeltas(key); ok {
		t.Fatal("disabled address index answered a query")
	}
	if _, ok := harness.txPool.UnconfirmedSpend(op); ok {
		t.Fatal("disabled spent index answered a query")
	}
	harness.txPool.RemoveTransaction(tx, true)
}
