// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// TxVersion is the current latest supported transaction version.
	TxVersion = 4

	// MaxTxInSequenceNum is the maximum sequence number the sequence field
	// of a transaction input can be.
	MaxTxInSequenceNum uint32 = 0xffffffff

	// MaxPrevOutIndex is the maximum index the index field of a previous
	// outpoint can be.  A coinbase input uses this index along with a zero
	// previous hash.
	MaxPrevOutIndex uint32 = 0xffffffff

	// CoinImportPrevOutIndex is the previous outpoint index used by the
	// single synthetic input of a cross-chain coin import transaction.
	// Import inputs do not reference a spendable output on this chain and
	// therefore must never be recorded in spend tracking structures.
	CoinImportPrevOutIndex uint32 = 1000000000

	// SproutNullifiersPerJoinSplit is the number of nullifiers revealed by
	// each Sprout joinsplit description.
	SproutNullifiersPerJoinSplit = 2

	// maxTxInPerMessage is the maximum number of transaction inputs that
	// a deserialized transaction is allowed to contain.
	maxTxInPerMessage = 65536

	// maxTxOutPerMessage is the maximum number of transaction outputs that
	// a deserialized transaction is allowed to contain.
	maxTxOutPerMessage = 65536

	// maxShieldedPerMessage is the maximum number of joinsplit or Sapling
	// spend descriptions a deserialized transaction is allowed to contain.
	maxShieldedPerMessage = 65536
)

// OutPoint defines a Verus data type that is used to track previous
// transaction outputs.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new Verus transaction outpoint point with the
// provided hash and index.
func NewOutPoint(hash *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{
		Hash:  *hash,
		Index: index,
	}
}

// String returns the OutPoint in the human-readable form "hash:index".
func (o OutPoint) String() string {
	// Allocate enough for hash string, colon, and 10 digits.  Although
	// at the time of writing, the number of digits can be no greater than
	// the length of the decimal representation of maxTxOutPerMessage, the
	// maximum message payload may increase in the future and this
	// optimization may go unnoticed, so allocate space for 10 decimal
	// digits, which will fit any uint32.
	buf := make([]byte, 2*chainhash.HashSize+1, 2*chainhash.HashSize+1+10)
	copy(buf, o.Hash.String())
	buf[2*chainhash.HashSize] = ':'
	buf = strconv.AppendUint(buf, uint64(o.Index), 10)
	return string(buf)
}

// TxIn defines a Verus transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// SerializeSize returns the number of bytes it would take to serialize the
// the transaction input.
func (t *TxIn) SerializeSize() int {
	// Outpoint Hash 32 bytes + Outpoint Index 4 bytes + Sequence 4 bytes +
	// serialized varint size for the length of SignatureScript +
	// SignatureScript bytes.
	return 40 + VarIntSerializeSize(uint64(len(t.SignatureScript))) +
		len(t.SignatureScript)
}

// NewTxIn returns a new Verus transaction input with the provided previous
// outpoint point and signature script with a default sequence of
// MaxTxInSequenceNum.
func NewTxIn(prevOut *OutPoint, signatureScript []byte) *TxIn {
	return &TxIn{
		PreviousOutPoint: *prevOut,
		SignatureScript:  signatureScript,
		Sequence:         MaxTxInSequenceNum,
	}
}

// TxOut defines a Verus transaction output.  In addition to the native value,
// an output may carry value denominated in the chain's reserve currency,
// which is tracked separately so reserve-aware callers can convert it.
type TxOut struct {
	Value        int64
	ReserveValue int64
	PkScript     []byte
}

// SerializeSize returns the number of bytes it would take to serialize the
// the transaction output.
func (t *TxOut) SerializeSize() int {
	// Value 8 bytes + ReserveValue 8 bytes + serialized varint size for
	// the length of PkScript + PkScript bytes.
	return 16 + VarIntSerializeSize(uint64(len(t.PkScript))) + len(t.PkScript)
}

// NewTxOut returns a new Verus transaction output with the provided
// transaction value and public key script.
func NewTxOut(value int64, pkScript []byte) *TxOut {
	return &TxOut{
		Value:    value,
		PkScript: pkScript,
	}
}

// JoinSplitDesc describes a Sprout joinsplit.  Only the fields the node needs
// for pool tracking are modeled: the revealed nullifiers, the commitment tree
// anchor the joinsplit proves against, and the transparent value entering and
// leaving the shielded pool.
type JoinSplitDesc struct {
	VPubOld    int64
	VPubNew    int64
	Anchor     chainhash.Hash
	Nullifiers []chainhash.Hash
}

// SerializeSize returns the number of bytes it would take to serialize the
// joinsplit description.
func (d *JoinSplitDesc) SerializeSize() int {
	return 16 + chainhash.HashSize +
		VarIntSerializeSize(uint64(len(d.Nullifiers))) +
		len(d.Nullifiers)*chainhash.HashSize
}

// SaplingSpendDesc describes a Sapling shielded spend: the nullifier it
// reveals and the note commitment tree anchor it proves membership against.
type SaplingSpendDesc struct {
	Anchor    chainhash.Hash
	Nullifier chainhash.Hash
}

// SerializeSize returns the number of bytes it would take to serialize the
// spend description.
func (d *SaplingSpendDesc) SerializeSize() int {
	return 2 * chainhash.HashSize
}

// MsgTx implements the Message interface and represents a Verus tx message.
// It is used to deliver transaction information in response to a getdata
// message (MsgGetData) for a given transaction.
//
// Use the AddTxIn and AddTxOut functions to build up the list of transaction
// inputs and outputs.
type MsgTx struct {
	Version       int32
	TxIn          []*TxIn
	TxOut         []*TxOut
	LockTime      uint32
	ExpiryHeight  uint32
	JoinSplits    []*JoinSplitDesc
	SaplingSpends []*SaplingSpendDesc
}

// AddTxIn adds a transaction input to the message.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds a transaction output to the message.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// TxHash generates the Hash for the transaction.
func (msg *MsgTx) TxHash() chainhash.Hash {
	// Encode the transaction and calculate double sha256 on the result.
	// Ignore the error returns since the only way the encode could fail
	// is being out of memory or due to nil pointers, both of which would
	// cause a run-time panic.
	buf := bytes.NewBuffer(make([]byte, 0, msg.SerializeSize()))
	_ = msg.Serialize(buf)
	return chainhash.DoubleHashH(buf.Bytes())
}

// SerializeSize returns the number of bytes it would take to serialize the
// the transaction.
func (msg *MsgTx) SerializeSize() int {
	// Version 4 bytes + LockTime 4 bytes + ExpiryHeight 4 bytes +
	// serialized varint size for the number of transaction inputs,
	// outputs, joinsplits, and Sapling spends.
	n := 12 + VarIntSerializeSize(uint64(len(msg.TxIn))) +
		VarIntSerializeSize(uint64(len(msg.TxOut))) +
		VarIntSerializeSize(uint64(len(msg.JoinSplits))) +
		VarIntSerializeSize(uint64(len(msg.SaplingSpends)))

	for _, txIn := range msg.TxIn {
		n += txIn.SerializeSize()
	}
	for _, txOut := range msg.TxOut {
		n += txOut.SerializeSize()
	}
	for _, js := range msg.JoinSplits {
		n += js.SerializeSize()
	}
	for _, spend := range msg.SaplingSpends {
		n += spend.SerializeSize()
	}

	return n
}

// CalculateModifiedSize computes the modified size of the transaction used in
// the priority calculation.  In order to encourage cleaning up the UTXO set,
// the priority formula does not count the constant overhead of each input nor
// up to 110 bytes of its signature script, so transactions are not penalized
// for the size of the data required to redeem their own inputs.
func (msg *MsgTx) CalculateModifiedSize(serializedSize int) int {
	modSize := serializedSize
	for _, txIn := range msg.TxIn {
		offset := 41 + min(110, len(txIn.SignatureScript))
		if modSize > offset {
			modSize -= offset
		}
	}
	return modSize
}

// ValueOut returns the total transparent native value of all outputs.
func (msg *MsgTx) ValueOut() int64 {
	var total int64
	for _, txOut := range msg.TxOut {
		total += txOut.Value
	}
	return total
}

// ReserveValueOut returns the total reserve-currency value of all outputs.
// The amount is denominated in the reserve currency and must be converted to
// native units via the currency state before it can be combined with native
// values.
func (msg *MsgTx) ReserveValueOut() int64 {
	var total int64
	for _, txOut := range msg.TxOut {
		total += txOut.ReserveValue
	}
	return total
}

// IsCoinBase determines whether or not a transaction is a coinbase.  A
// coinbase is a special transaction created by miners that has no inputs.
// This is represented in the block chain by a transaction with a single input
// that has a previous output transaction index set to the maximum value along
// with a zero hash.
func (msg *MsgTx) IsCoinBase() bool {
	if len(msg.TxIn) != 1 {
		return false
	}

	prevOut := &msg.TxIn[0].PreviousOutPoint
	return prevOut.Index == MaxPrevOutIndex && prevOut.Hash == chainhash.Hash{}
}

// IsCoinImport determines whether or not a transaction is a cross-chain coin
// import.  Import transactions carry a single synthetic input whose previous
// output index is CoinImportPrevOutIndex and do not spend an output that
// exists on this chain.
func (msg *MsgTx) IsCoinImport() bool {
	return len(msg.TxIn) == 1 &&
		msg.TxIn[0].PreviousOutPoint.Index == CoinImportPrevOutIndex
}

// IsExpired returns whether or not the transaction can no longer be mined as
// of the passed block height.  A zero expiry height means the transaction
// never expires.
func (msg *MsgTx) IsExpired(height uint32) bool {
	return msg.ExpiryHeight != 0 && msg.ExpiryHeight <= height
}

// Serialize encodes the transaction to w using a format that suitable for
// long-term storage such as a database while respecting the Version field in
// the transaction.
func (msg *MsgTx) Serialize(w io.Writer) error {
	if err := writeUint32(w, uint32(msg.Version)); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := writeTxIn(w, ti); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := writeTxOut(w, to); err != nil {
			return err
		}
	}

	if err := writeUint32(w, msg.LockTime); err != nil {
		return err
	}
	if err := writeUint32(w, msg.ExpiryHeight); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.JoinSplits))); err != nil {
		return err
	}
	for _, js := range msg.JoinSplits {
		if err := writeJoinSplit(w, js); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.SaplingSpends))); err != nil {
		return err
	}
	for _, spend := range msg.SaplingSpends {
		if err := writeHashes(w, &spend.Anchor, &spend.Nullifier); err != nil {
			return err
		}
	}

	return nil
}

// Deserialize decodes a transaction from r into the receiver using a format
// that is suitable for long-term storage such as a database.
func (msg *MsgTx) Deserialize(r io.Reader) error {
	version, err := readUint32(r)
	if err != nil {
		return err
	}
	msg.Version = int32(version)

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxTxInPerMessage {
		return fmt.Errorf("too many input transactions to fit into max "+
			"message size [count %d, max %d]", count, maxTxInPerMessage)
	}
	msg.TxIn = make([]*TxIn, 0, count)
	for i := uint64(0); i < count; i++ {
		ti := TxIn{}
		if err := readTxIn(r, &ti); err != nil {
			return err
		}
		msg.TxIn = append(msg.TxIn, &ti)
	}

	count, err = ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxTxOutPerMessage {
		return fmt.Errorf("too many output transactions to fit into max "+
			"message size [count %d, max %d]", count, maxTxOutPerMessage)
	}
	msg.TxOut = make([]*TxOut, 0, count)
	for i := uint64(0); i < count; i++ {
		to := TxOut{}
		if err := readTxOut(r, &to); err != nil {
			return err
		}
		msg.TxOut = append(msg.TxOut, &to)
	}

	if msg.LockTime, err = readUint32(r); err != nil {
		return err
	}
	if msg.ExpiryHeight, err = readUint32(r); err != nil {
		return err
	}

	count, err = ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxShieldedPerMessage {
		return fmt.Errorf("too many joinsplits to fit into max message "+
			"size [count %d, max %d]", count, maxShieldedPerMessage)
	}
	msg.JoinSplits = make([]*JoinSplitDesc, 0, count)
	for i := uint64(0); i < count; i++ {
		js := JoinSplitDesc{}
		if err := readJoinSplit(r, &js); err != nil {
			return err
		}
		msg.JoinSplits = append(msg.JoinSplits, &js)
	}

	count, err = ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxShieldedPerMessage {
		return fmt.Errorf("too many sapling spends to fit into max "+
			"message size [count %d, max %d]", count,
			maxShieldedPerMessage)
	}
	msg.SaplingSpends = make([]*SaplingSpendDesc, 0, count)
	for i := uint64(0); i < count; i++ {
		spend := SaplingSpendDesc{}
		err := readHashes(r, &spend.Anchor, &spend.Nullifier)
		if err != nil {
			return err
		}
		msg.SaplingSpends = append(msg.SaplingSpends, &spend)
	}

	return nil
}

// NewMsgTx returns a new Verus tx message that conforms to the Message
// interface.  The return instance has a default version of TxVersion and
// there are no transaction inputs or outputs.  Also, the lock time is set to
// zero to indicate the transaction is valid immediately as opposed to some
// time in future.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{
		Version: version,
		TxIn:    make([]*TxIn, 0, 8),
		TxOut:   make([]*TxOut, 0, 8),
	}
}

func writeTxIn(w io.Writer, ti *TxIn) error {
	if err := writeOutPoint(w, &ti.PreviousOutPoint); err != nil {
		return err
	}
	if err := writeVarBytes(w, ti.SignatureScript); err != nil {
		return err
	}
	return writeUint32(w, ti.Sequence)
}

func readTxIn(r io.Reader, ti *TxIn) error {
	if err := readOutPoint(r, &ti.PreviousOutPoint); err != nil {
		return err
	}
	script, err := readVarBytes(r)
	if err != nil {
		return err
	}
	ti.SignatureScript = script
	ti.Sequence, err = readUint32(r)
	return err
}

func writeTxOut(w io.Writer, to *TxOut) error {
	if err := writeUint64(w, uint64(to.Value)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(to.ReserveValue)); err != nil {
		return err
	}
	return writeVarBytes(w, to.PkScript)
}

func readTxOut(r io.Reader, to *TxOut) error {
	value, err := readUint64(r)
	if err != nil {
		return err
	}
	to.Value = int64(value)
	reserve, err := readUint64(r)
	if err != nil {
		return err
	}
	to.ReserveValue = int64(reserve)
	to.PkScript, err = readVarBytes(r)
	return err
}

func writeOutPoint(w io.Writer, op *OutPoint) error {
	if _, err := w.Write(op.Hash[:]); err != nil {
		return err
	}
	return writeUint32(w, op.Index)
}

func readOutPoint(r io.Reader, op *OutPoint) error {
	if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
		return err
	}
	var err error
	op.Index, err = readUint32(r)
	return err
}

func writeJoinSplit(w io.Writer, js *JoinSplitDesc) error {
	if err := writeUint64(w, uint64(js.VPubOld)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(js.VPubNew)); err != nil {
		return err
	}
	if _, err := w.Write(js.Anchor[:]); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(js.Nullifiers))); err != nil {
		return err
	}
	for i := range js.Nullifiers {
		if _, err := w.Write(js.Nullifiers[i][:]); err != nil {
			return err
		}
	}
	return nil
}

func readJoinSplit(r io.Reader, js *JoinSplitDesc) error {
	vpubOld, err := readUint64(r)
	if err != nil {
		return err
	}
	js.VPubOld = int64(vpubOld)
	vpubNew, err := readUint64(r)
	if err != nil {
		return err
	}
	js.VPubNew = int64(vpubNew)
	if _, err := io.ReadFull(r, js.Anchor[:]); err != nil {
		return err
	}
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxShieldedPerMessage {
		return fmt.Errorf("too many nullifiers to fit into max message "+
			"size [count %d, max %d]", count, maxShieldedPerMessage)
	}
	js.Nullifiers = make([]chainhash.Hash, count)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, js.Nullifiers[i][:]); err != nil {
			return err
		}
	}
	return nil
}

func writeHashes(w io.Writer, hashes ...*chainhash.Hash) error {
	for _, hash := range hashes {
		if _, err := w.Write(hash[:]); err != nil {
			return err
		}
	}
	return nil
}

func readHashes(r io.Reader, hashes ...*chainhash.Hash) error {
	for _, hash := range hashes {
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return err
		}
	}
	return nil
}
