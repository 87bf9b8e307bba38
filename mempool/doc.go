// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mempool provides a policy-enforced pool of unconfirmed transactions.

A key responsibility of the mempool is to track the transactions that have
been accepted as valid but are not yet included in a block, along with every
derived view of them other subsystems need: the graph of unconfirmed spends,
the shielded nullifiers consumed per pool variant, externally applied
prioritisation adjustments, and the optional address and spent indexes.

The pool is the single owner of its entries.  All secondary structures store
transaction ids only and resolve them through the primary store, so an entry
leaving the pool for any reason automatically invalidates every derived
record referring to it.

Removal is the pool's most intricate operation since evicting a transaction
invalidates every unconfirmed transaction that spends its outputs.  The
removal engine walks that dependency graph breadth first with an explicit
worklist and retracts entries from every index in one step, keeping the
aggregate size and memory counters exact.  Block connection uses a separate
non-transitive path since a confirmed transaction's dependants remain valid.

An optional probabilistic consistency check audits the full cross-index
structure.  A violation is a bookkeeping bug, not an input error, and panics
with an AssertError.
*/
package mempool
