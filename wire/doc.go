// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package wire implements the Verus wire protocol primitives.

Only the transaction types are currently modeled: transparent inputs and
outputs (including reserve-currency output values), Sprout joinsplit
descriptions, and Sapling spend descriptions, along with their
serialization.
*/
package wire
