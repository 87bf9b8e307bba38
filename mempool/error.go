// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

// ErrorCode identifies a kind of transaction rule violation.
type ErrorCode int

const (
	// ErrDuplicate indicates the transaction already exists in the pool.
	ErrDuplicate ErrorCode = iota

	// ErrNullifierConflict indicates one of the transaction's shielded
	// nullifiers is already spent by a pool member.
	ErrNullifierConflict

	// ErrExpired indicates the transaction's expiry height has already
	// been reached.
	ErrExpired
)

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	switch e {
	case ErrDuplicate:
		return "ErrDuplicate"
	case ErrNullifierConflict:
		return "ErrNullifierConflict"
	case ErrExpired:
		return "ErrExpired"
	}
	return "unknown ErrorCode"
}

// RuleError identifies a rule violation.  It is used to indicate that
// admission of a transaction failed due to one of the pool's rules.  The
// caller can use type assertions to determine if a failure was specifically
// due to a rule violation and access the ErrorCode field to ascertain the
// specific reason.
type RuleError struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether err is a RuleError carrying the passed code.
func IsErrorCode(err error, c ErrorCode) bool {
	rerr, ok := err.(RuleError)
	return ok && rerr.ErrorCode == c
}

// AssertError identifies an error that indicates an internal mempool index
// diverged from the primary transaction store.  It is raised by the
// consistency check via panic because recovery would only mask the underlying
// bookkeeping bug.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "mempool assertion failed: " + string(e)
}

// poolAssert panics with an AssertError when the passed condition is false.
// It is only invoked from the consistency self-check, which treats every
// violated invariant as a fatal programming error.
func poolAssert(cond bool, desc string) {
	if !cond {
		panic(AssertError(desc))
	}
}
