// Package engine implements the confidential sealed-bid auction engine for
// freight contracts.
//
// The engine is a single mutex-guarded state machine. Bid prices and cargo
// attributes enter as opaque ciphertext handles (package fhe) and stay
// encrypted end to end; the engine enforces per-handle access-control lists,
// runs comparisons over encrypted operands through the Comparator, and
// coordinates the asynchronous oracle reveal protocol that turns individual
// handles into plaintext under a controlled, at-most-once callback.
//
// Jobs move through Open -> BiddingClosed -> Awarded -> Completed, with
// Cancelled reachable from Open and BiddingClosed. Every operation is atomic:
// all preconditions are checked before the first write, so a failing call
// leaves state untouched. The clock is injected, which keeps deadline and
// expiry logic deterministic under test.
package engine
