package engine

import "errors"

// The engine's error taxonomy. Every failing operation wraps exactly one of
// these sentinels, so callers can classify failures with errors.Is while the
// wrapped message carries the stable, named reason.
var (
	// ErrUnauthorized covers role, ownership, and oracle-identity failures.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState is returned when an operation targets a job or bid
	// that is not in the required lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is returned for malformed input: empty fields, zero
	// price, out-of-range bidding window, duplicate bids.
	ErrValidation = errors.New("validation failed")

	// ErrResourceExhausted is returned when a per-job or per-shipper cap
	// would be exceeded.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrCallbackMismatch is returned when a callback presents an unknown,
	// already-consumed, or expired request id.
	ErrCallbackMismatch = errors.New("callback mismatch")

	// ErrPaused is returned by every mutating operation except Unpause while
	// the circuit breaker is engaged.
	ErrPaused = errors.New("engine paused")
)
