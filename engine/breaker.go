package engine

import (
	"fmt"

	"github.com/haulbid/haulbid/crypto"
)

// Pause engages the circuit breaker. While paused, every mutating operation
// except Unpause fails fast with ErrPaused. Callable by the pauser or admin.
func (e *Engine) Pause(caller crypto.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Pauser && caller != e.cfg.Admin {
		return fmt.Errorf("%w: only the pauser or admin can pause", ErrUnauthorized)
	}
	if e.paused {
		return fmt.Errorf("%w: engine is already paused", ErrInvalidState)
	}

	e.paused = true
	e.emit(Event{Kind: EventPaused, Account: caller})
	return nil
}

// Unpause disengages the circuit breaker. Callable by the pauser or admin,
// and exempt from the paused gate by definition.
func (e *Engine) Unpause(caller crypto.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Pauser && caller != e.cfg.Admin {
		return fmt.Errorf("%w: only the pauser or admin can unpause", ErrUnauthorized)
	}
	if !e.paused {
		return fmt.Errorf("%w: engine is not paused", ErrInvalidState)
	}

	e.paused = false
	e.emit(Event{Kind: EventUnpaused, Account: caller})
	return nil
}

// Paused reports whether the circuit breaker is engaged.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}
