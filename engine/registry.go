package engine

import (
	"fmt"

	"github.com/haulbid/haulbid/crypto"
)

// RegisterShipper creates an unverified shipper profile for the caller.
// Roles are mutually exclusive: an account registered as a carrier cannot
// also register as a shipper.
func (e *Engine) RegisterShipper(caller crypto.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	if caller == "" {
		return fmt.Errorf("%w: empty account", ErrValidation)
	}
	if _, exists := e.carriers[caller]; exists {
		return fmt.Errorf("%w: account is already registered as a carrier", ErrValidation)
	}
	if _, exists := e.shippers[caller]; exists {
		return fmt.Errorf("%w: account is already registered as a shipper", ErrValidation)
	}

	e.shippers[caller] = &ShipperProfile{
		Account:  caller,
		Active:   true,
		JoinedAt: e.now(),
	}
	e.emit(Event{Kind: EventShipperRegistered, Account: caller})
	return nil
}

// RegisterCarrier creates an unverified carrier profile for the caller.
func (e *Engine) RegisterCarrier(caller crypto.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	if caller == "" {
		return fmt.Errorf("%w: empty account", ErrValidation)
	}
	if _, exists := e.shippers[caller]; exists {
		return fmt.Errorf("%w: account is already registered as a shipper", ErrValidation)
	}
	if _, exists := e.carriers[caller]; exists {
		return fmt.Errorf("%w: account is already registered as a carrier", ErrValidation)
	}

	e.carriers[caller] = &CarrierProfile{
		Account:  caller,
		Active:   true,
		JoinedAt: e.now(),
	}
	e.emit(Event{Kind: EventCarrierRegistered, Account: caller})
	return nil
}

// VerifyShipper marks a registered shipper as verified. Admin only.
func (e *Engine) VerifyShipper(caller, account crypto.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	if caller != e.cfg.Admin {
		return fmt.Errorf("%w: only the admin can verify profiles", ErrUnauthorized)
	}
	profile, ok := e.shippers[account]
	if !ok {
		return fmt.Errorf("%w: account is not a registered shipper", ErrValidation)
	}

	profile.Verified = true
	e.emit(Event{Kind: EventProfileVerified, Account: account, Detail: "shipper"})
	return nil
}

// VerifyCarrier marks a registered carrier as verified. Admin only.
func (e *Engine) VerifyCarrier(caller, account crypto.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	if caller != e.cfg.Admin {
		return fmt.Errorf("%w: only the admin can verify profiles", ErrUnauthorized)
	}
	profile, ok := e.carriers[account]
	if !ok {
		return fmt.Errorf("%w: account is not a registered carrier", ErrValidation)
	}

	profile.Verified = true
	e.emit(Event{Kind: EventProfileVerified, Account: account, Detail: "carrier"})
	return nil
}

// DeactivateShipper stops a shipper from future actions without erasing
// history. Admin only; the profile record remains.
func (e *Engine) DeactivateShipper(caller, account crypto.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	if caller != e.cfg.Admin {
		return fmt.Errorf("%w: only the admin can deactivate profiles", ErrUnauthorized)
	}
	profile, ok := e.shippers[account]
	if !ok {
		return fmt.Errorf("%w: account is not a registered shipper", ErrValidation)
	}

	profile.Active = false
	e.emit(Event{Kind: EventProfileDeactivated, Account: account, Detail: "shipper"})
	return nil
}

// DeactivateCarrier stops a carrier from future actions without erasing
// history. Admin only.
func (e *Engine) DeactivateCarrier(caller, account crypto.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	if caller != e.cfg.Admin {
		return fmt.Errorf("%w: only the admin can deactivate profiles", ErrUnauthorized)
	}
	profile, ok := e.carriers[account]
	if !ok {
		return fmt.Errorf("%w: account is not a registered carrier", ErrValidation)
	}

	profile.Active = false
	e.emit(Event{Kind: EventProfileDeactivated, Account: account, Detail: "carrier"})
	return nil
}

// Shipper returns a copy of a shipper profile.
func (e *Engine) Shipper(account crypto.Account) (ShipperProfile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	profile, ok := e.shippers[account]
	if !ok {
		return ShipperProfile{}, fmt.Errorf("%w: account is not a registered shipper", ErrValidation)
	}
	return *profile, nil
}

// Carrier returns a copy of a carrier profile.
func (e *Engine) Carrier(account crypto.Account) (CarrierProfile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	profile, ok := e.carriers[account]
	if !ok {
		return CarrierProfile{}, fmt.Errorf("%w: account is not a registered carrier", ErrValidation)
	}
	return *profile, nil
}
