package engine

import (
	"fmt"

	"github.com/haulbid/haulbid/fhe"
)

// Comparator combines encrypted operands into new encrypted results. Every
// method is pure and side-effect free: no operand is decrypted, and the
// caller decides out of band whether to request a reveal of the result.
type Comparator struct {
	scheme fhe.Scheme
}

// NewComparator creates a comparator over the given scheme.
func NewComparator(scheme fhe.Scheme) *Comparator {
	return &Comparator{scheme: scheme}
}

// PriceIsLower returns an encrypted boolean for price a < price b.
func (c *Comparator) PriceIsLower(a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	return c.scheme.Lt(a, b)
}

// PriceEqual returns an encrypted boolean for price a == price b.
func (c *Comparator) PriceEqual(a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	return c.scheme.Eq(a, b)
}

// DeliveryIsFaster returns an encrypted boolean for delivery-days a < b.
func (c *Comparator) DeliveryIsFaster(a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	return c.scheme.Lt(a, b)
}

// ReliabilityIsHigher returns an encrypted boolean for reliability a > b.
func (c *Comparator) ReliabilityIsHigher(a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	return c.scheme.Gt(a, b)
}

// BidIsBetter orders two bids under a strict lexicographic policy: lower
// price wins; equal prices fall through to faster delivery; equal delivery
// falls through to higher reliability. The ordering is total and transitive,
// which the looser delivery-OR-reliability tie-break would not be.
func (c *Comparator) BidIsBetter(a, b *Bid) (fhe.Ciphertext, error) {
	priceLt, err := c.scheme.Lt(a.EncPrice, b.EncPrice)
	if err != nil {
		return nil, fmt.Errorf("comparing prices: %w", err)
	}
	priceEq, err := c.scheme.Eq(a.EncPrice, b.EncPrice)
	if err != nil {
		return nil, fmt.Errorf("comparing prices: %w", err)
	}

	deliveryLt, err := c.scheme.Lt(a.EncDeliveryDays, b.EncDeliveryDays)
	if err != nil {
		return nil, fmt.Errorf("comparing delivery: %w", err)
	}
	deliveryEq, err := c.scheme.Eq(a.EncDeliveryDays, b.EncDeliveryDays)
	if err != nil {
		return nil, fmt.Errorf("comparing delivery: %w", err)
	}

	reliabilityGt, err := c.scheme.Gt(a.EncReliability, b.EncReliability)
	if err != nil {
		return nil, fmt.Errorf("comparing reliability: %w", err)
	}

	// tie = deliveryLt OR (deliveryEq AND reliabilityGt)
	reliabilityTie, err := c.scheme.And(deliveryEq, reliabilityGt)
	if err != nil {
		return nil, err
	}
	tie, err := c.scheme.Or(deliveryLt, reliabilityTie)
	if err != nil {
		return nil, err
	}

	// better = priceLt OR (priceEq AND tie)
	equalPriceTie, err := c.scheme.And(priceEq, tie)
	if err != nil {
		return nil, err
	}
	return c.scheme.Or(priceLt, equalPriceTie)
}

// MeetsRequirements checks a bid against a job's constraints entirely in the
// encrypted domain:
//
//	deliveryDays <= remainingDays
//	AND reliability >= minReliability
//	AND (NOT job.urgent OR bid.express)
//
// remainingDays and minReliability are public policy values, encrypted here
// as constants so they can be combined with the sealed operands.
func (c *Comparator) MeetsRequirements(bid *Bid, job *Job, remainingDays, minReliability uint64) (fhe.Ciphertext, error) {
	encRemaining, err := c.scheme.Encrypt(remainingDays)
	if err != nil {
		return nil, fmt.Errorf("encrypting remaining days: %w", err)
	}
	encMinReliability, err := c.scheme.Encrypt(minReliability)
	if err != nil {
		return nil, fmt.Errorf("encrypting reliability floor: %w", err)
	}

	deliveryOK, err := c.scheme.Le(bid.EncDeliveryDays, encRemaining)
	if err != nil {
		return nil, err
	}
	reliabilityOK, err := c.scheme.Ge(bid.EncReliability, encMinReliability)
	if err != nil {
		return nil, err
	}

	notUrgent, err := c.scheme.Not(job.EncUrgent)
	if err != nil {
		return nil, err
	}
	urgencyOK, err := c.scheme.Or(notUrgent, bid.EncExpress)
	if err != nil {
		return nil, err
	}

	both, err := c.scheme.And(deliveryOK, reliabilityOK)
	if err != nil {
		return nil, err
	}
	return c.scheme.And(both, urgencyOK)
}
