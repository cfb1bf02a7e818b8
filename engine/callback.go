package engine

import (
	"fmt"

	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/fhe"
)

// RequestReveal issues a decryption request for one encrypted field of a job
// or bid and records the correlation entry for the eventual callback. It
// returns the oracle-assigned request id immediately; the plaintext arrives
// later through OnCallback.
//
// The caller must hold ACL on the targeted handle. Bid-price reveals are
// additionally restricted to the job's shipper. A reveal that is already
// pending or already completed for the same handle fails; an expired pending
// entry is reclaimed and the reveal can be re-requested.
func (e *Engine) RequestReveal(caller crypto.Account, jobID JobID, carrier crypto.Account, kind RevealKind) (fhe.RequestID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return "", ErrPaused
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown reveal kind %q", ErrValidation, kind)
	}
	job, ok := e.jobs[jobID]
	if !ok {
		return "", fmt.Errorf("%w: unknown job %d", ErrValidation, jobID)
	}

	var ct fhe.Ciphertext
	switch kind {
	case RevealBidPrice:
		if carrier == "" {
			return "", fmt.Errorf("%w: bid price reveal requires a carrier", ErrValidation)
		}
		bid, ok := e.bids[jobID][carrier]
		if !ok {
			return "", fmt.Errorf("%w: carrier has no bid on this job", ErrValidation)
		}
		if caller != job.Shipper {
			return "", fmt.Errorf("%w: only the job's shipper can reveal bid prices", ErrUnauthorized)
		}
		ct = bid.EncPrice
	case RevealJobPrice:
		if carrier != "" {
			return "", fmt.Errorf("%w: job price reveal is not bid-scoped", ErrValidation)
		}
		if ct = job.EncFinalPrice; ct.IsZero() {
			return "", fmt.Errorf("%w: job has no final price yet", ErrInvalidState)
		}
	case RevealUrgency:
		ct = job.EncUrgent
	case RevealWeight:
		ct = job.EncWeight
	case RevealVolume:
		ct = job.EncVolume
	}
	if kind != RevealBidPrice && kind != RevealJobPrice && carrier != "" {
		return "", fmt.Errorf("%w: %s reveal is not bid-scoped", ErrValidation, kind)
	}

	handle := ct.Handle()
	if !e.store.IsGranted(handle, caller) {
		return "", fmt.Errorf("%w: caller holds no ACL on this handle", ErrUnauthorized)
	}
	if e.revealed[handle] {
		return "", fmt.Errorf("%w: value has already been revealed", ErrValidation)
	}

	now := e.now()
	if prevID, ok := e.inflight[handle]; ok {
		prev := e.pending[prevID]
		if prev != nil && !prev.Expired(now) {
			return "", fmt.Errorf("%w: reveal already pending for this handle", ErrValidation)
		}
		// Stale entry: reclaim opportunistically and allow a re-request.
		delete(e.pending, prevID)
		delete(e.inflight, handle)
	}

	id, err := e.oracle.RequestDecryption(ct)
	if err != nil {
		return "", fmt.Errorf("requesting decryption: %w", err)
	}

	e.pending[id] = &CallbackRequest{
		ID:        id,
		JobID:     jobID,
		Carrier:   carrier,
		Kind:      kind,
		Handle:    handle,
		CreatedAt: now,
		ExpiresAt: now.Add(e.cfg.RevealTTL),
	}
	e.inflight[handle] = id

	e.emit(Event{Kind: EventRevealRequested, JobID: jobID, Carrier: carrier, Account: caller, Detail: string(kind)})
	return id, nil
}

// OnCallback applies the oracle's plaintext reply to the record the request
// was issued for, exactly once. Only the configured oracle account may call
// it; any other caller fails without touching the pending request. Unknown,
// already-consumed, and expired request ids fail with ErrCallbackMismatch.
func (e *Engine) OnCallback(caller crypto.Account, id fhe.RequestID, plaintext uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Oracle {
		return fmt.Errorf("%w: callbacks are accepted from the oracle only", ErrUnauthorized)
	}
	if e.paused {
		return ErrPaused
	}

	req, ok := e.pending[id]
	if !ok {
		return fmt.Errorf("%w: unknown or already-consumed request id", ErrCallbackMismatch)
	}
	if req.Expired(e.now()) {
		delete(e.pending, id)
		delete(e.inflight, req.Handle)
		return fmt.Errorf("%w: request has expired", ErrCallbackMismatch)
	}

	job := e.jobs[req.JobID]
	switch req.Kind {
	case RevealBidPrice:
		bid, ok := e.bids[req.JobID][req.Carrier]
		if !ok {
			// Bids are never deleted; a missing record means the
			// correlation table is corrupt.
			return fmt.Errorf("%w: no bid for correlated request", ErrCallbackMismatch)
		}
		bid.Price = plaintext
		bid.PriceRevealed = true
		if bid.Status == BidPending {
			bid.Status = BidUnderReview
		}
	case RevealJobPrice:
		job.FinalPrice = plaintext
		job.PriceRevealed = true
	case RevealUrgency:
		job.Urgent = plaintext != 0
		job.UrgentRevealed = true
	case RevealWeight:
		job.Weight = plaintext
		job.WeightRevealed = true
	case RevealVolume:
		job.Volume = plaintext
		job.VolumeRevealed = true
	}

	delete(e.pending, id)
	delete(e.inflight, req.Handle)
	e.revealed[req.Handle] = true

	e.emit(Event{Kind: EventRevealApplied, JobID: req.JobID, Carrier: req.Carrier, Detail: string(req.Kind)})
	return nil
}

// PendingReveal returns a copy of the correlation entry for a request id, if
// it is still outstanding. Expired entries are reported as absent.
func (e *Engine) PendingReveal(id fhe.RequestID) (CallbackRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.pending[id]
	if !ok || req.Expired(e.now()) {
		return CallbackRequest{}, false
	}
	return *req, true
}
