package engine

import (
	"time"

	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/fhe"
)

// JobID identifies a job. IDs are allocated monotonically starting at 1.
type JobID uint64

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobOpen          JobStatus = "Open"
	JobBiddingClosed JobStatus = "BiddingClosed"
	JobAwarded       JobStatus = "Awarded"
	JobCompleted     JobStatus = "Completed"
	JobCancelled     JobStatus = "Cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled
}

// BidStatus is the evaluation state of a bid.
type BidStatus string

const (
	BidPending     BidStatus = "Pending"
	BidUnderReview BidStatus = "UnderReview"
	BidApproved    BidStatus = "Approved"
	BidRejected    BidStatus = "Rejected"
)

// RevealKind names the value a decryption request targets.
type RevealKind string

const (
	RevealJobPrice RevealKind = "job_price"
	RevealBidPrice RevealKind = "bid_price"
	RevealUrgency  RevealKind = "urgency"
	RevealWeight   RevealKind = "weight"
	RevealVolume   RevealKind = "volume"
)

// Valid reports whether the reveal kind is recognized.
func (k RevealKind) Valid() bool {
	switch k {
	case RevealJobPrice, RevealBidPrice, RevealUrgency, RevealWeight, RevealVolume:
		return true
	}
	return false
}

// BidScoped reports whether the kind targets a bid rather than a job.
func (k RevealKind) BidScoped() bool {
	return k == RevealBidPrice
}

// Job is a freight contract posted by a shipper. Route and cargo descriptor
// are public; weight, volume, and urgency stay encrypted until the shipper
// requests a reveal. Jobs are never deleted, only status-transitioned, so
// the full history remains auditable.
type Job struct {
	ID          JobID
	Shipper     crypto.Account
	Origin      string
	Destination string
	CargoType   string

	EncWeight fhe.Ciphertext
	EncVolume fhe.Ciphertext
	EncUrgent fhe.Ciphertext

	// BiddingEndTime is always strictly before Deadline.
	BiddingEndTime time.Time
	Deadline       time.Time

	Status         JobStatus
	AwardedCarrier crypto.Account

	EncFinalPrice fhe.Ciphertext
	FinalPrice    uint64
	PriceRevealed bool

	Weight         uint64
	WeightRevealed bool
	Volume         uint64
	VolumeRevealed bool
	Urgent         bool
	UrgentRevealed bool

	CreatedAt time.Time
}

// Bid is a carrier's sealed offer on a job, unique per (job, carrier). All
// four attributes stay encrypted; only the price has a revealed slot, filled
// by the oracle callback.
type Bid struct {
	JobID   JobID
	Carrier crypto.Account

	EncPrice        fhe.Ciphertext
	EncDeliveryDays fhe.Ciphertext
	EncReliability  fhe.Ciphertext
	EncExpress      fhe.Ciphertext

	SubmittedAt time.Time
	Status      BidStatus

	Price         uint64
	PriceRevealed bool
}

// ShipperProfile tracks a verified shipper's standing and counters.
type ShipperProfile struct {
	Account       crypto.Account
	Verified      bool
	Active        bool
	JobsPosted    uint64
	JobsCompleted uint64
	JoinedAt      time.Time
}

// CarrierProfile tracks a verified carrier's standing and counters.
type CarrierProfile struct {
	Account       crypto.Account
	Verified      bool
	Active        bool
	BidsPlaced    uint64
	BidsWon       uint64
	JobsCompleted uint64
	JoinedAt      time.Time
}

// CallbackRequest is the correlation record for an in-flight decryption
// request. It is consumed exactly once: either by the matching callback or,
// lazily, when a later touch finds it expired.
type CallbackRequest struct {
	ID      fhe.RequestID
	JobID   JobID
	Carrier crypto.Account // empty for job-scoped reveals
	Kind    RevealKind
	Handle  fhe.Handle

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the request's reveal window has closed.
func (r *CallbackRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
