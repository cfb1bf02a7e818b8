package services

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/engine"
	"github.com/haulbid/haulbid/fhe"
)

// SealedValue is a hex-encoded ciphertext handle as it travels over the
// wire. Clients never see plaintext for sealed fields.
type SealedValue string

// Ciphertext decodes the sealed value back into its engine representation.
func (v SealedValue) Ciphertext() (fhe.Ciphertext, error) {
	ct, err := fhe.NewCiphertextFromString(string(v))
	if err != nil {
		return nil, fmt.Errorf("decoding sealed value: %w", err)
	}
	return ct, nil
}

// NewSealedValue encodes a ciphertext for the wire.
func NewSealedValue(ct fhe.Ciphertext) SealedValue {
	return SealedValue(hex.EncodeToString(ct))
}

// RegisterRequest enrolls the signer as a shipper or carrier. The role comes
// from the URL; the body exists so there is something to sign.
type RegisterRequest struct {
	Role string `json:"role"`
}

// CreateJobRequest posts a new freight job with sealed cargo attributes.
type CreateJobRequest struct {
	Origin                 string      `json:"origin"`
	Destination            string      `json:"destination"`
	CargoType              string      `json:"cargo_type"`
	Weight                 SealedValue `json:"weight"`
	Volume                 SealedValue `json:"volume"`
	Urgent                 SealedValue `json:"urgent"`
	BiddingDurationSeconds int64       `json:"bidding_duration_seconds"`
}

// SubmitBidRequest places a sealed bid on an open job.
type SubmitBidRequest struct {
	JobID        engine.JobID `json:"job_id"`
	Price        SealedValue  `json:"price"`
	DeliveryDays SealedValue  `json:"delivery_days"`
	Reliability  SealedValue  `json:"reliability"`
	Express      SealedValue  `json:"express"`
}

// JobActionRequest drives shipper-side job transitions: close, award,
// complete, cancel. Carrier is set for award; Reason for cancel.
type JobActionRequest struct {
	JobID   engine.JobID   `json:"job_id"`
	Carrier crypto.Account `json:"carrier,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// RevealRequest asks the oracle to decrypt one sealed field.
type RevealRequest struct {
	JobID   engine.JobID      `json:"job_id"`
	Carrier crypto.Account    `json:"carrier,omitempty"`
	Kind    engine.RevealKind `json:"kind"`
}

// CompareRequest asks for an encrypted comparison of two bids on a job.
type CompareRequest struct {
	JobID    engine.JobID   `json:"job_id"`
	CarrierA crypto.Account `json:"carrier_a"`
	CarrierB crypto.Account `json:"carrier_b"`
}

// RequirementsRequest asks for an encrypted feasibility check of one bid.
type RequirementsRequest struct {
	JobID   engine.JobID   `json:"job_id"`
	Carrier crypto.Account `json:"carrier"`
}

// OracleCallback is the oracle's plaintext delivery for a decryption
// request it received earlier.
type OracleCallback struct {
	RequestID fhe.RequestID `json:"request_id"`
	Plaintext uint64        `json:"plaintext"`
}

// AdminActionRequest drives admin transitions: verify, deactivate, pause,
// unpause. Account is the target for profile actions.
type AdminActionRequest struct {
	Account crypto.Account `json:"account,omitempty"`
}

// JobResponse is the public view of a job. Sealed fields appear only as
// handles; plaintext fields carry values only after a reveal.
type JobResponse struct {
	ID             engine.JobID     `json:"id"`
	Shipper        crypto.Account   `json:"shipper"`
	Origin         string           `json:"origin"`
	Destination    string           `json:"destination"`
	CargoType      string           `json:"cargo_type"`
	Status         engine.JobStatus `json:"status"`
	BiddingEndTime time.Time        `json:"bidding_end_time"`
	Deadline       time.Time        `json:"deadline"`
	AwardedCarrier crypto.Account   `json:"awarded_carrier,omitempty"`
	FinalPrice     *uint64          `json:"final_price,omitempty"`
	Weight         *uint64          `json:"weight,omitempty"`
	Volume         *uint64          `json:"volume,omitempty"`
	Urgent         *bool            `json:"urgent,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NewJobResponse projects an engine job into its public view.
func NewJobResponse(job engine.Job) *JobResponse {
	resp := &JobResponse{
		ID:             job.ID,
		Shipper:        job.Shipper,
		Origin:         job.Origin,
		Destination:    job.Destination,
		CargoType:      job.CargoType,
		Status:         job.Status,
		BiddingEndTime: job.BiddingEndTime,
		Deadline:       job.Deadline,
		AwardedCarrier: job.AwardedCarrier,
		CreatedAt:      job.CreatedAt,
	}
	if job.PriceRevealed {
		resp.FinalPrice = &job.FinalPrice
	}
	if job.WeightRevealed {
		resp.Weight = &job.Weight
	}
	if job.VolumeRevealed {
		resp.Volume = &job.Volume
	}
	if job.UrgentRevealed {
		resp.Urgent = &job.Urgent
	}
	return resp
}

// BidResponse is the public view of a bid. The price appears only after the
// shipper revealed it.
type BidResponse struct {
	JobID       engine.JobID     `json:"job_id"`
	Carrier     crypto.Account   `json:"carrier"`
	Status      engine.BidStatus `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	Price       *uint64          `json:"price,omitempty"`
}

// NewBidResponse projects an engine bid into its public view.
func NewBidResponse(bid engine.Bid) *BidResponse {
	resp := &BidResponse{
		JobID:       bid.JobID,
		Carrier:     bid.Carrier,
		Status:      bid.Status,
		SubmittedAt: bid.SubmittedAt,
	}
	if bid.PriceRevealed {
		resp.Price = &bid.Price
	}
	return resp
}

// CreateJobResponse returns the id assigned to a new job.
type CreateJobResponse struct {
	JobID engine.JobID `json:"job_id"`
}

// RevealResponse returns the oracle request id for a reveal.
type RevealResponse struct {
	RequestID fhe.RequestID `json:"request_id"`
}

// SealedResultResponse returns an encrypted computation result as a sealed
// value the caller can later ask to reveal.
type SealedResultResponse struct {
	Result SealedValue `json:"result"`
}

// StatusResponse acknowledges a state transition.
type StatusResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse carries a machine-readable error to the client.
type ErrorResponse struct {
	Error string `json:"error"`
}
