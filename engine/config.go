package engine

import (
	"time"

	"github.com/haulbid/haulbid/crypto"
)

// Config carries the engine's policy constants and trust anchors.
type Config struct {
	// Admin verifies and deactivates profiles and may toggle the breaker.
	Admin crypto.Account
	// Pauser may toggle the circuit breaker alongside the admin.
	Pauser crypto.Account
	// Oracle is the only account whose callbacks are accepted.
	Oracle crypto.Account

	// MinBiddingWindow and MaxBiddingWindow bound the bidding duration of a
	// new job.
	MinBiddingWindow time.Duration
	MaxBiddingWindow time.Duration

	// DeliveryWindow separates a job's bidding deadline from its absolute
	// deadline.
	DeliveryWindow time.Duration

	// RevealTTL is the validity window of an outstanding decryption request.
	RevealTTL time.Duration

	// MaxBidsPerJob caps bids recorded against one job.
	MaxBidsPerJob int
	// MaxOpenJobsPerShipper caps a shipper's non-terminal jobs.
	MaxOpenJobsPerShipper int

	// MinReliability is the policy floor used by MeetsRequirements.
	MinReliability uint64

	// Clock supplies the engine's logical time. Defaults to time.Now.
	Clock func() time.Time

	// Sink receives the append-only event log. Optional.
	Sink Sink
}

// Defaults for policy constants, applied by New for any zero field.
const (
	DefaultMinBiddingWindow      = time.Hour
	DefaultMaxBiddingWindow      = 7 * 24 * time.Hour
	DefaultDeliveryWindow        = 30 * 24 * time.Hour
	DefaultRevealTTL             = time.Hour
	DefaultMaxBidsPerJob         = 100
	DefaultMaxOpenJobsPerShipper = 16
	DefaultMinReliability        = 70
)

func (c *Config) applyDefaults() {
	if c.MinBiddingWindow == 0 {
		c.MinBiddingWindow = DefaultMinBiddingWindow
	}
	if c.MaxBiddingWindow == 0 {
		c.MaxBiddingWindow = DefaultMaxBiddingWindow
	}
	if c.DeliveryWindow == 0 {
		c.DeliveryWindow = DefaultDeliveryWindow
	}
	if c.RevealTTL == 0 {
		c.RevealTTL = DefaultRevealTTL
	}
	if c.MaxBidsPerJob == 0 {
		c.MaxBidsPerJob = DefaultMaxBidsPerJob
	}
	if c.MaxOpenJobsPerShipper == 0 {
		c.MaxOpenJobsPerShipper = DefaultMaxOpenJobsPerShipper
	}
	if c.MinReliability == 0 {
		c.MinReliability = DefaultMinReliability
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}
