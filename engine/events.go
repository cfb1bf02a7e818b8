package engine

import (
	"sync"
	"time"

	"github.com/haulbid/haulbid/crypto"
)

// EventKind names an observable state transition.
type EventKind string

const (
	EventShipperRegistered  EventKind = "shipper_registered"
	EventCarrierRegistered  EventKind = "carrier_registered"
	EventProfileVerified    EventKind = "profile_verified"
	EventProfileDeactivated EventKind = "profile_deactivated"
	EventJobCreated         EventKind = "job_created"
	EventBidSubmitted       EventKind = "bid_submitted"
	EventBiddingClosed      EventKind = "bidding_closed"
	EventJobAwarded         EventKind = "job_awarded"
	EventJobCompleted       EventKind = "job_completed"
	EventJobCancelled       EventKind = "job_cancelled"
	EventRevealRequested    EventKind = "reveal_requested"
	EventRevealApplied      EventKind = "reveal_applied"
	EventPaused             EventKind = "paused"
	EventUnpaused           EventKind = "unpaused"
)

// Event is one entry of the append-only log. It carries enough for an
// external indexer to reconstruct the full job history without ever reading
// encrypted payloads.
type Event struct {
	Kind    EventKind      `json:"kind"`
	JobID   JobID          `json:"job_id,omitempty"`
	Carrier crypto.Account `json:"carrier,omitempty"`
	Account crypto.Account `json:"account,omitempty"`
	Detail  string         `json:"detail,omitempty"`
	At      time.Time      `json:"at"`
}

// Sink receives events as they are emitted. Append is called inside the
// engine lock and must not call back into the engine.
type Sink interface {
	Append(Event)
}

// MemoryLog is an in-memory Sink for tests and dev mode.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryLog creates an empty in-memory event log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append records an event.
func (l *MemoryLog) Append(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Events returns a copy of the recorded events in append order.
func (l *MemoryLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
