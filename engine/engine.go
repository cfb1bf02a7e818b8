package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/fhe"
)

// Engine is the sealed-bid auction state machine. One instance owns all
// mutable state: jobs, bids, profiles, ACLs, and the reveal correlation
// table. All mutation goes through the exported operations; every operation
// either fully applies its state changes or none at all.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	scheme fhe.Scheme
	oracle fhe.Oracle
	cmp    *Comparator
	store  *EncryptedStore

	paused bool

	nextJobID JobID
	jobs      map[JobID]*Job
	bids      map[JobID]map[crypto.Account]*Bid

	shippers map[crypto.Account]*ShipperProfile
	carriers map[crypto.Account]*CarrierProfile

	// pending correlates oracle request ids with in-flight reveals;
	// inflight and revealed dedupe reveal requests per handle.
	pending  map[fhe.RequestID]*CallbackRequest
	inflight map[fhe.Handle]fhe.RequestID
	revealed map[fhe.Handle]bool

	totalBids uint64
}

// New creates an engine with the given policy configuration, homomorphic
// scheme, and decryption oracle. Zero config fields take defaults.
func New(cfg Config, scheme fhe.Scheme, oracle fhe.Oracle) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:      cfg,
		scheme:   scheme,
		oracle:   oracle,
		cmp:      NewComparator(scheme),
		store:    NewEncryptedStore(),
		jobs:     make(map[JobID]*Job),
		bids:     make(map[JobID]map[crypto.Account]*Bid),
		shippers: make(map[crypto.Account]*ShipperProfile),
		carriers: make(map[crypto.Account]*CarrierProfile),
		pending:  make(map[fhe.RequestID]*CallbackRequest),
		inflight: make(map[fhe.Handle]fhe.RequestID),
		revealed: make(map[fhe.Handle]bool),
	}
}

func (e *Engine) now() time.Time {
	return e.cfg.Clock()
}

// emit appends to the configured sink. Called inside the engine lock, after
// the mutation it describes.
func (e *Engine) emit(ev Event) {
	if e.cfg.Sink == nil {
		return
	}
	ev.At = e.now()
	e.cfg.Sink.Append(ev)
}

// JobRequest carries the inputs of CreateJob. Route and cargo descriptor are
// public; weight, volume, and urgency arrive as ciphertext handles produced
// by the caller's scheme.
type JobRequest struct {
	Origin          string
	Destination     string
	CargoType       string
	EncWeight       fhe.Ciphertext
	EncVolume       fhe.Ciphertext
	EncUrgent       fhe.Ciphertext
	BiddingDuration time.Duration
}

// BidRequest carries the four sealed attributes of SubmitBid.
type BidRequest struct {
	EncPrice        fhe.Ciphertext
	EncDeliveryDays fhe.Ciphertext
	EncReliability  fhe.Ciphertext
	EncExpress      fhe.Ciphertext
}

// CreateJob allocates a new job in Open for a verified, active shipper.
// The three encrypted inputs are stored with ACL granted to the shipper.
func (e *Engine) CreateJob(caller crypto.Account, req JobRequest) (JobID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return 0, ErrPaused
	}
	shipper := e.shippers[caller]
	if shipper == nil || !shipper.Verified || !shipper.Active {
		return 0, fmt.Errorf("%w: caller is not a verified active shipper", ErrUnauthorized)
	}
	if req.Origin == "" || req.Destination == "" {
		return 0, fmt.Errorf("%w: origin and destination are required", ErrValidation)
	}
	if req.BiddingDuration < e.cfg.MinBiddingWindow || req.BiddingDuration > e.cfg.MaxBiddingWindow {
		return 0, fmt.Errorf("%w: bidding duration must be within [%s, %s]",
			ErrValidation, e.cfg.MinBiddingWindow, e.cfg.MaxBiddingWindow)
	}
	if req.EncWeight.IsZero() || req.EncVolume.IsZero() || req.EncUrgent.IsZero() {
		return 0, fmt.Errorf("%w: missing encrypted cargo attribute", ErrValidation)
	}
	if e.openJobsLocked(caller) >= e.cfg.MaxOpenJobsPerShipper {
		return 0, fmt.Errorf("%w: shipper has too many open jobs", ErrResourceExhausted)
	}

	for _, ct := range []fhe.Ciphertext{req.EncWeight, req.EncVolume, req.EncUrgent} {
		if _, err := e.store.Put(ct, caller); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	now := e.now()
	e.nextJobID++
	job := &Job{
		ID:             e.nextJobID,
		Shipper:        caller,
		Origin:         req.Origin,
		Destination:    req.Destination,
		CargoType:      req.CargoType,
		EncWeight:      req.EncWeight,
		EncVolume:      req.EncVolume,
		EncUrgent:      req.EncUrgent,
		BiddingEndTime: now.Add(req.BiddingDuration),
		Deadline:       now.Add(req.BiddingDuration + e.cfg.DeliveryWindow),
		Status:         JobOpen,
		CreatedAt:      now,
	}
	e.jobs[job.ID] = job
	e.bids[job.ID] = make(map[crypto.Account]*Bid)
	shipper.JobsPosted++

	e.emit(Event{Kind: EventJobCreated, JobID: job.ID, Account: caller})
	return job.ID, nil
}

// SubmitBid records a carrier's sealed offer on an open job. The four
// encrypted fields are ACL-granted to the carrier and the job's shipper,
// and to no one else.
func (e *Engine) SubmitBid(caller crypto.Account, jobID JobID, req BidRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	carrier := e.carriers[caller]
	if carrier == nil || !carrier.Verified || !carrier.Active {
		return fmt.Errorf("%w: caller is not a verified active carrier", ErrUnauthorized)
	}
	job, ok := e.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: unknown job %d", ErrValidation, jobID)
	}
	if caller == job.Shipper {
		return fmt.Errorf("%w: shipper cannot bid on own job", ErrUnauthorized)
	}
	if job.Status != JobOpen {
		return fmt.Errorf("%w: job is not open for bidding", ErrInvalidState)
	}
	// Strict inequality: a bid arriving exactly at the deadline is late.
	if !e.now().Before(job.BiddingEndTime) {
		return fmt.Errorf("%w: bidding deadline has passed", ErrInvalidState)
	}
	if _, exists := e.bids[jobID][caller]; exists {
		return fmt.Errorf("%w: carrier already has a bid on this job", ErrValidation)
	}
	if len(e.bids[jobID]) >= e.cfg.MaxBidsPerJob {
		return fmt.Errorf("%w: job has reached its bid cap", ErrResourceExhausted)
	}
	if req.EncPrice.IsZero() || req.EncDeliveryDays.IsZero() ||
		req.EncReliability.IsZero() || req.EncExpress.IsZero() {
		return fmt.Errorf("%w: missing encrypted bid attribute", ErrValidation)
	}
	if !e.scheme.VerifyNonZero(req.EncPrice) {
		return fmt.Errorf("%w: bid price must be non-zero", ErrValidation)
	}

	for _, ct := range []fhe.Ciphertext{req.EncPrice, req.EncDeliveryDays, req.EncReliability, req.EncExpress} {
		if _, err := e.store.Put(ct, caller); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err := e.store.Grant(ct.Handle(), job.Shipper); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	e.bids[jobID][caller] = &Bid{
		JobID:           jobID,
		Carrier:         caller,
		EncPrice:        req.EncPrice,
		EncDeliveryDays: req.EncDeliveryDays,
		EncReliability:  req.EncReliability,
		EncExpress:      req.EncExpress,
		SubmittedAt:     e.now(),
		Status:          BidPending,
	}
	e.totalBids++
	carrier.BidsPlaced++

	e.emit(Event{Kind: EventBidSubmitted, JobID: jobID, Carrier: caller})
	return nil
}

// CloseBidding transitions an open job with at least one bid to
// BiddingClosed. Only the job's shipper may close it.
func (e *Engine) CloseBidding(caller crypto.Account, jobID JobID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	job, err := e.ownedJobLocked(caller, jobID)
	if err != nil {
		return err
	}
	if job.Status != JobOpen {
		return fmt.Errorf("%w: job is not open", ErrInvalidState)
	}
	if len(e.bids[jobID]) == 0 {
		return fmt.Errorf("%w: cannot close bidding with zero bids", ErrInvalidState)
	}

	job.Status = JobBiddingClosed
	e.emit(Event{Kind: EventBiddingClosed, JobID: jobID, Account: caller})
	return nil
}

// AwardJob transitions a closed job to Awarded. The named carrier's bid must
// exist and have its price already revealed; the bid's encrypted and
// revealed price are copied onto the job as its final price.
func (e *Engine) AwardJob(caller crypto.Account, jobID JobID, carrier crypto.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	job, err := e.ownedJobLocked(caller, jobID)
	if err != nil {
		return err
	}
	if job.Status != JobBiddingClosed {
		return fmt.Errorf("%w: job is not in bidding-closed state", ErrInvalidState)
	}
	bid, ok := e.bids[jobID][carrier]
	if !ok {
		return fmt.Errorf("%w: carrier has no bid on this job", ErrValidation)
	}
	if !bid.PriceRevealed {
		return fmt.Errorf("%w: bid price has not been revealed", ErrInvalidState)
	}

	job.Status = JobAwarded
	job.AwardedCarrier = carrier
	job.EncFinalPrice = bid.EncPrice
	job.FinalPrice = bid.Price
	job.PriceRevealed = true
	bid.Status = BidApproved
	if profile := e.carriers[carrier]; profile != nil {
		profile.BidsWon++
	}

	e.emit(Event{Kind: EventJobAwarded, JobID: jobID, Carrier: carrier, Account: caller})
	return nil
}

// CompleteJob transitions an awarded job to Completed and credits completion
// counters for both parties.
func (e *Engine) CompleteJob(caller crypto.Account, jobID JobID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	job, err := e.ownedJobLocked(caller, jobID)
	if err != nil {
		return err
	}
	if job.Status != JobAwarded {
		return fmt.Errorf("%w: job has not been awarded", ErrInvalidState)
	}

	job.Status = JobCompleted
	if profile := e.shippers[job.Shipper]; profile != nil {
		profile.JobsCompleted++
	}
	if profile := e.carriers[job.AwardedCarrier]; profile != nil {
		profile.JobsCompleted++
	}

	e.emit(Event{Kind: EventJobCompleted, JobID: jobID, Carrier: job.AwardedCarrier, Account: caller})
	return nil
}

// CancelJob transitions an Open or BiddingClosed job to Cancelled. Awarded
// and completed jobs cannot be cancelled.
func (e *Engine) CancelJob(caller crypto.Account, jobID JobID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}
	job, err := e.ownedJobLocked(caller, jobID)
	if err != nil {
		return err
	}
	if job.Status != JobOpen && job.Status != JobBiddingClosed {
		return fmt.Errorf("%w: only open or bidding-closed jobs can be cancelled", ErrInvalidState)
	}

	job.Status = JobCancelled
	e.emit(Event{Kind: EventJobCancelled, JobID: jobID, Account: caller, Detail: reason})
	return nil
}

// CompareBids runs the encrypted ordering policy over two bids on a job and
// returns the encrypted result, ACL-granted to the shipper. Only the job's
// shipper may compare bids.
func (e *Engine) CompareBids(caller crypto.Account, jobID JobID, a, b crypto.Account) (fhe.Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil, ErrPaused
	}
	job, err := e.ownedJobLocked(caller, jobID)
	if err != nil {
		return nil, err
	}
	bidA, ok := e.bids[jobID][a]
	if !ok {
		return nil, fmt.Errorf("%w: carrier %s has no bid on this job", ErrValidation, a)
	}
	bidB, ok := e.bids[jobID][b]
	if !ok {
		return nil, fmt.Errorf("%w: carrier %s has no bid on this job", ErrValidation, b)
	}

	result, err := e.cmp.BidIsBetter(bidA, bidB)
	if err != nil {
		return nil, fmt.Errorf("comparing bids: %w", err)
	}
	if _, err := e.store.Put(result, job.Shipper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return result, nil
}

// CheckRequirements evaluates whether a bid meets the job's delivery,
// reliability, and urgency constraints, entirely in the encrypted domain.
// The encrypted result is ACL-granted to the shipper.
func (e *Engine) CheckRequirements(caller crypto.Account, jobID JobID, carrier crypto.Account) (fhe.Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil, ErrPaused
	}
	job, err := e.ownedJobLocked(caller, jobID)
	if err != nil {
		return nil, err
	}
	bid, ok := e.bids[jobID][carrier]
	if !ok {
		return nil, fmt.Errorf("%w: carrier has no bid on this job", ErrValidation)
	}

	remaining := job.Deadline.Sub(e.now())
	remainingDays := uint64(0)
	if remaining > 0 {
		remainingDays = uint64((remaining + 24*time.Hour - 1) / (24 * time.Hour))
	}

	result, err := e.cmp.MeetsRequirements(bid, job, remainingDays, e.cfg.MinReliability)
	if err != nil {
		return nil, fmt.Errorf("checking requirements: %w", err)
	}
	if _, err := e.store.Put(result, job.Shipper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return result, nil
}

// ownedJobLocked resolves a job and enforces shipper ownership.
func (e *Engine) ownedJobLocked(caller crypto.Account, jobID JobID) (*Job, error) {
	job, ok := e.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown job %d", ErrValidation, jobID)
	}
	if job.Shipper != caller {
		return nil, fmt.Errorf("%w: caller is not the job's shipper", ErrUnauthorized)
	}
	return job, nil
}

func (e *Engine) openJobsLocked(shipper crypto.Account) int {
	n := 0
	for _, job := range e.jobs {
		if job.Shipper == shipper && !job.Status.Terminal() {
			n++
		}
	}
	return n
}

// Job returns a copy of the job record.
func (e *Engine) Job(jobID JobID) (Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, ok := e.jobs[jobID]
	if !ok {
		return Job{}, fmt.Errorf("%w: unknown job %d", ErrValidation, jobID)
	}
	return *job, nil
}

// Bids returns copies of all bids on a job, ordered by carrier account.
func (e *Engine) Bids(jobID JobID) ([]Bid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	byCarrier, ok := e.bids[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown job %d", ErrValidation, jobID)
	}

	out := make([]Bid, 0, len(byCarrier))
	for _, bid := range byCarrier {
		out = append(out, *bid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Carrier < out[j].Carrier })
	return out, nil
}

// Bid returns a copy of one carrier's bid on a job.
func (e *Engine) Bid(jobID JobID, carrier crypto.Account) (Bid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bid, ok := e.bids[jobID][carrier]
	if !ok {
		return Bid{}, fmt.Errorf("%w: carrier has no bid on job %d", ErrValidation, jobID)
	}
	return *bid, nil
}

// IsGranted reports whether an account holds ACL on a handle.
func (e *Engine) IsGranted(h fhe.Handle, account crypto.Account) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.IsGranted(h, account)
}

// TotalBids returns the global bid counter.
func (e *Engine) TotalBids() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalBids
}
