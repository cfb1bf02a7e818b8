package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/engine"
	"github.com/haulbid/haulbid/fhe"
	"github.com/haulbid/haulbid/metrics"
)

const defaultEventLimit = 256

// HTTPMarketConfig wires the market API to its collaborators.
type HTTPMarketConfig struct {
	Engine *engine.Engine
	Events EventStore
	Log    *slog.Logger

	// DevScheme, when set, exposes POST /api/v1/dev/encrypt so local
	// clients can seal values without their own encryption tooling. Never
	// set in production.
	DevScheme fhe.Scheme
}

// HTTPMarket exposes the auction engine's operations over HTTP. Every
// mutating request arrives inside a Signed envelope; the signer's account is
// the engine-level caller.
type HTTPMarket struct {
	engine *engine.Engine
	events EventStore
	log    *slog.Logger
	dev    fhe.Scheme
}

// NewHTTPMarket creates the market API handler set.
func NewHTTPMarket(cfg *HTTPMarketConfig) *HTTPMarket {
	return &HTTPMarket{
		engine: cfg.Engine,
		events: cfg.Events,
		log:    cfg.Log,
		dev:    cfg.DevScheme,
	}
}

// RegisterRoutes mounts the market API under /api/v1.
func (m *HTTPMarket) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/shippers/register", m.handleRegister("shipper"))
		r.Post("/carriers/register", m.handleRegister("carrier"))

		r.Post("/jobs", m.handleCreateJob)
		r.Get("/jobs/{job_id}", m.handleGetJob)
		r.Get("/jobs/{job_id}/bids", m.handleGetBids)
		r.Post("/jobs/{job_id}/bids", m.handleSubmitBid)
		r.Post("/jobs/{job_id}/close", m.handleCloseBidding)
		r.Post("/jobs/{job_id}/award", m.handleAwardJob)
		r.Post("/jobs/{job_id}/complete", m.handleCompleteJob)
		r.Post("/jobs/{job_id}/cancel", m.handleCancelJob)
		r.Post("/jobs/{job_id}/compare", m.handleCompareBids)
		r.Post("/jobs/{job_id}/requirements", m.handleCheckRequirements)
		r.Post("/jobs/{job_id}/reveals", m.handleRequestReveal)

		r.Post("/oracle/callback", m.handleOracleCallback)
		r.Get("/events", m.handleGetEvents)

		r.Post("/admin/shippers/{account}/verify", m.handleAdmin("verify_shipper"))
		r.Post("/admin/carriers/{account}/verify", m.handleAdmin("verify_carrier"))
		r.Post("/admin/shippers/{account}/deactivate", m.handleAdmin("deactivate_shipper"))
		r.Post("/admin/carriers/{account}/deactivate", m.handleAdmin("deactivate_carrier"))
		r.Post("/admin/pause", m.handleAdmin("pause"))
		r.Post("/admin/unpause", m.handleAdmin("unpause"))

		if m.dev != nil {
			r.Post("/dev/encrypt", m.handleDevEncrypt)
		}
	})
}

// statusForError maps the engine's error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, engine.ErrResourceExhausted):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrCallbackMismatch):
		return http.StatusGone
	case errors.Is(err, engine.ErrPaused):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (m *HTTPMarket) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.log.Error("Encoding response failed", "err", err)
	}
}

func (m *HTTPMarket) writeError(w http.ResponseWriter, op string, err error) {
	metrics.IncOperationError(op)
	status := statusForError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&ErrorResponse{Error: err.Error()})
}

func (m *HTTPMarket) ok(w http.ResponseWriter, op string, v any) {
	metrics.IncOperation(op)
	m.writeJSON(w, v)
}

func jobIDFromURL(r *http.Request) (engine.JobID, error) {
	raw := chi.URLParam(r, "job_id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad job id %q", engine.ErrValidation, raw)
	}
	return engine.JobID(id), nil
}

// recoverSigned decodes and authenticates a signed request body.
func recoverSigned[T any](r *http.Request) (*T, crypto.Account, error) {
	var signed Signed[T]
	if err := json.NewDecoder(r.Body).Decode(&signed); err != nil {
		return nil, "", fmt.Errorf("%w: decoding request: %v", engine.ErrValidation, err)
	}
	obj, account, err := signed.Recover()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", engine.ErrUnauthorized, err)
	}
	return obj, account, nil
}

func (m *HTTPMarket) handleRegister(role string) http.HandlerFunc {
	op := "register_" + role
	return func(w http.ResponseWriter, r *http.Request) {
		req, account, err := recoverSigned[RegisterRequest](r)
		if err != nil {
			m.writeError(w, op, err)
			return
		}
		if req.Role != role {
			m.writeError(w, op, fmt.Errorf("%w: role mismatch: URL says %s, body says %s", engine.ErrValidation, role, req.Role))
			return
		}

		if role == "shipper" {
			err = m.engine.RegisterShipper(account)
		} else {
			err = m.engine.RegisterCarrier(account)
		}
		if err != nil {
			m.writeError(w, op, err)
			return
		}
		m.ok(w, op, &StatusResponse{Success: true})
	}
}

func (m *HTTPMarket) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	const op = "create_job"
	req, account, err := recoverSigned[CreateJobRequest](r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}

	jobReq := engine.JobRequest{
		Origin:          req.Origin,
		Destination:     req.Destination,
		CargoType:       req.CargoType,
		BiddingDuration: time.Duration(req.BiddingDurationSeconds) * time.Second,
	}
	if jobReq.EncWeight, err = req.Weight.Ciphertext(); err == nil {
		if jobReq.EncVolume, err = req.Volume.Ciphertext(); err == nil {
			jobReq.EncUrgent, err = req.Urgent.Ciphertext()
		}
	}
	if err != nil {
		m.writeError(w, op, fmt.Errorf("%w: %v", engine.ErrValidation, err))
		return
	}

	jobID, err := m.engine.CreateJob(account, jobReq)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	m.ok(w, op, &CreateJobResponse{JobID: jobID})
}

func (m *HTTPMarket) handleGetJob(w http.ResponseWriter, r *http.Request) {
	const op = "get_job"
	jobID, err := jobIDFromURL(r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	job, err := m.engine.Job(jobID)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	m.ok(w, op, NewJobResponse(job))
}

func (m *HTTPMarket) handleGetBids(w http.ResponseWriter, r *http.Request) {
	const op = "get_bids"
	jobID, err := jobIDFromURL(r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	bids, err := m.engine.Bids(jobID)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	resp := make([]*BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, NewBidResponse(bid))
	}
	m.ok(w, op, resp)
}

func (m *HTTPMarket) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	const op = "submit_bid"
	jobID, err := jobIDFromURL(r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	req, account, err := recoverSigned[SubmitBidRequest](r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	if req.JobID != jobID {
		m.writeError(w, op, fmt.Errorf("%w: job id mismatch: URL says %d, body says %d", engine.ErrValidation, jobID, req.JobID))
		return
	}

	var bidReq engine.BidRequest
	if bidReq.EncPrice, err = req.Price.Ciphertext(); err == nil {
		if bidReq.EncDeliveryDays, err = req.DeliveryDays.Ciphertext(); err == nil {
			if bidReq.EncReliability, err = req.Reliability.Ciphertext(); err == nil {
				bidReq.EncExpress, err = req.Express.Ciphertext()
			}
		}
	}
	if err != nil {
		m.writeError(w, op, fmt.Errorf("%w: %v", engine.ErrValidation, err))
		return
	}

	if err := m.engine.SubmitBid(account, jobID, bidReq); err != nil {
		m.writeError(w, op, err)
		return
	}
	m.ok(w, op, &StatusResponse{Success: true})
}

// handleJobAction factors the shared shape of close, award, complete, and
// cancel: authenticate, check the id binding, run one engine transition.
func (m *HTTPMarket) handleJobAction(w http.ResponseWriter, r *http.Request, op string, run func(caller crypto.Account, req *JobActionRequest, jobID engine.JobID) error) {
	jobID, err := jobIDFromURL(r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	req, account, err := recoverSigned[JobActionRequest](r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	if req.JobID != jobID {
		m.writeError(w, op, fmt.Errorf("%w: job id mismatch: URL says %d, body says %d", engine.ErrValidation, jobID, req.JobID))
		return
	}
	if err := run(account, req, jobID); err != nil {
		m.writeError(w, op, err)
		return
	}
	m.ok(w, op, &StatusResponse{Success: true})
}

func (m *HTTPMarket) handleCloseBidding(w http.ResponseWriter, r *http.Request) {
	m.handleJobAction(w, r, "close_bidding", func(caller crypto.Account, _ *JobActionRequest, jobID engine.JobID) error {
		return m.engine.CloseBidding(caller, jobID)
	})
}

func (m *HTTPMarket) handleAwardJob(w http.ResponseWriter, r *http.Request) {
	m.handleJobAction(w, r, "award_job", func(caller crypto.Account, req *JobActionRequest, jobID engine.JobID) error {
		return m.engine.AwardJob(caller, jobID, req.Carrier)
	})
}

func (m *HTTPMarket) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	m.handleJobAction(w, r, "complete_job", func(caller crypto.Account, _ *JobActionRequest, jobID engine.JobID) error {
		return m.engine.CompleteJob(caller, jobID)
	})
}

func (m *HTTPMarket) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	m.handleJobAction(w, r, "cancel_job", func(caller crypto.Account, req *JobActionRequest, jobID engine.JobID) error {
		return m.engine.CancelJob(caller, jobID, req.Reason)
	})
}

func (m *HTTPMarket) handleCompareBids(w http.ResponseWriter, r *http.Request) {
	const op = "compare_bids"
	jobID, err := jobIDFromURL(r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	req, account, err := recoverSigned[CompareRequest](r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	if req.JobID != jobID {
		m.writeError(w, op, fmt.Errorf("%w: job id mismatch", engine.ErrValidation))
		return
	}

	result, err := m.engine.CompareBids(account, jobID, req.CarrierA, req.CarrierB)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	m.ok(w, op, &SealedResultResponse{Result: NewSealedValue(result)})
}

func (m *HTTPMarket) handleCheckRequirements(w http.ResponseWriter, r *http.Request) {
	const op = "check_requirements"
	jobID, err := jobIDFromURL(r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	req, account, err := recoverSigned[RequirementsRequest](r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	if req.JobID != jobID {
		m.writeError(w, op, fmt.Errorf("%w: job id mismatch", engine.ErrValidation))
		return
	}

	result, err := m.engine.CheckRequirements(account, jobID, req.Carrier)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	m.ok(w, op, &SealedResultResponse{Result: NewSealedValue(result)})
}

func (m *HTTPMarket) handleRequestReveal(w http.ResponseWriter, r *http.Request) {
	const op = "request_reveal"
	jobID, err := jobIDFromURL(r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	req, account, err := recoverSigned[RevealRequest](r)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	if req.JobID != jobID {
		m.writeError(w, op, fmt.Errorf("%w: job id mismatch", engine.ErrValidation))
		return
	}

	id, err := m.engine.RequestReveal(account, jobID, req.Carrier, req.Kind)
	if err != nil {
		m.writeError(w, op, err)
		return
	}
	m.ok(w, op, &RevealResponse{RequestID: id})
}

func (m *HTTPMarket) handleOracleCallback(w http.ResponseWriter, r *http.Request) {
	const op = "oracle_callback"
	req, account, err := recoverSigned[OracleCallback](r)
	if err != nil {
		metrics.IncRevealCallback("rejected")
		m.writeError(w, op, err)
		return
	}

	if err := m.engine.OnCallback(account, req.RequestID, req.Plaintext); err != nil {
		metrics.IncRevealCallback("rejected")
		m.writeError(w, op, err)
		return
	}
	metrics.IncRevealCallback("applied")
	m.ok(w, op, &StatusResponse{Success: true})
}

func (m *HTTPMarket) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	const op = "get_events"
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			m.writeError(w, op, fmt.Errorf("%w: bad limit %q", engine.ErrValidation, raw))
			return
		}
		limit = parsed
	}

	events, err := m.events.LoadEvents(limit)
	if err != nil {
		m.writeError(w, op, fmt.Errorf("loading events: %w", err))
		return
	}
	if events == nil {
		events = []engine.Event{}
	}
	m.ok(w, op, events)
}

func (m *HTTPMarket) handleAdmin(action string) http.HandlerFunc {
	op := "admin_" + action
	return func(w http.ResponseWriter, r *http.Request) {
		req, account, err := recoverSigned[AdminActionRequest](r)
		if err != nil {
			m.writeError(w, op, err)
			return
		}

		target := req.Account
		if urlTarget := chi.URLParam(r, "account"); urlTarget != "" && string(target) != urlTarget {
			m.writeError(w, op, fmt.Errorf("%w: account mismatch: URL says %s, body says %s", engine.ErrValidation, urlTarget, target))
			return
		}

		caller := account
		switch action {
		case "verify_shipper":
			err = m.engine.VerifyShipper(caller, target)
		case "verify_carrier":
			err = m.engine.VerifyCarrier(caller, target)
		case "deactivate_shipper":
			err = m.engine.DeactivateShipper(caller, target)
		case "deactivate_carrier":
			err = m.engine.DeactivateCarrier(caller, target)
		case "pause":
			err = m.engine.Pause(caller)
		case "unpause":
			err = m.engine.Unpause(caller)
		}
		if err != nil {
			m.writeError(w, op, err)
			return
		}
		m.ok(w, op, &StatusResponse{Success: true})
	}
}

// DevEncryptRequest seals a plaintext value through the dev endpoint.
type DevEncryptRequest struct {
	Value uint64 `json:"value"`
}

func (m *HTTPMarket) handleDevEncrypt(w http.ResponseWriter, r *http.Request) {
	const op = "dev_encrypt"
	req, err := DecodeRequest[DevEncryptRequest](r.Body)
	if err != nil {
		m.writeError(w, op, fmt.Errorf("%w: decoding request: %v", engine.ErrValidation, err))
		return
	}
	ct, err := m.dev.Encrypt(req.Value)
	if err != nil {
		m.writeError(w, op, fmt.Errorf("encrypting value: %w", err))
		return
	}
	m.ok(w, op, &SealedResultResponse{Result: NewSealedValue(ct)})
}
