package services_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/engine"
	"github.com/haulbid/haulbid/services"
	"github.com/haulbid/haulbid/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type marketServer struct {
	*testutil.Market
	store  *services.MemoryEventStore
	server *httptest.Server
}

func newMarketServer(t *testing.T) *marketServer {
	t.Helper()

	store := services.NewMemoryEventStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	m := testutil.NewMarket(func(cfg *engine.Config) {
		cfg.Sink = &services.StoreSink{Store: store, Log: log}
	})

	api := services.NewHTTPMarket(&services.HTTPMarketConfig{
		Engine:    m.Engine,
		Events:    store,
		Log:       log,
		DevScheme: m.Scheme,
	})

	router := chi.NewRouter()
	api.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		http.DefaultClient.CloseIdleConnections()
	})

	return &marketServer{Market: m, store: store, server: srv}
}

// postSigned wraps a request body in a signed envelope and posts it.
func postSigned[T any](t *testing.T, ms *marketServer, path string, key crypto.PrivateKey, obj *T) *http.Response {
	t.Helper()

	signed, err := services.NewSigned(key, obj)
	require.NoError(t, err)
	body, err := json.Marshal(signed)
	require.NoError(t, err)

	resp, err := http.Post(ms.server.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) *T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return &out
}

func (ms *marketServer) sealed(t *testing.T, value uint64) services.SealedValue {
	t.Helper()
	return services.NewSealedValue(ms.Encrypt(value))
}

func TestMarketOverHTTP(t *testing.T) {
	ms := newMarketServer(t)

	// Post a job as the pre-verified shipper.
	resp := postSigned(t, ms, "/api/v1/jobs", ms.ShipperKey, &services.CreateJobRequest{
		Origin:                 "Hamburg",
		Destination:            "Vienna",
		CargoType:              "palletized",
		Weight:                 ms.sealed(t, 800),
		Volume:                 ms.sealed(t, 20),
		Urgent:                 ms.sealed(t, 0),
		BiddingDurationSeconds: 3600,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decodeBody[services.CreateJobResponse](t, resp)
	jobID := created.JobID

	// Two sealed bids.
	bids := []struct {
		key   crypto.PrivateKey
		price uint64
	}{
		{ms.CarrierKeys[0], 5000},
		{ms.CarrierKeys[1], 4800},
	}
	for _, b := range bids {
		resp = postSigned(t, ms, fmt.Sprintf("/api/v1/jobs/%d/bids", jobID), b.key, &services.SubmitBidRequest{
			JobID:        jobID,
			Price:        ms.sealed(t, b.price),
			DeliveryDays: ms.sealed(t, 4),
			Reliability:  ms.sealed(t, 85),
			Express:      ms.sealed(t, 0),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp = postSigned(t, ms, fmt.Sprintf("/api/v1/jobs/%d/close", jobID), ms.ShipperKey, &services.JobActionRequest{JobID: jobID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Reveal both bid prices through the oracle round-trip.
	for _, carrier := range ms.Carriers {
		resp = postSigned(t, ms, fmt.Sprintf("/api/v1/jobs/%d/reveals", jobID), ms.ShipperKey, &services.RevealRequest{
			JobID:   jobID,
			Carrier: carrier,
			Kind:    engine.RevealBidPrice,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		reveal := decodeBody[services.RevealResponse](t, resp)

		plaintext, err := ms.Oracle.Plaintext(reveal.RequestID)
		require.NoError(t, err)
		resp = postSigned(t, ms, "/api/v1/oracle/callback", ms.OracleKey, &services.OracleCallback{
			RequestID: reveal.RequestID,
			Plaintext: plaintext,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp = postSigned(t, ms, fmt.Sprintf("/api/v1/jobs/%d/award", jobID), ms.ShipperKey, &services.JobActionRequest{
		JobID:   jobID,
		Carrier: ms.Carriers[1],
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The public job view now carries the awarded carrier and final price.
	getResp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%d", ms.server.URL, jobID))
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	job := decodeBody[services.JobResponse](t, getResp)
	assert.Equal(t, engine.JobAwarded, job.Status)
	assert.Equal(t, ms.Carriers[1], job.AwardedCarrier)
	require.NotNil(t, job.FinalPrice)
	assert.Equal(t, uint64(4800), *job.FinalPrice)

	// Bid listing exposes the revealed prices but never the sealed fields.
	getResp, err = http.Get(fmt.Sprintf("%s/api/v1/jobs/%d/bids", ms.server.URL, jobID))
	require.NoError(t, err)
	defer getResp.Body.Close()
	bidList := decodeBody[[]services.BidResponse](t, getResp)
	require.Len(t, *bidList, 2)
	for _, bid := range *bidList {
		require.NotNil(t, bid.Price)
	}
}

func TestRegistrationAndAdminOverHTTP(t *testing.T) {
	ms := newMarketServer(t)

	pub, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	account := pub.Account()

	resp := postSigned(t, ms, "/api/v1/shippers/register", key, &services.RegisterRequest{Role: "shipper"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Only the admin can verify.
	verifyPath := fmt.Sprintf("/api/v1/admin/shippers/%s/verify", account)
	resp = postSigned(t, ms, verifyPath, ms.PauserKey, &services.AdminActionRequest{Account: account})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = postSigned(t, ms, verifyPath, ms.AdminKey, &services.AdminActionRequest{Account: account})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A role mismatch between URL and body is rejected.
	resp = postSigned(t, ms, "/api/v1/carriers/register", key, &services.RegisterRequest{Role: "shipper"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorStatusMapping(t *testing.T) {
	ms := newMarketServer(t)

	resp := postSigned(t, ms, "/api/v1/jobs", ms.ShipperKey, &services.CreateJobRequest{
		Origin:                 "Hamburg",
		Destination:            "Vienna",
		CargoType:              "palletized",
		Weight:                 ms.sealed(t, 800),
		Volume:                 ms.sealed(t, 20),
		Urgent:                 ms.sealed(t, 0),
		BiddingDurationSeconds: 3600,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	jobID := decodeBody[services.CreateJobResponse](t, resp).JobID

	// Awarding an open job is a state conflict.
	resp = postSigned(t, ms, fmt.Sprintf("/api/v1/jobs/%d/award", jobID), ms.ShipperKey, &services.JobActionRequest{
		JobID:   jobID,
		Carrier: ms.Carriers[0],
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// A carrier cannot close someone else's job.
	resp = postSigned(t, ms, fmt.Sprintf("/api/v1/jobs/%d/close", jobID), ms.CarrierKeys[0], &services.JobActionRequest{JobID: jobID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Body/URL id mismatch.
	resp = postSigned(t, ms, fmt.Sprintf("/api/v1/jobs/%d/close", jobID), ms.ShipperKey, &services.JobActionRequest{JobID: jobID + 7})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown jobs are a validation failure.
	getResp, err := http.Get(ms.server.URL + "/api/v1/jobs/999")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, getResp.StatusCode)

	// A tampered envelope never reaches the engine.
	signed, err := services.NewSigned(ms.ShipperKey, &services.JobActionRequest{JobID: jobID})
	require.NoError(t, err)
	signed.Object.Reason = "tampered"
	body, err := json.Marshal(signed)
	require.NoError(t, err)
	tamperedResp, err := http.Post(fmt.Sprintf("%s/api/v1/jobs/%d/cancel", ms.server.URL, jobID), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer tamperedResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, tamperedResp.StatusCode)

	// Paused engine surfaces as service unavailable.
	resp = postSigned(t, ms, "/api/v1/admin/pause", ms.PauserKey, &services.AdminActionRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = postSigned(t, ms, fmt.Sprintf("/api/v1/jobs/%d/close", jobID), ms.ShipperKey, &services.JobActionRequest{JobID: jobID})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEventsEndpoint(t *testing.T) {
	ms := newMarketServer(t)

	resp := postSigned(t, ms, "/api/v1/jobs", ms.ShipperKey, &services.CreateJobRequest{
		Origin:                 "Hamburg",
		Destination:            "Vienna",
		CargoType:              "bulk",
		Weight:                 ms.sealed(t, 800),
		Volume:                 ms.sealed(t, 20),
		Urgent:                 ms.sealed(t, 0),
		BiddingDurationSeconds: 3600,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getResp, err := http.Get(ms.server.URL + "/api/v1/events?limit=10")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	events := decodeBody[[]engine.Event](t, getResp)
	require.NotEmpty(t, *events)
	last := (*events)[len(*events)-1]
	assert.Equal(t, engine.EventJobCreated, last.Kind)
}

func TestDevEncryptEndpoint(t *testing.T) {
	ms := newMarketServer(t)

	body, err := json.Marshal(&services.DevEncryptRequest{Value: 123})
	require.NoError(t, err)
	resp, err := http.Post(ms.server.URL+"/api/v1/dev/encrypt", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sealed := decodeBody[services.SealedResultResponse](t, resp)
	ct, err := sealed.Result.Ciphertext()
	require.NoError(t, err)
	value, err := ms.Scheme.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, uint64(123), value)
}

func TestMemoryEventStoreLimit(t *testing.T) {
	store := services.NewMemoryEventStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveEvent(engine.Event{Kind: engine.EventBidSubmitted, JobID: engine.JobID(i), At: time.Now()}))
	}

	events, err := store.LoadEvents(3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, engine.JobID(2), events[0].JobID)
	assert.Equal(t, engine.JobID(4), events[2].JobID)
}
