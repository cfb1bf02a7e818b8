package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulbid/haulbid/engine"
	"github.com/haulbid/haulbid/testutil"
)

func TestSealedAuctionLifecycle(t *testing.T) {
	m := testutil.NewMarket()

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(1200, 30, false, time.Hour))
	require.NoError(t, err)
	require.Equal(t, engine.JobID(1), jobID)

	require.NoError(t, m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(5000, 4, 80, false)))
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[1], jobID, m.BidRequest(4800, 5, 75, false)))

	require.NoError(t, m.Engine.CloseBidding(m.Shipper, jobID))

	_, err = m.Engine.RequestReveal(m.Shipper, jobID, m.Carriers[0], engine.RevealBidPrice)
	require.NoError(t, err)
	_, err = m.Engine.RequestReveal(m.Shipper, jobID, m.Carriers[1], engine.RevealBidPrice)
	require.NoError(t, err)
	require.NoError(t, m.DeliverAll())

	require.NoError(t, m.Engine.AwardJob(m.Shipper, jobID, m.Carriers[1]))

	job, err := m.Engine.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, engine.JobAwarded, job.Status)
	assert.Equal(t, uint64(4800), job.FinalPrice)
	assert.True(t, job.PriceRevealed)
	assert.Equal(t, m.Carriers[1], job.AwardedCarrier)

	winner, err := m.Engine.Bid(jobID, m.Carriers[1])
	require.NoError(t, err)
	assert.Equal(t, engine.BidApproved, winner.Status)

	require.NoError(t, m.Engine.CompleteJob(m.Shipper, jobID))

	shipper, err := m.Engine.Shipper(m.Shipper)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), shipper.JobsPosted)
	assert.Equal(t, uint64(1), shipper.JobsCompleted)

	carrier, err := m.Engine.Carrier(m.Carriers[1])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), carrier.BidsPlaced)
	assert.Equal(t, uint64(1), carrier.BidsWon)
	assert.Equal(t, uint64(1), carrier.JobsCompleted)
}

func TestSubmitBidAfterBiddingClosed(t *testing.T) {
	m := testutil.NewMarket()

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(3000, 3, 90, false)))
	require.NoError(t, m.Engine.CloseBidding(m.Shipper, jobID))

	err = m.Engine.SubmitBid(m.Carriers[1], jobID, m.BidRequest(2800, 3, 90, false))
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestDuplicateBidIsRejectedWithoutStateChange(t *testing.T) {
	m := testutil.NewMarket()

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(3000, 3, 90, false)))

	err = m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(2500, 2, 95, true))
	assert.ErrorIs(t, err, engine.ErrValidation)

	bids, err := m.Engine.Bids(jobID)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, uint64(1), m.Engine.TotalBids())

	carrier, err := m.Engine.Carrier(m.Carriers[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), carrier.BidsPlaced)
}

func TestBidAtDeadlineBoundaryIsLate(t *testing.T) {
	m := testutil.NewMarket()

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)

	// Exactly at the deadline: strict inequality means the bid is late even
	// though the job itself has not expired.
	m.Clock.Advance(time.Hour)
	err = m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(3000, 3, 90, false))
	assert.ErrorIs(t, err, engine.ErrInvalidState)

	job, err := m.Engine.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, engine.JobOpen, job.Status)
}

func TestZeroPriceBidIsRejected(t *testing.T) {
	m := testutil.NewMarket()

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)

	err = m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(0, 3, 90, false))
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestCreateJobValidation(t *testing.T) {
	m := testutil.NewMarket()

	req := m.JobRequest(500, 10, false, time.Hour)
	req.Origin = ""
	_, err := m.Engine.CreateJob(m.Shipper, req)
	assert.ErrorIs(t, err, engine.ErrValidation)

	_, err = m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, 30*time.Minute))
	assert.ErrorIs(t, err, engine.ErrValidation)

	_, err = m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, 8*24*time.Hour))
	assert.ErrorIs(t, err, engine.ErrValidation)

	_, err = m.Engine.CreateJob(m.Carriers[0], m.JobRequest(500, 10, false, time.Hour))
	assert.ErrorIs(t, err, engine.ErrUnauthorized)
}

func TestStateMachineClosure(t *testing.T) {
	m := testutil.NewMarket()

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(3000, 3, 90, false)))

	// Award requires BiddingClosed.
	err = m.Engine.AwardJob(m.Shipper, jobID, m.Carriers[0])
	assert.ErrorIs(t, err, engine.ErrInvalidState)

	require.NoError(t, m.Engine.CloseBidding(m.Shipper, jobID))

	// Award requires a revealed bid price.
	err = m.Engine.AwardJob(m.Shipper, jobID, m.Carriers[0])
	assert.ErrorIs(t, err, engine.ErrInvalidState)

	id, err := m.Engine.RequestReveal(m.Shipper, jobID, m.Carriers[0], engine.RevealBidPrice)
	require.NoError(t, err)
	require.NoError(t, m.DeliverReveal(id))
	require.NoError(t, m.Engine.AwardJob(m.Shipper, jobID, m.Carriers[0]))

	// Awarded jobs cannot be cancelled.
	err = m.Engine.CancelJob(m.Shipper, jobID, "changed plans")
	assert.ErrorIs(t, err, engine.ErrInvalidState)

	require.NoError(t, m.Engine.CompleteJob(m.Shipper, jobID))
	err = m.Engine.CancelJob(m.Shipper, jobID, "too late")
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestCancelFromOpenAndClosed(t *testing.T) {
	m := testutil.NewMarket()

	openJob, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.Engine.CancelJob(m.Shipper, openJob, "no longer needed"))

	closedJob, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[0], closedJob, m.BidRequest(3000, 3, 90, false)))
	require.NoError(t, m.Engine.CloseBidding(m.Shipper, closedJob))
	require.NoError(t, m.Engine.CancelJob(m.Shipper, closedJob, "prices too high"))

	job, err := m.Engine.Job(closedJob)
	require.NoError(t, err)
	assert.Equal(t, engine.JobCancelled, job.Status)
}

func TestCloseBiddingRequiresBids(t *testing.T) {
	m := testutil.NewMarket()

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)

	err = m.Engine.CloseBidding(m.Shipper, jobID)
	assert.ErrorIs(t, err, engine.ErrInvalidState)

	err = m.Engine.CloseBidding(m.Carriers[0], jobID)
	assert.ErrorIs(t, err, engine.ErrUnauthorized)
}

func TestShipperOpenJobCap(t *testing.T) {
	m := testutil.NewMarket(func(cfg *engine.Config) {
		cfg.MaxOpenJobsPerShipper = 2
	})

	_, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
	_, err = m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)

	_, err = m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	assert.ErrorIs(t, err, engine.ErrResourceExhausted)

	// A terminal job frees capacity.
	require.NoError(t, m.Engine.CancelJob(m.Shipper, 1, "making room"))
	_, err = m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
}

func TestPerJobBidCap(t *testing.T) {
	m := testutil.NewMarket(func(cfg *engine.Config) {
		cfg.MaxBidsPerJob = 1
	})

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(3000, 3, 90, false)))

	err = m.Engine.SubmitBid(m.Carriers[1], jobID, m.BidRequest(2900, 3, 90, false))
	assert.ErrorIs(t, err, engine.ErrResourceExhausted)
}

func TestCircuitBreaker(t *testing.T) {
	m := testutil.NewMarket()

	stranger, _ := testutil.NewAccount()
	assert.ErrorIs(t, m.Engine.Pause(stranger), engine.ErrUnauthorized)

	require.NoError(t, m.Engine.Pause(m.Pauser))
	assert.True(t, m.Engine.Paused())
	assert.ErrorIs(t, m.Engine.Pause(m.Admin), engine.ErrInvalidState)

	_, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	assert.ErrorIs(t, err, engine.ErrPaused)
	assert.ErrorIs(t, m.Engine.SubmitBid(m.Carriers[0], 1, m.BidRequest(3000, 3, 90, false)), engine.ErrPaused)
	assert.ErrorIs(t, m.Engine.AwardJob(m.Shipper, 1, m.Carriers[0]), engine.ErrPaused)
	assert.ErrorIs(t, m.Engine.RegisterShipper(stranger), engine.ErrPaused)

	require.NoError(t, m.Engine.Unpause(m.Admin))
	assert.False(t, m.Engine.Paused())

	_, err = m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
}

func TestCompareBidsPrefersLowerPrice(t *testing.T) {
	m := testutil.NewMarket()

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
	// Carrier 0 is cheaper but slower and less reliable.
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(4800, 9, 60, false)))
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[1], jobID, m.BidRequest(5000, 2, 99, true)))

	result, err := m.Engine.CompareBids(m.Shipper, jobID, m.Carriers[0], m.Carriers[1])
	require.NoError(t, err)
	assert.True(t, m.Engine.IsGranted(result.Handle(), m.Shipper))

	value, err := m.Scheme.Decrypt(result)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), value)

	reverse, err := m.Engine.CompareBids(m.Shipper, jobID, m.Carriers[1], m.Carriers[0])
	require.NoError(t, err)
	value, err = m.Scheme.Decrypt(reverse)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), value)

	_, err = m.Engine.CompareBids(m.Carriers[0], jobID, m.Carriers[0], m.Carriers[1])
	assert.ErrorIs(t, err, engine.ErrUnauthorized)
}

func TestCheckRequirements(t *testing.T) {
	m := testutil.NewMarket()

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, true, time.Hour))
	require.NoError(t, err)
	// Express carrier with high reliability and a short delivery estimate.
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(4800, 5, 90, true)))
	// Non-express bid on an urgent job.
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[1], jobID, m.BidRequest(4500, 5, 90, false)))

	ok, err := m.Engine.CheckRequirements(m.Shipper, jobID, m.Carriers[0])
	require.NoError(t, err)
	value, err := m.Scheme.Decrypt(ok)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), value)

	notOK, err := m.Engine.CheckRequirements(m.Shipper, jobID, m.Carriers[1])
	require.NoError(t, err)
	value, err = m.Scheme.Decrypt(notOK)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), value)
}

func TestEventLogCoversTransitions(t *testing.T) {
	m := testutil.NewMarket()

	jobID, err := m.Engine.CreateJob(m.Shipper, m.JobRequest(500, 10, false, time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.Engine.SubmitBid(m.Carriers[0], jobID, m.BidRequest(3000, 3, 90, false)))
	require.NoError(t, m.Engine.CloseBidding(m.Shipper, jobID))

	kinds := make([]engine.EventKind, 0)
	for _, ev := range m.Events.Events() {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, engine.EventJobCreated)
	assert.Contains(t, kinds, engine.EventBidSubmitted)
	assert.Contains(t, kinds, engine.EventBiddingClosed)
}
