package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/engine"
	"github.com/haulbid/haulbid/fhe"
)

// Clock is a manually advanced clock for deterministic deadline and expiry
// tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fixture time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to an absolute instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// NewAccount generates a fresh keypair and returns the derived account.
func NewAccount() (crypto.Account, crypto.PrivateKey) {
	pub, priv, _ := crypto.GenerateKeyPair()
	return pub.Account(), priv
}

// Market is a fully wired engine fixture: mock scheme and oracle, memory
// event log, fixed clock, and a verified shipper plus two verified carriers.
type Market struct {
	Engine *engine.Engine
	Scheme *fhe.MockScheme
	Oracle *fhe.MockOracle
	Clock  *Clock
	Events *engine.MemoryLog

	Admin         crypto.Account
	AdminKey      crypto.PrivateKey
	Pauser        crypto.Account
	PauserKey     crypto.PrivateKey
	OracleAccount crypto.Account
	OracleKey     crypto.PrivateKey

	Shipper    crypto.Account
	ShipperKey crypto.PrivateKey

	Carriers    []crypto.Account
	CarrierKeys []crypto.PrivateKey
}

// Option adjusts the engine configuration before the fixture is built.
type Option func(*engine.Config)

// NewMarket builds a Market fixture. The clock starts at a fixed instant so
// deadlines are reproducible.
func NewMarket(opts ...Option) *Market {
	m := &Market{
		Clock:  NewClock(time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)),
		Events: engine.NewMemoryLog(),
	}
	m.Admin, m.AdminKey = NewAccount()
	m.Pauser, m.PauserKey = NewAccount()
	m.OracleAccount, m.OracleKey = NewAccount()
	m.Shipper, m.ShipperKey = NewAccount()
	for i := 0; i < 2; i++ {
		acct, key := NewAccount()
		m.Carriers = append(m.Carriers, acct)
		m.CarrierKeys = append(m.CarrierKeys, key)
	}

	m.Scheme = fhe.NewMockScheme()
	m.Oracle = fhe.NewMockOracle(m.Scheme)

	cfg := engine.Config{
		Admin:  m.Admin,
		Pauser: m.Pauser,
		Oracle: m.OracleAccount,
		Clock:  m.Clock.Now,
		Sink:   m.Events,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	m.Engine = engine.New(cfg, m.Scheme, m.Oracle)

	mustRegister := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("testutil: building market fixture: %v", err))
		}
	}
	mustRegister(m.Engine.RegisterShipper(m.Shipper))
	mustRegister(m.Engine.VerifyShipper(m.Admin, m.Shipper))
	for _, carrier := range m.Carriers {
		mustRegister(m.Engine.RegisterCarrier(carrier))
		mustRegister(m.Engine.VerifyCarrier(m.Admin, carrier))
	}
	return m
}

// Encrypt seals a value under the fixture's scheme.
func (m *Market) Encrypt(value uint64) fhe.Ciphertext {
	ct, err := m.Scheme.Encrypt(value)
	if err != nil {
		panic(fmt.Sprintf("testutil: encrypting fixture value: %v", err))
	}
	return ct
}

// JobRequest builds a valid CreateJob request with sealed cargo attributes.
func (m *Market) JobRequest(weight, volume uint64, urgent bool, window time.Duration) engine.JobRequest {
	urgentValue := uint64(0)
	if urgent {
		urgentValue = 1
	}
	return engine.JobRequest{
		Origin:          "Rotterdam",
		Destination:     "Gdansk",
		CargoType:       "palletized",
		EncWeight:       m.Encrypt(weight),
		EncVolume:       m.Encrypt(volume),
		EncUrgent:       m.Encrypt(urgentValue),
		BiddingDuration: window,
	}
}

// BidRequest builds a valid SubmitBid request with sealed attributes.
func (m *Market) BidRequest(price, deliveryDays, reliability uint64, express bool) engine.BidRequest {
	expressValue := uint64(0)
	if express {
		expressValue = 1
	}
	return engine.BidRequest{
		EncPrice:        m.Encrypt(price),
		EncDeliveryDays: m.Encrypt(deliveryDays),
		EncReliability:  m.Encrypt(reliability),
		EncExpress:      m.Encrypt(expressValue),
	}
}

// DeliverReveal resolves one oracle request and feeds the plaintext back
// into the engine as the oracle would.
func (m *Market) DeliverReveal(id fhe.RequestID) error {
	plaintext, err := m.Oracle.Plaintext(id)
	if err != nil {
		return err
	}
	return m.Engine.OnCallback(m.OracleAccount, id, plaintext)
}

// DeliverAll resolves every queued oracle request in arrival order.
func (m *Market) DeliverAll() error {
	for _, req := range m.Oracle.Pending() {
		if err := m.DeliverReveal(req.ID); err != nil {
			return err
		}
	}
	return nil
}
