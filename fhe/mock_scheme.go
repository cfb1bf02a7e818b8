package fhe

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// MockScheme implements Scheme with a plaintext side table. Handles are
// derived with HKDF over a per-instance secret and a counter, so they are
// unlinkable to the values they reference and distinct across encryptions of
// the same value.
//
// MockScheme is intended for tests and the marketd dev-oracle mode; it is
// not a cryptographic implementation.
type MockScheme struct {
	mu      sync.Mutex
	secret  []byte
	counter uint64
	values  map[Handle]uint64
}

// NewMockScheme creates a mock scheme with a random handle-derivation secret.
func NewMockScheme() *MockScheme {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(fmt.Sprintf("fhe: reading entropy: %v", err))
	}
	return &MockScheme{
		secret: secret,
		values: make(map[Handle]uint64),
	}
}

// Encrypt records the value under a fresh opaque handle.
func (s *MockScheme) Encrypt(value uint64) (Ciphertext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encryptLocked(value)
}

func (s *MockScheme) encryptLocked(value uint64) (Ciphertext, error) {
	s.counter++
	info := []byte(fmt.Sprintf("haulbid/handle/%d", s.counter))
	kdf := hkdf.New(sha3.New256, s.secret, nil, info)

	ct := make([]byte, HandleSize)
	if _, err := io.ReadFull(kdf, ct); err != nil {
		return nil, fmt.Errorf("deriving handle: %w", err)
	}

	s.values[Ciphertext(ct).Handle()] = value
	return Ciphertext(ct), nil
}

// Decrypt returns the plaintext for a handle. Only the oracle side of the
// mock uses this; engine code never calls it.
func (s *MockScheme) Decrypt(ct Ciphertext) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[ct.Handle()]
	if !ok {
		return 0, errors.New("unknown ciphertext handle")
	}
	return value, nil
}

func (s *MockScheme) compare(a, b Ciphertext, cmp func(x, y uint64) bool) (Ciphertext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, ok := s.values[a.Handle()]
	if !ok {
		return nil, errors.New("unknown left operand")
	}
	y, ok := s.values[b.Handle()]
	if !ok {
		return nil, errors.New("unknown right operand")
	}

	var result uint64
	if cmp(x, y) {
		result = 1
	}
	return s.encryptLocked(result)
}

// Lt returns an encrypted boolean for a < b.
func (s *MockScheme) Lt(a, b Ciphertext) (Ciphertext, error) {
	return s.compare(a, b, func(x, y uint64) bool { return x < y })
}

// Le returns an encrypted boolean for a <= b.
func (s *MockScheme) Le(a, b Ciphertext) (Ciphertext, error) {
	return s.compare(a, b, func(x, y uint64) bool { return x <= y })
}

// Gt returns an encrypted boolean for a > b.
func (s *MockScheme) Gt(a, b Ciphertext) (Ciphertext, error) {
	return s.compare(a, b, func(x, y uint64) bool { return x > y })
}

// Ge returns an encrypted boolean for a >= b.
func (s *MockScheme) Ge(a, b Ciphertext) (Ciphertext, error) {
	return s.compare(a, b, func(x, y uint64) bool { return x >= y })
}

// Eq returns an encrypted boolean for a == b.
func (s *MockScheme) Eq(a, b Ciphertext) (Ciphertext, error) {
	return s.compare(a, b, func(x, y uint64) bool { return x == y })
}

// And combines two encrypted booleans.
func (s *MockScheme) And(a, b Ciphertext) (Ciphertext, error) {
	return s.compare(a, b, func(x, y uint64) bool { return x != 0 && y != 0 })
}

// Or combines two encrypted booleans.
func (s *MockScheme) Or(a, b Ciphertext) (Ciphertext, error) {
	return s.compare(a, b, func(x, y uint64) bool { return x != 0 || y != 0 })
}

// Not negates an encrypted boolean.
func (s *MockScheme) Not(a Ciphertext) (Ciphertext, error) {
	return s.compare(a, a, func(x, _ uint64) bool { return x == 0 })
}

// VerifyNonZero reports whether the handle is known and encrypts a non-zero
// value. This models the input validity proof a real scheme would check at
// submission time.
func (s *MockScheme) VerifyNonZero(ct Ciphertext) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[ct.Handle()]
	return ok && value != 0
}

// PendingDecryption is a decryption request the mock oracle has accepted but
// not yet answered.
type PendingDecryption struct {
	ID         RequestID
	Ciphertext Ciphertext
}

// MockOracle implements Oracle by queueing requests against a MockScheme.
// Tests (and the dev-oracle loop) drain the queue with Pending and resolve
// each request with Plaintext, then feed the result into the engine's
// callback entry point themselves.
type MockOracle struct {
	mu      sync.Mutex
	scheme  *MockScheme
	pending map[RequestID]Ciphertext
	order   []RequestID
}

// NewMockOracle creates an oracle that can decrypt handles of the given
// mock scheme.
func NewMockOracle(scheme *MockScheme) *MockOracle {
	return &MockOracle{
		scheme:  scheme,
		pending: make(map[RequestID]Ciphertext),
	}
}

// RequestDecryption queues a request and returns a fresh request id.
func (o *MockOracle) RequestDecryption(ct Ciphertext) (RequestID, error) {
	if ct.IsZero() {
		return "", errors.New("cannot decrypt zero handle")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	id := RequestID(uuid.NewString())
	o.pending[id] = ct
	o.order = append(o.order, id)
	return id, nil
}

// Pending returns the queued requests in arrival order.
func (o *MockOracle) Pending() []PendingDecryption {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]PendingDecryption, 0, len(o.order))
	for _, id := range o.order {
		ct, ok := o.pending[id]
		if !ok {
			continue
		}
		out = append(out, PendingDecryption{ID: id, Ciphertext: ct})
	}
	return out
}

// Plaintext resolves a queued request, removing it from the queue.
func (o *MockOracle) Plaintext(id RequestID) (uint64, error) {
	o.mu.Lock()
	ct, ok := o.pending[id]
	if ok {
		delete(o.pending, id)
	}
	o.mu.Unlock()

	if !ok {
		return 0, fmt.Errorf("no pending request %s", id)
	}
	return o.scheme.Decrypt(ct)
}
