package fhe

import "encoding/hex"

// HandleSize is the byte length of a ciphertext handle.
const HandleSize = 32

// Ciphertext is an opaque reference to a value encrypted under the
// homomorphic scheme. It carries no plaintext information by itself and
// deliberately has no accessors beyond identity: any arithmetic goes through
// the Scheme capability set, and any decryption through the Oracle.
type Ciphertext []byte

// NewCiphertextFromBytes creates a Ciphertext from a byte slice.
// The input is copied to ensure immutability.
func NewCiphertextFromBytes(data []byte) Ciphertext {
	ct := make([]byte, len(data))
	copy(ct, data)
	return Ciphertext(ct)
}

// NewCiphertextFromString creates a Ciphertext from a hex-encoded handle.
func NewCiphertextFromString(data string) (Ciphertext, error) {
	raw, err := hex.DecodeString(data)
	if err != nil {
		return nil, err
	}
	return NewCiphertextFromBytes(raw), nil
}

// IsZero reports whether the handle is absent or all-zero, i.e. was never
// produced by a scheme. This says nothing about the encrypted value.
func (c Ciphertext) IsZero() bool {
	if len(c) == 0 {
		return true
	}
	for _, b := range c {
		if b != 0 {
			return false
		}
	}
	return true
}

// Handle returns the stable identifier for this ciphertext, used as the key
// for access-control lists and reveal bookkeeping.
func (c Ciphertext) Handle() Handle {
	return Handle(hex.EncodeToString(c))
}

// String returns the hex-encoded handle.
func (c Ciphertext) String() string {
	return hex.EncodeToString(c)
}

// Handle is the hex string form of a ciphertext identifier.
type Handle string

// RequestID correlates an asynchronous decryption request with the callback
// that answers it. The id is assigned by the oracle, never by the engine.
type RequestID string
