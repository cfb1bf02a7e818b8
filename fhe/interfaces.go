package fhe

// Scheme is the homomorphic capability set available to the engine. Every
// operation consumes and produces opaque ciphertexts; comparison and boolean
// results are encrypted booleans (an encryption of 0 or 1), never plaintext.
//
// Implementations must be safe for concurrent use.
type Scheme interface {
	// Encrypt encrypts a public constant under the scheme. Used for policy
	// constants (minimum reliability, remaining delivery days) that are
	// combined with sealed operands.
	Encrypt(value uint64) (Ciphertext, error)

	// Lt returns an encrypted boolean for a < b.
	Lt(a, b Ciphertext) (Ciphertext, error)
	// Le returns an encrypted boolean for a <= b.
	Le(a, b Ciphertext) (Ciphertext, error)
	// Gt returns an encrypted boolean for a > b.
	Gt(a, b Ciphertext) (Ciphertext, error)
	// Ge returns an encrypted boolean for a >= b.
	Ge(a, b Ciphertext) (Ciphertext, error)
	// Eq returns an encrypted boolean for a == b.
	Eq(a, b Ciphertext) (Ciphertext, error)

	// And combines two encrypted booleans.
	And(a, b Ciphertext) (Ciphertext, error)
	// Or combines two encrypted booleans.
	Or(a, b Ciphertext) (Ciphertext, error)
	// Not negates an encrypted boolean.
	Not(a Ciphertext) (Ciphertext, error)

	// VerifyNonZero checks the input validity proof attached to a submitted
	// ciphertext: it reports whether the operand provably encrypts a
	// non-zero value, without revealing the value. Unknown handles fail.
	VerifyNonZero(ct Ciphertext) bool
}

// Oracle is the external, trusted decryption service. RequestDecryption is
// fire-and-forget: it returns the oracle-assigned request id immediately and
// the plaintext arrives later as an independent callback into the engine.
type Oracle interface {
	RequestDecryption(ct Ciphertext) (RequestID, error)
}
