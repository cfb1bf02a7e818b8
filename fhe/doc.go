// Package fhe defines the capability boundary between the auction engine and
// the homomorphic encryption scheme it runs on top of.
//
// The engine never sees plaintext bid values. It manipulates opaque
// Ciphertext handles through the Scheme interface, which exposes exactly the
// operations the protocol needs: encryption of public constants, encrypted
// comparisons, and encrypted boolean combinators. Turning a handle back into
// plaintext is the exclusive capability of the decryption Oracle, reached
// through an asynchronous request/callback protocol correlated by request id.
//
// MockScheme and MockOracle are in-process doubles for tests and for the
// marketd dev-oracle mode. They keep a plaintext side table keyed by handle,
// so tests can drive the full reveal protocol without an external
// cryptographic service.
package fhe
