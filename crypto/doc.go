// Package crypto provides the account identity primitives used across
// HaulBid: Ed25519 signing keys, signatures, and the hex-encoded Account
// identifier derived from a public key.
//
// Every caller of the auction engine -- shippers, carriers, the admin, the
// pauser, and the decryption oracle -- is identified by an Account. The HTTP
// layer recovers the Account from the signature on each request envelope, so
// the engine never trusts a self-declared identity.
package crypto
