package services

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/haulbid/haulbid/crypto"
)

// Signed provides authentication for market requests.
// Security: Uses Ed25519 signatures. Assumes private keys are secure.
// Note: Signature covers serialized object + public key to prevent substitution.
type Signed[T any] struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
	Object    *T               `json:"object"`
}

// NewSigned creates a signed request envelope.
func NewSigned[T any](privkey crypto.PrivateKey, obj *T) (*Signed[T], error) {
	pubkey, err := privkey.PublicKey()
	if err != nil {
		return nil, err
	}

	serialized, err := SerializeRequest(obj)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(privkey, append(serialized, pubkey...))
	if err != nil {
		return nil, err
	}

	return &Signed[T]{
		PublicKey: pubkey,
		Signature: signature,
		Object:    obj,
	}, nil
}

// UnsafeObject returns the object without signature verification.
func (s *Signed[T]) UnsafeObject() *T {
	return s.Object
}

// Recover verifies the signature and returns the object and the signer's
// market account.
func (s *Signed[T]) Recover() (*T, crypto.Account, error) {
	serialized, err := SerializeRequest(s.Object)
	if err != nil {
		return nil, "", err
	}

	if !s.Signature.Verify(s.PublicKey, append(serialized, s.PublicKey...)) {
		return nil, "", errors.New("signature not valid")
	}

	return s.Object, s.PublicKey.Account(), nil
}

// SerializeRequest serializes a request body to JSON bytes.
func SerializeRequest[T any](msg *T) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeRequest deserializes a request body from a JSON reader.
func DecodeRequest[T any](reader io.Reader) (*T, error) {
	var msg T
	err := json.NewDecoder(reader).Decode(&msg)
	return &msg, err
}
