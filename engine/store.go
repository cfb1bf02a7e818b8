package engine

import (
	"errors"
	"fmt"

	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/fhe"
)

// EncryptedStore maps ciphertext handles to their access-control lists: the
// set of accounts permitted to request plaintext for a handle through the
// decryption oracle. The store performs no arithmetic itself.
//
// Grants are monotonic: access, once given, is never revoked while the
// owning record lives. No handle is ever created with an empty ACL.
//
// The store is not safe for concurrent use on its own; the engine lock
// covers it.
type EncryptedStore struct {
	acl map[fhe.Handle]map[crypto.Account]struct{}
}

// NewEncryptedStore creates an empty store.
func NewEncryptedStore() *EncryptedStore {
	return &EncryptedStore{
		acl: make(map[fhe.Handle]map[crypto.Account]struct{}),
	}
}

// Put registers a ciphertext with its owning account as the initial ACL
// entry and returns the handle. Re-putting a known handle only extends its
// ACL.
func (s *EncryptedStore) Put(ct fhe.Ciphertext, owner crypto.Account) (fhe.Handle, error) {
	if ct.IsZero() {
		return "", errors.New("cannot store zero handle")
	}
	if owner == "" {
		return "", errors.New("handle must have an owner")
	}

	h := ct.Handle()
	if _, ok := s.acl[h]; !ok {
		s.acl[h] = make(map[crypto.Account]struct{})
	}
	s.acl[h][owner] = struct{}{}
	return h, nil
}

// Grant adds an account to a handle's ACL.
func (s *EncryptedStore) Grant(h fhe.Handle, account crypto.Account) error {
	entries, ok := s.acl[h]
	if !ok {
		return fmt.Errorf("unknown handle %s", h)
	}
	if account == "" {
		return errors.New("cannot grant to empty account")
	}
	entries[account] = struct{}{}
	return nil
}

// IsGranted reports whether the account may request plaintext for the handle.
func (s *EncryptedStore) IsGranted(h fhe.Handle, account crypto.Account) bool {
	entries, ok := s.acl[h]
	if !ok {
		return false
	}
	_, granted := entries[account]
	return granted
}
