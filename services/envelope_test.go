package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulbid/haulbid/crypto"
)

func TestSignedRoundTrip(t *testing.T) {
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	req := &RegisterRequest{Role: "shipper"}
	signed, err := NewSigned(priv, req)
	require.NoError(t, err)

	obj, account, err := signed.Recover()
	require.NoError(t, err)
	assert.Equal(t, "shipper", obj.Role)
	assert.Equal(t, pub.Account(), account)
}

func TestSignedRejectsTampering(t *testing.T) {
	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(priv, &RegisterRequest{Role: "shipper"})
	require.NoError(t, err)

	signed.Object.Role = "carrier"
	_, _, err = signed.Recover()
	assert.Error(t, err)
}

func TestSignedRejectsKeySubstitution(t *testing.T) {
	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	otherPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(priv, &RegisterRequest{Role: "shipper"})
	require.NoError(t, err)

	// Swapping in another public key must invalidate the signature even
	// though the object is untouched.
	signed.PublicKey = otherPub
	_, _, err = signed.Recover()
	assert.Error(t, err)
}
