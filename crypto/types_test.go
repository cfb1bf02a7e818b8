package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	data := []byte("award job 42 to carrier")
	sig, err := Sign(priv, data)
	require.NoError(t, err)

	assert.True(t, sig.Verify(pub, data))
	assert.False(t, sig.Verify(pub, []byte("tampered")))

	otherPub, _, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.False(t, sig.Verify(otherPub, data))
}

func TestAccountRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	acct := pub.Account()
	assert.True(t, acct.Valid())

	parsed, err := NewPublicKeyFromString(acct.String())
	require.NoError(t, err)
	assert.True(t, pub.Equal(parsed))

	derived, err := priv.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, acct, derived.Account())
}

func TestInvalidKeySizes(t *testing.T) {
	_, err := Sign(PrivateKey{1, 2, 3}, []byte("data"))
	assert.Error(t, err)

	_, err = PrivateKey{1, 2, 3}.PublicKey()
	assert.Error(t, err)

	_, err = NewPublicKeyFromString("abcd")
	assert.Error(t, err)

	assert.False(t, Account("not-hex").Valid())
}
