package fhe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSchemeHandlesAreOpaque(t *testing.T) {
	scheme := NewMockScheme()

	a, err := scheme.Encrypt(4800)
	require.NoError(t, err)
	b, err := scheme.Encrypt(4800)
	require.NoError(t, err)

	// Same plaintext, distinct handles.
	assert.NotEqual(t, a.Handle(), b.Handle())
	assert.Len(t, []byte(a), HandleSize)
	assert.False(t, a.IsZero())
}

func TestMockSchemeComparisons(t *testing.T) {
	scheme := NewMockScheme()

	lo, _ := scheme.Encrypt(90)
	hi, _ := scheme.Encrypt(100)

	decryptBool := func(ct Ciphertext, err error) bool {
		require.NoError(t, err)
		v, err := scheme.Decrypt(ct)
		require.NoError(t, err)
		return v != 0
	}

	assert.True(t, decryptBool(scheme.Lt(lo, hi)))
	assert.False(t, decryptBool(scheme.Lt(hi, lo)))
	assert.True(t, decryptBool(scheme.Le(lo, lo)))
	assert.True(t, decryptBool(scheme.Gt(hi, lo)))
	assert.True(t, decryptBool(scheme.Ge(hi, hi)))
	assert.False(t, decryptBool(scheme.Eq(lo, hi)))

	truth, _ := scheme.Encrypt(1)
	lie, _ := scheme.Encrypt(0)
	assert.False(t, decryptBool(scheme.And(truth, lie)))
	assert.True(t, decryptBool(scheme.Or(truth, lie)))
	assert.True(t, decryptBool(scheme.Not(lie)))
}

func TestMockSchemeUnknownOperand(t *testing.T) {
	scheme := NewMockScheme()
	known, _ := scheme.Encrypt(1)

	foreign := NewCiphertextFromBytes(make([]byte, HandleSize))
	_, err := scheme.Lt(known, foreign)
	assert.Error(t, err)

	_, err = scheme.Decrypt(foreign)
	assert.Error(t, err)
	assert.False(t, scheme.VerifyNonZero(foreign))
}

func TestMockSchemeVerifyNonZero(t *testing.T) {
	scheme := NewMockScheme()

	zero, _ := scheme.Encrypt(0)
	nonzero, _ := scheme.Encrypt(5000)

	assert.False(t, scheme.VerifyNonZero(zero))
	assert.True(t, scheme.VerifyNonZero(nonzero))
}

func TestMockOracleRoundTrip(t *testing.T) {
	scheme := NewMockScheme()
	oracle := NewMockOracle(scheme)

	ct, _ := scheme.Encrypt(4800)
	id, err := oracle.RequestDecryption(ct)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	pending := oracle.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	value, err := oracle.Plaintext(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(4800), value)

	// Consumed exactly once.
	_, err = oracle.Plaintext(id)
	assert.Error(t, err)
	assert.Empty(t, oracle.Pending())
}

func TestMockOracleRejectsZeroHandle(t *testing.T) {
	oracle := NewMockOracle(NewMockScheme())
	_, err := oracle.RequestDecryption(nil)
	assert.Error(t, err)
}
