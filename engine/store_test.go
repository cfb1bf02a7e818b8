package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulbid/haulbid/engine"
	"github.com/haulbid/haulbid/fhe"
	"github.com/haulbid/haulbid/testutil"
)

func TestEncryptedStoreOwnership(t *testing.T) {
	scheme := fhe.NewMockScheme()
	store := engine.NewEncryptedStore()
	owner, _ := testutil.NewAccount()
	other, _ := testutil.NewAccount()

	ct, err := scheme.Encrypt(42)
	require.NoError(t, err)

	h, err := store.Put(ct, owner)
	require.NoError(t, err)
	assert.Equal(t, ct.Handle(), h)

	assert.True(t, store.IsGranted(h, owner))
	assert.False(t, store.IsGranted(h, other))
}

func TestEncryptedStoreGrantsAreMonotonic(t *testing.T) {
	scheme := fhe.NewMockScheme()
	store := engine.NewEncryptedStore()
	owner, _ := testutil.NewAccount()
	grantee, _ := testutil.NewAccount()

	ct, err := scheme.Encrypt(42)
	require.NoError(t, err)
	h, err := store.Put(ct, owner)
	require.NoError(t, err)

	require.NoError(t, store.Grant(h, grantee))
	assert.True(t, store.IsGranted(h, grantee))

	// Re-putting under a second owner extends the ACL, never shrinks it.
	second, _ := testutil.NewAccount()
	_, err = store.Put(ct, second)
	require.NoError(t, err)
	assert.True(t, store.IsGranted(h, owner))
	assert.True(t, store.IsGranted(h, grantee))
	assert.True(t, store.IsGranted(h, second))
}

func TestEncryptedStoreRejectsEmptyACL(t *testing.T) {
	scheme := fhe.NewMockScheme()
	store := engine.NewEncryptedStore()

	ct, err := scheme.Encrypt(42)
	require.NoError(t, err)

	_, err = store.Put(ct, "")
	assert.Error(t, err)

	_, err = store.Put(fhe.Ciphertext{}, "someone")
	assert.Error(t, err)

	assert.Error(t, store.Grant("unknown-handle", "someone"))
	owner, _ := testutil.NewAccount()
	h, err := store.Put(ct, owner)
	require.NoError(t, err)
	assert.Error(t, store.Grant(h, ""))
}
