// Package storetest is a conformance suite run against every
// blobstore.Store backend.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// Factory creates a fresh Store instance for each test.
type Factory func(t *testing.T) blobstore.Store

// Run runs the full conformance suite against factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("GetMissingReturnsNotOk", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("PutThenGetRoundTrips", func(t *testing.T) { testPutGet(t, factory) })
	t.Run("DeleteRemovesBlob", func(t *testing.T) { testDelete(t, factory) })
	t.Run("DeleteOfMissingIsNotAnError", func(t *testing.T) { testDeleteMissing(t, factory) })
	t.Run("ListKeysReturnsEveryStoredKey", func(t *testing.T) { testListKeys(t, factory) })
	t.Run("HealthcheckSucceeds", func(t *testing.T) { testHealthcheck(t, factory) })
}

func testKey(t *testing.T) blobstore.Key {
	t.Helper()
	return blobstore.Key{FileID: lbmodel.NewFileID(), Hmac: lbmodel.DocumentHmac{1, 2, 3, 4}}
}

func testGetMissing(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	_, ok, err := store.Get(t.Context(), testKey(t))
	require.NoError(t, err)
	assert.False(t, ok)
}

func testPutGet(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	key := testKey(t)
	want := []byte("ciphertext bytes")
	require.NoError(t, store.Put(t.Context(), key, want))

	got, ok, err := store.Get(t.Context(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func testDelete(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	key := testKey(t)
	require.NoError(t, store.Put(t.Context(), key, []byte("data")))
	require.NoError(t, store.Delete(t.Context(), key))

	_, ok, err := store.Get(t.Context(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDeleteMissing(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	assert.NoError(t, store.Delete(t.Context(), testKey(t)))
}

func testListKeys(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	a, b := testKey(t), testKey(t)
	require.NoError(t, store.Put(t.Context(), a, []byte("a")))
	require.NoError(t, store.Put(t.Context(), b, []byte("b")))

	keys, err := store.ListKeys(t.Context())
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func testHealthcheck(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	assert.NoError(t, store.Healthcheck(t.Context()))
}
