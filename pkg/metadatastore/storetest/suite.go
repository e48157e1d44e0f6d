// Package storetest is a conformance suite run against every
// metadatastore.Store implementation, so memory and badger are held to
// exactly the same contract.
package storetest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore"
)

// Factory creates a fresh Store instance for each test. Implementations
// that need a filesystem path should use t.TempDir() and register cleanup
// with t.Cleanup().
type Factory func(t *testing.T) metadatastore.Store

// Run runs the full conformance suite against factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("GetMissingReturnsNotOk", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("PutThenGetRoundTrips", func(t *testing.T) { testPutGet(t, factory) })
	t.Run("PutOverwritesExisting", func(t *testing.T) { testOverwrite(t, factory) })
	t.Run("DeleteRemovesRecord", func(t *testing.T) { testDelete(t, factory) })
	t.Run("DeleteOfMissingIsNotAnError", func(t *testing.T) { testDeleteMissing(t, factory) })
	t.Run("AllReturnsEveryRecord", func(t *testing.T) { testAll(t, factory) })
	t.Run("LenTracksRecordCount", func(t *testing.T) { testLen(t, factory) })
	t.Run("TransactionCommitsOnSuccess", func(t *testing.T) { testTransactionCommit(t, factory) })
	t.Run("TransactionRollsBackOnError", func(t *testing.T) { testTransactionRollback(t, factory) })
	t.Run("HealthcheckSucceeds", func(t *testing.T) { testHealthcheck(t, factory) })
}

func newTestFile(t *testing.T) lbmodel.SignedFile {
	t.Helper()
	return lbmodel.SignedFile{
		Metadata: lbmodel.FileMetadata{
			ID:           lbmodel.NewFileID(),
			Type:         lbmodel.Document(),
			Parent:       lbmodel.NewFileID(),
			Name:         lbmodel.SecretFileName{Hmac: []byte{1, 2, 3}},
			Owner:        lbmodel.Owner{PublicKey: []byte{9, 9, 9}},
			LastModified: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

func testGetMissing(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	_, ok, err := store.Get(t.Context(), lbmodel.NewFileID())
	require.NoError(t, err)
	assert.False(t, ok)
}

func testPutGet(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	file := newTestFile(t)
	require.NoError(t, store.Put(t.Context(), file))

	got, ok, err := store.Get(t.Context(), file.Metadata.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, file.Metadata.Equal(got.Metadata))
}

func testOverwrite(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	file := newTestFile(t)
	require.NoError(t, store.Put(t.Context(), file))

	file.Metadata.IsDeleted = true
	require.NoError(t, store.Put(t.Context(), file))

	got, ok, err := store.Get(t.Context(), file.Metadata.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Metadata.IsDeleted)
}

func testDelete(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	file := newTestFile(t)
	require.NoError(t, store.Put(t.Context(), file))
	require.NoError(t, store.Delete(t.Context(), file.Metadata.ID))

	_, ok, err := store.Get(t.Context(), file.Metadata.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDeleteMissing(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	assert.NoError(t, store.Delete(t.Context(), lbmodel.NewFileID()))
}

func testAll(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	a, b := newTestFile(t), newTestFile(t)
	require.NoError(t, store.Put(t.Context(), a))
	require.NoError(t, store.Put(t.Context(), b))

	all, err := store.All(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testLen(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	n, err := store.Len(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, store.Put(t.Context(), newTestFile(t)))

	n, err = store.Len(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testTransactionCommit(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	file := newTestFile(t)
	err := store.WithTransaction(t.Context(), func(tx metadatastore.Layer) error {
		return tx.Put(t.Context(), file)
	})
	require.NoError(t, err)

	_, ok, err := store.Get(t.Context(), file.Metadata.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func testTransactionRollback(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	committed := newTestFile(t)
	require.NoError(t, store.Put(t.Context(), committed))

	aborted := newTestFile(t)
	boom := errors.New("boom")
	err := store.WithTransaction(t.Context(), func(tx metadatastore.Layer) error {
		if putErr := tx.Put(t.Context(), aborted); putErr != nil {
			return putErr
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := store.Get(t.Context(), aborted.Metadata.ID)
	require.NoError(t, err)
	assert.False(t, ok, "aborted transaction must not persist its writes")

	_, ok, err = store.Get(t.Context(), committed.Metadata.ID)
	require.NoError(t, err)
	assert.True(t, ok, "rollback must not undo writes made before the transaction")
}

func testHealthcheck(t *testing.T, factory Factory) {
	store := factory(t)
	defer store.Close()

	assert.NoError(t, store.Healthcheck(t.Context()))
}
