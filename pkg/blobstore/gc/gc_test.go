package gc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/blobstore/gc"
	"github.com/lockbook/lockbook-core/pkg/blobstore/memstore"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

func TestSweep_DeletesOnlyUnreferenced(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	live := blobstore.Key{FileID: lbmodel.NewFileID(), Hmac: lbmodel.DocumentHmac{1}}
	orphan := blobstore.Key{FileID: lbmodel.NewFileID(), Hmac: lbmodel.DocumentHmac{2}}

	require.NoError(t, store.Put(ctx, live, []byte("keep")))
	require.NoError(t, store.Put(ctx, orphan, []byte("stale")))

	referenced := func(context.Context) (map[blobstore.Key]struct{}, error) {
		return map[blobstore.Key]struct{}{live: {}}, nil
	}

	stats, err := gc.Sweep(ctx, store, referenced, gc.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.BlobsScanned)
	assert.Equal(t, 1, stats.OrphansFound)
	assert.Equal(t, 1, stats.OrphansDeleted)

	_, ok, err := store.Get(ctx, live)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = store.Get(ctx, orphan)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweep_DryRunDoesNotDelete(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	orphan := blobstore.Key{FileID: lbmodel.NewFileID(), Hmac: lbmodel.DocumentHmac{3}}
	require.NoError(t, store.Put(ctx, orphan, []byte("stale")))

	referenced := func(context.Context) (map[blobstore.Key]struct{}, error) {
		return map[blobstore.Key]struct{}{}, nil
	}

	stats, err := gc.Sweep(ctx, store, referenced, gc.Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OrphansFound)
	assert.Equal(t, 0, stats.OrphansDeleted)

	_, ok, err := store.Get(ctx, orphan)
	require.NoError(t, err)
	assert.True(t, ok, "dry run must not delete")
}
