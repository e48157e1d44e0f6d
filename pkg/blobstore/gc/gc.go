// Package gc sweeps a blobstore.Store for blobs no longer referenced by
// any (base or local) metadata record, so superseded document versions do
// not accumulate forever.
package gc

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
)

// Stats summarizes one GC pass.
type Stats struct {
	BlobsScanned   int
	OrphansFound   int
	OrphansDeleted int
	Errors         int
}

// Options configures a GC pass.
type Options struct {
	// DryRun reports orphans without deleting them.
	DryRun bool
}

// Referenced returns every blob key still reachable from base or local
// metadata. The engine supplies this by walking both layers' document
// hmacs; gc has no knowledge of the tree itself.
type Referenced func(ctx context.Context) (map[blobstore.Key]struct{}, error)

// Sweep deletes every blob in store whose key is not present in the set
// referenced returns. Callers suppress sweeps while a sync holds the
// "don't delete" flag described in spec.md's blob store section, so blobs
// pulled mid-sync are never collected before their metadata commits.
func Sweep(ctx context.Context, store blobstore.Store, referenced Referenced, opts Options) (*Stats, error) {
	stats := &Stats{}

	live, err := referenced(ctx)
	if err != nil {
		return stats, err
	}

	keys, err := store.ListKeys(ctx)
	if err != nil {
		return stats, err
	}
	stats.BlobsScanned = len(keys)

	for _, key := range keys {
		if _, ok := live[key]; ok {
			continue
		}
		stats.OrphansFound++

		if opts.DryRun {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			stats.Errors++
			continue
		}
		stats.OrphansDeleted++
	}

	return stats, nil
}
