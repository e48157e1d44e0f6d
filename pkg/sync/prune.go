package sync

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// prune implements §4.6 step 8: a deleted file with no non-deleted
// descendant anywhere in the merged tree no longer needs its tombstone
// kept around, so its record is dropped from both layers and, if it was
// a document, its blob is reclaimed immediately rather than waiting on
// the next GC sweep.
func (e *Engine) prune(ctx context.Context) error {
	all, err := e.tree.AllMerged(ctx)
	if err != nil {
		return err
	}

	byID := make(map[lbmodel.FileID]lbmodel.SignedFile, len(all))
	for _, f := range all {
		byID[f.Metadata.ID] = f
	}

	for _, f := range all {
		if !f.Metadata.IsDeleted {
			continue
		}
		live, err := e.hasLiveDescendant(ctx, f.Metadata.ID)
		if err != nil {
			return err
		}
		if live {
			continue
		}

		if f.Metadata.Type.Tag == lbmodel.FileTypeDocument && f.Metadata.DocumentHmac != nil {
			key := blobstore.Key{FileID: f.Metadata.ID, Hmac: *f.Metadata.DocumentHmac}
			if err := e.blobs.Delete(ctx, key); err != nil {
				return err
			}
		}
		if err := e.tree.Prune(ctx, f.Metadata.ID); err != nil {
			return err
		}
	}
	return nil
}

// hasLiveDescendant reports whether id has any descendant, direct or
// transitive, that is not itself deleted.
func (e *Engine) hasLiveDescendant(ctx context.Context, id lbmodel.FileID) (bool, error) {
	children, err := e.tree.Children(ctx, e.tree, id)
	if err != nil {
		return false, err
	}
	for _, childID := range children {
		child, ok, err := e.tree.Merged(ctx, childID)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if !child.Metadata.IsDeleted {
			return true, nil
		}
		live, err := e.hasLiveDescendant(ctx, childID)
		if err != nil {
			return false, err
		}
		if live {
			return true, nil
		}
	}
	return false, nil
}
