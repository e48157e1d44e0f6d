package sync

import (
	"context"
	"errors"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/syncclient"
)

// pushPrePull sends every local-only diff to the server before pulling,
// per §4.6 step 1. It reports whether the server asked for a re-pull
// before accepting (old-version-required), in which case the caller
// pulls and retries rather than treating it as a hard failure.
func (e *Engine) pushPrePull(ctx context.Context) (retryNeeded bool, err error) {
	localFiles, err := e.tree.AllLocal(ctx)
	if err != nil {
		return false, err
	}
	return e.pushDiffs(ctx, localFiles)
}

// pushPostMerge sends the diffs merge produced that still need pushing:
// locally re-renamed suffixes, conflict documents, and any merge output
// that only changed base as far as the server already knows but not as
// far as this client's just-authored records go.
func (e *Engine) pushPostMerge(ctx context.Context, plan *mergePlan) error {
	_, err := e.pushDiffs(ctx, plan.pushAfterMerge)
	return err
}

// pushDiffs partitions files into document-content changes (sent via
// ChangeDoc, which carries the new bytes alongside the metadata diff)
// and everything else (batched into one Upsert call), diffing each
// against its base counterpart.
func (e *Engine) pushDiffs(ctx context.Context, files []lbmodel.SignedFile) (retryNeeded bool, err error) {
	if len(files) == 0 {
		return false, nil
	}

	var metadataOnly []lbmodel.FileDiff
	for _, f := range files {
		base, hasBase, err := e.tree.Base(ctx, f.Metadata.ID)
		if err != nil {
			return false, err
		}
		var diff lbmodel.FileDiff
		if hasBase {
			diff = lbmodel.EditFileDiff(base, f)
		} else {
			diff = lbmodel.NewFileDiff(f)
		}

		if f.Metadata.Type.Tag == lbmodel.FileTypeDocument && changedDocument(diff) {
			content, ok, err := e.blobs.Get(ctx, blobstore.Key{FileID: f.Metadata.ID, Hmac: *f.Metadata.DocumentHmac})
			if err != nil {
				return false, err
			}
			if !ok {
				// Content was never written locally (e.g. metadata-only
				// edit replayed without its blob); fall back to a plain
				// metadata push so the rest of the diff still lands.
				metadataOnly = append(metadataOnly, diff)
				continue
			}
			if err := e.client.ChangeDoc(ctx, diff, content); err != nil {
				if errors.Is(err, syncclient.ErrOldVersionRequired) {
					retryNeeded = true
					continue
				}
				if errors.Is(err, syncclient.ErrEditConflict) {
					// The next pull returns the server's version; merge's
					// doc-hmac conflict branch reconciles it.
					continue
				}
				return retryNeeded, err
			}
			continue
		}

		metadataOnly = append(metadataOnly, diff)
	}

	if len(metadataOnly) == 0 {
		return retryNeeded, nil
	}

	if err := e.client.Upsert(ctx, metadataOnly); err != nil {
		if errors.Is(err, syncclient.ErrOldVersionRequired) {
			return true, nil
		}
		return retryNeeded, err
	}
	return retryNeeded, nil
}

func changedDocument(d lbmodel.FileDiff) bool {
	if d.New.Metadata.DocumentHmac == nil {
		return false
	}
	return lbmodel.Has(d.Changes(), lbmodel.DiffHmac) || d.Old == nil
}
