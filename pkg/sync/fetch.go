package sync

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/events"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// fetchDocuments downloads the blob for every pulled document whose
// content this device does not already hold, per §4.6 step 3. The blob
// GC suppression flag is held for the whole of Sync, not scoped to this
// phase alone, since a blob fetched here must survive until promote
// commits the metadata record that references it.
func (e *Engine) fetchDocuments(ctx context.Context, pulled []lbmodel.SignedFile) error {
	for _, f := range pulled {
		if f.Metadata.Type.Tag != lbmodel.FileTypeDocument || f.Metadata.DocumentHmac == nil {
			continue
		}
		key := blobstore.Key{FileID: f.Metadata.ID, Hmac: *f.Metadata.DocumentHmac}

		if _, have, err := e.blobs.Get(ctx, key); err != nil {
			return err
		} else if have {
			continue
		}

		id := f.Metadata.ID
		e.publish(events.SyncProgress(events.PhaseFetchDocs, &id))

		content, err := e.client.GetDoc(ctx, f.Metadata.ID, *f.Metadata.DocumentHmac)
		if err != nil {
			return err
		}
		if err := e.blobs.Put(ctx, key, content); err != nil {
			return err
		}
	}
	return nil
}
