package engine

import (
	"context"
	"strings"
	"time"

	"github.com/lockbook/lockbook-core/pkg/events"
	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// FileInfo is the plaintext-decorated view of a merged record this
// façade hands callers: a CLI or UI never sees a SealedFileName or a raw
// SignedFile, only what it needs to render a listing.
type FileInfo struct {
	ID           lbmodel.FileID
	Parent       lbmodel.FileID
	Name         string
	Type         lbmodel.FileType
	IsDeleted    bool
	LastModified time.Time
}

func (e *Engine) describe(ctx context.Context, f lbmodel.SignedFile) (FileInfo, error) {
	name, err := e.tree.NameFor(ctx, e.tree, f.Metadata.ID)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		ID:           f.Metadata.ID,
		Parent:       f.Metadata.Parent,
		Name:         name,
		Type:         f.Metadata.Type,
		IsDeleted:    f.Metadata.IsDeleted,
		LastModified: f.Metadata.LastModified,
	}, nil
}

// ListMetadatas returns every non-deleted file visible to this account
// in the merged tree, decorated with plaintext names.
func (e *Engine) ListMetadatas(ctx context.Context) ([]FileInfo, error) {
	all, err := e.tree.AllMerged(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(all))
	for _, f := range all {
		if f.Metadata.IsDeleted {
			continue
		}
		info, err := e.describe(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// GetByPath resolves an absolute, '/'-separated path to a file id.
func (e *Engine) GetByPath(ctx context.Context, path string) (lbmodel.FileID, error) {
	return e.tree.PathToID(ctx, path)
}

// IDToPath is the inverse of GetByPath.
func (e *Engine) IDToPath(ctx context.Context, id lbmodel.FileID) (string, error) {
	return e.tree.IDToPath(ctx, id)
}

// CreateAtPath creates a file of kind at an absolute path, creating no
// intermediate folders: every path segment but the last must already
// exist.
func (e *Engine) CreateAtPath(ctx context.Context, path string, kind lbmodel.FileType) (id lbmodel.FileID, err error) {
	parentPath, name, ok := splitPath(path)
	if !ok {
		return lbmodel.FileID{}, lberrors.NewPathContainsEmptyFileName()
	}
	err = e.withMetadataLock(func() error {
		parent, perr := e.tree.PathToID(ctx, parentPath)
		if perr != nil {
			return perr
		}
		id, perr = e.tree.Create(ctx, parent, name, kind)
		return perr
	})
	if err != nil {
		return lbmodel.FileID{}, err
	}
	e.publish(events.MetadataChanged(id))
	return id, nil
}

// ReadDocument decrypts and returns id's document content. If expectHmac
// is non-nil, a mismatch against the merged record's current hmac
// returns ReReadRequired rather than silently serving stale bytes.
func (e *Engine) ReadDocument(ctx context.Context, id lbmodel.FileID, expectHmac *lbmodel.DocumentHmac) ([]byte, error) {
	if expectHmac != nil {
		f, ok, err := e.tree.Merged(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, lberrors.NewFileNonexistent(id.String())
		}
		if f.Metadata.DocumentHmac == nil || *f.Metadata.DocumentHmac != *expectHmac {
			return nil, lberrors.NewReReadRequired(id.String())
		}
	}

	var content []byte
	err := e.pool.run(ctx, func() error {
		var rerr error
		content, rerr = e.tree.ReadDocument(ctx, e.blobs, id)
		return rerr
	})
	return content, err
}

// WriteDocument overwrites id's content unconditionally.
func (e *Engine) WriteDocument(ctx context.Context, id lbmodel.FileID, content []byte) error {
	err := e.withMetadataLock(func() error {
		return e.pool.run(ctx, func() error {
			return e.tree.WriteDocument(ctx, e.blobs, id, content)
		})
	})
	if err != nil {
		return err
	}
	e.publish(events.DocumentWritten(id))
	e.publish(events.MetadataChanged(id))
	return nil
}

// SafeWrite overwrites id's content only if its current hmac matches
// expectHmac, returning the new hmac on success. A caller that reads,
// edits and writes back without an intervening sync uses this to detect
// a concurrent write on the same device it would otherwise clobber.
func (e *Engine) SafeWrite(ctx context.Context, id lbmodel.FileID, expectHmac lbmodel.DocumentHmac, content []byte) (lbmodel.DocumentHmac, error) {
	var newHmac lbmodel.DocumentHmac
	err := e.withMetadataLock(func() error {
		f, ok, err := e.tree.Merged(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return lberrors.NewFileNonexistent(id.String())
		}
		if f.Metadata.DocumentHmac == nil || *f.Metadata.DocumentHmac != expectHmac {
			return lberrors.NewReReadRequired(id.String())
		}
		return e.pool.run(ctx, func() error {
			if werr := e.tree.WriteDocument(ctx, e.blobs, id, content); werr != nil {
				return werr
			}
			updated, ok, werr := e.tree.Merged(ctx, id)
			if werr != nil {
				return werr
			}
			if !ok || updated.Metadata.DocumentHmac == nil {
				return lberrors.NewFileNonexistent(id.String())
			}
			newHmac = *updated.Metadata.DocumentHmac
			return nil
		})
	})
	if err != nil {
		return lbmodel.DocumentHmac{}, err
	}
	e.publish(events.DocumentWritten(id))
	e.publish(events.MetadataChanged(id))
	return newHmac, nil
}

// MoveFile reparents id.
func (e *Engine) MoveFile(ctx context.Context, id, newParent lbmodel.FileID) error {
	err := e.withMetadataLock(func() error {
		return e.tree.Move(ctx, id, newParent)
	})
	if err != nil {
		return err
	}
	e.publish(events.MetadataChanged(id))
	return nil
}

// RenameFile gives id a new plaintext name within its current parent.
func (e *Engine) RenameFile(ctx context.Context, id lbmodel.FileID, name string) error {
	err := e.withMetadataLock(func() error {
		return e.tree.Rename(ctx, id, name)
	})
	if err != nil {
		return err
	}
	e.publish(events.MetadataChanged(id))
	return nil
}

// Delete tombstones id; final removal (and, for a document, its blob)
// happens later, once sync's prune phase confirms both sides agree it's
// gone and nothing live still descends from it.
func (e *Engine) Delete(ctx context.Context, id lbmodel.FileID) error {
	err := e.withMetadataLock(func() error {
		return e.tree.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	e.publish(events.MetadataChanged(id))
	return nil
}

// ShareFile grants recipient mode access to id.
func (e *Engine) ShareFile(ctx context.Context, id lbmodel.FileID, recipient lbmodel.Owner, mode lbmodel.AccessMode) error {
	err := e.withMetadataLock(func() error {
		return e.tree.Share(ctx, id, recipient, mode)
	})
	if err != nil {
		return err
	}
	e.publish(events.MetadataChanged(id))
	return nil
}

// PendingShares lists shares granted to this account not yet linked into
// its own tree.
func (e *Engine) PendingShares(ctx context.Context) ([]lbmodel.SignedFile, error) {
	return e.shares.PendingShares(ctx)
}

// AcceptShare links a pending share into folder under name.
func (e *Engine) AcceptShare(ctx context.Context, folder, sharedID lbmodel.FileID, name string) (lbmodel.FileID, error) {
	var id lbmodel.FileID
	err := e.withMetadataLock(func() error {
		var aerr error
		id, aerr = e.shares.AcceptShare(ctx, folder, sharedID, name)
		return aerr
	})
	if err != nil {
		return lbmodel.FileID{}, err
	}
	e.publish(events.MetadataChanged(id))
	return id, nil
}

// splitPath separates an absolute path into its parent path and final
// segment, e.g. "/docs/notes.md" -> ("/docs", "notes.md"). The root
// path "/" has no final segment and is rejected.
func splitPath(path string) (parent, name string, ok bool) {
	if len(path) == 0 || path[0] != '/' {
		return "", "", false
	}
	trimmed := path
	for len(trimmed) > 1 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return "", "", false
	}
	name = trimmed[idx+1:]
	if name == "" {
		return "", "", false
	}
	parent = trimmed[:idx]
	if parent == "" {
		parent = "/"
	}
	return parent, name, true
}
