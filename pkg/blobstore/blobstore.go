// Package blobstore defines the content-addressed storage surface documents
// are written to. Blobs are immutable and keyed by (file id, content hmac);
// a file's current blob key changes only when write_document supersedes it
// with a fresh hmac.
package blobstore

import (
	"context"
	"encoding/hex"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// Key identifies one immutable document blob.
type Key struct {
	FileID lbmodel.FileID
	Hmac   lbmodel.DocumentHmac
}

// String renders the key as "<file-id>/<hmac-hex>", used as both a map key
// and a filesystem/object-store path component.
func (k Key) String() string {
	return k.FileID.String() + "/" + hex.EncodeToString(k.Hmac[:])
}

// Store is the interface every backend (memory, filesystem, S3) implements.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a blob's ciphertext. ok is false if the key is absent.
	Get(ctx context.Context, key Key) (data []byte, ok bool, err error)

	// Put stores a blob. Blobs are immutable: callers never overwrite an
	// existing key with different content, but Put does not itself enforce
	// that — it is the caller's invariant (write_document always derives
	// the key from the content it writes).
	Put(ctx context.Context, key Key, data []byte) error

	// Delete removes a blob. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// ListKeys returns every key currently stored, for use by GC.
	ListKeys(ctx context.Context) ([]Key, error)

	Healthcheck(ctx context.Context) error
	Close() error
}
