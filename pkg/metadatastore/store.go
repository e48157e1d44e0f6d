// Package metadatastore defines the keyed storage surface the engine layers
// its base and local metadata on top of. A Store holds SignedFile records
// addressed by FileID; it has no notion of trees, names, or sharing — those
// live in pkg/tree, built on top of two Store instances (one for the base
// snapshot pulled from the server, one for locally pending edits).
package metadatastore

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// Layer is the CRUD surface a single metadata layer exposes, whether that
// layer is accessed directly or from within a transaction.
//
// Implementations vary by backend:
//   - memory: guarded by a mutex, used for ephemeral or test accounts
//   - badger: backed by an embedded on-disk KV store, used for the real
//     base and local layers on a device
//
// Layer values obtained from WithTransaction are not safe for use after the
// transaction function returns, and are not safe for concurrent use.
type Layer interface {
	// Get retrieves a file record by id. ok is false if no record exists;
	// Get never returns a not-found error, callers branch on ok.
	Get(ctx context.Context, id lbmodel.FileID) (file lbmodel.SignedFile, ok bool, err error)

	// Put stores or overwrites a file record.
	Put(ctx context.Context, file lbmodel.SignedFile) error

	// Delete removes a file record. It is not an error to delete an id
	// that is not present.
	Delete(ctx context.Context, id lbmodel.FileID) error

	// All returns every record currently held by this layer. Order is
	// unspecified; callers that need a stable order sort the result.
	All(ctx context.Context) ([]lbmodel.SignedFile, error)

	// Len reports how many records this layer holds.
	Len(ctx context.Context) (int, error)
}

// Transactor provides atomic multi-record writes over a Layer.
//
// Usage:
//
//	err := store.WithTransaction(ctx, func(tx metadatastore.Layer) error {
//	    if _, ok, err := tx.Get(ctx, id); err != nil {
//	        return err
//	    } else if !ok {
//	        return tx.Put(ctx, file)
//	    }
//	    return nil
//	})
//
// If fn returns an error the transaction is rolled back and that error is
// returned from WithTransaction. Nested transactions are not supported.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(tx Layer) error) error
}

// Store is a complete metadata layer: direct CRUD, transactional CRUD, and
// lifecycle management.
type Store interface {
	Layer
	Transactor

	// Healthcheck verifies the store is operational.
	Healthcheck(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
