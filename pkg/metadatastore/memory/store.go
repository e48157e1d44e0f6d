// Package memory provides an in-memory metadatastore.Store, used for
// ephemeral accounts and in tests where a disk-backed store would only add
// noise.
package memory

import (
	"context"
	"sync"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore"
)

// Store is a mutex-guarded map keyed by FileID. It implements
// metadatastore.Store with no business logic of its own: it is a thin
// wrapper over the map with NO validation, left entirely to pkg/tree.
type Store struct {
	mu    sync.RWMutex
	files map[lbmodel.FileID]lbmodel.SignedFile
}

// New returns an empty Store.
func New() *Store {
	return &Store{files: make(map[lbmodel.FileID]lbmodel.SignedFile)}
}

func (s *Store) Get(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error) {
	if err := ctx.Err(); err != nil {
		return lbmodel.SignedFile{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.files[id]
	return file, ok, nil
}

func (s *Store) Put(ctx context.Context, file lbmodel.SignedFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[file.Metadata.ID] = file
	return nil
}

func (s *Store) Delete(ctx context.Context, id lbmodel.FileID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, id)
	return nil
}

func (s *Store) All(ctx context.Context) ([]lbmodel.SignedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]lbmodel.SignedFile, 0, len(s.files))
	for _, file := range s.files {
		out = append(out, file)
	}
	return out, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.files), nil
}

// WithTransaction holds the store's write lock for the duration of fn, so
// every read and write fn performs is atomic with respect to other callers.
// A panic or returned error aborts fn's changes by restoring a snapshot
// taken before fn ran.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx metadatastore.Layer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[lbmodel.FileID]lbmodel.SignedFile, len(s.files))
	for id, file := range s.files {
		snapshot[id] = file
	}

	tx := &txLayer{files: s.files}
	committed := false
	defer func() {
		if !committed {
			s.files = snapshot
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

// txLayer gives WithTransaction's callback direct, unlocked access to the
// store's backing map; the caller already holds Store.mu for the whole call.
type txLayer struct {
	files map[lbmodel.FileID]lbmodel.SignedFile
}

func (tx *txLayer) Get(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error) {
	if err := ctx.Err(); err != nil {
		return lbmodel.SignedFile{}, false, err
	}
	file, ok := tx.files[id]
	return file, ok, nil
}

func (tx *txLayer) Put(ctx context.Context, file lbmodel.SignedFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.files[file.Metadata.ID] = file
	return nil
}

func (tx *txLayer) Delete(ctx context.Context, id lbmodel.FileID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(tx.files, id)
	return nil
}

func (tx *txLayer) All(ctx context.Context) ([]lbmodel.SignedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]lbmodel.SignedFile, 0, len(tx.files))
	for _, file := range tx.files {
		out = append(out, file)
	}
	return out, nil
}

func (tx *txLayer) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(tx.files), nil
}
