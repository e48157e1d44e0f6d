// Package memstore is an in-memory blobstore.Store, used for ephemeral
// accounts and tests.
package memstore

import (
	"context"
	"sync"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
)

// Store is a mutex-guarded map keyed by blobstore.Key.
type Store struct {
	mu    sync.RWMutex
	blobs map[blobstore.Key][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{blobs: make(map[blobstore.Key][]byte)}
}

func (s *Store) Get(ctx context.Context, key blobstore.Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (s *Store) Put(ctx context.Context, key blobstore.Key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key] = stored
	return nil
}

func (s *Store) Delete(ctx context.Context, key blobstore.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)
	return nil
}

func (s *Store) ListKeys(ctx context.Context) ([]blobstore.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]blobstore.Key, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *Store) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}
