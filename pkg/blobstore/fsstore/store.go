// Package fsstore is a filesystem-backed blobstore.Store. Blobs are stored
// as files under a base directory, one file per blobstore.Key.
package fsstore

import (
	"context"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// Store is a thin wrapper over the filesystem with no business logic: the
// blob key's string form becomes a relative path under basePath.
type Store struct {
	mu       sync.RWMutex
	basePath string
	closed   bool
}

var ErrClosed = errors.New("fsstore: store is closed")

// New creates (if necessary) basePath and returns a Store rooted there.
func New(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, errors.New("fsstore: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("fsstore: base path is not a directory")
	}
	return &Store{basePath: basePath}, nil
}

func (s *Store) blobPath(key blobstore.Key) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key.String()))
}

func (s *Store) Get(ctx context.Context, key blobstore.Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}

	data, err := os.ReadFile(s.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Put writes data to disk via a temp file and atomic rename, so a crash
// mid-write never leaves a partially written blob visible at its real key.
func (s *Store) Put(ctx context.Context, key blobstore.Key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	path := s.blobPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key blobstore.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	path := s.blobPath(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.cleanEmptyDirs(filepath.Dir(path))
	return nil
}

func (s *Store) cleanEmptyDirs(dir string) {
	for dir != s.basePath && strings.HasPrefix(dir, s.basePath) {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
}

func (s *Store) ListKeys(ctx context.Context) ([]blobstore.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var keys []blobstore.Key
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key, ok := parseKey(filepath.ToSlash(rel))
		if ok {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// parseKey reverses blobstore.Key.String(): "<file-id>/<hmac-hex>".
func parseKey(rel string) (blobstore.Key, bool) {
	idStr, hmacHex, found := strings.Cut(rel, "/")
	if !found {
		return blobstore.Key{}, false
	}
	id, err := lbmodel.ParseFileID(idStr)
	if err != nil {
		return blobstore.Key{}, false
	}
	var hmac lbmodel.DocumentHmac
	raw, err := hex.DecodeString(hmacHex)
	if err != nil || len(raw) != len(hmac) {
		return blobstore.Key{}, false
	}
	copy(hmac[:], raw)
	return blobstore.Key{FileID: id, Hmac: hmac}, true
}

func (s *Store) Healthcheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	_, err := os.Stat(s.basePath)
	return err
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
