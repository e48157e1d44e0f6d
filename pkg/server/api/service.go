// Package api is the reference server's HTTP surface: the server side of
// pkg/syncclient's envelope/endpoint contract (spec.md §6), a chi router
// in the teacher's pkg/controlplane/api shape, backed by pkg/server/store
// for metadata and a blobstore.Store for document content.
package api

import (
	"context"
	"errors"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/server/store"
)

var (
	errEditConflict    = errors.New("document was changed concurrently")
	errNotPermissioned = errors.New("signer lacks sufficient access")
	errOverDataCap     = errors.New("account storage usage is over its cap")
	errFileNotFound    = errors.New("file not found")
)

// Service wires the store and blob backends behind the HTTP handlers.
// DataCap bounds total account usage in bytes; zero means unlimited,
// matching the teacher's *int/zero-default-off config idiom applied here
// to a plain uint64 for simplicity since the cap has no other settings to
// group it with.
type Service struct {
	store   *store.Store
	blobs   blobstore.Store
	nonces  *nonceTracker
	dataCap uint64
}

// NewService builds a Service over store s and blob backend blobs. A
// dataCap of 0 means no account storage cap is enforced.
func NewService(s *store.Store, blobs blobstore.Store, dataCap uint64) *Service {
	return &Service{store: s, blobs: blobs, nonces: newNonceTracker(), dataCap: dataCap}
}

func (s *Service) newAccount(ctx context.Context, username string, publicKey []byte, root lbmodel.SignedFile) (int64, error) {
	return s.store.CreateAccount(ctx, username, publicKey, root)
}

func (s *Service) getUpdates(ctx context.Context, since int64) ([]lbmodel.SignedFile, int64, error) {
	return s.store.GetUpdates(ctx, since)
}

func (s *Service) getPublicKey(ctx context.Context, username string) ([]byte, error) {
	return s.store.GetPublicKey(ctx, username)
}

// upsert applies a batch of diffs for signer, checking each against the
// access control walk before it ever reaches the store's optimistic
// concurrency check.
func (s *Service) upsert(ctx context.Context, signer []byte, diffs []lbmodel.FileDiff) error {
	for _, d := range diffs {
		if err := s.authorize(ctx, signer, d, lbmodel.AccessWrite); err != nil {
			return err
		}
		if _, err := s.store.Upsert(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// changeDoc applies one document's metadata diff and stores its
// ciphertext, enforcing the account's storage cap before the write lands.
func (s *Service) changeDoc(ctx context.Context, signer []byte, diff lbmodel.FileDiff, content []byte) error {
	if err := s.authorize(ctx, signer, diff, lbmodel.AccessWrite); err != nil {
		return err
	}

	if s.dataCap > 0 {
		usage, err := s.store.GetUsage(ctx, diff.New.Metadata.Owner.PublicKey)
		if err != nil {
			return err
		}
		var used uint64
		for id, size := range usage {
			if id != diff.New.Metadata.ID.String() {
				used += size
			}
		}
		if used+uint64(len(content)) > s.dataCap {
			return errOverDataCap
		}
	}

	if diff.New.Metadata.DocumentHmac == nil {
		return errFileNotFound
	}
	key := blobstore.Key{FileID: diff.New.Metadata.ID, Hmac: *diff.New.Metadata.DocumentHmac}

	if diff.Old != nil && diff.Old.Metadata.DocumentHmac != nil {
		oldKey := blobstore.Key{FileID: diff.New.Metadata.ID, Hmac: *diff.Old.Metadata.DocumentHmac}
		if _, ok, err := s.blobs.Get(ctx, oldKey); err != nil {
			return err
		} else if !ok {
			return errEditConflict
		}
	}

	if _, err := s.store.Upsert(ctx, diff); err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, key, content); err != nil {
		return err
	}
	return s.store.SetDocumentSize(ctx, diff.New.Metadata.ID, uint64(len(content)))
}

func (s *Service) getDoc(ctx context.Context, signer []byte, id lbmodel.FileID, hmac lbmodel.DocumentHmac) ([]byte, error) {
	if err := s.authorizeRead(ctx, signer, id); err != nil {
		return nil, err
	}
	content, ok, err := s.blobs.Get(ctx, blobstore.Key{FileID: id, Hmac: hmac})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errFileNotFound
	}
	return content, nil
}

func (s *Service) getUsage(ctx context.Context, signer []byte) (map[string]uint64, uint64, error) {
	usage, err := s.store.GetUsage(ctx, signer)
	return usage, s.dataCap, err
}
