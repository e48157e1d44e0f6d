package store

import (
	"context"
	"testing"
	"time"

	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&Config{Driver: DriverSQLite, SQLite: SQLiteConfig{Path: "file::memory:?cache=shared"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func signedRoot(t *testing.T, key *crypto.AccountKey) lbmodel.SignedFile {
	t.Helper()
	id := lbmodel.NewFileID()
	owner := lbmodel.Owner{PublicKey: key.PublicKey().Bytes()}
	m := lbmodel.FileMetadata{
		ID:             id,
		Type:           lbmodel.Folder(),
		Parent:         id,
		Owner:          owner,
		LastModified:   time.Now().UTC(),
		LastModifiedBy: owner,
	}
	sf := lbmodel.SignedFile{Metadata: m, Signer: owner, Timestamp: time.Now().UTC()}
	return sf
}

func TestCreateAccountAndGetPublicKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key, err := crypto.GenerateAccountKey()
	if err != nil {
		t.Fatalf("GenerateAccountKey: %v", err)
	}
	root := signedRoot(t, key)

	version, err := s.CreateAccount(ctx, "alice", key.PublicKey().Bytes(), root)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}

	if _, err := s.CreateAccount(ctx, "alice", key.PublicKey().Bytes(), root); err != ErrAccountExists {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	pub, err := s.GetPublicKey(ctx, "alice")
	if err != nil {
		t.Fatalf("GetPublicKey: %v", err)
	}
	if string(pub) != string(key.PublicKey().Bytes()) {
		t.Fatalf("public key mismatch")
	}

	if _, err := s.GetPublicKey(ctx, "nobody"); err != ErrAccountNotFound {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestUpsertOptimisticConcurrency(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key, err := crypto.GenerateAccountKey()
	if err != nil {
		t.Fatalf("GenerateAccountKey: %v", err)
	}
	root := signedRoot(t, key)
	if _, err := s.CreateAccount(ctx, "alice", key.PublicKey().Bytes(), root); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	stored, ok, err := s.GetByID(ctx, root.Metadata.ID)
	if err != nil || !ok {
		t.Fatalf("GetByID: ok=%v err=%v", ok, err)
	}

	renamed := stored
	renamed.Metadata.Name = lbmodel.SecretFileName{EncryptedValue: []byte("ct"), Hmac: []byte("hm")}

	if _, err := s.Upsert(ctx, lbmodel.FileDiff{Old: &stored, New: renamed}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Pushing again against the now-stale `stored` value must fail.
	if _, err := s.Upsert(ctx, lbmodel.FileDiff{Old: &stored, New: renamed}); err != ErrOldVersionRequired {
		t.Fatalf("expected ErrOldVersionRequired, got %v", err)
	}

	// An insert-shaped diff (Old == nil) against an existing id must also fail.
	if _, err := s.Upsert(ctx, lbmodel.FileDiff{New: renamed}); err != ErrOldVersionRequired {
		t.Fatalf("expected ErrOldVersionRequired for phantom insert, got %v", err)
	}
}

func TestUpsertDeletedFileUpdated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key, err := crypto.GenerateAccountKey()
	if err != nil {
		t.Fatalf("GenerateAccountKey: %v", err)
	}
	root := signedRoot(t, key)
	if _, err := s.CreateAccount(ctx, "alice", key.PublicKey().Bytes(), root); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	stored, _, err := s.GetByID(ctx, root.Metadata.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	deleted := stored
	deleted.Metadata.IsDeleted = true
	if _, err := s.Upsert(ctx, lbmodel.FileDiff{Old: &stored, New: deleted}); err != nil {
		t.Fatalf("Upsert delete: %v", err)
	}

	stored2, _, err := s.GetByID(ctx, root.Metadata.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	stillDeleted := stored2
	stillDeleted.Metadata.Name = lbmodel.SecretFileName{EncryptedValue: []byte("x"), Hmac: []byte("y")}
	if _, err := s.Upsert(ctx, lbmodel.FileDiff{Old: &stored2, New: stillDeleted}); err != ErrDeletedFileUpdated {
		t.Fatalf("expected ErrDeletedFileUpdated, got %v", err)
	}
}

func TestGetUpdatesAndUsage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key, err := crypto.GenerateAccountKey()
	if err != nil {
		t.Fatalf("GenerateAccountKey: %v", err)
	}
	root := signedRoot(t, key)
	v1, err := s.CreateAccount(ctx, "alice", key.PublicKey().Bytes(), root)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	files, newSince, err := s.GetUpdates(ctx, 0)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(files) != 1 || newSince != v1 {
		t.Fatalf("expected 1 file at version %d, got %d files at %d", v1, len(files), newSince)
	}

	if _, _, err := s.GetUpdates(ctx, newSince); err != nil {
		t.Fatalf("GetUpdates since latest: %v", err)
	}

	if err := s.SetDocumentSize(ctx, root.Metadata.ID, 1234); err != nil {
		t.Fatalf("SetDocumentSize: %v", err)
	}
	usage, err := s.GetUsage(ctx, key.PublicKey().Bytes())
	if err != nil {
		t.Fatalf("GetUsage: %v", err)
	}
	// Root has no DocumentHmac, so it contributes nothing to usage.
	if len(usage) != 0 {
		t.Fatalf("expected no usage for a folder-only account, got %v", usage)
	}
}

func TestListAccounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key, err := crypto.GenerateAccountKey()
	if err != nil {
		t.Fatalf("GenerateAccountKey: %v", err)
	}
	root := signedRoot(t, key)
	if _, err := s.CreateAccount(ctx, "alice", key.PublicKey().Bytes(), root); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Username != "alice" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
}
