// Package integration exercises the client engine against a real,
// in-process lockbookd HTTP server: two accounts, a share between them,
// and a round of sync for each, the way a real client/server pair would
// behave rather than unit-testing either side against a fake of the other.
package integration

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lockbook/lockbook-core/pkg/blobstore/memstore"
	"github.com/lockbook/lockbook-core/pkg/engine"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore/memory"
	"github.com/lockbook/lockbook-core/pkg/server/api"
	"github.com/lockbook/lockbook-core/pkg/server/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping end-to-end integration test in short mode")
	}

	db, err := store.Open(&store.Config{
		Driver: store.DriverSQLite,
		SQLite: store.SQLiteConfig{Path: "file::memory:?cache=shared"},
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	svc := api.NewService(db, memstore.New(), 0)
	srv := httptest.NewServer(api.NewRouter(svc, nil))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEngine(t *testing.T, apiURL, username string) *engine.Engine {
	t.Helper()
	ctx := context.Background()
	cursor := engine.NewFileCursor(filepath.Join(t.TempDir(), "cursor.json"))
	eng, err := engine.CreateAccount(ctx, username, apiURL, memory.New(), memory.New(), memstore.New(), cursor)
	if err != nil {
		t.Fatalf("create account %s: %v", username, err)
	}
	t.Cleanup(eng.Close)
	return eng
}

func TestSyncRoundTripsADocument(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	alice := newTestEngine(t, srv.URL, "alice")

	docID, err := alice.CreateAtPath(ctx, "/notes.md", lbmodel.Document())
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := alice.WriteDocument(ctx, docID, []byte("hello from alice")); err != nil {
		t.Fatalf("write document: %v", err)
	}
	if err := alice.Sync(ctx, nil); err != nil {
		t.Fatalf("alice sync: %v", err)
	}

	// A second client for the same account, over a fresh empty local
	// state, should pull the document back down on its first sync.
	cursor := engine.NewFileCursor(filepath.Join(t.TempDir(), "cursor.json"))
	aliceAccountStr, err := alice.ExportAccount()
	if err != nil {
		t.Fatalf("export account: %v", err)
	}
	aliceOnOtherDevice, err := engine.ImportAccount(aliceAccountStr, memory.New(), memory.New(), memstore.New(), cursor)
	if err != nil {
		t.Fatalf("import account: %v", err)
	}
	defer aliceOnOtherDevice.Close()

	if err := aliceOnOtherDevice.Sync(ctx, nil); err != nil {
		t.Fatalf("second device sync: %v", err)
	}

	content, err := aliceOnOtherDevice.ReadDocument(ctx, docID, nil)
	if err != nil {
		t.Fatalf("read document after sync: %v", err)
	}
	if string(content) != "hello from alice" {
		t.Fatalf("unexpected content after round trip: %q", content)
	}
}

func TestShareIsVisibleToRecipientAfterSync(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	alice := newTestEngine(t, srv.URL, "alice_sharer")
	bob := newTestEngine(t, srv.URL, "bob_recipient")

	folderID, err := alice.CreateAtPath(ctx, "/shared", lbmodel.Folder())
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	if err := alice.ShareFile(ctx, folderID, lbmodel.Owner{PublicKey: bob.Account().PublicKey().Bytes()}, lbmodel.AccessWrite); err != nil {
		t.Fatalf("share folder: %v", err)
	}
	if err := alice.Sync(ctx, nil); err != nil {
		t.Fatalf("alice sync: %v", err)
	}

	if err := bob.Sync(ctx, nil); err != nil {
		t.Fatalf("bob sync: %v", err)
	}
	pending, err := bob.PendingShares(ctx)
	if err != nil {
		t.Fatalf("pending shares: %v", err)
	}
	if len(pending) != 1 || pending[0].Metadata.ID != folderID {
		t.Fatalf("expected one pending share for %s, got %+v", folderID, pending)
	}

	bobRoot, err := bob.GetByPath(ctx, "/")
	if err != nil {
		t.Fatalf("bob root: %v", err)
	}
	acceptedID, err := bob.AcceptShare(ctx, bobRoot, folderID, "from-alice")
	if err != nil {
		t.Fatalf("accept share: %v", err)
	}
	link, ok, err := bob.Tree().Merged(ctx, acceptedID)
	if err != nil || !ok {
		t.Fatalf("accepted link %s not found: %v", acceptedID, err)
	}
	if link.Metadata.Type.Target != folderID {
		t.Fatalf("expected accepted link to target %s, got %s", folderID, link.Metadata.Type.Target)
	}
}
