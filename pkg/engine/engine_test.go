package engine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lockbook/lockbook-core/pkg/blobstore/memstore"
	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/engine"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore/memory"
	"github.com/lockbook/lockbook-core/pkg/tree"
)

// memCursor is an in-memory Cursor for tests that never need the
// on-disk fileCursor.
type memCursor struct{ since int64 }

func (c *memCursor) Load(context.Context) (int64, error)      { return c.since, nil }
func (c *memCursor) Save(_ context.Context, since int64) error { c.since = since; return nil }

func newTestAccount(t *testing.T) *lbmodel.Account {
	t.Helper()
	key, err := crypto.GenerateAccountKey()
	require.NoError(t, err)
	return &lbmodel.Account{Username: "alice", PrivateKey: key, APIURL: "http://localhost"}
}

func newTestEngine(t *testing.T, account *lbmodel.Account) *engine.Engine {
	t.Helper()
	ctx := context.Background()

	base := memory.New()
	local := memory.New()

	rootFile, err := tree.NewRootFile(account)
	require.NoError(t, err)
	require.NoError(t, base.Put(ctx, rootFile))

	eng := engine.New(account, base, local, memstore.New(), &memCursor{})
	t.Cleanup(eng.Close)
	return eng
}

func TestEngine_CreateAtPathThenListMetadatas(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t)
	eng := newTestEngine(t, account)

	_, err := eng.CreateAtPath(ctx, "/notes.md", lbmodel.Document())
	require.NoError(t, err)

	infos, err := eng.ListMetadatas(ctx)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, info := range infos {
		names[info.Name] = true
	}
	require.True(t, names["notes.md"])
}

func TestEngine_WriteThenReadDocument(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t)
	eng := newTestEngine(t, account)

	id, err := eng.CreateAtPath(ctx, "/notes.md", lbmodel.Document())
	require.NoError(t, err)

	require.NoError(t, eng.WriteDocument(ctx, id, []byte("hello")))
	content, err := eng.ReadDocument(ctx, id, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), content)
}

func TestEngine_SafeWriteRejectsStaleHmac(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t)
	eng := newTestEngine(t, account)

	id, err := eng.CreateAtPath(ctx, "/notes.md", lbmodel.Document())
	require.NoError(t, err)
	require.NoError(t, eng.WriteDocument(ctx, id, []byte("v1")))

	var stale lbmodel.DocumentHmac
	_, err = eng.SafeWrite(ctx, id, stale, []byte("v2"))
	require.Error(t, err)
}

func TestEngine_RenameMoveDelete(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t)
	eng := newTestEngine(t, account)

	folder, err := eng.CreateAtPath(ctx, "/docs", lbmodel.Folder())
	require.NoError(t, err)
	id, err := eng.CreateAtPath(ctx, "/notes.md", lbmodel.Document())
	require.NoError(t, err)

	require.NoError(t, eng.RenameFile(ctx, id, "renamed.md"))
	require.NoError(t, eng.MoveFile(ctx, id, folder))

	path, err := eng.IDToPath(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "/docs/renamed.md", path)

	require.NoError(t, eng.Delete(ctx, id))
	infos, err := eng.ListMetadatas(ctx)
	require.NoError(t, err)
	for _, info := range infos {
		require.NotEqual(t, id, info.ID)
	}
}

func TestEngine_CalculateWorkReflectsLocalEdits(t *testing.T) {
	ctx := context.Background()

	// CalculateWork also asks the server for remote changes; this server
	// reports none, so only local edits show up.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"files": []any{}, "new_since": 0})
	}))
	defer server.Close()

	account := newTestAccount(t)
	account.APIURL = server.URL
	eng := newTestEngine(t, account)

	work, err := eng.CalculateWork(ctx)
	require.NoError(t, err)
	require.Empty(t, work)

	_, err = eng.CreateAtPath(ctx, "/notes.md", lbmodel.Document())
	require.NoError(t, err)

	work, err = eng.CalculateWork(ctx)
	require.NoError(t, err)
	require.Len(t, work, 1)
	require.False(t, work[0].Remote)
}

func TestCreateAccount_RegistersWithServerAndSeedsBase(t *testing.T) {
	ctx := context.Background()

	var gotUsername string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		payload, ok := body["payload"].(map[string]any)
		require.True(t, ok)
		gotUsername, _ = payload["username"].(string)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"metadata_version": 1})
	}))
	defer server.Close()

	base := memory.New()
	local := memory.New()
	eng, err := engine.CreateAccount(ctx, "alice", server.URL, base, local, memstore.New(), &memCursor{})
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	require.Equal(t, "alice", gotUsername)

	root, err := eng.Tree().Root(ctx)
	require.NoError(t, err)
	_, ok, err := eng.Tree().Base(ctx, root.Metadata.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExportImportAccountRoundTrips(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t)
	eng := newTestEngine(t, account)

	exported, err := eng.ExportAccount()
	require.NoError(t, err)

	base := memory.New()
	local := memory.New()
	imported, err := engine.ImportAccount(exported, base, local, memstore.New(), &memCursor{})
	require.NoError(t, err)
	t.Cleanup(imported.Close)

	require.Equal(t, account.Username, imported.Account().Username)
	require.Equal(t, account.PublicKey().Bytes(), imported.Account().PublicKey().Bytes())
}
