package share_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lockbook-core/pkg/blobstore/memstore"
	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore/memory"
	"github.com/lockbook/lockbook-core/pkg/share"
	"github.com/lockbook/lockbook-core/pkg/tree"
)

func newAccount(t *testing.T, username string) *lbmodel.Account {
	t.Helper()
	key, err := crypto.GenerateAccountKey()
	require.NoError(t, err)
	return &lbmodel.Account{Username: username, PrivateKey: key, APIURL: "http://localhost"}
}

func newTree(t *testing.T, account *lbmodel.Account) (*tree.Tree, lbmodel.FileID) {
	t.Helper()
	ctx := context.Background()
	tr := tree.New(account, memory.New(), memory.New())
	root, err := tree.NewRootFile(account)
	require.NoError(t, err)
	require.NoError(t, tr.SeedBase(ctx, root))
	return tr, root.Metadata.ID
}

func TestPendingShares_ListsUnacceptedGrant(t *testing.T) {
	ctx := context.Background()
	alice := newAccount(t, "alice")
	aliceTree, aliceRoot := newTree(t, alice)
	blobs := memstore.New()

	shared, err := aliceTree.Create(ctx, aliceRoot, "shared", lbmodel.Folder())
	require.NoError(t, err)
	x, err := aliceTree.Create(ctx, shared, "x.md", lbmodel.Document())
	require.NoError(t, err)
	require.NoError(t, aliceTree.WriteDocument(ctx, blobs, x, []byte("hi")))

	bob := newAccount(t, "bob")
	require.NoError(t, aliceTree.Share(ctx, shared, bob.Owner(), lbmodel.AccessRead))

	sharedFile, ok, err := aliceTree.Merged(ctx, shared)
	require.NoError(t, err)
	require.True(t, ok)
	xFile, ok, err := aliceTree.Merged(ctx, x)
	require.NoError(t, err)
	require.True(t, ok)

	bobTree, bobRoot := newTree(t, bob)
	require.NoError(t, bobTree.SeedBase(ctx, sharedFile))
	require.NoError(t, bobTree.SeedBase(ctx, xFile))

	resolver := share.New(bobTree)

	pending, err := resolver.PendingShares(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, shared, pending[0].Metadata.ID)

	_, err = resolver.AcceptShare(ctx, bobRoot, shared, "from-alice")
	require.NoError(t, err)

	pending, err = resolver.PendingShares(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPendingShares_EmptyForOwnedFiles(t *testing.T) {
	ctx := context.Background()
	alice := newAccount(t, "alice")
	aliceTree, aliceRoot := newTree(t, alice)

	_, err := aliceTree.Create(ctx, aliceRoot, "a.md", lbmodel.Document())
	require.NoError(t, err)

	resolver := share.New(aliceTree)
	pending, err := resolver.PendingShares(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
