package tree_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/blobstore/memstore"
	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore/memory"
	"github.com/lockbook/lockbook-core/pkg/tree"
)

// newTestAccount builds an account with a fresh keypair, suitable as the
// identity behind a test tree.
func newTestAccount(t *testing.T, username string) *lbmodel.Account {
	t.Helper()
	key, err := crypto.GenerateAccountKey()
	require.NoError(t, err)
	return &lbmodel.Account{Username: username, PrivateKey: key, APIURL: "http://localhost"}
}

// newTestTree builds a tree over an empty base layer with its root already
// created and put in the local layer (not promoted to base), ready for
// operations.
func newTestTree(t *testing.T, account *lbmodel.Account) (*tree.Tree, lbmodel.FileID) {
	t.Helper()
	ctx := context.Background()

	base := memory.New()
	local := memory.New()
	tr := tree.New(account, base, local)

	root, err := tree.NewRootFile(account)
	require.NoError(t, err)
	require.NoError(t, local.Put(ctx, root))

	return tr, root.Metadata.ID
}

func newTestBlobs() blobstore.Store {
	return memstore.New()
}
