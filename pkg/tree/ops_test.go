package tree_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

func TestCreate_DocumentUnderRoot(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)

	id, err := tr.Create(ctx, root, "a.md", lbmodel.Document())
	require.NoError(t, err)

	path, err := tr.IDToPath(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/a.md", path)
}

func TestIDToPath_Root(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)

	path, err := tr.IDToPath(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "/", path)
}

func TestCreate_NestedPath(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)

	folder, err := tr.Create(ctx, root, "docs", lbmodel.Folder())
	require.NoError(t, err)
	doc, err := tr.Create(ctx, folder, "notes.md", lbmodel.Document())
	require.NoError(t, err)

	path, err := tr.IDToPath(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "/docs/notes.md", path)

	resolved, err := tr.PathToID(ctx, "/docs/notes.md")
	require.NoError(t, err)
	assert.Equal(t, doc, resolved)
}

func TestCreate_EmptyNameRejected(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)

	_, err := tr.Create(ctx, root, "", lbmodel.Document())
	assert.True(t, lberrors.Is(err, lberrors.CodeFileNameEmpty))
}

func TestCreate_NameWithSlashRejected(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)

	_, err := tr.Create(ctx, root, "a/b", lbmodel.Document())
	assert.True(t, lberrors.Is(err, lberrors.CodeFileNameContainsSlash))
}

func TestRename_ToExistingSiblingNameConflicts(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)

	_, err := tr.Create(ctx, root, "a.md", lbmodel.Document())
	require.NoError(t, err)
	b, err := tr.Create(ctx, root, "b.md", lbmodel.Document())
	require.NoError(t, err)

	err = tr.Rename(ctx, b, "a.md")
	assert.True(t, lberrors.Is(err, lberrors.CodePathConflict))
}

func TestRename_ToDeletedSiblingNameIsAllowed(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)

	a, err := tr.Create(ctx, root, "a.md", lbmodel.Document())
	require.NoError(t, err)
	require.NoError(t, tr.Delete(ctx, a))

	b, err := tr.Create(ctx, root, "b.md", lbmodel.Document())
	require.NoError(t, err)

	assert.NoError(t, tr.Rename(ctx, b, "a.md"))
}

func TestMove_IntoDescendantIsCycle(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)

	a, err := tr.Create(ctx, root, "a", lbmodel.Folder())
	require.NoError(t, err)
	b, err := tr.Create(ctx, a, "b", lbmodel.Folder())
	require.NoError(t, err)

	err = tr.Move(ctx, a, b)
	assert.True(t, lberrors.Is(err, lberrors.CodeCycle))
}

func TestMove_ChangesPath(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)

	folder, err := tr.Create(ctx, root, "dest", lbmodel.Folder())
	require.NoError(t, err)
	doc, err := tr.Create(ctx, root, "a.md", lbmodel.Document())
	require.NoError(t, err)

	require.NoError(t, tr.Move(ctx, doc, folder))

	path, err := tr.IDToPath(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "/dest/a.md", path)
}

func TestWriteAndReadDocument_RoundTrips(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)
	blobs := newTestBlobs()

	doc, err := tr.Create(ctx, root, "a.md", lbmodel.Document())
	require.NoError(t, err)

	require.NoError(t, tr.WriteDocument(ctx, blobs, doc, []byte("hello")))

	content, err := tr.ReadDocument(ctx, blobs, doc)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
}

func TestWriteDocument_ToDeletedFileFails(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)
	blobs := newTestBlobs()

	doc, err := tr.Create(ctx, root, "a.md", lbmodel.Document())
	require.NoError(t, err)
	require.NoError(t, tr.Delete(ctx, doc))

	err = tr.WriteDocument(ctx, blobs, doc, []byte("hello"))
	assert.True(t, lberrors.Is(err, lberrors.CodeFileNonexistent))
}

func TestDelete_HidesDescendantsAndRetainsBlob(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)
	blobs := newTestBlobs()

	folder, err := tr.Create(ctx, root, "d", lbmodel.Folder())
	require.NoError(t, err)
	doc, err := tr.Create(ctx, folder, "f.md", lbmodel.Document())
	require.NoError(t, err)
	require.NoError(t, tr.WriteDocument(ctx, blobs, doc, []byte("x")))

	file, ok, err := tr.Merged(ctx, doc)
	require.NoError(t, err)
	require.True(t, ok)
	hmac := *file.Metadata.DocumentHmac

	require.NoError(t, tr.Delete(ctx, folder))

	_, err = tr.ReadDocument(ctx, blobs, doc)
	assert.True(t, lberrors.Is(err, lberrors.CodeFileNonexistent))

	_, stillThere, err := blobs.Get(ctx, blobstore.Key{FileID: doc, Hmac: hmac})
	require.NoError(t, err)
	assert.True(t, stillThere, "blob must survive until pruning, not deletion")
}

func TestShareAndAcceptShare_Roundtrip(t *testing.T) {
	ctx := context.Background()
	alice := newTestAccount(t, "alice")
	aliceTree, aliceRoot := newTestTree(t, alice)
	blobs := newTestBlobs()

	shared, err := aliceTree.Create(ctx, aliceRoot, "shared", lbmodel.Folder())
	require.NoError(t, err)
	x, err := aliceTree.Create(ctx, shared, "x.md", lbmodel.Document())
	require.NoError(t, err)
	require.NoError(t, aliceTree.WriteDocument(ctx, blobs, x, []byte("hi")))

	bob := newTestAccount(t, "bob")
	require.NoError(t, aliceTree.Share(ctx, shared, bob.Owner(), lbmodel.AccessRead))

	sharedFile, ok, err := aliceTree.Merged(ctx, shared)
	require.NoError(t, err)
	require.True(t, ok)
	xFile, ok, err := aliceTree.Merged(ctx, x)
	require.NoError(t, err)
	require.True(t, ok)

	bobTree, bobRoot := newTestTree(t, bob)
	require.NoError(t, bobTree.SeedBase(ctx, sharedFile))
	require.NoError(t, bobTree.SeedBase(ctx, xFile))

	_, err = bobTree.AcceptShare(ctx, bobRoot, shared, "from-alice")
	require.NoError(t, err)

	content, err := bobTree.ReadDocument(ctx, blobs, x)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), content)

	err = bobTree.WriteDocument(ctx, blobs, x, []byte("nope"))
	assert.True(t, lberrors.Is(err, lberrors.CodeInsufficientPermission))
}

func TestCreateLinkAtPath_TargetingAnotherLinkRejected(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t, "alice")
	tr, root := newTestTree(t, account)

	doc, err := tr.Create(ctx, root, "a.md", lbmodel.Document())
	require.NoError(t, err)
	link, err := tr.CreateLinkAtPath(ctx, root, "link-to-a", doc)
	require.NoError(t, err)

	_, err = tr.CreateLinkAtPath(ctx, root, "link-to-link", link)
	require.Error(t, err)
	assert.True(t, lberrors.Is(err, lberrors.CodeSharedLinkToLink))
}
