package tree

import (
	"context"
	"time"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// Create stages a new file of kind under parent with the given plaintext
// name, generating a fresh id and symmetric key wrapped under parent's
// key. On success the delta is validated and promoted in one step; the
// new id is returned.
func (t *Tree) Create(ctx context.Context, parent lbmodel.FileID, name string, kind lbmodel.FileType) (lbmodel.FileID, error) {
	if name == "" {
		return lbmodel.FileID{}, lberrors.NewFileNameEmpty()
	}
	if containsSlash(name) {
		return lbmodel.FileID{}, lberrors.NewFileNameContainsSlash()
	}

	s := t.Stage()

	parentFile, ok, err := s.merged(ctx, parent)
	if err != nil {
		return lbmodel.FileID{}, err
	}
	if !ok {
		return lbmodel.FileID{}, lberrors.NewFileParentNonexistent(idString(parent))
	}
	if parentFile.Metadata.Type.Tag != lbmodel.FileTypeFolder {
		return lbmodel.FileID{}, lberrors.NewFileNotFolder(idString(parent))
	}
	if err := t.RequireMode(ctx, s, parent, lbmodel.AccessWrite); err != nil {
		return lbmodel.FileID{}, err
	}
	if kind.Tag == lbmodel.FileTypeLink {
		targetFile, ok, err := s.merged(ctx, kind.Target)
		if err != nil {
			return lbmodel.FileID{}, err
		}
		if ok && targetFile.Metadata.Type.Tag == lbmodel.FileTypeLink {
			return lbmodel.FileID{}, lberrors.NewSharedLinkToLink(idString(kind.Target))
		}
	}

	parentKey, err := t.KeyFor(ctx, s, parent)
	if err != nil {
		return lbmodel.FileID{}, err
	}

	fileKey, err := crypto.GenerateSymmetricKey()
	if err != nil {
		return lbmodel.FileID{}, err
	}
	folderKey, err := WrapFolderAccessKey(parentKey, fileKey)
	if err != nil {
		return lbmodel.FileID{}, err
	}
	secretName, err := lbmodel.SealName(parentKey, name)
	if err != nil {
		return lbmodel.FileID{}, err
	}

	id := lbmodel.NewFileID()
	owner := parentFile.Metadata.Owner
	if kind.Tag == lbmodel.FileTypeLink {
		owner = t.account.Owner()
	}

	file := lbmodel.SignedFile{
		Metadata: lbmodel.FileMetadata{
			ID:              id,
			Type:            kind,
			Parent:          parent,
			Name:            secretName,
			Owner:           owner,
			FolderAccessKey: folderKey,
			LastModified:    timeNow(),
			LastModifiedBy:  t.account.Owner(),
		},
		Signer:    t.account.Owner(),
		Timestamp: timeNow(),
	}
	if err := signFile(t.account, &file); err != nil {
		return lbmodel.FileID{}, err
	}

	s.Put(file)
	if err := s.Validate(ctx); err != nil {
		return lbmodel.FileID{}, err
	}
	if err := s.Promote(ctx); err != nil {
		return lbmodel.FileID{}, err
	}
	return id, nil
}

// Rename stages a new SecretFileName for id, re-encoded under its
// (unchanged) parent's key. Root cannot be renamed.
func (t *Tree) Rename(ctx context.Context, id lbmodel.FileID, name string) error {
	if name == "" {
		return lberrors.NewFileNameEmpty()
	}
	if containsSlash(name) {
		return lberrors.NewFileNameContainsSlash()
	}

	s := t.Stage()
	file, ok, err := s.merged(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return lberrors.NewFileNonexistent(idString(id))
	}
	if file.Metadata.Parent == id {
		return lberrors.NewInsufficientPermission(idString(id))
	}
	if err := t.RequireMode(ctx, s, id, lbmodel.AccessWrite); err != nil {
		return err
	}

	parentKey, err := t.KeyFor(ctx, s, file.Metadata.Parent)
	if err != nil {
		return err
	}
	secretName, err := lbmodel.SealName(parentKey, name)
	if err != nil {
		return err
	}

	updated := file
	updated.Metadata.Name = secretName
	updated.Metadata.LastModified = timeNow()
	updated.Metadata.LastModifiedBy = t.account.Owner()
	if err := signFile(t.account, &updated); err != nil {
		return err
	}

	s.Put(updated)
	if err := s.Validate(ctx); err != nil {
		return err
	}
	return s.Promote(ctx)
}

// Move stages a new parent for id and re-wraps its folder_access_key
// under the new parent's key. Rejects moving root, moving a folder under
// itself or one of its own descendants, and moving into a non-folder;
// the descendant case surfaces as a Cycle error from Validate.
func (t *Tree) Move(ctx context.Context, id, newParent lbmodel.FileID) error {
	s := t.Stage()

	file, ok, err := s.merged(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return lberrors.NewFileNonexistent(idString(id))
	}
	if file.Metadata.Parent == id {
		return lberrors.NewInsufficientPermission(idString(id))
	}
	if newParent == id {
		return lberrors.NewCycle(idString(id))
	}
	if err := t.RequireMode(ctx, s, id, lbmodel.AccessWrite); err != nil {
		return err
	}

	newParentFile, ok, err := s.merged(ctx, newParent)
	if err != nil {
		return err
	}
	if !ok {
		return lberrors.NewFileParentNonexistent(idString(newParent))
	}
	if newParentFile.Metadata.Type.Tag != lbmodel.FileTypeFolder {
		return lberrors.NewFileNotFolder(idString(newParent))
	}

	newParentKey, err := t.KeyFor(ctx, s, newParent)
	if err != nil {
		return err
	}
	fileKey, err := t.KeyFor(ctx, s, id)
	if err != nil {
		return err
	}
	newFolderKey, err := WrapFolderAccessKey(newParentKey, fileKey)
	if err != nil {
		return err
	}

	updated := file
	updated.Metadata.Parent = newParent
	updated.Metadata.FolderAccessKey = newFolderKey
	if updated.Metadata.Type.Tag != lbmodel.FileTypeLink {
		updated.Metadata.Owner = newParentFile.Metadata.Owner
	}
	updated.Metadata.LastModified = timeNow()
	updated.Metadata.LastModifiedBy = t.account.Owner()
	if err := signFile(t.account, &updated); err != nil {
		return err
	}

	s.Put(updated)
	if err := s.Validate(ctx); err != nil {
		return err
	}
	return s.Promote(ctx)
}

// Delete stages is_deleted=true for id. Root cannot be deleted. Content
// and keys are retained; pruning is a separate, later step run by sync.
func (t *Tree) Delete(ctx context.Context, id lbmodel.FileID) error {
	s := t.Stage()
	file, ok, err := s.merged(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return lberrors.NewFileNonexistent(idString(id))
	}
	if file.Metadata.Parent == id {
		return lberrors.NewInsufficientPermission(idString(id))
	}
	if err := t.RequireMode(ctx, s, id, lbmodel.AccessWrite); err != nil {
		return err
	}

	updated := file
	updated.Metadata.IsDeleted = true
	updated.Metadata.LastModified = timeNow()
	updated.Metadata.LastModifiedBy = t.account.Owner()
	if err := signFile(t.account, &updated); err != nil {
		return err
	}

	s.Put(updated)
	if err := s.Validate(ctx); err != nil {
		return err
	}
	return s.Promote(ctx)
}

// WriteDocument encrypts plaintext under id's symmetric key with a fresh
// nonce, writes the resulting blob to blobs under (id, hmac), and stages
// the file update that points document_hmac at it. The blob under the
// file's previous hmac, if any, is left for the next GC sweep to collect
// once nothing in base or local references it.
func (t *Tree) WriteDocument(ctx context.Context, blobs blobstore.Store, id lbmodel.FileID, plaintext []byte) error {
	s := t.Stage()
	file, ok, err := s.merged(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return lberrors.NewFileNonexistent(idString(id))
	}
	if file.Metadata.Type.Tag != lbmodel.FileTypeDocument {
		return lberrors.NewFileNotFolder(idString(id))
	}
	if deleted, err := t.IsDeleted(ctx, s, id); err != nil {
		return err
	} else if deleted {
		return lberrors.NewFileNonexistent(idString(id))
	}
	if err := t.RequireMode(ctx, s, id, lbmodel.AccessWrite); err != nil {
		return err
	}

	key, err := t.KeyFor(ctx, s, id)
	if err != nil {
		return err
	}
	sealed, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return err
	}
	hmac := lbmodel.DocumentHmac(crypto.HMAC(key, plaintext))

	if err := blobs.Put(ctx, blobstore.Key{FileID: id, Hmac: hmac}, sealed); err != nil {
		return err
	}

	updated := file
	updated.Metadata.DocumentHmac = &hmac
	updated.Metadata.LastModified = timeNow()
	updated.Metadata.LastModifiedBy = t.account.Owner()
	if err := signFile(t.account, &updated); err != nil {
		return err
	}

	s.Put(updated)
	if err := s.Validate(ctx); err != nil {
		return err
	}
	return s.Promote(ctx)
}

// ReadDocument fetches and decrypts id's current document content.
func (t *Tree) ReadDocument(ctx context.Context, blobs blobstore.Store, id lbmodel.FileID) ([]byte, error) {
	file, ok, err := t.merged(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lberrors.NewFileNonexistent(idString(id))
	}
	if deleted, err := t.IsDeleted(ctx, t, id); err != nil {
		return nil, err
	} else if deleted {
		return nil, lberrors.NewFileNonexistent(idString(id))
	}
	if file.Metadata.DocumentHmac == nil {
		return []byte{}, nil
	}

	key, err := t.KeyFor(ctx, t, id)
	if err != nil {
		return nil, err
	}
	sealed, ok, err := blobs.Get(ctx, blobstore.Key{FileID: id, Hmac: *file.Metadata.DocumentHmac})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lberrors.NewFileNonexistent(idString(id))
	}
	return crypto.Decrypt(key, sealed)
}

// Share stages addition of a UserAccessKey on id wrapping its symmetric
// key to recipient at mode, signed by this account. Links cannot
// themselves be shared: a recipient shares the link's target directly.
func (t *Tree) Share(ctx context.Context, id lbmodel.FileID, recipient lbmodel.Owner, mode lbmodel.AccessMode) error {
	s := t.Stage()
	file, ok, err := s.merged(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return lberrors.NewFileNonexistent(idString(id))
	}
	if file.Metadata.Type.Tag == lbmodel.FileTypeLink {
		return lberrors.NewLinkInSharedFolder()
	}
	if err := t.RequireMode(ctx, s, id, lbmodel.AccessOwner); err != nil {
		return err
	}

	fileKey, err := t.KeyFor(ctx, s, id)
	if err != nil {
		return err
	}
	sealed, err := WrapShareKey(t.account, recipient, fileKey)
	if err != nil {
		return err
	}

	updated := file
	updated.Metadata.UserAccessKeys = append(append([]lbmodel.UserAccessKey(nil), file.Metadata.UserAccessKeys...), lbmodel.UserAccessKey{
		Recipient: recipient,
		Sealed:    sealed,
		Mode:      mode,
	})
	updated.Metadata.LastModified = timeNow()
	updated.Metadata.LastModifiedBy = t.account.Owner()
	if err := signFile(t.account, &updated); err != nil {
		return err
	}

	s.Put(updated)
	if err := s.Validate(ctx); err != nil {
		return err
	}
	return s.Promote(ctx)
}

// AcceptShare stages a Link{target: sharedID} under folder, named name.
// It is the only way a pending share (a UserAccessKey with no path from
// this account's root) becomes reachable from the account's own tree.
func (t *Tree) AcceptShare(ctx context.Context, folder, sharedID lbmodel.FileID, name string) (lbmodel.FileID, error) {
	if _, ok, err := t.merged(ctx, sharedID); err != nil {
		return lbmodel.FileID{}, err
	} else if !ok {
		return lbmodel.FileID{}, lberrors.NewShareNonexistent()
	}
	return t.Create(ctx, folder, name, lbmodel.Link(sharedID))
}

// CreateLinkAtPath resolves folder and creates a Link{target} inside it
// named name.
func (t *Tree) CreateLinkAtPath(ctx context.Context, folder lbmodel.FileID, name string, target lbmodel.FileID) (lbmodel.FileID, error) {
	return t.Create(ctx, folder, name, lbmodel.Link(target))
}

// NewRootFile builds the single root record a fresh account needs: parent
// equal to its own id, folder_access_key self-wrapped under the account's
// master key, name sealed to the account's username. It is not inserted
// anywhere; the caller (account creation) stages and promotes it, or
// sends it to the server as part of NewAccount.
func NewRootFile(account *lbmodel.Account) (lbmodel.SignedFile, error) {
	masterKey, err := MasterKey(account)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	rootKey, err := crypto.GenerateSymmetricKey()
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	folderKey, err := WrapFolderAccessKey(masterKey, rootKey)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	secretName, err := lbmodel.SealName(masterKey, account.Username)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}

	id := lbmodel.NewFileID()
	file := lbmodel.SignedFile{
		Metadata: lbmodel.FileMetadata{
			ID:              id,
			Type:            lbmodel.Folder(),
			Parent:          id,
			Name:            secretName,
			Owner:           account.Owner(),
			FolderAccessKey: folderKey,
			UserAccessKeys:  []lbmodel.UserAccessKey{},
			LastModified:    timeNow(),
			LastModifiedBy:  account.Owner(),
		},
		Timestamp: timeNow(),
	}
	if err := signFile(account, &file); err != nil {
		return lbmodel.SignedFile{}, err
	}
	return file, nil
}

// Sign stamps file's modification fields for t's account and signs it.
// Exported for the sync engine, which authors new record versions itself
// (a merge-time rename suffix, a conflict document) the same way any
// tree operation does, but outside of Stage/Put/Promote's single-method
// shape.
func (t *Tree) Sign(file *lbmodel.SignedFile) error {
	file.Metadata.LastModified = timeNow()
	file.Metadata.LastModifiedBy = t.account.Owner()
	return signFile(t.account, file)
}

func signFile(account *lbmodel.Account, file *lbmodel.SignedFile) error {
	digest := signingDigest(file.Metadata)
	sig, err := account.PrivateKey.Sign(digest)
	if err != nil {
		return err
	}
	file.Signature = sig
	file.Signer = account.Owner()
	return nil
}

// signingDigest serializes the fields the signature covers: everything in
// the record except the signature itself.
func signingDigest(m lbmodel.FileMetadata) []byte {
	var buf []byte
	buf = append(buf, m.ID[:]...)
	buf = append(buf, byte(m.Type.Tag))
	buf = append(buf, m.Type.Target[:]...)
	buf = append(buf, m.Parent[:]...)
	buf = append(buf, m.Name.EncryptedValue...)
	buf = append(buf, m.Name.Hmac...)
	buf = append(buf, m.Owner.PublicKey...)
	if m.IsDeleted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	if m.DocumentHmac != nil {
		buf = append(buf, m.DocumentHmac[:]...)
	}
	for _, k := range m.UserAccessKeys {
		buf = append(buf, k.Recipient.PublicKey...)
		buf = append(buf, k.Sealed...)
		buf = append(buf, byte(k.Mode))
	}
	buf = append(buf, m.FolderAccessKey.Sealed...)
	return buf
}

func timeNow() time.Time {
	return time.Now().UTC()
}
