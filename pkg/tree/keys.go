package tree

import (
	"context"
	"fmt"

	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// masterKeyInfo binds the account's self-wrapped root key to its purpose,
// so the same derivation never accidentally collides with a share-wrap key.
const masterKeyInfo = "lockbook:root-key"

// shareWrapInfo binds the ECDH shared secret between an owner and a share
// recipient to the folder-key-wrapping purpose.
const shareWrapInfo = "lockbook:share-wrap"

// MasterKey derives the symmetric key an account uses to unwrap its own
// root folder_access_key. It is deterministic in the account's private key
// alone, so every device the account logs into re-derives the same key.
func MasterKey(account *lbmodel.Account) (crypto.SymmetricKey, error) {
	return crypto.DeriveKey(account.PrivateKey.Bytes(), nil, masterKeyInfo)
}

// shareUnwrapKey derives the key a recipient uses to open a UserAccessKey
// sealed by owner for them, via ECDH between the two account keys.
func shareUnwrapKey(account *lbmodel.Account, owner lbmodel.Owner) (crypto.SymmetricKey, error) {
	ownerPub, err := crypto.PublicKeyFromBytes(owner.PublicKey)
	if err != nil {
		return crypto.SymmetricKey{}, fmt.Errorf("parse owner public key: %w", err)
	}
	secret, err := account.PrivateKey.SharedSecret(ownerPub)
	if err != nil {
		return crypto.SymmetricKey{}, fmt.Errorf("derive shared secret: %w", err)
	}
	return crypto.DeriveKey(secret, nil, shareWrapInfo)
}

// KeyFor resolves the symmetric key for id by walking its ancestor chain
// in v, stopping at the first key wrapped directly to the account: either
// the root's self-wrap, or a UserAccessKey this account holds on an
// ancestor it was shared into. Results are memoized in key_cache; the
// cache is only ever read and written under t.mu, even though the walk
// itself reads through v.
func (t *Tree) KeyFor(ctx context.Context, v view, id lbmodel.FileID) (crypto.SymmetricKey, error) {
	bare := t.isBare(v)

	if bare {
		t.mu.RLock()
		if t.keyCache != nil {
			if key, ok := t.keyCache[id]; ok {
				t.mu.RUnlock()
				return key, nil
			}
		}
		t.mu.RUnlock()
	}

	key, err := t.resolveKey(ctx, v, id, 0)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}

	if bare {
		t.mu.Lock()
		if t.keyCache == nil {
			t.keyCache = make(map[lbmodel.FileID]crypto.SymmetricKey)
		}
		t.keyCache[id] = key
		t.mu.Unlock()
	}

	return key, nil
}

func (t *Tree) resolveKey(ctx context.Context, v view, id lbmodel.FileID, depth int) (crypto.SymmetricKey, error) {
	if depth > MaxTreeDepth {
		return crypto.SymmetricKey{}, fmt.Errorf("key chain for %s exceeds max depth", id)
	}

	file, ok, err := v.merged(ctx, id)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	if !ok {
		return crypto.SymmetricKey{}, fmt.Errorf("file %s not found while resolving key", id)
	}

	if ownKey, ok := directAccessKey(t.account, file); ok {
		sealed := file.Metadata.FolderAccessKey.Sealed
		if file.Metadata.Parent != file.Metadata.ID {
			me := t.account.Owner()
			for _, grant := range file.Metadata.UserAccessKeys {
				if !grant.Deleted && grant.Recipient.Equal(me) {
					sealed = grant.Sealed
					break
				}
			}
		}
		raw, err := crypto.Decrypt(ownKey, sealed)
		if err != nil {
			return crypto.SymmetricKey{}, fmt.Errorf("unwrap folder access key for %s: %w", id, err)
		}
		return symmetricKeyFromBytes(raw)
	}

	parentKey, err := t.resolveKey(ctx, v, file.Metadata.Parent, depth+1)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	raw, err := crypto.Decrypt(parentKey, file.Metadata.FolderAccessKey.Sealed)
	if err != nil {
		return crypto.SymmetricKey{}, fmt.Errorf("unwrap folder access key for %s: %w", id, err)
	}
	return symmetricKeyFromBytes(raw)
}

// symmetricKeyFromBytes copies a decrypted key blob into a fixed-size
// SymmetricKey, the shape crypto.Decrypt's []byte result needs to end up
// in before it can be used as a wrapping key itself.
func symmetricKeyFromBytes(raw []byte) (crypto.SymmetricKey, error) {
	if len(raw) != crypto.SymmetricKeySize {
		return crypto.SymmetricKey{}, fmt.Errorf("unwrapped key has wrong size: got %d, want %d", len(raw), crypto.SymmetricKeySize)
	}
	var key crypto.SymmetricKey
	copy(key[:], raw)
	return key, nil
}

// WrapFolderAccessKey seals fileKey under wrappingKey, producing the
// folder_access_key a newly created or re-parented file carries.
func WrapFolderAccessKey(wrappingKey, fileKey crypto.SymmetricKey) (lbmodel.FolderAccessKey, error) {
	sealed, err := crypto.Encrypt(wrappingKey, fileKey[:])
	if err != nil {
		return lbmodel.FolderAccessKey{}, err
	}
	return lbmodel.FolderAccessKey{Sealed: sealed}, nil
}

// WrapShareKey seals fileKey for recipient, granted by owner, producing
// the UserAccessKey.Sealed bytes a share carries.
func WrapShareKey(owner *lbmodel.Account, recipient lbmodel.Owner, fileKey crypto.SymmetricKey) ([]byte, error) {
	recipientPub, err := crypto.PublicKeyFromBytes(recipient.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parse recipient public key: %w", err)
	}
	secret, err := owner.PrivateKey.SharedSecret(recipientPub)
	if err != nil {
		return nil, fmt.Errorf("derive shared secret: %w", err)
	}
	wrapKey, err := crypto.DeriveKey(secret, nil, shareWrapInfo)
	if err != nil {
		return nil, err
	}
	return crypto.Encrypt(wrapKey, fileKey[:])
}

// directAccessKey returns the wrapping key this account can use to open
// file's own key without consulting its parent: the account's master key
// at the root, which opens folder_access_key, or the unwrap key of a
// non-deleted UserAccessKey granted to this account on file itself, which
// opens that grant's sealed key.
func directAccessKey(account *lbmodel.Account, file lbmodel.SignedFile) (crypto.SymmetricKey, bool) {
	if file.Metadata.Parent == file.Metadata.ID {
		key, err := MasterKey(account)
		if err != nil {
			return crypto.SymmetricKey{}, false
		}
		return key, true
	}

	me := account.Owner()
	for _, grant := range file.Metadata.UserAccessKeys {
		if grant.Deleted || !grant.Recipient.Equal(me) {
			continue
		}
		key, err := shareUnwrapKey(account, file.Metadata.Owner)
		if err != nil {
			return crypto.SymmetricKey{}, false
		}
		return key, true
	}
	return crypto.SymmetricKey{}, false
}
