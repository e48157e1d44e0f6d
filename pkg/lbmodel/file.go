// Package lbmodel defines the core file record types shared by the
// metadata store, the tree and the sync engine.
package lbmodel

import (
	"time"

	"github.com/google/uuid"

	"github.com/lockbook/lockbook-core/pkg/crypto"
)

// FileID identifies a file record. Ids are opaque UUIDv4s; they carry no
// information about position in the tree.
type FileID = uuid.UUID

// NewFileID generates a fresh random file id.
func NewFileID() FileID {
	return uuid.New()
}

// NilFileID is the zero-value file id, never a valid file.
var NilFileID = uuid.Nil

// ParseFileID parses the canonical string form of a file id, as produced by
// FileID.String().
func ParseFileID(s string) (FileID, error) {
	return uuid.Parse(s)
}

// FileTypeTag distinguishes the three shapes a file record can take.
type FileTypeTag int

const (
	FileTypeDocument FileTypeTag = iota
	FileTypeFolder
	FileTypeLink
)

func (t FileTypeTag) String() string {
	switch t {
	case FileTypeDocument:
		return "Document"
	case FileTypeFolder:
		return "Folder"
	case FileTypeLink:
		return "Link"
	default:
		return "Unknown"
	}
}

// FileType tags a file as a Document, a Folder, or a Link pointing at
// another file. Target is only meaningful when Tag == FileTypeLink.
type FileType struct {
	Tag    FileTypeTag
	Target FileID
}

// Document constructs a Document file type.
func Document() FileType { return FileType{Tag: FileTypeDocument} }

// Folder constructs a Folder file type.
func Folder() FileType { return FileType{Tag: FileTypeFolder} }

// Link constructs a Link file type pointing at target.
func Link(target FileID) FileType { return FileType{Tag: FileTypeLink, Target: target} }

// DocumentHmac is the content identifier for a document version, computed
// with the file's symmetric key over its decrypted bytes.
type DocumentHmac [32]byte

// SecretFileName is the encrypted, integrity-tagged form of a file's
// plaintext name: collision-detectable across clients without decryption
// because it is deterministic under (name, key).
type SecretFileName struct {
	EncryptedValue []byte // AEAD-sealed UTF-8 name
	Hmac           []byte // HMAC of the plaintext name under the file's key, for collision checks
}

// SealName encrypts a plaintext name under key, computing the collision
// HMAC in the same step. Callers validate the plaintext (non-empty, no
// '/') before calling this.
func SealName(key crypto.SymmetricKey, plaintext string) (SecretFileName, error) {
	sealed, err := crypto.Encrypt(key, []byte(plaintext))
	if err != nil {
		return SecretFileName{}, err
	}
	mac := crypto.HMAC(key, []byte(plaintext))
	return SecretFileName{EncryptedValue: sealed, Hmac: mac[:]}, nil
}

// Reveal decrypts the plaintext name using key.
func (n SecretFileName) Reveal(key crypto.SymmetricKey) (string, error) {
	plaintext, err := crypto.Decrypt(key, n.EncryptedValue)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Equal reports whether two secret names were derived from the same
// plaintext name under the same key, without decrypting either.
func (n SecretFileName) Equal(other SecretFileName) bool {
	if len(n.Hmac) != len(other.Hmac) {
		return false
	}
	for i := range n.Hmac {
		if n.Hmac[i] != other.Hmac[i] {
			return false
		}
	}
	return true
}

// Owner is the public key of a file's owning account. It is a distinct
// type rather than a bare byte slice so that ownership comparisons and
// key-chain lookups cannot be confused with other byte blobs.
type Owner struct {
	PublicKey []byte
}

// Equal compares two owners by their encoded public key.
func (o Owner) Equal(other Owner) bool {
	if len(o.PublicKey) != len(other.PublicKey) {
		return false
	}
	for i := range o.PublicKey {
		if o.PublicKey[i] != other.PublicKey[i] {
			return false
		}
	}
	return true
}

// AccessMode is the level of access a UserAccessKey grants. Modes are
// ordered: AccessRead < AccessWrite < AccessOwner, so callers can compare
// with >= to ask "at least write", etc.
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
	AccessOwner
)

func (m AccessMode) String() string {
	switch m {
	case AccessOwner:
		return "Owner"
	case AccessWrite:
		return "Write"
	default:
		return "Read"
	}
}

// FolderAccessKey is the file's own symmetric key, wrapped (AEAD-sealed)
// under its parent's symmetric key. The root wraps its own key under
// itself, terminating the chain.
type FolderAccessKey struct {
	Sealed []byte
}

// UserAccessKey grants an account (Recipient) access to a file's symmetric
// key, wrapped under the recipient's public key via ECDH, independent of
// the parent-chain wrapping used for FolderAccessKey.
type UserAccessKey struct {
	Recipient Owner
	Sealed    []byte // file key wrapped under a key derived from ECDH(sender, recipient)
	Mode      AccessMode
	Deleted   bool // true once the grant has been revoked; kept for tombstone/signature history
}

// FileMetadata is one version of a file record, as stored in the base or
// local layer prior to signing.
type FileMetadata struct {
	ID              FileID
	Type            FileType
	Parent          FileID
	Name            SecretFileName
	Owner           Owner
	IsDeleted       bool
	DocumentHmac    *DocumentHmac // nil until the document has content
	UserAccessKeys  []UserAccessKey
	FolderAccessKey FolderAccessKey
	LastModified    time.Time
	LastModifiedBy  Owner
}

// Equal compares two FileMetadata values field-by-field, the way the
// engine needs to when deciding whether a record changed. It intentionally
// does not compare LastModified/LastModifiedBy, which are bookkeeping, not
// semantic content.
func (m FileMetadata) Equal(other FileMetadata) bool {
	if m.ID != other.ID || m.Parent != other.Parent || m.IsDeleted != other.IsDeleted {
		return false
	}
	if m.Type != other.Type {
		return false
	}
	if !m.Name.Equal(other.Name) {
		return false
	}
	if !m.Owner.Equal(other.Owner) {
		return false
	}
	if (m.DocumentHmac == nil) != (other.DocumentHmac == nil) {
		return false
	}
	if m.DocumentHmac != nil && *m.DocumentHmac != *other.DocumentHmac {
		return false
	}
	if len(m.UserAccessKeys) != len(other.UserAccessKeys) {
		return false
	}
	for i := range m.UserAccessKeys {
		if !m.UserAccessKeys[i].Recipient.Equal(other.UserAccessKeys[i].Recipient) ||
			m.UserAccessKeys[i].Mode != other.UserAccessKeys[i].Mode ||
			m.UserAccessKeys[i].Deleted != other.UserAccessKeys[i].Deleted {
			return false
		}
	}
	return true
}

// SignedFile pairs a FileMetadata with the account signature authorizing
// it, and the public key of the signer for verification without a
// keychain lookup.
type SignedFile struct {
	Metadata  FileMetadata
	Signer    Owner
	Signature []byte
	Timestamp time.Time
}
