package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// ErrAccountExists is returned by CreateAccount when the username is
// already registered.
var ErrAccountExists = errors.New("account already exists")

// ErrAccountNotFound is returned when a username has no registered account.
var ErrAccountNotFound = errors.New("account not found")

// ErrOldVersionRequired is returned by Upsert/ChangeDoc when a diff's Old
// version doesn't match the record currently stored, meaning the caller
// must GetUpdates and retry on top of the current state.
var ErrOldVersionRequired = errors.New("stored version is newer than the diff's prior version")

// ErrDeletedFileUpdated is returned when a diff targets a record the
// server already has marked deleted.
var ErrDeletedFileUpdated = errors.New("file is already deleted")

// CreateAccount registers username with its public key and inserts root
// as the account's first file record, atomically assigning it the next
// metadata version from the server-wide counter (1 on a fresh server).
func (s *Store) CreateAccount(ctx context.Context, username string, publicKey []byte, root lbmodel.SignedFile) (int64, error) {
	var version int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Account
		if err := tx.First(&existing, "username = ?", username).Error; err == nil {
			return ErrAccountExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(&Account{Username: username, PublicKey: publicKey, CreatedAt: time.Now().UTC()}).Error; err != nil {
			return err
		}

		v, err := nextVersion(tx)
		if err != nil {
			return err
		}
		version = v

		rec, err := toRecord(root, version)
		if err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	return version, err
}

// GetByID fetches one file record by id, for the API layer's access
// control walk. ok is false if no such record exists.
func (s *Store) GetByID(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error) {
	var rec FileRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lbmodel.SignedFile{}, false, nil
	}
	if err != nil {
		return lbmodel.SignedFile{}, false, err
	}
	f, err := fromRecord(rec)
	if err != nil {
		return lbmodel.SignedFile{}, false, err
	}
	return f, true, nil
}

// GetPublicKey resolves username to its registered account public key.
func (s *Store) GetPublicKey(ctx context.Context, username string) ([]byte, error) {
	var acc Account
	if err := s.db.WithContext(ctx).First(&acc, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acc.PublicKey, nil
}

// GetUpdates returns every record with a metadata version greater than
// since, in version order, plus the highest version among them (or since,
// if nothing changed) as the next pull cursor.
func (s *Store) GetUpdates(ctx context.Context, since int64) ([]lbmodel.SignedFile, int64, error) {
	var records []FileRecord
	if err := s.db.WithContext(ctx).
		Where("metadata_version > ?", since).
		Order("metadata_version asc").
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	files := make([]lbmodel.SignedFile, 0, len(records))
	newSince := since
	for _, r := range records {
		f, err := fromRecord(r)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, f)
		if r.MetadataVersion > newSince {
			newSince = r.MetadataVersion
		}
	}
	return files, newSince, nil
}

// Upsert applies one metadata diff: an insert if diff.Old is nil, a
// compare-and-swap update otherwise. diff.Old (when present) must match
// the record the server currently holds for this id, field for field
// (ignoring LastModified/LastModifiedBy, which are bookkeeping); any
// mismatch means the caller pushed on top of a version it never pulled,
// so it must GetUpdates and retry. Permission and cap enforcement happen
// one layer up, in pkg/server/api, which has the envelope's verified
// signer to check against.
func (s *Store) Upsert(ctx context.Context, diff lbmodel.FileDiff) (int64, error) {
	var version int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id := diff.ID().String()

		var current FileRecord
		err := tx.First(&current, "id = ?", id).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if diff.Old != nil {
				return ErrOldVersionRequired
			}
		case err != nil:
			return err
		default:
			if diff.Old == nil {
				return ErrOldVersionRequired
			}
			currentFile, cerr := fromRecord(current)
			if cerr != nil {
				return cerr
			}
			if !currentFile.Metadata.Equal(diff.Old.Metadata) {
				return ErrOldVersionRequired
			}
			if current.IsDeleted {
				return ErrDeletedFileUpdated
			}
			// Upsert never carries document bytes; preserve whatever size
			// ChangeDoc last recorded for this id.
		}

		v, err := nextVersion(tx)
		if err != nil {
			return err
		}
		version = v

		rec, err := toRecord(diff.New, version)
		if err != nil {
			return err
		}
		rec.DocumentSize = current.DocumentSize
		return tx.Save(&rec).Error
	})
	return version, err
}

// SetDocumentSize records the ciphertext size ChangeDoc just stored for
// id's current version, used by GetUsage. The server's usage accounting
// tracks ciphertext bytes, the same quantity the blob store actually
// holds, rather than re-deriving it from ciphertext length scattered
// across separate blob reads on every GetUsage call.
func (s *Store) SetDocumentSize(ctx context.Context, id lbmodel.FileID, size uint64) error {
	return s.db.WithContext(ctx).Model(&FileRecord{}).
		Where("id = ?", id.String()).
		Update("document_size", size).Error
}

// ListAccounts returns every registered account, oldest first, for the
// admin API's operator-facing account listing.
func (s *Store) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetUsage returns the last-recorded document size of each non-deleted
// document owned by ownerPublicKey, keyed by file id. It does not sum them.
func (s *Store) GetUsage(ctx context.Context, ownerPublicKey []byte) (map[string]uint64, error) {
	var records []FileRecord
	if err := s.db.WithContext(ctx).
		Where("owner_public_key = ? AND is_deleted = ?", ownerPublicKey, false).
		Find(&records).Error; err != nil {
		return nil, err
	}
	usage := make(map[string]uint64, len(records))
	for _, r := range records {
		if r.DocumentHmac != nil {
			usage[r.ID] = r.DocumentSize
		}
	}
	return usage, nil
}

func toRecord(f lbmodel.SignedFile, version int64) (FileRecord, error) {
	m := f.Metadata
	keys, err := json.Marshal(m.UserAccessKeys)
	if err != nil {
		return FileRecord{}, err
	}
	var docHmac []byte
	if m.DocumentHmac != nil {
		h := *m.DocumentHmac
		docHmac = h[:]
	}
	return FileRecord{
		ID:                    m.ID.String(),
		MetadataVersion:       version,
		TypeTag:               int(m.Type.Tag),
		TypeTarget:            m.Type.Target.String(),
		Parent:                m.Parent.String(),
		NameCiphertext:        m.Name.EncryptedValue,
		NameHmac:              m.Name.Hmac,
		OwnerPublicKey:        m.Owner.PublicKey,
		IsDeleted:             m.IsDeleted,
		DocumentHmac:          docHmac,
		FolderAccessKeySealed: m.FolderAccessKey.Sealed,
		UserAccessKeys:        keys,
		LastModified:          m.LastModified,
		LastModifiedByKey:     m.LastModifiedBy.PublicKey,
		Signer:                f.Signer.PublicKey,
		Signature:             f.Signature,
		SignedTimestamp:       f.Timestamp,
	}, nil
}

func fromRecord(r FileRecord) (lbmodel.SignedFile, error) {
	id, err := lbmodel.ParseFileID(r.ID)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	parent, err := lbmodel.ParseFileID(r.Parent)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	var target lbmodel.FileID
	if r.TypeTarget != "" {
		target, err = lbmodel.ParseFileID(r.TypeTarget)
		if err != nil {
			return lbmodel.SignedFile{}, err
		}
	}
	var keys []lbmodel.UserAccessKey
	if len(r.UserAccessKeys) > 0 {
		if err := json.Unmarshal(r.UserAccessKeys, &keys); err != nil {
			return lbmodel.SignedFile{}, err
		}
	}
	var docHmac *lbmodel.DocumentHmac
	if len(r.DocumentHmac) == 32 {
		var h lbmodel.DocumentHmac
		copy(h[:], r.DocumentHmac)
		docHmac = &h
	}

	metadata := lbmodel.FileMetadata{
		ID:     id,
		Type:   lbmodel.FileType{Tag: lbmodel.FileTypeTag(r.TypeTag), Target: target},
		Parent: parent,
		Name: lbmodel.SecretFileName{
			EncryptedValue: r.NameCiphertext,
			Hmac:           r.NameHmac,
		},
		Owner:           lbmodel.Owner{PublicKey: r.OwnerPublicKey},
		IsDeleted:       r.IsDeleted,
		DocumentHmac:    docHmac,
		UserAccessKeys:  keys,
		FolderAccessKey: lbmodel.FolderAccessKey{Sealed: r.FolderAccessKeySealed},
		LastModified:    r.LastModified,
		LastModifiedBy:  lbmodel.Owner{PublicKey: r.LastModifiedByKey},
	}
	return lbmodel.SignedFile{
		Metadata:  metadata,
		Signer:    lbmodel.Owner{PublicKey: r.Signer},
		Signature: r.Signature,
		Timestamp: r.SignedTimestamp,
	}, nil
}
