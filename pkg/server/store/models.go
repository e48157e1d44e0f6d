// Package store is the reference server's durable metadata backend: gorm
// over sqlite (single node) or postgres (HA-capable), mirroring the
// sqlite/postgres split the teacher's control-plane store offers for its
// own account/share tables.
package store

import (
	"time"

	"gorm.io/gorm"
)

// Account is a registered username and its account public key, the
// server-side counterpart of the engine's own lbmodel.Account.
type Account struct {
	Username  string `gorm:"primaryKey"`
	PublicKey []byte `gorm:"not null"`
	CreatedAt time.Time
}

// FileRecord is the server's row for one file record's current version.
// Encrypted fields (Name, FolderAccessKeySealed, UserAccessKeys) travel
// and are stored as opaque ciphertext; the server never decrypts them.
type FileRecord struct {
	ID                    string `gorm:"primaryKey"`
	MetadataVersion       int64  `gorm:"uniqueIndex;not null"`
	TypeTag               int
	TypeTarget            string
	Parent                string `gorm:"index"`
	NameCiphertext        []byte
	NameHmac              []byte
	OwnerPublicKey        []byte `gorm:"index"`
	IsDeleted             bool
	DocumentHmac          []byte
	DocumentSize          uint64
	FolderAccessKeySealed []byte
	UserAccessKeys        []byte // JSON-encoded []lbmodel.UserAccessKey, opaque to the server
	LastModified          time.Time
	LastModifiedByKey     []byte
	Signer                []byte
	Signature             []byte
	SignedTimestamp       time.Time
}

// versionCounter holds the single monotonic metadata-version sequence.
// A dedicated row (rather than a database-native sequence) keeps the
// increment portable across sqlite and postgres through one gorm
// transaction, at the cost of one row lock per write.
type versionCounter struct {
	ID    uint `gorm:"primaryKey"`
	Value int64
}

func (versionCounter) TableName() string { return "version_counters" }

// allModels is the set AutoMigrate applies, mirroring the teacher's
// models.AllModels() helper.
func allModels() []any {
	return []any{&Account{}, &FileRecord{}, &versionCounter{}}
}

// nextVersion atomically advances and returns the server's metadata
// version counter inside tx.
func nextVersion(tx *gorm.DB) (int64, error) {
	if err := tx.FirstOrCreate(&versionCounter{ID: 1}, versionCounter{ID: 1, Value: 0}).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&versionCounter{}).Where("id = ?", 1).
		Update("value", gorm.Expr("value + 1")).Error; err != nil {
		return 0, err
	}
	var vc versionCounter
	if err := tx.First(&vc, 1).Error; err != nil {
		return 0, err
	}
	return vc.Value, nil
}
