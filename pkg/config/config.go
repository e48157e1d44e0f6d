// Package config loads the settings shared by cmd/lockbook and cmd/lockbookd:
// logging, the client's local storage backends, and the reference server's
// database and HTTP surface. A single Config type covers both binaries since
// they share the logging and storage-backend-selection shape; each binary
// simply ignores the fields it has no use for.
package config

import (
	"time"

	"github.com/lockbook/lockbook-core/internal/logger"
	"github.com/lockbook/lockbook-core/pkg/server/api"
	"github.com/lockbook/lockbook-core/pkg/server/store"
)

// Config is the root configuration structure, decoded from a YAML file and
// environment variables and checked against its validate tags before use.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (LOCKBOOK_* prefix, plus bare API_URL/WRITABLE_PATH)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// ShutdownTimeout is decoded, defaulted and validated, but lockbookd
	// does not read it: api.Server.Start always allows in-flight requests
	// 5s to finish during a graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// WritablePath is the directory cmd/lockbook stores its account's
	// local base/local metadata and document cache under.
	WritablePath string `mapstructure:"writable_path" yaml:"writable_path" validate:"required"`

	// APIURL is the reference server cmd/lockbook syncs against.
	APIURL string `mapstructure:"api_url" yaml:"api_url" validate:"required,url"`

	// MetadataStore selects the client's local metadata backend.
	MetadataStore MetadataStoreConfig `mapstructure:"metadata_store" yaml:"metadata_store"`

	// BlobStore selects the client's local document blob backend.
	BlobStore BlobStoreConfig `mapstructure:"blob_store" yaml:"blob_store"`

	// Database configures lockbookd's metadata persistence (sqlite or
	// postgres).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// API configures lockbookd's HTTP surface: ports, timeouts, data cap,
	// and the admin API's credential.
	API api.Config `mapstructure:"api" yaml:"api"`

	// ServerBlobStore selects lockbookd's document blob backend, which in
	// production is typically s3 rather than the client's fs backend.
	ServerBlobStore BlobStoreConfig `mapstructure:"server_blob_store" yaml:"server_blob_store"`
}

// LoggingConfig controls logging behavior, decoded straight into an
// internal/logger.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ToLoggerConfig converts to the shape internal/logger.Init accepts.
func (c LoggingConfig) ToLoggerConfig() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format, Output: c.Output}
}

// MetadataStoreConfig selects the client's local base/local metadata
// backend: memory for ephemeral or test accounts, badger for a real device.
type MetadataStoreConfig struct {
	Type   string       `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`
	Badger BadgerConfig `mapstructure:"badger" yaml:"badger"`
}

// BadgerConfig configures the on-disk badger-backed metadata store.
type BadgerConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// BlobStoreConfig selects a document blob backend. memory and fs are
// available to both client and server; s3 is the reference server's
// production backend.
type BlobStoreConfig struct {
	Type       string       `mapstructure:"type" yaml:"type" validate:"required,oneof=memory fs s3"`
	Filesystem FSBlobConfig `mapstructure:"filesystem" yaml:"filesystem"`
	S3         S3BlobConfig `mapstructure:"s3" yaml:"s3"`
}

// FSBlobConfig configures the filesystem-backed blob store.
type FSBlobConfig struct {
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
}

// S3BlobConfig configures the S3-backed blob store.
type S3BlobConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix" yaml:"key_prefix"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}
