package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks cfg's validate struct tags and the backend-specific rules
// struct tags alone can't express (an s3 blob store needs a bucket, e.g.).
// Call after ApplyDefaults so Validate only ever rejects values the caller
// actually set.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	if err := validateBlobStore("blob_store", cfg.BlobStore); err != nil {
		return err
	}
	if err := validateBlobStore("server_blob_store", cfg.ServerBlobStore); err != nil {
		return err
	}
	return nil
}

func validateBlobStore(field string, cfg BlobStoreConfig) error {
	switch cfg.Type {
	case "s3":
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("%s: s3 backend requires bucket to be set", field)
		}
	case "fs":
		if cfg.Filesystem.BasePath == "" {
			return fmt.Errorf("%s: filesystem backend requires base_path to be set", field)
		}
	case "memory":
	default:
		return fmt.Errorf("%s: unknown blob store type %q", field, cfg.Type)
	}
	return nil
}
