package config

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/blobstore/fsstore"
	"github.com/lockbook/lockbook-core/pkg/blobstore/memstore"
	"github.com/lockbook/lockbook-core/pkg/blobstore/s3store"
	"github.com/lockbook/lockbook-core/pkg/metadatastore"
	"github.com/lockbook/lockbook-core/pkg/metadatastore/badger"
	"github.com/lockbook/lockbook-core/pkg/metadatastore/memory"
)

// CreateMetadataStore builds the metadatastore.Store cfg selects. Called
// twice by cmd/lockbook, once for the base layer and once for the local
// layer, each under its own subdirectory of cfg.Badger.Path.
func CreateMetadataStore(cfg MetadataStoreConfig, subdir string) (metadatastore.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "badger":
		path := cfg.Badger.Path
		if subdir != "" {
			path = path + "/" + subdir
		}
		return badger.Open(path)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
}

// CreateBlobStore builds the blobstore.Store cfg selects.
func CreateBlobStore(ctx context.Context, cfg BlobStoreConfig) (blobstore.Store, error) {
	switch cfg.Type {
	case "memory":
		return memstore.New(), nil
	case "fs":
		if cfg.Filesystem.BasePath == "" {
			return nil, fmt.Errorf("filesystem blob store requires base_path to be set")
		}
		return fsstore.New(cfg.Filesystem.BasePath)
	case "s3":
		return createS3BlobStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob store type: %q", cfg.Type)
	}
}

// createS3BlobStore builds an S3-backed blob store, loading AWS credentials
// the same way as a static access key/secret pair plus an optional
// S3-compatible endpoint override (e.g. MinIO in a self-hosted deployment).
func createS3BlobStore(ctx context.Context, cfg S3BlobConfig) (blobstore.Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 blob store requires bucket to be set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return s3store.New(client, s3store.Config{Bucket: cfg.Bucket, KeyPrefix: cfg.KeyPrefix}), nil
}
