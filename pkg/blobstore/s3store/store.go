// Package s3store is an S3-backed blobstore.Store, used by the reference
// server. Blobs are objects keyed by blobstore.Key.String(), optionally
// under a fixed prefix.
package s3store

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// Config configures which bucket and key prefix a Store writes to.
type Config struct {
	Bucket    string
	KeyPrefix string
}

// Store wraps an *s3.Client with no business logic of its own.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New returns a Store that stores blobs in bucket under cfg.KeyPrefix.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.KeyPrefix}
}

func (s *Store) objectKey(key blobstore.Key) string {
	return s.prefix + key.String()
}

func (s *Store) Get(ctx context.Context, key blobstore.Key) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) Put(ctx context.Context, key blobstore.Key, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *Store) Delete(ctx context.Context, key blobstore.Key) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	return err
}

func (s *Store) ListKeys(ctx context.Context) ([]blobstore.Key, error) {
	var keys []blobstore.Key

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if key, ok := parseKey(rel); ok {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func parseKey(rel string) (blobstore.Key, bool) {
	idStr, hmacHex, found := strings.Cut(rel, "/")
	if !found {
		return blobstore.Key{}, false
	}
	id, err := lbmodel.ParseFileID(idStr)
	if err != nil {
		return blobstore.Key{}, false
	}
	var hmac lbmodel.DocumentHmac
	raw, err := hex.DecodeString(hmacHex)
	if err != nil || len(raw) != len(hmac) {
		return blobstore.Key{}, false
	}
	copy(hmac[:], raw)
	return blobstore.Key{FileID: id, Hmac: hmac}, true
}

func (s *Store) Healthcheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *Store) Close() error {
	return nil
}
