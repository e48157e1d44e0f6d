//go:build integration

package s3store_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/blobstore/s3store"
	"github.com/lockbook/lockbook-core/pkg/blobstore/storetest"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// startLocalstack brings up a disposable S3-compatible endpoint for the
// conformance suite; nothing here runs outside `-tags integration`.
func startLocalstack(t *testing.T) (endpoint string) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:3.0",
		ExposedPorts: []string{"4566/tcp"},
		Env:          map[string]string{"SERVICES": "s3", "DEFAULT_REGION": "us-east-1"},
		WaitingFor:   wait.ForListeningPort("4566/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start localstack: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	return "http://" + host + ":" + port.Port()
}

func newClient(t *testing.T, endpoint string) *s3.Client {
	t.Helper()
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion("us-east-1"))
	if err != nil {
		t.Fatalf("failed to load aws config: %v", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
}

func TestConformance(t *testing.T) {
	endpoint := startLocalstack(t)
	client := newClient(t, endpoint)
	bucket := "lockbook-blobs-" + lbmodel.NewFileID().String()

	ctx := context.Background()
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	storetest.Run(t, func(t *testing.T) blobstore.Store {
		return s3store.New(client, s3store.Config{Bucket: bucket, KeyPrefix: "blobs/"})
	})
}
