package fsstore_test

import (
	"testing"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/blobstore/fsstore"
	"github.com/lockbook/lockbook-core/pkg/blobstore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) blobstore.Store {
		store, err := fsstore.New(t.TempDir())
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		return store
	})
}
