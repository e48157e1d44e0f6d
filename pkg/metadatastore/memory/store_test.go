package memory_test

import (
	"testing"

	"github.com/lockbook/lockbook-core/pkg/metadatastore"
	"github.com/lockbook/lockbook-core/pkg/metadatastore/memory"
	"github.com/lockbook/lockbook-core/pkg/metadatastore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) metadatastore.Store {
		return memory.New()
	})
}
