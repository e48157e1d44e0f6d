package blobstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

func TestKey_StringRoundTrips(t *testing.T) {
	t.Parallel()

	key := blobstore.Key{FileID: lbmodel.NewFileID(), Hmac: lbmodel.DocumentHmac{1, 2, 3}}
	other := blobstore.Key{FileID: key.FileID, Hmac: key.Hmac}

	assert.Equal(t, key.String(), other.String())
}

func TestKey_DifferentHmacsDifferentStrings(t *testing.T) {
	t.Parallel()

	id := lbmodel.NewFileID()
	a := blobstore.Key{FileID: id, Hmac: lbmodel.DocumentHmac{1}}
	b := blobstore.Key{FileID: id, Hmac: lbmodel.DocumentHmac{2}}

	assert.NotEqual(t, a.String(), b.String())
}
