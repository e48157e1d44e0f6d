package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore"
	lbsync "github.com/lockbook/lockbook-core/pkg/sync"
	"github.com/lockbook/lockbook-core/pkg/syncclient"
	"github.com/lockbook/lockbook-core/pkg/tree"
)

func clientFor(account *lbmodel.Account) *syncclient.Client {
	return syncclient.New(account.APIURL, account)
}

// accountString is the on-the-wire shape of an exported account: just
// enough to reconstruct the identity key and know which server to talk
// to. It is base64'd as a whole so the exported string is copy/paste
// safe; there is no ecosystem serialization library in play here any
// more than there would be for any other one-shot identity blob, so this
// stays on stdlib encoding/json + encoding/base64.
type accountString struct {
	Username string `json:"username"`
	Key      []byte `json:"key"`
	APIURL   string `json:"api_url"`
}

// CreateAccount generates a fresh identity key for username, registers
// it (and a new root folder) with the server at apiURL, and returns an
// engine ready to use over base/local/blobs. The server call happens
// before anything is written locally: a rejected username (already
// taken) leaves no local trace to clean up.
func CreateAccount(ctx context.Context, username, apiURL string, base, local metadatastore.Store, blobs blobstore.Store, cursor lbsync.Cursor) (*Engine, error) {
	key, err := crypto.GenerateAccountKey()
	if err != nil {
		return nil, err
	}
	account := &lbmodel.Account{Username: username, PrivateKey: key, APIURL: apiURL}

	root, err := tree.NewRootFile(account)
	if err != nil {
		return nil, err
	}

	client := clientFor(account)
	if _, err := client.NewAccount(ctx, username, account.PublicKey().Bytes(), root); err != nil {
		return nil, err
	}

	if err := base.Put(ctx, root); err != nil {
		return nil, err
	}

	return New(account, base, local, blobs, cursor), nil
}

// ImportAccount reconstructs an engine from a string previously produced
// by Engine.ExportAccount, over a fresh (typically empty) base/local/
// blobs; the caller is expected to Sync before doing anything else, the
// way an empty base naturally pulls the account's whole remote state on
// its first sync.
func ImportAccount(s string, base, local metadatastore.Store, blobs blobstore.Store, cursor lbsync.Cursor) (*Engine, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, lberrors.NewAccountStringCorrupted()
	}
	var decoded accountString
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, lberrors.NewAccountStringCorrupted()
	}

	key, err := crypto.AccountKeyFromBytes(decoded.Key)
	if err != nil {
		return nil, lberrors.NewInvalidPrivateKey(err)
	}
	account := &lbmodel.Account{Username: decoded.Username, PrivateKey: key, APIURL: decoded.APIURL}

	return New(account, base, local, blobs, cursor), nil
}

// ExportAccount encodes this engine's account identity into a string
// ImportAccount can reconstruct on another device.
func (e *Engine) ExportAccount() (string, error) {
	raw, err := json.Marshal(accountString{
		Username: e.account.Username,
		Key:      e.account.PrivateKey.Bytes(),
		APIURL:   e.account.APIURL,
	})
	if err != nil {
		return "", fmt.Errorf("encode account: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
