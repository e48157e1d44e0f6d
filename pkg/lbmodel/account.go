package lbmodel

import "github.com/lockbook/lockbook-core/pkg/crypto"

// Account is the identity an engine instance is bound to: a username and
// the private key that signs every file record and derives every wrapping
// key this device produces.
type Account struct {
	Username   string
	PrivateKey *crypto.AccountKey
	APIURL     string
}

// PublicKey returns the account's public identity.
func (a *Account) PublicKey() *crypto.PublicKey {
	return a.PrivateKey.PublicKey()
}

// Owner returns this account as an Owner value, as embedded in file
// records this account creates or is granted access to.
func (a *Account) Owner() Owner {
	return Owner{PublicKey: a.PublicKey().Bytes()}
}
