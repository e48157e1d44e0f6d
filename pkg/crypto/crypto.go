// Package crypto wraps the primitives the engine needs: account keypairs,
// signing, key wrapping and AEAD encryption of names and documents. Every
// function here is a thin, side-effect-free wrapper over a stdlib or
// golang.org/x/crypto primitive; no key material is logged or cached.
package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// SymmetricKeySize is the size in bytes of a chacha20poly1305 key.
const SymmetricKeySize = chacha20poly1305.KeySize

// SymmetricKey is a raw AEAD key: a folder access key, a document key, or a
// derived wrapping key.
type SymmetricKey [SymmetricKeySize]byte

// GenerateSymmetricKey returns a fresh random symmetric key.
func GenerateSymmetricKey() (SymmetricKey, error) {
	var k SymmetricKey
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return k, fmt.Errorf("generate symmetric key: %w", err)
	}
	return k, nil
}

// Encrypt seals plaintext under key with a fresh random nonce, returning
// nonce||ciphertext.
func Encrypt(key SymmetricKey, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce||ciphertext blob produced by Encrypt.
func Decrypt(key SymmetricKey, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("ciphertext shorter than nonce")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open aead: %w", err)
	}
	return plaintext, nil
}

// DeriveKey derives a symmetric key from an ECDH shared secret via HKDF-SHA256.
// info binds the derived key to its purpose (e.g. "lockbook:folder-wrap").
func DeriveKey(secret, salt []byte, info string) (SymmetricKey, error) {
	var out SymmetricKey
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, fmt.Errorf("hkdf derive: %w", err)
	}
	return out, nil
}

// HMAC computes the HMAC-SHA256 of data keyed by a document or file key.
// Used for document content ids and secret file name integrity tags.
func HMAC(key SymmetricKey, data []byte) [32]byte {
	mac := hmac.New(sha256.New, key[:])
	mac.Write(data)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// ============================================================================
// Account identity: signing (ECDSA P-256) and key exchange (ECDH P-256)
// ============================================================================

// AccountKey is an account's private identity key. It doubles as a signing
// key (ECDSA) and, via its ECDH() conversion, a key-exchange key.
type AccountKey struct {
	priv *ecdsa.PrivateKey
}

// GenerateAccountKey creates a fresh P-256 account identity key.
func GenerateAccountKey() (*AccountKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}
	return &AccountKey{priv: priv}, nil
}

// AccountKeyFromBytes reconstructs an account key from a raw scalar, as
// stored in an exported account string.
func AccountKeyFromBytes(raw []byte) (*AccountKey, error) {
	priv, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), raw)
	if err != nil {
		return nil, fmt.Errorf("parse account key: %w", err)
	}
	return &AccountKey{priv: priv}, nil
}

// Bytes returns the raw scalar of the private key, for embedding in an
// exported account string.
func (k *AccountKey) Bytes() []byte {
	return k.priv.D.Bytes()
}

// PublicKey returns the account's public identity, used as the username's
// bound key and as the recipient key in shares.
func (k *AccountKey) PublicKey() *PublicKey {
	return &PublicKey{pub: &k.priv.PublicKey}
}

// Sign produces an ECDSA signature over the SHA-256 digest of data.
func (k *AccountKey) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, k.priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// ECDH returns this key's ECDH form for shared-secret derivation with a
// recipient's public key (folder access key wrapping for shares).
func (k *AccountKey) ECDH() (*ecdh.PrivateKey, error) {
	return k.priv.ECDH()
}

// SharedSecret derives an ECDH shared secret with a peer's public key.
func (k *AccountKey) SharedSecret(peer *PublicKey) ([]byte, error) {
	ours, err := k.ECDH()
	if err != nil {
		return nil, fmt.Errorf("own ecdh key: %w", err)
	}
	theirs, err := peer.pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("peer ecdh key: %w", err)
	}
	secret, err := ours.ECDH(theirs)
	if err != nil {
		return nil, fmt.Errorf("ecdh exchange: %w", err)
	}
	return secret, nil
}

// PublicKey is an account's public identity: verification key and ECDH
// exchange key.
type PublicKey struct {
	pub *ecdsa.PublicKey
}

// Verify checks an ECDSA signature over the SHA-256 digest of data.
func (p *PublicKey) Verify(data, sig []byte) bool {
	digest := sha256.Sum256(data)
	return ecdsa.VerifyASN1(p.pub, digest[:], sig)
}

// Bytes returns the uncompressed point encoding of the public key, used as
// the username-bound identity embedded in signed files and shares.
func (p *PublicKey) Bytes() []byte {
	return elliptic.Marshal(elliptic.P256(), p.pub.X, p.pub.Y)
}

// PublicKeyFromBytes parses an uncompressed P-256 point.
func PublicKeyFromBytes(raw []byte) (*PublicKey, error) {
	x, y := elliptic.Unmarshal(elliptic.P256(), raw)
	if x == nil {
		return nil, errors.New("invalid public key encoding")
	}
	return &PublicKey{pub: &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}}, nil
}
