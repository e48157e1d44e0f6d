package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// minClientVersion is the oldest client_version this server accepts; an
// older one is rejected with CLIENT_UPDATE_REQUIRED rather than processed,
// per spec.md §6's "server rejects wrapped requests that are too old."
const minClientVersion = "lockbook-core/1"

// envelope mirrors pkg/syncclient's wire envelope exactly: a client
// version, a signed payload, the signer's claimed public key, and the
// nonce that signature covers.
type envelope struct {
	ClientVersion string          `json:"client_version"`
	Nonce         int64           `json:"nonce"`
	Signer        lbmodel.Owner   `json:"signer"`
	Payload       json.RawMessage `json:"payload"`
	Signature     []byte          `json:"signature"`
}

// nonceTracker rejects a replayed or out-of-order nonce for a given
// signer. It is intentionally in-memory only: a restarted reference
// server re-accepts the first nonce it sees from each signer, which is an
// acceptable reference-server simplification (a production deployment
// would persist the high-water mark alongside the account row).
type nonceTracker struct {
	mu   sync.Mutex
	last map[string]int64
}

func newNonceTracker() *nonceTracker {
	return &nonceTracker{last: make(map[string]int64)}
}

func (t *nonceTracker) check(signer []byte, nonce int64) bool {
	key := base64.StdEncoding.EncodeToString(signer)
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.last[key]; ok && nonce <= last {
		return false
	}
	t.last[key] = nonce
	return true
}

// signingDigest mirrors pkg/syncclient.signingDigest exactly: the server
// must reconstruct the identical bytes the client signed.
func signingDigest(nonce int64, payload []byte) []byte {
	buf := make([]byte, 8, 8+len(payload))
	for i := 0; i < 8; i++ {
		buf[i] = byte(nonce >> (8 * i))
	}
	return append(buf, payload...)
}

// readEnvelope decodes and authenticates the request body, returning the
// raw payload bytes for the caller to unmarshal into its request type.
// The returned ownerKey is the verified signer's public key.
func (s *Service) readEnvelope(r *http.Request, into any) (ownerKey []byte, err error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &wireError{code: "BAD_REQUEST", message: "malformed envelope"}
	}

	if env.ClientVersion != minClientVersion {
		return nil, &wireError{code: "CLIENT_UPDATE_REQUIRED", message: "client version not supported"}
	}

	pub, err := crypto.PublicKeyFromBytes(env.Signer.PublicKey)
	if err != nil {
		return nil, &wireError{code: "BAD_REQUEST", message: "invalid signer key"}
	}
	digest := signingDigest(env.Nonce, env.Payload)
	if !pub.Verify(digest, env.Signature) {
		return nil, &wireError{code: "VALIDATION_SIGNATURE_INVALID", message: "envelope signature invalid"}
	}

	if !s.nonces.check(env.Signer.PublicKey, env.Nonce) {
		return nil, &wireError{code: "BAD_REQUEST", message: "nonce replayed or out of order"}
	}

	if into != nil {
		if err := json.Unmarshal(env.Payload, into); err != nil {
			return nil, &wireError{code: "BAD_REQUEST", message: "malformed payload"}
		}
	}
	return env.Signer.PublicKey, nil
}
