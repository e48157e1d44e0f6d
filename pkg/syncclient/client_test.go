package syncclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/syncclient"
)

func newTestAccount(t *testing.T) *lbmodel.Account {
	t.Helper()
	key, err := crypto.GenerateAccountKey()
	require.NoError(t, err)
	return &lbmodel.Account{Username: "alice", PrivateKey: key}
}

func newRootFile(t *testing.T, acc *lbmodel.Account) lbmodel.SignedFile {
	t.Helper()
	owner := acc.Owner()
	id := lbmodel.NewFileID()
	return lbmodel.SignedFile{
		Metadata: lbmodel.FileMetadata{
			ID:     id,
			Type:   lbmodel.Folder(),
			Parent: id,
			Owner:  owner,
		},
		Signer: owner,
	}
}

func TestNewAccount_SendsSignedEnvelope(t *testing.T) {
	acc := newTestAccount(t)

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, syncclient.ClientVersion, body["client_version"])
		assert.NotEmpty(t, body["signature"])

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"metadata_version": 7})
	}))
	defer server.Close()

	client := syncclient.New(server.URL, acc)
	version, err := client.NewAccount(context.Background(), acc.Username, acc.PublicKey().Bytes(), newRootFile(t, acc))
	require.NoError(t, err)
	assert.Equal(t, int64(7), version)
	assert.Equal(t, "/new-account", gotPath)
}

func TestGetUpdates_DecodesFiles(t *testing.T) {
	acc := newTestAccount(t)
	root := newRootFile(t, acc)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		body, _ := json.Marshal(struct {
			Files    []json.RawMessage `json:"files"`
			NewSince int64             `json:"new_since"`
		}{NewSince: 42})
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client := syncclient.New(server.URL, acc)
	files, since, err := client.GetUpdates(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, int64(42), since)
	_ = root
}

func TestUpsert_MapsValidationCodeToLbError(t *testing.T) {
	acc := newTestAccount(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":     "VALIDATION_CYCLE",
			"message":  "move would create a cycle",
			"file_ids": []string{lbmodel.NewFileID().String()},
		})
	}))
	defer server.Close()

	client := syncclient.New(server.URL, acc)
	root := newRootFile(t, acc)
	err := client.Upsert(context.Background(), []lbmodel.FileDiff{lbmodel.NewFileDiff(root)})
	require.Error(t, err)
	assert.True(t, lberrors.Is(err, lberrors.CodeCycle))
}

func TestChangeDoc_MapsEditConflict(t *testing.T) {
	acc := newTestAccount(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "EDIT_CONFLICT", "message": "stale write"})
	}))
	defer server.Close()

	client := syncclient.New(server.URL, acc)
	root := newRootFile(t, acc)
	err := client.ChangeDoc(context.Background(), lbmodel.NewFileDiff(root), []byte("ciphertext"))
	require.ErrorIs(t, err, syncclient.ErrEditConflict)
}

func TestGetDoc_ReturnsContent(t *testing.T) {
	acc := newTestAccount(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []byte("hello")})
	}))
	defer server.Close()

	client := syncclient.New(server.URL, acc)
	content, err := client.GetDoc(context.Background(), lbmodel.NewFileID(), lbmodel.DocumentHmac{})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
}

func TestGetUsage_SumsBytes(t *testing.T) {
	acc := newTestAccount(t)
	id1, id2 := lbmodel.NewFileID(), lbmodel.NewFileID()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"usages": []map[string]any{
				{"id": id1, "size_bytes": 100},
				{"id": id2, "size_bytes": 250},
			},
			"cap": 1_000_000,
		})
	}))
	defer server.Close()

	client := syncclient.New(server.URL, acc)
	usage, err := client.GetUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(350), usage.Used)
	assert.Equal(t, uint64(1_000_000), usage.Cap)
}

func TestGetPublicKey_UserNotFound(t *testing.T) {
	acc := newTestAccount(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "USER_NOT_FOUND", "message": "no such user"})
	}))
	defer server.Close()

	client := syncclient.New(server.URL, acc)
	_, err := client.GetPublicKey(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, lberrors.Is(err, lberrors.CodeAccountNonexistent))
}

func TestServerUnreachable_WhenConnectionFails(t *testing.T) {
	acc := newTestAccount(t)
	client := syncclient.New("http://127.0.0.1:1", acc)
	_, err := client.GetPublicKey(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, lberrors.Is(err, lberrors.CodeServerUnreachable))
}

func TestEnvelopeSchema_DescribesSignedEnvelope(t *testing.T) {
	schema := syncclient.EnvelopeSchema()
	require.NotNil(t, schema)
	_, hasSignature := schema.Properties.Get("signature")
	assert.True(t, hasSignature, "envelope schema should document the signature field")
	_, hasPayload := schema.Properties.Get("payload")
	assert.True(t, hasPayload, "envelope schema should document the payload field")
}
