// Package syncclient is the engine's HTTP wire client for the server
// contract in spec.md §6: NewAccount, GetUpdates, Upsert, ChangeDoc, GetDoc,
// GetUsage, GetPublicKey. Every request is wrapped in a signed envelope
// carrying a monotonically increasing nonce, per §6's "all requests are
// wrapped in an envelope carrying a client version, a signed request
// payload, and a monotonically-generated nonce."
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/lberrors"
)

// ClientVersion is reported in every request envelope; the server uses it
// to reject clients older than its minimum supported version.
const ClientVersion = "lockbook-core/1"

// Client is the signed HTTP client one engine instance holds for its
// account's server.
type Client struct {
	baseURL    string
	account    *lbmodel.Account
	httpClient *http.Client
	nonce      int64
}

// New builds a client posting signed requests to baseURL on account's
// behalf. The nonce counter seeds from the current time so restarting the
// engine never reuses a nonce the server has already seen.
func New(baseURL string, account *lbmodel.Account) *Client {
	return &Client{
		baseURL: baseURL,
		account: account,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		nonce: time.Now().UnixNano(),
	}
}

// envelope is the signed wrapper every request body travels in.
type envelope struct {
	ClientVersion string          `json:"client_version"`
	Nonce         int64           `json:"nonce"`
	Signer        lbmodel.Owner   `json:"signer"`
	Payload       json.RawMessage `json:"payload"`
	Signature     []byte          `json:"signature"`
}

// serverError is the shape an error response decodes into.
type serverError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	FileIDs []string `json:"file_ids,omitempty"`
}

func (e *serverError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Sentinel signals the sync engine branches on directly rather than
// surfacing as a user-facing LbError kind: both are retry/merge signals
// internal to the sync protocol (spec.md §4.6 steps 1 and 4), not
// conditions a UI message maps onto.
var (
	ErrOldVersionRequired = fmt.Errorf("server requires a re-pull before this update is accepted")
	ErrEditConflict       = fmt.Errorf("server reports a concurrent edit conflict")
)

func (c *Client) post(ctx context.Context, path string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request payload: %w", err)
	}

	nonce := atomic.AddInt64(&c.nonce, 1)
	digest := signingDigest(nonce, body)
	sig, err := c.account.PrivateKey.Sign(digest)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	env := envelope{
		ClientVersion: ClientVersion,
		Nonce:         nonce,
		Signer:        c.account.Owner(),
		Payload:       body,
		Signature:     sig,
	}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(envBytes))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return lberrors.NewServerUnreachable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return lberrors.NewServerUnreachable(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode >= 400 {
		var se serverError
		if json.Unmarshal(respBody, &se) == nil && se.Code != "" {
			return mapServerError(&se)
		}
		return lberrors.NewServerUnreachable(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// signingDigest is what the account signs to authenticate a request:
// the nonce (preventing replay) followed by the exact payload bytes sent.
func signingDigest(nonce int64, payload []byte) []byte {
	buf := make([]byte, 8, 8+len(payload))
	for i := 0; i < 8; i++ {
		buf[i] = byte(nonce >> (8 * i))
	}
	return append(buf, payload...)
}

func mapServerError(se *serverError) error {
	switch se.Code {
	case "OLD_VERSION_REQUIRED":
		return ErrOldVersionRequired
	case "EDIT_CONFLICT":
		return ErrEditConflict
	case "NOT_PERMISSIONED":
		return lberrors.NewInsufficientPermission(firstID(se.FileIDs))
	case "DELETED_FILE_UPDATED":
		return lberrors.NewDeletedFileUpdated(firstID(se.FileIDs))
	case "USAGE_IS_OVER_DATA_CAP":
		return lberrors.NewUsageIsOverDataCap()
	case "CLIENT_UPDATE_REQUIRED":
		return lberrors.NewClientUpdateRequired()
	case "VALIDATION_CYCLE":
		return lberrors.NewCycle(firstID(se.FileIDs))
	case "VALIDATION_PATH_CONFLICT":
		return lberrors.NewPathConflict(se.FileIDs)
	case "NOT_FOUND":
		return lberrors.NewFileNonexistent(firstID(se.FileIDs))
	case "USER_NOT_FOUND":
		return lberrors.NewAccountNonexistent()
	case "ACCOUNT_EXISTS":
		return lberrors.NewAccountExists()
	default:
		return se
	}
}

func firstID(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
