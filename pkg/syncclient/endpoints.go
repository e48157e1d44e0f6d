package syncclient

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// wireFileDiff mirrors lbmodel.FileDiff for the wire, since Old is an
// optional prior version.
type wireFileDiff struct {
	Old *wireSignedFile `json:"old,omitempty"`
	New wireSignedFile  `json:"new"`
}

func toWireFileDiff(d lbmodel.FileDiff) wireFileDiff {
	w := wireFileDiff{New: toWireSignedFile(d.New)}
	if d.Old != nil {
		old := toWireSignedFile(*d.Old)
		w.Old = &old
	}
	return w
}

// --- NewAccount ---

type newAccountRequest struct {
	Username  string         `json:"username"`
	PublicKey []byte         `json:"public_key"`
	Root      wireSignedFile `json:"root"`
}

type newAccountResponse struct {
	MetadataVersion int64 `json:"metadata_version"`
}

// NewAccount registers username and its root folder record with the
// server, returning the metadata version to use as the first sync's
// "since" cursor.
func (c *Client) NewAccount(ctx context.Context, username string, publicKey []byte, root lbmodel.SignedFile) (int64, error) {
	req := newAccountRequest{Username: username, PublicKey: publicKey, Root: toWireSignedFile(root)}
	var resp newAccountResponse
	if err := c.post(ctx, "/new-account", req, &resp); err != nil {
		return 0, err
	}
	return resp.MetadataVersion, nil
}

// --- GetUpdates ---

type getUpdatesRequest struct {
	SinceMetadataVersion int64 `json:"since_metadata_version"`
}

type getUpdatesResponse struct {
	Files    []wireSignedFile `json:"files"`
	NewSince int64            `json:"new_since"`
}

// GetUpdates fetches every server record whose metadata version exceeds
// since, plus the cursor to persist for the next pull.
func (c *Client) GetUpdates(ctx context.Context, since int64) ([]lbmodel.SignedFile, int64, error) {
	req := getUpdatesRequest{SinceMetadataVersion: since}
	var resp getUpdatesResponse
	if err := c.post(ctx, "/get-updates", req, &resp); err != nil {
		return nil, 0, err
	}
	files := make([]lbmodel.SignedFile, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, fromWireSignedFile(f))
	}
	return files, resp.NewSince, nil
}

// --- Upsert ---

type upsertRequest struct {
	Updates []wireFileDiff `json:"updates"`
}

// Upsert pushes a batch of metadata diffs. A nil error means every diff was
// accepted; ErrOldVersionRequired and the lberrors.Code* validation errors
// are the documented rejections the sync engine branches on.
func (c *Client) Upsert(ctx context.Context, diffs []lbmodel.FileDiff) error {
	req := upsertRequest{Updates: make([]wireFileDiff, 0, len(diffs))}
	for _, d := range diffs {
		req.Updates = append(req.Updates, toWireFileDiff(d))
	}
	return c.post(ctx, "/upsert", req, nil)
}

// --- ChangeDoc ---

type changeDocRequest struct {
	Diff       wireFileDiff `json:"diff"`
	NewContent []byte       `json:"new_content"`
}

// ChangeDoc pushes one document's encrypted content alongside the metadata
// diff recording its new hmac. ErrEditConflict signals a concurrent write
// the sync engine must fold into its merge.
func (c *Client) ChangeDoc(ctx context.Context, diff lbmodel.FileDiff, newContent []byte) error {
	req := changeDocRequest{Diff: toWireFileDiff(diff), NewContent: newContent}
	return c.post(ctx, "/change-doc", req, nil)
}

// --- GetDoc ---

type getDocRequest struct {
	ID   lbmodel.FileID `json:"id"`
	Hmac []byte         `json:"hmac"`
}

type getDocResponse struct {
	Content []byte `json:"content"`
}

// GetDoc fetches the encrypted bytes for one document version.
func (c *Client) GetDoc(ctx context.Context, id lbmodel.FileID, hmac lbmodel.DocumentHmac) ([]byte, error) {
	req := getDocRequest{ID: id, Hmac: hmac[:]}
	var resp getDocResponse
	if err := c.post(ctx, "/get-doc", req, &resp); err != nil {
		return nil, err
	}
	return resp.Content, nil
}

// --- GetUsage ---

type getUsageRequest struct{}

type fileUsage struct {
	ID        lbmodel.FileID `json:"id"`
	SizeBytes uint64         `json:"size_bytes"`
}

type getUsageResponse struct {
	Usages []fileUsage `json:"usages"`
	Cap    uint64      `json:"cap"`
}

// Usage is the account's server-side storage summary.
type Usage struct {
	PerFile map[lbmodel.FileID]uint64
	Used    uint64
	Cap     uint64
}

// GetUsage fetches the account's current document storage usage against
// its cap.
func (c *Client) GetUsage(ctx context.Context) (Usage, error) {
	var resp getUsageResponse
	if err := c.post(ctx, "/get-usage", getUsageRequest{}, &resp); err != nil {
		return Usage{}, err
	}
	u := Usage{PerFile: make(map[lbmodel.FileID]uint64, len(resp.Usages)), Cap: resp.Cap}
	for _, fu := range resp.Usages {
		u.PerFile[fu.ID] = fu.SizeBytes
		u.Used += fu.SizeBytes
	}
	return u, nil
}

// --- GetPublicKey ---

type getPublicKeyRequest struct {
	Username string `json:"username"`
}

type getPublicKeyResponse struct {
	Key []byte `json:"key"`
}

// GetPublicKey resolves a username to its account public key, used when
// sharing a file with another account.
func (c *Client) GetPublicKey(ctx context.Context, username string) ([]byte, error) {
	req := getPublicKeyRequest{Username: username}
	var resp getPublicKeyResponse
	if err := c.post(ctx, "/get-public-key", req, &resp); err != nil {
		return nil, err
	}
	return resp.Key, nil
}
