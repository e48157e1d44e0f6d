package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// fileCursor persists the sync watermark as a small JSON object under
// the account's writable path, the `last_synced` namespace spec.md's
// persisted-state layout calls for. A whole key-value store is more
// machinery than one counter needs; os.ReadFile/WriteFile plus
// encoding/json is the stdlib-only case this component design expects
// ambient concerns to otherwise avoid, justified here because no corpus
// library targets "persist one int64 across runs" any better than the
// standard library already does.
type fileCursor struct {
	mu   sync.Mutex
	path string
}

// NewFileCursor builds a Cursor backed by a JSON file at path. The file
// is created on first Save; Load returns 0 if it does not yet exist.
func NewFileCursor(path string) *fileCursor {
	return &fileCursor{path: path}
}

type cursorState struct {
	Since int64 `json:"since"`
}

func (c *fileCursor) Load(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var state cursorState
	if err := json.Unmarshal(raw, &state); err != nil {
		return 0, err
	}
	return state.Since, nil
}

func (c *fileCursor) Save(_ context.Context, since int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	raw, err := json.Marshal(cursorState{Since: since})
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, raw, 0o600)
}
