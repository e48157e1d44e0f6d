// Package sync implements the engine's reconciliation procedure against
// the server: push pending local edits, pull remote changes, fetch
// changed document content, three-way merge, validate, push the merge's
// own fallout, promote, and prune. It is a single linear procedure per
// spec.md §4.6, run under one exclusive lock so at most one sync is ever
// in flight on a given engine.
package sync

import (
	"context"
	stdsync "sync"
	"sync/atomic"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/events"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/tree"
)

// Client is the subset of *syncclient.Client the sync engine calls. Sync
// depends on this narrower interface, not the concrete client, the same
// way pkg/metadatastore and pkg/blobstore define a Store interface their
// backends satisfy structurally: it lets tests substitute a fake server
// without standing up an HTTP listener.
type Client interface {
	GetUpdates(ctx context.Context, since int64) ([]lbmodel.SignedFile, int64, error)
	Upsert(ctx context.Context, diffs []lbmodel.FileDiff) error
	ChangeDoc(ctx context.Context, diff lbmodel.FileDiff, newContent []byte) error
	GetDoc(ctx context.Context, id lbmodel.FileID, hmac lbmodel.DocumentHmac) ([]byte, error)
}

// Cursor persists the server's metadata version between Sync calls. The
// engine that owns this package decides how: a small file next to the
// metadata stores, a row in them, whatever fits its own persistence
// story; Sync only needs Load/Save.
type Cursor interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, since int64) error
}

// Engine runs one account's sync procedure. It holds the exclusive
// "at most one sync in flight" lock spec.md §5 describes.
type Engine struct {
	tree   *tree.Tree
	blobs  blobstore.Store
	client Client
	bus    *events.Bus
	cursor Cursor

	mu           stdsync.Mutex
	gcSuppressed atomic.Bool

	// MaxMergeAttempts bounds the old-version-required retry loop in step
	// 1, per §4.6's "bounded by a small attempt count".
	MaxMergeAttempts int
}

// New builds a sync engine over t, using blobs for document content,
// client to talk to the server, bus to report progress, and cursor to
// persist the pull watermark across runs.
func New(t *tree.Tree, blobs blobstore.Store, client Client, bus *events.Bus, cursor Cursor) *Engine {
	return &Engine{
		tree:             t,
		blobs:            blobs,
		client:           client,
		bus:              bus,
		cursor:           cursor,
		MaxMergeAttempts: 3,
	}
}

// GCSuppressed reports whether a sync currently holds the blob GC "don't
// delete" flag. The engine that schedules GC sweeps checks this before
// running one, per spec.md §4.5: "GC is suppressed while sync holds a
// don't delete flag, so pulled blobs are not removed before their
// metadata commits."
func (e *Engine) GCSuppressed() bool {
	return e.gcSuppressed.Load()
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// Sync runs the full nine-phase procedure once. It takes the engine's
// exclusive sync lock for its duration; a second concurrent call blocks
// until the first returns, which is how "at most one sync per engine"
// is enforced at this layer (a non-blocking caller-facing guard belongs
// to the engine façade, which can check TryLock itself if it wants to
// surface ExistingRequestPending instead of waiting).
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gcSuppressed.Store(true)
	defer e.gcSuppressed.Store(false)

	since, err := e.cursor.Load(ctx)
	if err != nil {
		return err
	}

	var pulled []lbmodel.SignedFile
	attempt := 0
	for {
		attempt++

		e.publish(events.SyncProgress(events.PhasePushPrePull, nil))
		if err := ctx.Err(); err != nil {
			return err
		}
		retryNeeded, err := e.pushPrePull(ctx)
		if err != nil {
			return err
		}

		e.publish(events.SyncProgress(events.PhasePull, nil))
		if err := ctx.Err(); err != nil {
			return err
		}
		files, newSince, err := e.client.GetUpdates(ctx, since)
		if err != nil {
			return err
		}
		pulled = files
		since = newSince

		if !retryNeeded || attempt >= e.MaxMergeAttempts {
			break
		}
	}

	e.publish(events.SyncProgress(events.PhaseFetchDocs, nil))
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.fetchDocuments(ctx, pulled); err != nil {
		return err
	}

	e.publish(events.SyncProgress(events.PhaseMerge, nil))
	if err := ctx.Err(); err != nil {
		return err
	}
	plan, err := e.merge(ctx, pulled)
	if err != nil {
		return err
	}

	e.publish(events.SyncProgress(events.PhaseValidate, nil))
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.validateMerge(ctx, plan); err != nil {
		return err
	}

	e.publish(events.SyncProgress(events.PhasePushPostMerge, nil))
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.pushPostMerge(ctx, plan); err != nil {
		return err
	}

	e.publish(events.SyncProgress(events.PhasePromote, nil))
	if err := e.promote(ctx, plan); err != nil {
		return err
	}
	if err := e.cursor.Save(ctx, since); err != nil {
		return err
	}

	e.publish(events.SyncProgress(events.PhasePrune, nil))
	if err := e.prune(ctx); err != nil {
		return err
	}

	return nil
}
