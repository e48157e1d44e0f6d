// Package engine is the top-level façade: the single entry point a CLI or
// UI drives, wiring together the merged tree, the blob store, the sync
// client and engine, the share resolver and the event bus behind the
// async operation surface described for an account's local device.
//
// Every mutating call takes the engine's metadata mutex for its
// duration; tree.Tree's own operations are already atomic
// stage/validate/promote transactions; the mutex's job is serializing
// those transactions against each other and against sync, exactly one
// writer at a time, the way the component design's single async mutex
// does.
package engine

import (
	"sync"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/events"
	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore"
	"github.com/lockbook/lockbook-core/pkg/share"
	lbsync "github.com/lockbook/lockbook-core/pkg/sync"
	"github.com/lockbook/lockbook-core/pkg/syncclient"
	"github.com/lockbook/lockbook-core/pkg/tree"
)

// Engine is one account's local device: one merged tree over one base
// and local metadata store, one blob store, one server connection, and
// the derived share/event/sync machinery layered on top.
type Engine struct {
	account *lbmodel.Account

	tree   *tree.Tree
	blobs  blobstore.Store
	shares *share.Resolver

	client   *syncclient.Client
	syncEng  *lbsync.Engine
	cursor   lbsync.Cursor
	bus      *events.Bus
	statuses *events.Aggregator
	pool     *workerPool

	mu       sync.Mutex // metadata transaction boundary
	syncOnce sync.Mutex // non-blocking "one sync at a time" guard
}

// New wires an engine for account over the given base/local metadata
// stores and blob store, talking to the server at account.APIURL, with
// cursor persisting the sync watermark between runs. The engine owns
// its own event bus; Close shuts it down along with the status
// aggregator and worker pool.
func New(account *lbmodel.Account, base, local metadatastore.Store, blobs blobstore.Store, cursor lbsync.Cursor) *Engine {
	t := tree.New(account, base, local)
	client := syncclient.New(account.APIURL, account)
	bus := events.New()

	return &Engine{
		account:  account,
		tree:     t,
		blobs:    blobs,
		shares:   share.New(t),
		client:   client,
		syncEng:  lbsync.New(t, blobs, client, bus, cursor),
		cursor:   cursor,
		bus:      bus,
		statuses: events.NewAggregator(bus),
		pool:     newWorkerPool(0),
	}
}

// Close releases the engine's background resources (event bus
// subscribers, worker pool). The underlying metadata and blob stores are
// not owned by the engine and are the caller's to close.
func (e *Engine) Close() {
	e.statuses.Close()
	e.bus.Close()
	e.pool.close()
}

// Account returns the account this engine is bound to.
func (e *Engine) Account() *lbmodel.Account {
	return e.account
}

// Tree exposes the underlying merged tree for read-only callers (e.g. a
// CLI's path completion) that don't need a full façade method. Mutating
// through it directly bypasses the metadata mutex and is the caller's
// own risk.
func (e *Engine) Tree() *tree.Tree {
	return e.tree
}

// publish emits ev on the event bus, a no-op if the bus was never wired
// (it is always wired by New, but kept nil-safe for callers building an
// Engine by hand in tests).
func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// withMetadataLock runs fn under the engine's single metadata write
// lock, the serialization point spec.md §5 calls the async mutex
// guarding the transaction boundary.
func (e *Engine) withMetadataLock(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn()
}

// tryBeginSync acquires the non-blocking sync guard, returning
// ExistingRequestPending instead of queuing behind an in-flight sync the
// way a blocking caller would. Sync releases it on return.
func (e *Engine) tryBeginSync() error {
	if !e.syncOnce.TryLock() {
		return lberrors.NewExistingRequestPending()
	}
	return nil
}

func (e *Engine) endSync() {
	e.syncOnce.Unlock()
}
