package engine

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/events"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/syncclient"
)

// Sync runs one full push/pull/merge/promote/prune cycle against the
// server. At most one sync runs at a time per engine; a concurrent call
// fails fast with ExistingRequestPending rather than queuing, so a UI
// calling sync on a timer never piles up blocked goroutines behind a
// slow one. progress, if non-nil, is invoked for every SyncProgress
// event the run emits in addition to its normal publication on the bus.
func (e *Engine) Sync(ctx context.Context, progress func(events.Event)) error {
	if err := e.tryBeginSync(); err != nil {
		return err
	}
	defer e.endSync()

	var unsub func()
	if progress != nil {
		ch, cancel := e.bus.Subscribe()
		unsub = cancel
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range ch {
				if ev.Kind == events.KindSyncProgress {
					progress(ev)
				}
			}
		}()
		defer func() { unsub(); <-done }()
	}

	return e.withMetadataLock(func() error {
		return e.syncEng.Sync(ctx)
	})
}

// WorkUnit describes one file this engine would touch on its next Sync:
// either a local edit waiting to be pushed, or a remote edit waiting to
// be pulled.
type WorkUnit struct {
	ID     lbmodel.FileID
	Remote bool
}

// CalculateWork previews the next Sync's work without performing any of
// it: every id with a pending local edit, plus every id the server has
// changed since this engine's last sync. Per spec.md §8's idempotence
// property, this is empty immediately after a successful Sync with no
// intervening local edits.
func (e *Engine) CalculateWork(ctx context.Context) ([]WorkUnit, error) {
	local, err := e.tree.AllLocal(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WorkUnit, 0, len(local))
	seen := make(map[lbmodel.FileID]struct{}, len(local))
	for _, f := range local {
		out = append(out, WorkUnit{ID: f.Metadata.ID})
		seen[f.Metadata.ID] = struct{}{}
	}

	since, err := e.cursor.Load(ctx)
	if err != nil {
		return nil, err
	}
	remote, _, err := e.client.GetUpdates(ctx, since)
	if err != nil {
		return nil, err
	}
	for _, f := range remote {
		if _, ok := seen[f.Metadata.ID]; ok {
			continue
		}
		base, ok, berr := e.tree.Base(ctx, f.Metadata.ID)
		if berr != nil {
			return nil, berr
		}
		if ok && base.Metadata.Equal(f.Metadata) {
			continue
		}
		out = append(out, WorkUnit{ID: f.Metadata.ID, Remote: true})
	}
	return out, nil
}

// GetUsage returns this account's server-reported storage usage.
func (e *Engine) GetUsage(ctx context.Context) (syncclient.Usage, error) {
	return e.client.GetUsage(ctx)
}

// Subscribe returns a channel of every event this engine publishes (file
// mutations, sync progress, status updates) and an unsubscribe function
// the caller must eventually call to release it.
func (e *Engine) Subscribe() (<-chan events.Event, func()) {
	return e.bus.Subscribe()
}

// Status returns the current derived status snapshot (offline, syncing,
// dirty file ids, last-synced time, usage), maintained from the event
// stream rather than queried fresh each call.
func (e *Engine) Status() events.Status {
	return e.statuses.Snapshot()
}
