package events

import (
	"sync"
	"time"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// UsageSummary mirrors the server's GetUsage response shape, cached for
// display between calls.
type UsageSummary struct {
	UsedBytes uint64
	CapBytes  uint64
}

// Status is the derived, eventually-consistent state consumers (editor, UI)
// poll or watch instead of reasoning about raw events themselves.
type Status struct {
	Offline         bool
	Syncing         bool
	Pushing         []lbmodel.FileID
	Pulling         []lbmodel.FileID
	LocalDirty      []lbmodel.FileID
	LastSyncedHuman string
	Usage           UsageSummary
}

// Aggregator consumes a bus subscription and maintains a Status snapshot.
// It owns one goroutine for the lifetime of the subscription; Close stops it.
type Aggregator struct {
	mu     sync.RWMutex
	status Status
	dirty  map[lbmodel.FileID]struct{}

	unsubscribe func()
	done        chan struct{}
}

// NewAggregator subscribes to bus and starts consuming events in the
// background.
func NewAggregator(bus *Bus) *Aggregator {
	ch, unsubscribe := bus.Subscribe()
	a := &Aggregator{
		dirty:       make(map[lbmodel.FileID]struct{}),
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}
	go a.run(ch)
	return a
}

// Snapshot returns the current derived status. Callers must treat it as a
// point-in-time copy; concurrent events may supersede it immediately.
func (a *Aggregator) Snapshot() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := a.status
	out.Pushing = append([]lbmodel.FileID(nil), a.status.Pushing...)
	out.Pulling = append([]lbmodel.FileID(nil), a.status.Pulling...)
	out.LocalDirty = make([]lbmodel.FileID, 0, len(a.dirty))
	for id := range a.dirty {
		out.LocalDirty = append(out.LocalDirty, id)
	}
	return out
}

// Close unsubscribes from the bus and waits for the consuming goroutine to
// exit.
func (a *Aggregator) Close() {
	a.unsubscribe()
	<-a.done
}

func (a *Aggregator) run(ch <-chan Event) {
	defer close(a.done)
	for e := range ch {
		a.apply(e)
	}
}

func (a *Aggregator) apply(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e.Kind {
	case KindMetadataChanged:
		if e.FileID != nil {
			a.dirty[*e.FileID] = struct{}{}
		}
	case KindDocumentWritten:
		if e.FileID != nil {
			a.dirty[*e.FileID] = struct{}{}
		}
	case KindSyncProgress:
		a.applySyncProgress(e)
	case KindStatusUpdated:
		if e.Status != nil {
			a.status.Offline = e.Status.Offline
			a.status.Usage = e.Status.Usage
		}
	}
}

func (a *Aggregator) applySyncProgress(e Event) {
	switch e.Phase {
	case PhasePushPrePull:
		a.status.Syncing = true
		a.status.Pushing = nil
		a.status.Pulling = nil
		if e.FileID != nil {
			a.status.Pushing = append(a.status.Pushing, *e.FileID)
		}
	case PhasePull, PhaseFetchDocs:
		if e.FileID != nil {
			a.status.Pulling = append(a.status.Pulling, *e.FileID)
		}
	case PhasePushPostMerge:
		if e.FileID != nil {
			a.status.Pushing = append(a.status.Pushing, *e.FileID)
		}
	case PhasePromote:
		a.status.Pushing = nil
		a.status.Pulling = nil
		for id := range a.dirty {
			delete(a.dirty, id)
		}
	case PhasePrune:
		a.status.Syncing = false
		a.status.LastSyncedHuman = humanTime(time.Now().UTC())
	}
}

// humanTime renders t as an RFC 3339 timestamp. It does not produce
// relative phrasing such as "just now" or "5m ago".
func humanTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
