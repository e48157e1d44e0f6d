// Package events implements the engine's publish/subscribe channel: a small
// typed event bus plus a status aggregator that derives UI-facing state from
// the event stream. Per spec.md §4.8/§9, the bus is owned by one engine
// instance, not package-level global state; each Subscribe call gets its own
// ordered, non-dropping delivery queue.
package events

import (
	"sync"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// Kind tags the four event shapes the engine emits.
type Kind string

const (
	KindMetadataChanged Kind = "metadata_changed"
	KindDocumentWritten Kind = "document_written"
	KindSyncProgress    Kind = "sync_progress"
	KindStatusUpdated   Kind = "status_updated"
)

// Phase names one of the sync engine's numbered steps, carried on a
// SyncProgress event.
type Phase string

const (
	PhasePushPrePull   Phase = "push_pre_pull"
	PhasePull          Phase = "pull"
	PhaseFetchDocs     Phase = "fetch_documents"
	PhaseMerge         Phase = "merge"
	PhaseValidate      Phase = "validate"
	PhasePushPostMerge Phase = "push_post_merge"
	PhasePromote       Phase = "promote"
	PhasePrune         Phase = "prune"
)

// Event is the single payload shape carried on the bus; only the fields
// relevant to Kind are populated.
type Event struct {
	Kind   Kind
	FileID *lbmodel.FileID
	Phase  Phase
	Status *Status
}

// MetadataChanged reports that id's merged record changed (create, rename,
// move, delete, or a share grant).
func MetadataChanged(id lbmodel.FileID) Event {
	return Event{Kind: KindMetadataChanged, FileID: &id}
}

// DocumentWritten reports that id's content was overwritten.
func DocumentWritten(id lbmodel.FileID) Event {
	return Event{Kind: KindDocumentWritten, FileID: &id}
}

// SyncProgress reports entry into one of the sync engine's numbered phases,
// optionally naming the file currently being pushed or pulled.
func SyncProgress(phase Phase, id *lbmodel.FileID) Event {
	return Event{Kind: KindSyncProgress, Phase: phase, FileID: id}
}

// StatusUpdatedEvent carries a full status snapshot computed by the engine
// (offline flag, usage) that the aggregator cannot derive from the other
// three event kinds alone.
func StatusUpdatedEvent(s Status) Event {
	return Event{Kind: KindStatusUpdated, Status: &s}
}

// Bus is a small fan-out publish/subscribe channel. It belongs to one
// engine instance; there is no package-level bus.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

// New builds an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a new listener and returns its event channel plus an
// unsubscribe function. Events for a given subscriber are delivered in
// publish order and are never dropped; a slow subscriber accumulates an
// in-memory backlog rather than blocking Publish.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := newSubscriber()
	b.subs[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.close()
	}
	return sub.out, unsubscribe
}

// Publish fans e out to every current subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.push(e)
	}
}

// Close shuts down every subscriber's channel. The bus is unusable after.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		sub.close()
		delete(b.subs, id)
	}
}

// subscriber holds one listener's backlog queue and the goroutine draining
// it into the channel handed back from Subscribe. A condition variable
// rather than a buffered channel keeps Publish non-blocking regardless of
// how far behind the consumer falls.
type subscriber struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	out    chan Event
}

func newSubscriber() *subscriber {
	s := &subscriber{out: make(chan Event)}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

func (s *subscriber) push(e Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscriber) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			close(s.out)
			return
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.out <- e
	}
}
