package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbook/lockbook-core/pkg/events"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus := events.New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	id := lbmodel.NewFileID()
	bus.Publish(events.MetadataChanged(id))
	bus.Publish(events.DocumentWritten(id))
	bus.Publish(events.SyncProgress(events.PhasePull, nil))

	first := recv(t, ch)
	second := recv(t, ch)
	third := recv(t, ch)

	assert.Equal(t, events.KindMetadataChanged, first.Kind)
	assert.Equal(t, events.KindDocumentWritten, second.Kind)
	assert.Equal(t, events.KindSyncProgress, third.Kind)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := events.New()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestAggregator_TracksDirtyAndSyncingState(t *testing.T) {
	bus := events.New()
	agg := events.NewAggregator(bus)
	defer agg.Close()

	id := lbmodel.NewFileID()
	bus.Publish(events.MetadataChanged(id))
	waitFor(t, func() bool {
		return len(agg.Snapshot().LocalDirty) == 1
	})

	bus.Publish(events.SyncProgress(events.PhasePushPrePull, nil))
	waitFor(t, func() bool { return agg.Snapshot().Syncing })

	bus.Publish(events.SyncProgress(events.PhasePromote, nil))
	waitFor(t, func() bool { return len(agg.Snapshot().LocalDirty) == 0 })

	bus.Publish(events.SyncProgress(events.PhasePrune, nil))
	waitFor(t, func() bool { return !agg.Snapshot().Syncing })

	assert.NotEmpty(t, agg.Snapshot().LastSyncedHuman)
}

func recv(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for event")
		return events.Event{}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "condition never became true")
}
