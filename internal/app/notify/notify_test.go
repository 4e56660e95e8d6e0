package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flacterm/flacterm/internal/app/coordinator"
	"github.com/flacterm/flacterm/internal/domain/track"
)

func TestBroadcaster_DeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster()

	_, ch1 := b.Subscribe(4)
	_, ch2 := b.Subscribe(4)
	assert.Equal(t, 2, b.SubscriberCount())

	trk := track.Track{ID: "t1"}
	b.Broadcast(coordinator.Event{Type: coordinator.EventNowPlaying, Track: &trk})

	n1 := <-ch1
	n2 := <-ch2
	assert.Equal(t, uint64(1), n1.SequenceNo)
	assert.Equal(t, n1.SequenceNo, n2.SequenceNo)
	assert.Equal(t, coordinator.EventNowPlaying, n1.Event.Type)
}

func TestBroadcaster_SequenceNumbersIncrease(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.Subscribe(4)

	b.Broadcast(coordinator.Event{Type: coordinator.EventStateChanged})
	b.Broadcast(coordinator.Event{Type: coordinator.EventStateChanged})

	first := <-ch
	second := <-ch
	assert.Equal(t, first.SequenceNo+1, second.SequenceNo)
}

func TestBroadcaster_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.Subscribe(1)

	b.Broadcast(coordinator.Event{Type: coordinator.EventStateChanged})
	b.Broadcast(coordinator.Event{Type: coordinator.EventStateChanged}) // dropped

	<-ch
	select {
	case <-ch:
		t.Fatal("second notification should have been dropped")
	default:
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster()
	id, ch := b.Subscribe(1)

	b.Unsubscribe(id)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-ch
	require.False(t, open, "channel closed on unsubscribe")
}

func TestBroadcaster_ConcurrentBroadcastAndUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ids := make([]string, 64)
	for i := range ids {
		ids[i], _ = b.Subscribe(1)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			b.Broadcast(coordinator.Event{Type: coordinator.EventStateChanged})
		}
	}()
	go func() {
		defer wg.Done()
		for _, id := range ids {
			b.Unsubscribe(id)
		}
	}()
	wg.Wait()

	assert.Equal(t, 0, b.SubscriberCount())
}
