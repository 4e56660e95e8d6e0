// Package notify broadcasts playback notifications to UI subscribers.
package notify

import (
	"sync"

	"github.com/google/uuid"

	"github.com/flacterm/flacterm/internal/app/coordinator"
)

// Notification is a sequenced coordinator event delivered to
// subscribers.
type Notification struct {
	SequenceNo uint64
	Event      coordinator.Event
}

// subscription holds one subscriber's delivery channel.
type subscription struct {
	id string
	ch chan Notification
}

// Broadcaster fans coordinator events out to registered subscribers.
// Slow subscribers drop notifications rather than blocking playback.
type Broadcaster struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscriptions: make(map[string]*subscription)}
}

// Subscribe registers a subscriber and returns its ID and channel.
func (b *Broadcaster) Subscribe(buffer int) (string, <-chan Notification) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		id: uuid.New().String(),
		ch: make(chan Notification, buffer),
	}
	b.subscriptions[sub.id] = sub
	return sub.id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscriptions[id]; ok {
		delete(b.subscriptions, id)
		close(sub.ch)
	}
}

// Broadcast delivers an event to all subscribers without blocking.
// Sends happen under the lock: Unsubscribe closes channels under the
// same lock, so a send can never hit a closed channel.
func (b *Broadcaster) Broadcast(ev coordinator.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sequenceNo++
	n := Notification{SequenceNo: b.sequenceNo, Event: ev}
	for _, sub := range b.subscriptions {
		select {
		case sub.ch <- n:
		default:
			// Subscriber buffer full: drop rather than stall playback.
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}
