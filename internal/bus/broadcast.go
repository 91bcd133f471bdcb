// Package bus fans finished snapshots out to subscribers without ever
// blocking the tick pipeline.
package bus

import (
	"sync"

	"main/internal/book"
	"main/internal/obs"
)

// Broadcaster delivers each published snapshot to every subscriber.
// A slow subscriber loses its oldest buffered snapshot, never the
// newest; the publisher never blocks.
type Broadcaster struct {
	capacity int
	metrics  *obs.Metrics

	mu     sync.Mutex
	closed bool
	nextID uint64
	subs   map[uint64]chan book.Snapshot
}

// NewBroadcaster allocates a broadcaster with the given per-subscriber
// buffer capacity.
func NewBroadcaster(capacity int, metrics *obs.Metrics) *Broadcaster {
	if capacity <= 0 {
		capacity = 1
	}
	return &Broadcaster{
		capacity: capacity,
		metrics:  metrics,
		subs:     make(map[uint64]chan book.Snapshot),
	}
}

// Subscribe registers a new consumer. The cancel function detaches it
// and closes its channel; cancelling twice is safe. Subscribing after
// Close returns an already-closed channel.
func (b *Broadcaster) Subscribe() (<-chan book.Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan book.Snapshot, b.capacity)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	id := b.nextID
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish hands the snapshot to every subscriber, dropping the oldest
// buffered one when a buffer is full.
func (b *Broadcaster) Publish(snap book.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- snap:
			continue
		default:
		}

		// full buffer: evict the oldest, then retry once
		select {
		case <-ch:
			b.metrics.IncSubDrop()
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches and closes every subscriber. Further publishes are
// no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
