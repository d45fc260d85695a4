package events

import (
	"context"
	"sync"
	"time"

	"github.com/smallnest/chanx"
)

const subscriberBuffer = 16

// Bus is an asynchronous fan-out of auction events. Emit never blocks the
// bidding path: events enter an unbounded channel and a single dispatch
// goroutine forwards them, in emit order, to per-auction subscribers and to
// firehose subscribers (the notification collaborator boundary).
//
// Subscriber channels are buffered; a subscriber that stops draining loses
// events rather than stalling dispatch.
type Bus struct {
	mu          sync.Mutex
	upstream    *chanx.UnboundedChan[Event]
	done        chan struct{}
	subscribers map[string]map[chan Event]struct{} // key: auction id
	firehose    map[chan Event]struct{}
	closed      bool
}

// NewBus creates a bus and starts its dispatch goroutine.
func NewBus() *Bus {
	b := &Bus{
		upstream:    chanx.NewUnboundedChan[Event](context.Background(), 64),
		done:        make(chan struct{}),
		subscribers: make(map[string]map[chan Event]struct{}),
		firehose:    make(map[chan Event]struct{}),
	}
	go b.dispatch()
	return b
}

// Emit queues an event for delivery. Safe for concurrent use; a no-op after
// Close.
func (b *Bus) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	b.upstream.In <- event
}

// Subscribe registers a channel receiving events for one auction.
func (b *Bus) Subscribe(auctionID string) chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	if _, ok := b.subscribers[auctionID]; !ok {
		b.subscribers[auctionID] = make(map[chan Event]struct{})
	}
	b.subscribers[auctionID][ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a per-auction subscription.
func (b *Bus) Unsubscribe(auctionID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subscribers[auctionID]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
			if len(set) == 0 {
				delete(b.subscribers, auctionID)
			}
		}
	}
}

// SubscribeAll registers a channel receiving every event on the bus.
func (b *Bus) SubscribeAll() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.firehose[ch] = struct{}{}
	return ch
}

// UnsubscribeAll removes and closes a firehose subscription.
func (b *Bus) UnsubscribeAll(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.firehose[ch]; ok {
		delete(b.firehose, ch)
		close(ch)
	}
}

// Close stops accepting events, flushes everything already queued to the
// subscribers, then closes every subscriber channel. Emit holds the mutex
// while sending, so no send can be in flight once the closed flag is set.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.upstream.In)
	<-b.done

	b.mu.Lock()
	defer b.mu.Unlock()
	for auctionID, set := range b.subscribers {
		for ch := range set {
			close(ch)
		}
		delete(b.subscribers, auctionID)
	}
	for ch := range b.firehose {
		close(ch)
		delete(b.firehose, ch)
	}
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for event := range b.upstream.Out {
		b.deliver(event)
	}
}

func (b *Bus) deliver(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers[event.AuctionID] {
		select {
		case ch <- event:
		default: // subscriber stalled, drop
		}
	}
	for ch := range b.firehose {
		select {
		case ch <- event:
		default:
		}
	}
}
