package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receiveOne(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed before an event arrived")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// Test that subscribers receive only their auction's events
func TestBus_PerAuctionFanOut(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	first := bus.Subscribe("auction1")
	second := bus.Subscribe("auction2")
	defer bus.Unsubscribe("auction1", first)
	defer bus.Unsubscribe("auction2", second)

	bus.Emit(Event{Type: TypeBidPlaced, AuctionID: "auction1", Amount: 200})
	bus.Emit(Event{Type: TypeBidPlaced, AuctionID: "auction2", Amount: 900})

	got := receiveOne(t, first)
	require.Equal(t, "auction1", got.AuctionID)
	require.Equal(t, 200.0, got.Amount)
	require.False(t, got.OccurredAt.IsZero(), "emit stamps the event")

	got = receiveOne(t, second)
	require.Equal(t, "auction2", got.AuctionID)

	select {
	case event := <-first:
		t.Fatalf("subscriber received another auction's event: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

// Test that multiple subscribers on one auction all receive each event
func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	first := bus.Subscribe("auction1")
	second := bus.Subscribe("auction1")
	defer bus.Unsubscribe("auction1", first)
	defer bus.Unsubscribe("auction1", second)

	bus.Emit(Event{Type: TypeOutbid, AuctionID: "auction1"})

	require.Equal(t, TypeOutbid, receiveOne(t, first).Type)
	require.Equal(t, TypeOutbid, receiveOne(t, second).Type)
}

// Test that the firehose sees every auction
func TestBus_Firehose(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	all := bus.SubscribeAll()
	defer bus.UnsubscribeAll(all)

	bus.Emit(Event{Type: TypeBidPlaced, AuctionID: "auction1"})
	bus.Emit(Event{Type: TypeAuctionClosed, AuctionID: "auction2"})

	require.Equal(t, "auction1", receiveOne(t, all).AuctionID)
	require.Equal(t, "auction2", receiveOne(t, all).AuctionID)
}

// Test that events arrive in emit order
func TestBus_EmitOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Buffer must hold the burst; ordering is what's under test.
	ch := bus.Subscribe("auction1")
	defer bus.Unsubscribe("auction1", ch)

	for i := 0; i < subscriberBuffer; i++ {
		bus.Emit(Event{Type: TypeBidPlaced, AuctionID: "auction1", Amount: float64(i)})
	}

	for i := 0; i < subscriberBuffer; i++ {
		require.Equal(t, float64(i), receiveOne(t, ch).Amount)
	}
}

// Test that unsubscribing closes the channel
func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe("auction1")
	bus.Unsubscribe("auction1", ch)

	_, ok := <-ch
	require.False(t, ok)

	// Double unsubscribe is a no-op, not a panic.
	bus.Unsubscribe("auction1", ch)
}

// Test that Close terminates the dispatcher and all subscriber channels,
// and that later Emit and Close calls are harmless
func TestBus_Close(t *testing.T) {
	bus := NewBus()

	perAuction := bus.Subscribe("auction1")
	all := bus.SubscribeAll()

	bus.Close()

	for _, ch := range []chan Event{perAuction, all} {
		select {
		case _, ok := <-ch:
			require.False(t, ok, "subscriber channels close on bus close")
		case <-time.After(2 * time.Second):
			t.Fatal("channel not closed")
		}
	}

	bus.Emit(Event{Type: TypeBidPlaced, AuctionID: "auction1"}) // no-op
	bus.Close()                                                 // idempotent

	closedSub := bus.Subscribe("auction1")
	_, ok := <-closedSub
	require.False(t, ok, "subscribing to a closed bus yields a closed channel")
}

// Test that a stalled subscriber loses events instead of stalling dispatch
func TestBus_CloseFlushesQueuedEvents(t *testing.T) {
	bus := NewBus()

	sub := bus.Subscribe("auction1")
	for i := 0; i < 5; i++ {
		bus.Emit(Event{Type: TypeBidPlaced, AuctionID: "auction1", Amount: float64(100 * (i + 1))})
	}

	// Close returns only after the dispatch goroutine has forwarded
	// everything still queued upstream.
	bus.Close()

	for i := 0; i < 5; i++ {
		event, ok := <-sub
		require.True(t, ok, "queued event %d delivered before close", i)
		require.Equal(t, float64(100*(i+1)), event.Amount)
	}
	_, ok := <-sub
	require.False(t, ok, "channel closed after the queue is flushed")
}

func TestBus_StalledSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	stalled := bus.Subscribe("auction1")
	defer bus.Unsubscribe("auction1", stalled)

	// Overflow the stalled subscriber's buffer; dispatch must keep going.
	for i := 0; i < subscriberBuffer*4; i++ {
		bus.Emit(Event{Type: TypeBidPlaced, AuctionID: "auction1"})
	}

	healthy := bus.Subscribe("auction1")
	defer bus.Unsubscribe("auction1", healthy)
	bus.Emit(Event{Type: TypeAuctionClosed, AuctionID: "auction1"})

	// The late subscriber may catch the tail of the burst; the closing event
	// must arrive regardless.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-healthy:
			if event.Type == TypeAuctionClosed {
				return
			}
		case <-deadline:
			t.Fatal("dispatch stalled behind a full subscriber")
		}
	}
}
