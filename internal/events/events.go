package events

import "time"

// Type identifies a state-change event emitted by the auction core.
type Type string

const (
	TypeBidPlaced       Type = "bid_placed"
	TypeOutbid          Type = "outbid"
	TypeAuctionClosed   Type = "auction_closed"
	TypeAuctionExtended Type = "auction_extended"
)

// Event is one state change fanned out to notification and real-time
// subscribers. Delivery is fire-and-forget, at-least-once; consumers
// de-duplicate by bid id.
type Event struct {
	Type       Type       `json:"type"`
	AuctionID  string     `json:"auction_id"`
	BidID      string     `json:"bid_id,omitempty"`
	BidderID   string     `json:"bidder_id,omitempty"`
	Amount     float64    `json:"amount,omitempty"`
	NewPrice   float64    `json:"new_price,omitempty"`
	WinnerID   string     `json:"winner_id,omitempty"`
	NewEndsAt  *time.Time `json:"new_ends_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Emitter is the boundary the auction core emits through.
type Emitter interface {
	Emit(event Event)
}

// NopEmitter discards every event. Useful in tests that don't observe the
// event stream.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}
