package models

import "time"

// AuctionStatus is the lifecycle state of an auction.
// Transitions are monotone: active -> closed or active -> sold, never back.
type AuctionStatus string

const (
	StatusActive AuctionStatus = "active"
	StatusClosed AuctionStatus = "closed"
	StatusSold   AuctionStatus = "sold"
)

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	return s == StatusActive && (next == StatusClosed || next == StatusSold)
}

// Auction represents one listing under bid.
type Auction struct {
	AuctionID     string        `json:"auction_id"`
	SellerID      string        `json:"seller_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	StartingPrice float64       `json:"starting_price"`
	CurrentPrice  float64       `json:"current_price"`
	ReservePrice  *float64      `json:"-"` // hidden from bidders
	ReserveMet    bool          `json:"reserve_met"`
	BuyNowPrice   *float64      `json:"buy_now_price,omitempty"`
	Status        AuctionStatus `json:"status"`
	EndsAt        time.Time     `json:"ends_at"`
	AutoExtend    bool          `json:"auto_extend"`
	CreatedAt     time.Time     `json:"created_at"`
}

// IsActive reports whether the auction still accepts bids.
func (a Auction) IsActive() bool {
	return a.Status == StatusActive
}

// Bid represents one admitted (or proxy-generated) offer on an auction.
// A bid is immutable after commit except for the retraction fields.
// CreatedAt is assigned at commit time under the auction's lock and is
// strictly increasing per auction.
type Bid struct {
	BidID            string    `json:"bid_id"`
	AuctionID        string    `json:"auction_id"`
	BidderID         string    `json:"bidder_id"`
	Amount           float64   `json:"amount"`
	MaxBid           *float64  `json:"-"` // proxy ceiling, hidden from other bidders
	IsProxy          bool      `json:"is_proxy"`
	IsRetracted      bool      `json:"is_retracted"`
	RetractionReason string    `json:"retraction_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProxyStanding is a bidder's live proxy authorization on one auction,
// recomputed from the bid history and never stored independently.
type ProxyStanding struct {
	BidderID  string
	Ceiling   float64   // MaxBid of the bidder's latest non-retracted proxy bid
	Since     time.Time // timestamp of the bidder's earliest non-retracted proxy bid
	IsLeading bool
}
