package helpers

import (
	"time"

	"auction-engine/internal/models"
)

// Request/Response DTOs
type CreateAuctionRequest struct {
	SellerID      string    `json:"seller_id" binding:"required"`
	Title         string    `json:"title" binding:"required"`
	Description   string    `json:"description"`
	StartingPrice float64   `json:"starting_price" binding:"required,gt=0"`
	ReservePrice  *float64  `json:"reserve_price,omitempty" binding:"omitempty,gt=0"`
	BuyNowPrice   *float64  `json:"buy_now_price,omitempty" binding:"omitempty,gt=0"`
	EndsAt        time.Time `json:"ends_at" binding:"required"`
	AutoExtend    bool      `json:"auto_extend"`
}

type PlaceBidRequest struct {
	BidderID string  `json:"bidder_id" binding:"required"`
	Amount   float64 `json:"amount" binding:"required,gt=0"`
}

type ProxyBidRequest struct {
	BidderID string  `json:"bidder_id" binding:"required"`
	MaxBid   float64 `json:"max_bid" binding:"required,gt=0"`
}

type BuyNowRequest struct {
	BuyerID string `json:"buyer_id" binding:"required"`
}

type RetractBidRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
	Reason      string `json:"reason"`
}

type BidResponse struct {
	BidID       string  `json:"bid_id"`
	AuctionID   string  `json:"auction_id"`
	BidderID    string  `json:"bidder_id"`
	Amount      float64 `json:"amount"`
	IsProxy     bool    `json:"is_proxy"`
	IsRetracted bool    `json:"is_retracted"`
	CreatedAt   string  `json:"created_at"`
}

// AuctionResponse deliberately never carries the seller's reserve price;
// bidders only see whether the reserve has been met.
type AuctionResponse struct {
	AuctionID     string   `json:"auction_id"`
	SellerID      string   `json:"seller_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	StartingPrice float64  `json:"starting_price"`
	CurrentPrice  float64  `json:"current_price"`
	ReserveMet    bool     `json:"reserve_met"`
	BuyNowPrice   *float64 `json:"buy_now_price,omitempty"`
	Status        string   `json:"status"`
	EndsAt        string   `json:"ends_at"`
	AutoExtend    bool     `json:"auto_extend"`
	CreatedAt     string   `json:"created_at"`
}

type BuyNowResponse struct {
	Bid     BidResponse     `json:"bid"`
	Auction AuctionResponse `json:"auction"`
}

// NewBidResponse converts a domain bid to its transport shape.
func NewBidResponse(bid models.Bid) BidResponse {
	return BidResponse{
		BidID:       bid.BidID,
		AuctionID:   bid.AuctionID,
		BidderID:    bid.BidderID,
		Amount:      bid.Amount,
		IsProxy:     bid.IsProxy,
		IsRetracted: bid.IsRetracted,
		CreatedAt:   bid.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// NewBidResponses converts a bid history.
func NewBidResponses(bids []models.Bid) []BidResponse {
	responses := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		responses = append(responses, NewBidResponse(bid))
	}
	return responses
}

// NewAuctionResponse converts a domain auction to its transport shape.
func NewAuctionResponse(auction models.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:     auction.AuctionID,
		SellerID:      auction.SellerID,
		Title:         auction.Title,
		Description:   auction.Description,
		StartingPrice: auction.StartingPrice,
		CurrentPrice:  auction.CurrentPrice,
		ReserveMet:    auction.ReserveMet,
		BuyNowPrice:   auction.BuyNowPrice,
		Status:        string(auction.Status),
		EndsAt:        auction.EndsAt.UTC().Format(time.RFC3339),
		AutoExtend:    auction.AutoExtend,
		CreatedAt:     auction.CreatedAt.UTC().Format(time.RFC3339),
	}
}
