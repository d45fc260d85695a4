//go:generate mockgen -source=auction_handler.go -destination=mock_service.go -package=handler

package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"auction-engine/internal/events"
	model "auction-engine/internal/models"
	"auction-engine/services/auction/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, auction model.Auction) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetBidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error)
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (model.Bid, error)
	PlaceProxyBid(ctx context.Context, auctionID, bidderID string, maxBid float64) (model.Bid, error)
	BuyNow(ctx context.Context, auctionID, buyerID string) (model.Bid, model.Auction, error)
	RetractBid(ctx context.Context, bidID, requesterID, reason string) (model.Bid, error)
}

// EventStream is the subscription side of the event bus, consumed by the
// live auction feed.
type EventStream interface {
	Subscribe(auctionID string) chan events.Event
	Unsubscribe(auctionID string, ch chan events.Event)
}

type AuctionHandler struct {
	service AuctionServiceInterface
	stream  EventStream
}

func NewAuctionHandler(service AuctionServiceInterface, stream EventStream) *AuctionHandler {
	return &AuctionHandler{service: service, stream: stream}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), model.Auction{
		SellerID:      req.SellerID,
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		ReservePrice:  req.ReservePrice,
		BuyNowPrice:   req.BuyNowPrice,
		EndsAt:        req.EndsAt,
		AutoExtend:    req.AutoExtend,
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CreateAuctionHandler: failed to create auction", map[string]any{
			"seller_id": req.SellerID,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(auction), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  auction.SellerID,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction retrieved successfully")
}

// GetAuctionBidsHandler handles GET /auctions/:auction_id/bids
func (h *AuctionHandler) GetAuctionBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionBidsHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetAuctionBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// GetBidderBidsHandler handles GET /bidders/:bidder_id/bids
func (h *AuctionHandler) GetBidderBidsHandler(c *gin.Context) {
	bidderID := c.Param("bidder_id")
	bids, err := h.service.GetBidsByBidder(c.Request.Context(), bidderID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidderBidsHandler: error retrieving bids", map[string]any{"bidder_id": bidderID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
}

// GetWinningBidHandler handles GET /auctions/:auction_id/winning-bid
func (h *AuctionHandler) GetWinningBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.GetWinningBid(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetWinningBidHandler: error retrieving winning bid", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "winning bid retrieved successfully")
	helpers.LogSuccess("GetWinningBidHandler", "winning bid retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"bid_id":     bid.BidID,
	})
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), auctionID, req.BidderID, req.Amount)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("PlaceBidHandler: failed to place bid", map[string]any{
			"auction_id": auctionID,
			"bidder_id":  req.BidderID,
			"amount":     req.Amount,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": auctionID,
		"bidder_id":  req.BidderID,
		"amount":     req.Amount,
	})
}

// PlaceProxyBidHandler handles POST /auctions/:auction_id/proxy-bids
func (h *AuctionHandler) PlaceProxyBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	var req helpers.ProxyBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceProxyBidHandler", err)
		return
	}

	bid, err := h.service.PlaceProxyBid(c.Request.Context(), auctionID, req.BidderID, req.MaxBid)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("PlaceProxyBidHandler: failed to place proxy bid", map[string]any{
			"auction_id": auctionID,
			"bidder_id":  req.BidderID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "proxy bid placed successfully")
	helpers.LogSuccess("PlaceProxyBidHandler", "proxy bid placed successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": auctionID,
		"bidder_id":  req.BidderID,
	})
}

// BuyNowHandler handles POST /auctions/:auction_id/buy-now
func (h *AuctionHandler) BuyNowHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	var req helpers.BuyNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "BuyNowHandler", err)
		return
	}

	bid, auction, err := h.service.BuyNow(c.Request.Context(), auctionID, req.BuyerID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("BuyNowHandler: failed to buy now", map[string]any{
			"auction_id": auctionID,
			"buyer_id":   req.BuyerID,
			"error":      err.Error(),
		})
		return
	}

	resp := helpers.BuyNowResponse{
		Bid:     helpers.NewBidResponse(bid),
		Auction: helpers.NewAuctionResponse(auction),
	}
	utils.JSONResponse(c, http.StatusCreated, resp, "purchase successful")
	helpers.LogSuccess("BuyNowHandler", "purchase successful", map[string]any{
		"auction_id": auctionID,
		"buyer_id":   req.BuyerID,
		"price":      auction.CurrentPrice,
	})
}

// RetractBidHandler handles POST /bids/:bid_id/retract
func (h *AuctionHandler) RetractBidHandler(c *gin.Context) {
	bidID := c.Param("bid_id")
	var req helpers.RetractBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RetractBidHandler", err)
		return
	}

	bid, err := h.service.RetractBid(c.Request.Context(), bidID, req.RequesterID, req.Reason)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("RetractBidHandler: failed to retract bid", map[string]any{
			"bid_id":       bidID,
			"requester_id": req.RequesterID,
			"error":        err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "bid retracted successfully")
	helpers.LogSuccess("RetractBidHandler", "bid retracted successfully", map[string]any{
		"bid_id":       bidID,
		"requester_id": req.RequesterID,
	})
}

// StreamAuctionEventsHandler handles GET /auctions/:auction_id/events as a
// server-sent event feed of live auction activity.
func (h *AuctionHandler) StreamAuctionEventsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	ch := h.stream.Subscribe(auctionID)
	defer h.stream.Unsubscribe(auctionID, ch)

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
