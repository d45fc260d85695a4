package server

import (
	handler "auction-engine/services/auction/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(service handler.AuctionServiceInterface, stream handler.EventStream) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	auctionHandler := handler.NewAuctionHandler(service, stream)

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", auctionHandler.GetAuctionBidsHandler)
		auctions.GET("/:auction_id/winning-bid", auctionHandler.GetWinningBidHandler)
		auctions.POST("/:auction_id/bids", auctionHandler.PlaceBidHandler)
		auctions.POST("/:auction_id/proxy-bids", auctionHandler.PlaceProxyBidHandler)
		auctions.POST("/:auction_id/buy-now", auctionHandler.BuyNowHandler)
		auctions.GET("/:auction_id/events", SSEHeadersMiddleware, auctionHandler.StreamAuctionEventsHandler)
	}

	bids := router.Group("/bids")
	{
		bids.POST("/:bid_id/retract", auctionHandler.RetractBidHandler)
	}

	bidders := router.Group("/bidders")
	{
		bidders.GET("/:bidder_id/bids", auctionHandler.GetBidderBidsHandler)
	}

	return router
}
