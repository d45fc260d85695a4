package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"auction-engine/internal/auctionerrors"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, auctionerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, auctionerrors.ErrBidNotFound):
		return http.StatusNotFound, "bid not found"
	case errors.Is(err, auctionerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, auctionerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, auctionerrors.ErrBuyNowUnavailable):
		return http.StatusBadRequest, "buy now not available for this auction"
	case errors.Is(err, auctionerrors.ErrSelfBid):
		return http.StatusForbidden, "sellers cannot bid on their own auctions"
	case errors.Is(err, auctionerrors.ErrNotBidOwner):
		return http.StatusForbidden, "bid belongs to another bidder"
	case errors.Is(err, auctionerrors.ErrBidBelowPrice):
		return http.StatusConflict, "bid amount not above current price"
	case errors.Is(err, auctionerrors.ErrBidBelowIncrement):
		return http.StatusConflict, "bid amount below minimum increment"
	case errors.Is(err, auctionerrors.ErrMaxBidTooLow):
		return http.StatusConflict, "max bid not above current price"
	case errors.Is(err, auctionerrors.ErrAuctionNotActive):
		return http.StatusConflict, "auction is not active"
	case errors.Is(err, auctionerrors.ErrAlreadyRetracted):
		return http.StatusConflict, "bid already retracted"
	case errors.Is(err, auctionerrors.ErrLeadingBidRetraction):
		return http.StatusConflict, "cannot retract the current leading bid"
	case errors.Is(err, auctionerrors.ErrAuctionEnded):
		return http.StatusGone, "auction has ended"
	case errors.Is(err, auctionerrors.ErrRetractionWindowExpired):
		return http.StatusGone, "retraction window has expired"
	case errors.Is(err, auctionerrors.ErrLockWaitTimeout):
		return http.StatusServiceUnavailable, "auction busy, retry shortly"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
