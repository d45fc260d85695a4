package auctionerrors

import "errors"

// Ledger-level errors
var (
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrBidNotFound       = errors.New("bid not found")
	ErrAuctionNotActive  = errors.New("auction is not active")
	ErrInvalidTransition = errors.New("invalid auction status transition")
	ErrDuplicateAuction  = errors.New("auction already exists")
)

// Admission errors
var (
	ErrInvalidBid        = errors.New("invalid bid")
	ErrAuctionEnded      = errors.New("auction has ended")
	ErrSelfBid           = errors.New("sellers cannot bid on their own auctions")
	ErrBidBelowPrice     = errors.New("bid amount must be greater than current price")
	ErrBidBelowIncrement = errors.New("bid amount below minimum increment")
	ErrMaxBidTooLow      = errors.New("max bid must be greater than current price")
	ErrBuyNowUnavailable = errors.New("buy now not available for this auction")
)

// Retraction errors
var (
	ErrNotBidOwner             = errors.New("bid belongs to another bidder")
	ErrAlreadyRetracted        = errors.New("bid already retracted")
	ErrRetractionWindowExpired = errors.New("retraction window has expired")
	ErrLeadingBidRetraction    = errors.New("cannot retract the current leading bid")
)

// Contention errors
var (
	ErrLockWaitTimeout = errors.New("timed out waiting for auction lock")
)

// Listing errors
var (
	ErrInvalidAuction = errors.New("invalid auction listing")
)
