package ledger

import (
	"fmt"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/models"
)

// AuctionTx is the working state of one locked auction: a snapshot of the
// auction record plus its bid history. All mutation primitives stage changes
// on the snapshot; the ledger commits them only when the critical section
// returns without error.
type AuctionTx struct {
	auction models.Auction
	bids    []models.Bid
	baseLen int
	now     func() time.Time
}

// Auction returns the auction as staged so far.
func (tx *AuctionTx) Auction() models.Auction {
	return tx.auction
}

// Bids returns the staged bid history in commit order, retracted bids
// included.
func (tx *AuctionTx) Bids() []models.Bid {
	return append([]models.Bid(nil), tx.bids...)
}

// Bid returns a single staged bid by id.
func (tx *AuctionTx) Bid(bidID string) (models.Bid, error) {
	for _, bid := range tx.bids {
		if bid.BidID == bidID {
			return bid, nil
		}
	}
	return models.Bid{}, fmt.Errorf("tx bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
}

// LeadingBid returns the highest non-retracted bid. Ties go to the earliest
// commit timestamp.
func (tx *AuctionTx) LeadingBid() (models.Bid, bool) {
	var leading models.Bid
	found := false
	for _, bid := range tx.bids {
		if bid.IsRetracted {
			continue
		}
		if !found || bid.Amount > leading.Amount {
			leading = bid
			found = true
		}
	}
	return leading, found
}

// AppendBid stages a new bid at the end of the history. The commit timestamp
// is assigned here and is strictly greater than the previous bid's, so
// within one auction the history order and the timestamp order always agree.
// Raises CurrentPrice when the bid exceeds it and marks the reserve met when
// the bid reaches the reserve price.
func (tx *AuctionTx) AppendBid(bid models.Bid) (models.Bid, error) {
	if !tx.auction.IsActive() {
		return models.Bid{}, fmt.Errorf("append bid on auction %s: %w", tx.auction.AuctionID, auctionerrors.ErrAuctionNotActive)
	}

	ts := tx.now()
	if n := len(tx.bids); n > 0 {
		if last := tx.bids[n-1].CreatedAt; !ts.After(last) {
			ts = last.Add(time.Microsecond)
		}
	}
	bid.CreatedAt = ts
	bid.AuctionID = tx.auction.AuctionID
	tx.bids = append(tx.bids, bid)

	if bid.Amount > tx.auction.CurrentPrice {
		tx.auction.CurrentPrice = bid.Amount
	}
	if tx.auction.ReservePrice != nil && bid.Amount >= *tx.auction.ReservePrice {
		tx.auction.ReserveMet = true
	}
	return bid, nil
}

// SetCurrentPrice force-sets the current price. Only the buy-now path uses
// this; regular admission moves the price through AppendBid.
func (tx *AuctionTx) SetCurrentPrice(amount float64) {
	tx.auction.CurrentPrice = amount
}

// TransitionStatus moves the auction between lifecycle states, rejecting
// anything but the legal successors of the current state.
func (tx *AuctionTx) TransitionStatus(from, to models.AuctionStatus) error {
	if tx.auction.Status != from || !from.CanTransitionTo(to) {
		return fmt.Errorf("auction %s: %s -> %s: %w",
			tx.auction.AuctionID, tx.auction.Status, to, auctionerrors.ErrInvalidTransition)
	}
	tx.auction.Status = to
	return nil
}

// ExtendDeadline moves the auction's end time forward.
func (tx *AuctionTx) ExtendDeadline(endsAt time.Time) {
	tx.auction.EndsAt = endsAt
}

// MarkRetracted flags a staged bid as retracted. The bid itself stays in the
// history; derived values simply stop counting it.
func (tx *AuctionTx) MarkRetracted(bidID, reason string) error {
	for i := range tx.bids {
		if tx.bids[i].BidID == bidID {
			tx.bids[i].IsRetracted = true
			tx.bids[i].RetractionReason = reason
			return nil
		}
	}
	return fmt.Errorf("retract bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
}
