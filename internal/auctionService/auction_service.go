package auction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/events"
	"auction-engine/internal/ledger"
	"auction-engine/internal/models"
	"auction-engine/utils"
)

// Config carries the tunable auction rules.
type Config struct {
	MinimumBidIncrement float64
	RetractionWindow    time.Duration
	ExtensionLookahead  time.Duration
	ExtensionIncrement  time.Duration
	LockWaitTimeout     time.Duration
}

// DefaultConfig returns the standard rule set.
func DefaultConfig() Config {
	return Config{
		MinimumBidIncrement: 100,
		RetractionWindow:    time.Hour,
		ExtensionLookahead:  2 * time.Minute,
		ExtensionIncrement:  2 * time.Minute,
		LockWaitTimeout:     5 * time.Second,
	}
}

// AuctionService implements bid admission, proxy bidding, buy-now and
// retraction on top of the ledger's per-auction critical sections.
type AuctionService struct {
	ledger  ledger.AuctionLedger
	emitter events.Emitter
	cfg     Config
	now     func() time.Time
}

// NewAuctionService creates a new AuctionService instance.
func NewAuctionService(l ledger.AuctionLedger, emitter events.Emitter, cfg Config) *AuctionService {
	return &AuctionService{
		ledger:  l,
		emitter: emitter,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateAuction validates and stores a new listing.
func (s *AuctionService) CreateAuction(ctx context.Context, auction models.Auction) (models.Auction, error) {
	if err := validateListing(auction, s.now()); err != nil {
		return models.Auction{}, err
	}

	auction.AuctionID = utils.GenerateID()
	auction.Status = models.StatusActive
	auction.CurrentPrice = auction.StartingPrice
	auction.ReserveMet = false
	auction.CreatedAt = s.now()

	created, err := s.ledger.CreateAuction(auction)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction for seller %s: %w", auction.SellerID, err)
	}
	return created, nil
}

// GetAuction returns one auction.
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}
	auction, err := s.ledger.GetAuction(auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// GetBidsForAuction returns the auction's bid history, newest first.
func (s *AuctionService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}
	bids, err := s.ledger.GetBidsByAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	for i, j := 0, len(bids)-1; i < j; i, j = i+1, j-1 {
		bids[i], bids[j] = bids[j], bids[i]
	}
	return bids, nil
}

// GetBidsByBidder returns every bid a bidder has placed across auctions.
func (s *AuctionService) GetBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty bidder ID", auctionerrors.ErrInvalidBid)
	}
	bids, err := s.ledger.GetBidsByBidder(bidderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for bidder %s: %w", bidderID, err)
	}
	return bids, nil
}

// GetWinningBid returns the auction's highest non-retracted bid. Ties go to
// the earliest one. Returns ErrBidNotFound when no live bid exists.
func (s *AuctionService) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}
	bids, err := s.ledger.GetBidsByAuction(auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}
	live := lo.Filter(bids, func(bid models.Bid, _ int) bool {
		return !bid.IsRetracted
	})
	if len(live) == 0 {
		return models.Bid{}, fmt.Errorf("service: auction %s has no live bids: %w", auctionID, auctionerrors.ErrBidNotFound)
	}
	return lo.MaxBy(live, func(a, b models.Bid) bool {
		return a.Amount > b.Amount
	}), nil
}

// PlaceBid validates and admits a single human bid. The proxy cascade runs
// inside the same critical section; events go out only after the commit.
func (s *AuctionService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (models.Bid, error) {
	if err := validateBidInput(auctionID, bidderID, amount); err != nil {
		return models.Bid{}, err
	}

	var (
		admitted models.Bid
		pending  []events.Event
		lazy     lazyClose
	)
	err := s.withAuction(ctx, auctionID, func(tx *ledger.AuctionTx) error {
		auction := tx.Auction()
		if err := s.admissionChecks(tx, auction, bidderID, &lazy); err != nil {
			return err
		}
		if lazy.closed {
			return nil // commit the close; the bid is rejected afterwards
		}
		if amount <= auction.CurrentPrice {
			return fmt.Errorf("service: bid %.2f not above current price %.2f: %w",
				amount, auction.CurrentPrice, auctionerrors.ErrBidBelowPrice)
		}
		if minimum := auction.CurrentPrice + s.cfg.MinimumBidIncrement; amount < minimum {
			return fmt.Errorf("service: bid %.2f below minimum %.2f (current %.2f + increment %.2f): %w",
				amount, minimum, auction.CurrentPrice, s.cfg.MinimumBidIncrement, auctionerrors.ErrBidBelowIncrement)
		}

		prevLeader, hadLeader := tx.LeadingBid()
		bid, err := tx.AppendBid(models.Bid{
			BidID:    utils.GenerateID(),
			BidderID: bidderID,
			Amount:   amount,
		})
		if err != nil {
			return err
		}
		admitted = bid
		pending = append(pending, bidPlaced(bid, tx.Auction().CurrentPrice))
		if hadLeader && prevLeader.BidderID != bidderID {
			pending = append(pending, outbid(prevLeader, tx.Auction().CurrentPrice))
		}

		cascade, err := s.runProxyCascade(tx)
		if err != nil {
			return err
		}
		pending = append(pending, cascade...)
		return nil
	})
	if err != nil {
		return models.Bid{}, err
	}
	if lazy.closed {
		s.emitter.Emit(lazy.event(auctionID))
		return models.Bid{}, fmt.Errorf("service: auction %s: %w", auctionID, auctionerrors.ErrAuctionEnded)
	}

	s.emitAll(pending)
	utils.Info("bid admitted", map[string]any{
		"auction_id": auctionID,
		"bid_id":     admitted.BidID,
		"bidder_id":  bidderID,
		"amount":     amount,
	})
	return admitted, nil
}

// PlaceProxyBid records a standing authorization to bid automatically up to
// maxBid. The first bid on an auction enters at the starting price; any
// later proxy bid enters one increment above the current price, capped by
// its ceiling.
func (s *AuctionService) PlaceProxyBid(ctx context.Context, auctionID, bidderID string, maxBid float64) (models.Bid, error) {
	if err := validateBidInput(auctionID, bidderID, maxBid); err != nil {
		return models.Bid{}, err
	}

	var (
		admitted models.Bid
		pending  []events.Event
		lazy     lazyClose
	)
	err := s.withAuction(ctx, auctionID, func(tx *ledger.AuctionTx) error {
		auction := tx.Auction()
		if err := s.admissionChecks(tx, auction, bidderID, &lazy); err != nil {
			return err
		}
		if lazy.closed {
			return nil
		}
		if maxBid <= auction.CurrentPrice {
			return fmt.Errorf("service: max bid %.2f not above current price %.2f: %w",
				maxBid, auction.CurrentPrice, auctionerrors.ErrMaxBidTooLow)
		}

		actual := auction.StartingPrice
		if hasLiveBids(tx.Bids()) {
			actual = math.Min(auction.CurrentPrice+s.cfg.MinimumBidIncrement, maxBid)
		}

		prevLeader, hadLeader := tx.LeadingBid()
		ceiling := maxBid
		bid, err := tx.AppendBid(models.Bid{
			BidID:    utils.GenerateID(),
			BidderID: bidderID,
			Amount:   actual,
			MaxBid:   &ceiling,
			IsProxy:  true,
		})
		if err != nil {
			return err
		}
		admitted = bid
		pending = append(pending, bidPlaced(bid, tx.Auction().CurrentPrice))
		if hadLeader && prevLeader.BidderID != bidderID {
			pending = append(pending, outbid(prevLeader, tx.Auction().CurrentPrice))
		}

		cascade, err := s.runProxyCascade(tx)
		if err != nil {
			return err
		}
		pending = append(pending, cascade...)
		return nil
	})
	if err != nil {
		return models.Bid{}, err
	}
	if lazy.closed {
		s.emitter.Emit(lazy.event(auctionID))
		return models.Bid{}, fmt.Errorf("service: auction %s: %w", auctionID, auctionerrors.ErrAuctionEnded)
	}

	s.emitAll(pending)
	utils.Info("proxy bid admitted", map[string]any{
		"auction_id": auctionID,
		"bid_id":     admitted.BidID,
		"bidder_id":  bidderID,
		"amount":     admitted.Amount,
	})
	return admitted, nil
}

// BuyNow terminates the auction immediately at its buy-now price. One lock
// acquisition covers the winning bid, the price update and the transition to
// sold; no proxy cascade runs afterwards.
func (s *AuctionService) BuyNow(ctx context.Context, auctionID, buyerID string) (models.Bid, models.Auction, error) {
	if auctionID == "" || buyerID == "" {
		return models.Bid{}, models.Auction{}, fmt.Errorf("service: %w - missing auctionID or buyerID", auctionerrors.ErrInvalidBid)
	}

	var (
		winning models.Bid
		sold    models.Auction
	)
	err := s.withAuction(ctx, auctionID, func(tx *ledger.AuctionTx) error {
		auction := tx.Auction()
		if auction.BuyNowPrice == nil {
			return fmt.Errorf("service: auction %s: %w", auctionID, auctionerrors.ErrBuyNowUnavailable)
		}
		if !auction.IsActive() {
			return fmt.Errorf("service: auction %s: %w", auctionID, auctionerrors.ErrAuctionNotActive)
		}
		if auction.SellerID == buyerID {
			return fmt.Errorf("service: auction %s: %w", auctionID, auctionerrors.ErrSelfBid)
		}

		bid, err := tx.AppendBid(models.Bid{
			BidID:    utils.GenerateID(),
			BidderID: buyerID,
			Amount:   *auction.BuyNowPrice,
		})
		if err != nil {
			return err
		}
		tx.SetCurrentPrice(*auction.BuyNowPrice)
		if err := tx.TransitionStatus(models.StatusActive, models.StatusSold); err != nil {
			return err
		}
		winning = bid
		sold = tx.Auction()
		return nil
	})
	if err != nil {
		return models.Bid{}, models.Auction{}, err
	}

	s.emitAll([]events.Event{
		bidPlaced(winning, sold.CurrentPrice),
		{Type: events.TypeAuctionClosed, AuctionID: auctionID, WinnerID: buyerID, NewPrice: sold.CurrentPrice},
	})
	utils.Info("buy now completed", map[string]any{
		"auction_id": auctionID,
		"buyer_id":   buyerID,
		"price":      sold.CurrentPrice,
	})
	return winning, sold, nil
}

// RetractBid cancels the requester's own bid under the time-bounded,
// rank-bounded retraction policy. It never reopens proxy cascades; the next
// admitted bid re-resolves against the smaller bid set.
func (s *AuctionService) RetractBid(ctx context.Context, bidID, requesterID, reason string) (models.Bid, error) {
	if bidID == "" || requesterID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing bidID or requesterID", auctionerrors.ErrInvalidBid)
	}
	if reason == "" {
		reason = "bidder requested retraction"
	}

	located, err := s.ledger.GetBid(bidID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to locate bid %s: %w", bidID, err)
	}

	var retracted models.Bid
	err = s.withAuction(ctx, located.AuctionID, func(tx *ledger.AuctionTx) error {
		bid, err := tx.Bid(bidID)
		if err != nil {
			return err
		}
		if bid.BidderID != requesterID {
			return fmt.Errorf("service: bid %s: %w", bidID, auctionerrors.ErrNotBidOwner)
		}
		if bid.IsRetracted {
			return fmt.Errorf("service: bid %s: %w", bidID, auctionerrors.ErrAlreadyRetracted)
		}
		if s.now().Sub(bid.CreatedAt) > s.cfg.RetractionWindow {
			return fmt.Errorf("service: bid %s placed at %s: %w",
				bidID, bid.CreatedAt.Format(time.RFC3339), auctionerrors.ErrRetractionWindowExpired)
		}
		if leader, ok := tx.LeadingBid(); ok && leader.BidID == bidID {
			return fmt.Errorf("service: bid %s: %w", bidID, auctionerrors.ErrLeadingBidRetraction)
		}
		if err := tx.MarkRetracted(bidID, reason); err != nil {
			return err
		}
		retracted, err = tx.Bid(bidID)
		return err
	})
	if err != nil {
		return models.Bid{}, err
	}

	utils.Info("bid retracted", map[string]any{
		"bid_id":       bidID,
		"auction_id":   located.AuctionID,
		"requester_id": requesterID,
	})
	return retracted, nil
}

// withAuction wraps the ledger's critical section with the configured lock
// wait bound. Cancellation applies only while waiting for the lock.
func (s *AuctionService) withAuction(ctx context.Context, auctionID string, fn func(tx *ledger.AuctionTx) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWaitTimeout)
	defer cancel()
	return s.ledger.WithAuctionLock(lockCtx, auctionID, fn)
}

// lazyClose records an expiry detected during admission: the transition to
// closed is committed even though the triggering bid is rejected.
type lazyClose struct {
	closed   bool
	winnerID string
}

func (lc lazyClose) event(auctionID string) events.Event {
	return events.Event{Type: events.TypeAuctionClosed, AuctionID: auctionID, WinnerID: lc.winnerID}
}

// admissionChecks runs the shared precondition chain for human and proxy
// bids: auction active, not past its deadline, bidder is not the seller.
// A past deadline stages the active->closed transition and sets lazy.closed
// instead of returning an error, so the close commits.
func (s *AuctionService) admissionChecks(tx *ledger.AuctionTx, auction models.Auction, bidderID string, lazy *lazyClose) error {
	if !auction.IsActive() {
		return fmt.Errorf("service: auction %s: %w", auction.AuctionID, auctionerrors.ErrAuctionNotActive)
	}
	if !s.now().Before(auction.EndsAt) {
		if err := tx.TransitionStatus(models.StatusActive, models.StatusClosed); err != nil {
			return err
		}
		lazy.closed = true
		lazy.winnerID = closingWinner(tx)
		return nil
	}
	if auction.SellerID == bidderID {
		return fmt.Errorf("service: auction %s: %w", auction.AuctionID, auctionerrors.ErrSelfBid)
	}
	return nil
}

// closingWinner names the winner for a close event: the leading bidder,
// unless a reserve price was set and never met.
func closingWinner(tx *ledger.AuctionTx) string {
	auction := tx.Auction()
	if auction.ReservePrice != nil && !auction.ReserveMet {
		return ""
	}
	if leader, ok := tx.LeadingBid(); ok {
		return leader.BidderID
	}
	return ""
}

func (s *AuctionService) emitAll(pending []events.Event) {
	for _, event := range pending {
		s.emitter.Emit(event)
	}
}

func bidPlaced(bid models.Bid, currentPrice float64) events.Event {
	return events.Event{
		Type:      events.TypeBidPlaced,
		AuctionID: bid.AuctionID,
		BidID:     bid.BidID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		NewPrice:  currentPrice,
	}
}

func outbid(displaced models.Bid, currentPrice float64) events.Event {
	return events.Event{
		Type:      events.TypeOutbid,
		AuctionID: displaced.AuctionID,
		BidderID:  displaced.BidderID,
		NewPrice:  currentPrice,
	}
}

// validateBidInput checks input validity before any lock is touched.
func validateBidInput(auctionID, bidderID string, amount float64) error {
	if auctionID == "" || bidderID == "" {
		return fmt.Errorf("service: %w - missing auctionID or bidderID", auctionerrors.ErrInvalidBid)
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("service: %w - amount must be a positive number", auctionerrors.ErrInvalidBid)
	}
	return nil
}

// validateListing checks a new auction before it is stored.
func validateListing(auction models.Auction, now time.Time) error {
	if auction.SellerID == "" || auction.Title == "" {
		return fmt.Errorf("service: %w - missing sellerID or title", auctionerrors.ErrInvalidAuction)
	}
	if auction.StartingPrice <= 0 || math.IsNaN(auction.StartingPrice) || math.IsInf(auction.StartingPrice, 0) {
		return fmt.Errorf("service: %w - starting price must be greater than 0", auctionerrors.ErrInvalidAuction)
	}
	if !auction.EndsAt.After(now) {
		return fmt.Errorf("service: %w - ends_at must be in the future", auctionerrors.ErrInvalidAuction)
	}
	if auction.ReservePrice != nil && *auction.ReservePrice < auction.StartingPrice {
		return fmt.Errorf("service: %w - reserve price below starting price", auctionerrors.ErrInvalidAuction)
	}
	if auction.BuyNowPrice != nil && *auction.BuyNowPrice <= auction.StartingPrice {
		return fmt.Errorf("service: %w - buy now price must exceed starting price", auctionerrors.ErrInvalidAuction)
	}
	return nil
}

func hasLiveBids(bids []models.Bid) bool {
	for _, bid := range bids {
		if !bid.IsRetracted {
			return true
		}
	}
	return false
}
