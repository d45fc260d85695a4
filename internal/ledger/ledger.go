//go:generate mockgen -source=ledger.go -destination=mock_ledger.go -package=ledger

package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/models"
)

// AuctionLedger owns all auction and bid records. Every mutation of an
// auction's price, status, deadline or bid history goes through
// WithAuctionLock, which serializes writers per auction id.
type AuctionLedger interface {
	CreateAuction(auction models.Auction) (models.Auction, error)
	GetAuction(auctionID string) (models.Auction, error)
	ActiveAuctions() []models.Auction
	GetBid(bidID string) (models.Bid, error)
	GetBidsByAuction(auctionID string) ([]models.Bid, error)
	GetBidsByBidder(bidderID string) ([]models.Bid, error)
	WithAuctionLock(ctx context.Context, auctionID string, fn func(tx *AuctionTx) error) error
}

type bidRef struct {
	auctionID string
	index     int
}

// MemoryLedger is a concurrency-safe in-memory implementation of
// AuctionLedger. Bid histories are append-only and kept in commit order.
type MemoryLedger struct {
	mu       sync.RWMutex
	auctions map[string]*models.Auction
	bids     map[string][]models.Bid // key: auctionID -> bid history in commit order
	bidIndex map[string]bidRef       // key: bidID -> location in bids
	locks    *KeyedMutex
	now      func() time.Time
}

// NewMemoryLedger creates a new in-memory ledger instance.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		auctions: make(map[string]*models.Auction),
		bids:     make(map[string][]models.Bid),
		bidIndex: make(map[string]bidRef),
		locks:    NewKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateAuction stores a new auction record.
func (l *MemoryLedger) CreateAuction(auction models.Auction) (models.Auction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.auctions[auction.AuctionID]; ok {
		return models.Auction{}, fmt.Errorf("create auction %s: %w", auction.AuctionID, auctionerrors.ErrDuplicateAuction)
	}
	if auction.CurrentPrice < auction.StartingPrice {
		auction.CurrentPrice = auction.StartingPrice
	}

	stored := auction
	l.auctions[auction.AuctionID] = &stored
	return stored, nil
}

// GetAuction returns a copy of the auction record.
func (l *MemoryLedger) GetAuction(auctionID string) (models.Auction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	auction, ok := l.auctions[auctionID]
	if !ok {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return *auction, nil
}

// ActiveAuctions returns a snapshot of all auctions still accepting bids.
func (l *MemoryLedger) ActiveAuctions() []models.Auction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	active := make([]models.Auction, 0)
	for _, auction := range l.auctions {
		if auction.IsActive() {
			active = append(active, *auction)
		}
	}
	return active
}

// GetBid returns a single bid by id.
func (l *MemoryLedger) GetBid(bidID string) (models.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ref, ok := l.bidIndex[bidID]
	if !ok {
		return models.Bid{}, fmt.Errorf("get bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	return l.bids[ref.auctionID][ref.index], nil
}

// GetBidsByAuction returns the auction's full bid history in commit order,
// retracted bids included.
func (l *MemoryLedger) GetBidsByAuction(auctionID string) ([]models.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return append([]models.Bid(nil), l.bids[auctionID]...), nil
}

// GetBidsByBidder returns every bid the bidder has placed, across auctions.
func (l *MemoryLedger) GetBidsByBidder(bidderID string) ([]models.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bids := make([]models.Bid, 0)
	for _, history := range l.bids {
		for _, bid := range history {
			if bid.BidderID == bidderID {
				bids = append(bids, bid)
			}
		}
	}
	return bids, nil
}

// WithAuctionLock acquires the exclusive section for one auction, runs fn
// against a snapshot of its committed state, and commits fn's staged
// mutations atomically. A non-nil error from fn discards every staged
// mutation. Lock acquisition is bounded by ctx; once fn starts it always
// runs to completion.
func (l *MemoryLedger) WithAuctionLock(ctx context.Context, auctionID string, fn func(tx *AuctionTx) error) error {
	if err := l.locks.Lock(ctx, auctionID); err != nil {
		return err
	}
	defer l.locks.Unlock(auctionID)

	l.mu.RLock()
	auction, ok := l.auctions[auctionID]
	if !ok {
		l.mu.RUnlock()
		return fmt.Errorf("lock auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	tx := &AuctionTx{
		auction: *auction,
		bids:    append([]models.Bid(nil), l.bids[auctionID]...),
		baseLen: len(l.bids[auctionID]),
		now:     l.now,
	}
	l.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	l.commit(tx)
	return nil
}

// commit publishes the transaction's working state. Caller still holds the
// per-auction lock, so nothing else can have committed in between.
func (l *MemoryLedger) commit(tx *AuctionTx) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := tx.auction
	l.auctions[tx.auction.AuctionID] = &stored
	l.bids[tx.auction.AuctionID] = tx.bids
	for i := tx.baseLen; i < len(tx.bids); i++ {
		l.bidIndex[tx.bids[i].BidID] = bidRef{auctionID: tx.auction.AuctionID, index: i}
	}
}
