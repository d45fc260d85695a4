package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/models"
)

// Helper to create a new active auction
func newAuction(auctionID, sellerID string, startingPrice float64, endsAt time.Time) models.Auction {
	return models.Auction{
		AuctionID:     auctionID,
		SellerID:      sellerID,
		Title:         fmt.Sprintf("%s title", auctionID),
		StartingPrice: startingPrice,
		CurrentPrice:  startingPrice,
		Status:        models.StatusActive,
		EndsAt:        endsAt,
		CreatedAt:     time.Now().UTC(),
	}
}

// Test CreateAuction
func TestMemoryLedger_CreateAuction(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	endsAt := time.Now().UTC().Add(time.Hour)

	tests := []struct {
		name          string
		auction       models.Auction
		expectedError error
	}{
		{name: "valid_auction", auction: newAuction("auction1", "seller1", 100, endsAt), expectedError: nil},
		{name: "duplicate_auction", auction: newAuction("auction1", "seller1", 100, endsAt), expectedError: auctionerrors.ErrDuplicateAuction},
		{name: "second_auction", auction: newAuction("auction2", "seller2", 250, endsAt), expectedError: nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			created, err := ledger.CreateAuction(tc.auction)
			if tc.expectedError != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tc.expectedError))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.auction.AuctionID, created.AuctionID)
			require.Equal(t, tc.auction.StartingPrice, created.CurrentPrice)

			stored, err := ledger.GetAuction(tc.auction.AuctionID)
			require.NoError(t, err)
			require.Equal(t, created, stored)
		})
	}
}

// Test GetAuction for a missing id
func TestMemoryLedger_GetAuction_NotFound(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	_, err := ledger.GetAuction("missing")
	require.Error(t, err)
	require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotFound))
}

// Test ActiveAuctions filters out closed records
func TestMemoryLedger_ActiveAuctions(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	endsAt := time.Now().UTC().Add(time.Hour)

	_, err := ledger.CreateAuction(newAuction("auction1", "seller1", 100, endsAt))
	require.NoError(t, err)
	_, err = ledger.CreateAuction(newAuction("auction2", "seller1", 100, endsAt))
	require.NoError(t, err)

	closed := newAuction("auction3", "seller2", 100, endsAt)
	closed.Status = models.StatusClosed
	_, err = ledger.CreateAuction(closed)
	require.NoError(t, err)

	active := ledger.ActiveAuctions()
	require.Len(t, active, 2)
	for _, auction := range active {
		require.True(t, auction.IsActive())
	}
}

// Test that WithAuctionLock commits staged mutations atomically
func TestMemoryLedger_WithAuctionLock_Commit(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	endsAt := time.Now().UTC().Add(time.Hour)
	_, err := ledger.CreateAuction(newAuction("auction1", "seller1", 100, endsAt))
	require.NoError(t, err)

	err = ledger.WithAuctionLock(context.Background(), "auction1", func(tx *AuctionTx) error {
		_, err := tx.AppendBid(models.Bid{BidID: "bid1", BidderID: "bidder1", Amount: 200})
		return err
	})
	require.NoError(t, err)

	auction, err := ledger.GetAuction("auction1")
	require.NoError(t, err)
	require.Equal(t, 200.0, auction.CurrentPrice)

	bid, err := ledger.GetBid("bid1")
	require.NoError(t, err)
	require.Equal(t, "auction1", bid.AuctionID)
	require.Equal(t, "bidder1", bid.BidderID)

	bids, err := ledger.GetBidsByAuction("auction1")
	require.NoError(t, err)
	require.Len(t, bids, 1)
}

// Test that an error from the critical section discards every staged mutation
func TestMemoryLedger_WithAuctionLock_RollbackOnError(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	endsAt := time.Now().UTC().Add(time.Hour)
	_, err := ledger.CreateAuction(newAuction("auction1", "seller1", 100, endsAt))
	require.NoError(t, err)

	sentinel := errors.New("admission rejected")
	err = ledger.WithAuctionLock(context.Background(), "auction1", func(tx *AuctionTx) error {
		if _, err := tx.AppendBid(models.Bid{BidID: "bid1", BidderID: "bidder1", Amount: 200}); err != nil {
			return err
		}
		tx.ExtendDeadline(endsAt.Add(time.Hour))
		return sentinel
	})
	require.True(t, errors.Is(err, sentinel))

	auction, err := ledger.GetAuction("auction1")
	require.NoError(t, err)
	require.Equal(t, 100.0, auction.CurrentPrice, "price change must not leak")
	require.Equal(t, endsAt, auction.EndsAt, "deadline change must not leak")

	_, err = ledger.GetBid("bid1")
	require.True(t, errors.Is(err, auctionerrors.ErrBidNotFound), "rejected bid must not be visible")
}

// Test WithAuctionLock on a missing auction
func TestMemoryLedger_WithAuctionLock_NotFound(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	err := ledger.WithAuctionLock(context.Background(), "missing", func(tx *AuctionTx) error {
		t.Fatal("critical section must not run for a missing auction")
		return nil
	})
	require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotFound))
}

// Test that commit timestamps are strictly increasing per auction even when
// the clock stands still
func TestMemoryLedger_CommitTimestampsStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	frozen := time.Now().UTC()
	ledger.now = func() time.Time { return frozen } // clock never advances

	endsAt := frozen.Add(time.Hour)
	_, err := ledger.CreateAuction(newAuction("auction1", "seller1", 100, endsAt))
	require.NoError(t, err)

	err = ledger.WithAuctionLock(context.Background(), "auction1", func(tx *AuctionTx) error {
		for i := 0; i < 5; i++ {
			if _, err := tx.AppendBid(models.Bid{
				BidID:    fmt.Sprintf("bid%d", i),
				BidderID: "bidder1",
				Amount:   float64(200 + i*100),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	bids, err := ledger.GetBidsByAuction("auction1")
	require.NoError(t, err)
	require.Len(t, bids, 5)
	for i := 1; i < len(bids); i++ {
		require.True(t, bids[i].CreatedAt.After(bids[i-1].CreatedAt),
			"bid %d timestamp must be strictly after bid %d", i, i-1)
	}
}

// Test that concurrent writers on one auction serialize: every admitted bid
// observed a committed snapshot, so the final price reflects all of them
func TestMemoryLedger_ConcurrentWritersSerialize(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	endsAt := time.Now().UTC().Add(time.Hour)
	_, err := ledger.CreateAuction(newAuction("auction1", "seller1", 100, endsAt))
	require.NoError(t, err)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := ledger.WithAuctionLock(context.Background(), "auction1", func(tx *AuctionTx) error {
				// Raise the price by exactly 10 over whatever is committed.
				_, err := tx.AppendBid(models.Bid{
					BidID:    fmt.Sprintf("bid%d", i),
					BidderID: fmt.Sprintf("bidder%d", i),
					Amount:   tx.Auction().CurrentPrice + 10,
				})
				return err
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	auction, err := ledger.GetAuction("auction1")
	require.NoError(t, err)
	require.Equal(t, 100.0+10*writers, auction.CurrentPrice, "no lost update")

	bids, err := ledger.GetBidsByAuction("auction1")
	require.NoError(t, err)
	require.Len(t, bids, writers)
	for i := 1; i < len(bids); i++ {
		require.True(t, bids[i].CreatedAt.After(bids[i-1].CreatedAt))
		require.Greater(t, bids[i].Amount, bids[i-1].Amount)
	}
}

// Test concurrent writers on different auctions do not interfere
func TestMemoryLedger_IndependentAuctions(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	endsAt := time.Now().UTC().Add(time.Hour)
	_, err := ledger.CreateAuction(newAuction("auction1", "seller1", 100, endsAt))
	require.NoError(t, err)
	_, err = ledger.CreateAuction(newAuction("auction2", "seller2", 500, endsAt))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			auctionID := "auction1"
			if i%2 == 0 {
				auctionID = "auction2"
			}
			err := ledger.WithAuctionLock(context.Background(), auctionID, func(tx *AuctionTx) error {
				_, err := tx.AppendBid(models.Bid{
					BidID:    fmt.Sprintf("%s-bid%d", auctionID, i),
					BidderID: fmt.Sprintf("bidder%d", i),
					Amount:   tx.Auction().CurrentPrice + 1,
				})
				return err
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	first, err := ledger.GetBidsByAuction("auction1")
	require.NoError(t, err)
	second, err := ledger.GetBidsByAuction("auction2")
	require.NoError(t, err)
	require.Len(t, first, 10)
	require.Len(t, second, 10)
}

// Test GetBidsByBidder spans auctions
func TestMemoryLedger_GetBidsByBidder(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	endsAt := time.Now().UTC().Add(time.Hour)
	for _, id := range []string{"auction1", "auction2"} {
		_, err := ledger.CreateAuction(newAuction(id, "seller1", 100, endsAt))
		require.NoError(t, err)
		err = ledger.WithAuctionLock(context.Background(), id, func(tx *AuctionTx) error {
			_, err := tx.AppendBid(models.Bid{BidID: id + "-bid", BidderID: "bidder1", Amount: 200})
			return err
		})
		require.NoError(t, err)
	}

	bids, err := ledger.GetBidsByBidder("bidder1")
	require.NoError(t, err)
	require.Len(t, bids, 2)

	none, err := ledger.GetBidsByBidder("stranger")
	require.NoError(t, err)
	require.Empty(t, none)
}

// Test AppendBid is rejected once the auction left the active state
func TestAuctionTx_AppendBid_NotActive(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	endsAt := time.Now().UTC().Add(time.Hour)
	_, err := ledger.CreateAuction(newAuction("auction1", "seller1", 100, endsAt))
	require.NoError(t, err)

	err = ledger.WithAuctionLock(context.Background(), "auction1", func(tx *AuctionTx) error {
		require.NoError(t, tx.TransitionStatus(models.StatusActive, models.StatusClosed))
		_, err := tx.AppendBid(models.Bid{BidID: "bid1", BidderID: "bidder1", Amount: 200})
		require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotActive))
		return nil
	})
	require.NoError(t, err)
}

// Test status transition legality
func TestAuctionTx_TransitionStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		from      models.AuctionStatus
		to        models.AuctionStatus
		wantError bool
	}{
		{name: "active_to_closed", from: models.StatusActive, to: models.StatusClosed, wantError: false},
		{name: "active_to_sold", from: models.StatusActive, to: models.StatusSold, wantError: false},
		{name: "closed_to_active", from: models.StatusClosed, to: models.StatusActive, wantError: true},
		{name: "sold_to_closed", from: models.StatusSold, to: models.StatusClosed, wantError: true},
		{name: "closed_to_sold", from: models.StatusClosed, to: models.StatusSold, wantError: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			auction := newAuction("auction1", "seller1", 100, time.Now().UTC().Add(time.Hour))
			auction.Status = tc.from
			tx := &AuctionTx{auction: auction, now: func() time.Time { return time.Now().UTC() }}

			err := tx.TransitionStatus(tc.from, tc.to)
			if tc.wantError {
				require.Error(t, err)
				require.True(t, errors.Is(err, auctionerrors.ErrInvalidTransition))
				require.Equal(t, tc.from, tx.Auction().Status)
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.to, tx.Auction().Status)
			}
		})
	}
}

// Test transition with a stale from-state is rejected
func TestAuctionTx_TransitionStatus_StaleFrom(t *testing.T) {
	t.Parallel()

	auction := newAuction("auction1", "seller1", 100, time.Now().UTC().Add(time.Hour))
	auction.Status = models.StatusClosed
	tx := &AuctionTx{auction: auction, now: func() time.Time { return time.Now().UTC() }}

	err := tx.TransitionStatus(models.StatusActive, models.StatusClosed)
	require.True(t, errors.Is(err, auctionerrors.ErrInvalidTransition))
}

// Test LeadingBid skips retracted bids and breaks amount ties by earliest
// timestamp
func TestAuctionTx_LeadingBid(t *testing.T) {
	t.Parallel()

	base := time.Now().UTC()
	tx := &AuctionTx{
		auction: newAuction("auction1", "seller1", 100, base.Add(time.Hour)),
		bids: []models.Bid{
			{BidID: "bid1", BidderID: "bidder1", Amount: 300, CreatedAt: base},
			{BidID: "bid2", BidderID: "bidder2", Amount: 500, CreatedAt: base.Add(time.Second), IsRetracted: true},
			{BidID: "bid3", BidderID: "bidder3", Amount: 300, CreatedAt: base.Add(2 * time.Second)},
		},
		now: func() time.Time { return base },
	}

	leader, ok := tx.LeadingBid()
	require.True(t, ok)
	require.Equal(t, "bid1", leader.BidID, "retracted bids never lead; earliest wins amount ties")

	empty := &AuctionTx{auction: tx.auction, now: tx.now}
	_, ok = empty.LeadingBid()
	require.False(t, ok)
}

// Test MarkRetracted keeps the bid in the history
func TestAuctionTx_MarkRetracted(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	endsAt := time.Now().UTC().Add(time.Hour)
	_, err := ledger.CreateAuction(newAuction("auction1", "seller1", 100, endsAt))
	require.NoError(t, err)

	err = ledger.WithAuctionLock(context.Background(), "auction1", func(tx *AuctionTx) error {
		if _, err := tx.AppendBid(models.Bid{BidID: "bid1", BidderID: "bidder1", Amount: 200}); err != nil {
			return err
		}
		if _, err := tx.AppendBid(models.Bid{BidID: "bid2", BidderID: "bidder2", Amount: 300}); err != nil {
			return err
		}
		return tx.MarkRetracted("bid1", "changed my mind")
	})
	require.NoError(t, err)

	bids, err := ledger.GetBidsByAuction("auction1")
	require.NoError(t, err)
	require.Len(t, bids, 2, "retraction keeps the bid in the history")
	require.True(t, bids[0].IsRetracted)
	require.Equal(t, "changed my mind", bids[0].RetractionReason)
	require.False(t, bids[1].IsRetracted)

	err = ledger.WithAuctionLock(context.Background(), "auction1", func(tx *AuctionTx) error {
		return tx.MarkRetracted("missing", "n/a")
	})
	require.True(t, errors.Is(err, auctionerrors.ErrBidNotFound))
}

// Test reserve tracking on AppendBid
func TestAuctionTx_AppendBid_ReserveMet(t *testing.T) {
	t.Parallel()

	reserve := 500.0
	auction := newAuction("auction1", "seller1", 100, time.Now().UTC().Add(time.Hour))
	auction.ReservePrice = &reserve

	ledger := NewMemoryLedger()
	_, err := ledger.CreateAuction(auction)
	require.NoError(t, err)

	err = ledger.WithAuctionLock(context.Background(), "auction1", func(tx *AuctionTx) error {
		if _, err := tx.AppendBid(models.Bid{BidID: "bid1", BidderID: "bidder1", Amount: 300}); err != nil {
			return err
		}
		require.False(t, tx.Auction().ReserveMet)
		if _, err := tx.AppendBid(models.Bid{BidID: "bid2", BidderID: "bidder2", Amount: 500}); err != nil {
			return err
		}
		require.True(t, tx.Auction().ReserveMet)
		return nil
	})
	require.NoError(t, err)

	stored, err := ledger.GetAuction("auction1")
	require.NoError(t, err)
	require.True(t, stored.ReserveMet)
}
