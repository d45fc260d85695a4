package scheduler

import (
	"context"
	"sync"
	"time"

	"auction-engine/internal/events"
	"auction-engine/internal/ledger"
	"auction-engine/internal/models"
	"auction-engine/utils"
)

// Config carries the sweep cadence and windows.
type Config struct {
	ExpirySweepInterval    time.Duration
	ExtensionSweepInterval time.Duration
	ExtensionLookahead     time.Duration
	ExtensionIncrement     time.Duration
	LockWaitTimeout        time.Duration
}

// DefaultConfig returns the standard sweep cadence.
func DefaultConfig() Config {
	return Config{
		ExpirySweepInterval:    time.Minute,
		ExtensionSweepInterval: 30 * time.Second,
		ExtensionLookahead:     2 * time.Minute,
		ExtensionIncrement:     2 * time.Minute,
		LockWaitTimeout:        5 * time.Second,
	}
}

// Scheduler runs the auction lifecycle sweeps: closing expired auctions and
// extending auctions that received a last-minute bid. It is the only writer
// that changes an auction's deadline, or closes it, without a bid trigger.
// Each auction is processed under its own lock, one at a time; one auction's
// failure never aborts a sweep.
type Scheduler struct {
	ledger  ledger.AuctionLedger
	emitter events.Emitter
	cfg     Config
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. Start must be called to begin sweeping.
func New(l ledger.AuctionLedger, emitter events.Emitter, cfg Config) *Scheduler {
	return &Scheduler{
		ledger:  l,
		emitter: emitter,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the two ticking loops. Cancelling stops the loops; a sweep
// already processing an auction always finishes that auction first.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	// Sweeps run against a fresh context: cancellation stops the ticking
	// loops, not an in-flight sweep. Lock waits stay bounded either way.
	s.wg.Add(2)
	go s.loop(ctx, s.cfg.ExpirySweepInterval, func() { s.CloseExpired(context.Background()) })
	go s.loop(ctx, s.cfg.ExtensionSweepInterval, func() { s.ExtendIfRecentBid(context.Background()) })

	utils.Info("auction scheduler started", map[string]any{
		"expiry_interval":    s.cfg.ExpirySweepInterval.String(),
		"extension_interval": s.cfg.ExtensionSweepInterval.String(),
	})
}

// Close stops the ticking loops and waits for in-flight sweeps to finish.
func (s *Scheduler) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, sweep func()) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// CloseExpired transitions every active auction past its deadline to closed
// and reports how many it closed. Zero-bid auctions close with no winner, as
// do auctions whose reserve was never met.
func (s *Scheduler) CloseExpired(ctx context.Context) int {
	count := 0
	for _, candidate := range s.ledger.ActiveAuctions() {
		if candidate.EndsAt.After(s.now()) {
			continue
		}

		var (
			closed   bool
			winnerID string
		)
		err := s.withAuction(ctx, candidate.AuctionID, func(tx *ledger.AuctionTx) error {
			auction := tx.Auction()
			if !auction.IsActive() || auction.EndsAt.After(s.now()) {
				return nil // already handled or extended since the snapshot
			}
			if err := tx.TransitionStatus(models.StatusActive, models.StatusClosed); err != nil {
				return err
			}
			closed = true
			winnerID = closingWinner(tx)
			return nil
		})
		if err != nil {
			utils.Error("expiry sweep: failed to close auction", map[string]any{
				"auction_id": candidate.AuctionID,
				"error":      err.Error(),
			})
			continue
		}
		if !closed {
			continue
		}

		count++
		s.emitter.Emit(events.Event{
			Type:      events.TypeAuctionClosed,
			AuctionID: candidate.AuctionID,
			WinnerID:  winnerID,
		})
		utils.Info("auto-closed expired auction", map[string]any{
			"auction_id": candidate.AuctionID,
			"winner_id":  winnerID,
		})
	}
	return count
}

// ExtendIfRecentBid pushes back the deadline of auto-extend auctions ending
// within the lookahead window that received a non-retracted bid within the
// trailing window of the same length. Bid commit timestamps decide recency,
// never client clocks. Returns how many auctions were extended.
func (s *Scheduler) ExtendIfRecentBid(ctx context.Context) int {
	count := 0
	for _, candidate := range s.ledger.ActiveAuctions() {
		now := s.now()
		if !candidate.AutoExtend || candidate.EndsAt.Before(now) || candidate.EndsAt.After(now.Add(s.cfg.ExtensionLookahead)) {
			continue
		}

		var (
			extended  bool
			newEndsAt time.Time
		)
		err := s.withAuction(ctx, candidate.AuctionID, func(tx *ledger.AuctionTx) error {
			auction := tx.Auction()
			now := s.now()
			if !auction.IsActive() || !auction.AutoExtend ||
				auction.EndsAt.Before(now) || auction.EndsAt.After(now.Add(s.cfg.ExtensionLookahead)) {
				return nil
			}
			if !hasRecentBid(tx.Bids(), now.Add(-s.cfg.ExtensionLookahead)) {
				return nil
			}
			newEndsAt = auction.EndsAt.Add(s.cfg.ExtensionIncrement)
			tx.ExtendDeadline(newEndsAt)
			extended = true
			return nil
		})
		if err != nil {
			utils.Error("extension sweep: failed to extend auction", map[string]any{
				"auction_id": candidate.AuctionID,
				"error":      err.Error(),
			})
			continue
		}
		if !extended {
			continue
		}

		count++
		endsAt := newEndsAt
		s.emitter.Emit(events.Event{
			Type:      events.TypeAuctionExtended,
			AuctionID: candidate.AuctionID,
			NewEndsAt: &endsAt,
		})
		utils.Info("extended auction due to last-minute bid", map[string]any{
			"auction_id":  candidate.AuctionID,
			"new_ends_at": endsAt.Format(time.RFC3339),
		})
	}
	return count
}

// withAuction bounds the lock wait; locks are taken one auction at a time
// and released before moving to the next.
func (s *Scheduler) withAuction(ctx context.Context, auctionID string, fn func(tx *ledger.AuctionTx) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWaitTimeout)
	defer cancel()
	return s.ledger.WithAuctionLock(lockCtx, auctionID, fn)
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

func hasRecentBid(bids []models.Bid, since time.Time) bool {
	for _, bid := range bids {
		if !bid.IsRetracted && !bid.CreatedAt.Before(since) {
			return true
		}
	}
	return false
}
