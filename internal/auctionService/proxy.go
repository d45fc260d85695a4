package auction

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"auction-engine/internal/events"
	"auction-engine/internal/ledger"
	"auction-engine/internal/models"
	"auction-engine/utils"
)

// runProxyCascade re-bids on behalf of competing proxy bidders after the
// current price moved, until no ceiling beats the price or the best ceiling
// already belongs to the leader. It must run inside the same critical
// section as the triggering bid, and it is a pure function of the staged bid
// history: replaying it against unchanged state appends nothing.
func (s *AuctionService) runProxyCascade(tx *ledger.AuctionTx) ([]events.Event, error) {
	var pending []events.Event

	// Upper bound on rounds: each round either exhausts a bidder's ceiling
	// or raises the price by a full increment, so the cascade cannot run
	// longer than the ceiling span allows.
	maxRounds := cascadeBound(tx, s.cfg.MinimumBidIncrement)

	for round := 0; round < maxRounds; round++ {
		auction := tx.Auction()
		leader, hasLeader := tx.LeadingBid()

		candidates := proxyStandings(tx.Bids(), leader)
		candidates = lo.Filter(candidates, func(st models.ProxyStanding, _ int) bool {
			return !st.IsLeading
		})
		if len(candidates) == 0 {
			return pending, nil
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Ceiling != candidates[j].Ceiling {
				return candidates[i].Ceiling > candidates[j].Ceiling
			}
			return candidates[i].Since.Before(candidates[j].Since)
		})

		top := candidates[0]
		if top.Ceiling <= auction.CurrentPrice {
			return pending, nil
		}

		next := math.Min(top.Ceiling, auction.CurrentPrice+s.cfg.MinimumBidIncrement)
		ceiling := top.Ceiling
		bid, err := tx.AppendBid(models.Bid{
			BidID:    utils.GenerateID(),
			BidderID: top.BidderID,
			Amount:   next,
			MaxBid:   &ceiling,
			IsProxy:  true,
		})
		if err != nil {
			return nil, err
		}

		pending = append(pending, bidPlaced(bid, tx.Auction().CurrentPrice))
		if hasLeader && leader.BidderID != top.BidderID {
			pending = append(pending, outbid(leader, tx.Auction().CurrentPrice))
		}
	}
	return pending, nil
}

// cascadeBound computes the maximum rounds a cascade starting from the
// current staged state can take: one round per distinct proxy bidder plus
// one per full increment between the current price and the highest ceiling.
func cascadeBound(tx *ledger.AuctionTx, increment float64) int {
	auction := tx.Auction()
	standings := proxyStandings(tx.Bids(), models.Bid{})

	bound := len(standings) + 1
	if increment > 0 {
		highest := auction.CurrentPrice
		for _, st := range standings {
			if st.Ceiling > highest {
				highest = st.Ceiling
			}
		}
		bound += int((highest - auction.CurrentPrice) / increment)
	}
	return bound
}

// proxyStandings derives each bidder's live proxy authorization from the bid
// history: the ceiling is the MaxBid of their latest non-retracted proxy
// bid, the Since timestamp is their earliest one (the cascade tie-break).
func proxyStandings(bids []models.Bid, leader models.Bid) []models.ProxyStanding {
	proxies := lo.Filter(bids, func(bid models.Bid, _ int) bool {
		return bid.IsProxy && !bid.IsRetracted && bid.MaxBid != nil
	})
	byBidder := lo.GroupBy(proxies, func(bid models.Bid) string {
		return bid.BidderID
	})

	standings := make([]models.ProxyStanding, 0, len(byBidder))
	for bidderID, history := range byBidder {
		latest := lo.MaxBy(history, func(a, b models.Bid) bool {
			return a.CreatedAt.After(b.CreatedAt)
		})
		earliest := lo.MinBy(history, func(a, b models.Bid) bool {
			return a.CreatedAt.Before(b.CreatedAt)
		})
		standings = append(standings, models.ProxyStanding{
			BidderID:  bidderID,
			Ceiling:   *latest.MaxBid,
			Since:     earliest.CreatedAt,
			IsLeading: bidderID == leader.BidderID,
		})
	}
	return standings
}
