// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/admarkt/admarkt/pkg/log"
	"github.com/admarkt/admarkt/pkg/metrics"
	"github.com/admarkt/admarkt/pkg/model"
)

// Clock returns the current time. Injectable for tests.
type Clock func() time.Time

// Engine drives the auction lifecycle. There is no background scheduler:
// expiry is detected lazily whenever an auction is observed or bid upon, and
// the closed state plus win/loss transitions are applied exactly once under
// the store's per-auction lock.
type Engine struct {
	store Store
	log   *log.Logger
	clock Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates a settlement engine on top of the given store.
func New(store Store, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		log:   logger,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Observation is the consistent post-settlement view of an auction: the
// auction row and all of its bids, sorted by amount descending with bid id
// as the tie-break.
type Observation struct {
	Auction model.Auction
	Bids    []model.Bid
}

// Winner returns the bid holding won status, falling back to the highest
// bid for closed auctions written before win statuses existed. Nil while
// the auction is open or when it closed without bids.
func (o *Observation) Winner() *model.Bid {
	for i := range o.Bids {
		if o.Bids[i].Status == model.BidWon {
			return &o.Bids[i]
		}
	}
	if o.Auction.Status == model.AuctionClosed {
		return bestByAmount(o.Bids)
	}
	return nil
}

// CreateAuction opens an auction over an ad space. The floor price is
// copied from the ad space unless an explicit floor is supplied.
func (e *Engine) CreateAuction(ctx context.Context, adSpaceID int64, start, end time.Time, floor *decimal.Decimal) (int64, error) {
	if !end.After(start) {
		return 0, fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}

	space, err := e.store.AdSpace(ctx, adSpaceID)
	if err != nil {
		return 0, err
	}

	minFloor := space.FloorPrice
	if floor != nil {
		if floor.IsNegative() {
			return 0, fmt.Errorf("%w: floor price must not be negative", ErrInvalidInput)
		}
		minFloor = *floor
	}

	a := &model.Auction{
		AdSpaceID:       adSpaceID,
		StartTime:       start,
		EndTime:         end,
		MinimumBidFloor: minFloor,
		Status:          model.AuctionOpen,
		CreatedAt:       e.clock(),
	}
	if err := e.store.CreateAuction(ctx, a); err != nil {
		return 0, err
	}

	e.log.Info("auction created",
		log.Int64("auction_id", a.ID),
		log.Int64("ad_space_id", adSpaceID),
		log.String("floor", minFloor.String()))
	return a.ID, nil
}

// ObserveAuction returns the auction and its bids, lazily settling it first
// if its end time has passed. Observing an already-closed auction never
// changes state except to repair a missing winner record.
func (e *Engine) ObserveAuction(ctx context.Context, auctionID int64) (*Observation, error) {
	var obs *Observation
	err := e.store.WithAuction(ctx, auctionID, func(tx AuctionTx, a *model.Auction, bids []model.Bid) error {
		if err := e.observe(tx, a, bids); err != nil {
			return err
		}
		obs = &Observation{Auction: *a, Bids: bids}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortBids(obs.Bids)
	return obs, nil
}

// ObserveAll observes every auction in the store. Auctions deleted between
// the id listing and the observation are skipped.
func (e *Engine) ObserveAll(ctx context.Context) ([]Observation, error) {
	ids, err := e.store.AuctionIDs(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Observation, 0, len(ids))
	for _, id := range ids {
		obs, err := e.ObserveAuction(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *obs)
	}
	return out, nil
}

// SubmitBid validates and records a bid. If the auction turns out to have
// expired, it is force-closed (settling any existing bids) and the submitted
// bid is rejected with ErrAuctionExpired; the closure persists even though
// the bid does not.
func (e *Engine) SubmitBid(ctx context.Context, auctionID, campaignID, advertiserID int64, amount decimal.Decimal) (int64, error) {
	if campaignID <= 0 || advertiserID <= 0 {
		metrics.RecordBidSubmission("invalid")
		return 0, fmt.Errorf("%w: campaign and advertiser are required", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		metrics.RecordBidSubmission("invalid")
		return 0, fmt.Errorf("%w: bid amount must be positive", ErrInvalidInput)
	}

	var (
		bidID   int64
		expired bool
	)
	err := e.store.WithAuction(ctx, auctionID, func(tx AuctionTx, a *model.Auction, bids []model.Bid) error {
		if a.Status == model.AuctionClosed {
			return ErrAuctionClosed
		}
		if a.Expired(e.clock()) {
			// The closure must commit even though the bid is
			// rejected, so settle here and surface the error after
			// the transaction.
			expired = true
			return e.settle(tx, a, bids)
		}
		if amount.LessThan(a.MinimumBidFloor) {
			return ErrBidTooLow
		}

		b := &model.Bid{
			AuctionID:      auctionID,
			CampaignID:     campaignID,
			AdvertiserID:   advertiserID,
			BidAmount:      amount,
			Status:         model.BidPending,
			CreativeStatus: model.CreativePendingUpload,
			CreatedAt:      e.clock(),
		}
		if err := tx.InsertBid(b); err != nil {
			return err
		}
		bidID = b.ID
		return nil
	})

	switch {
	case err == nil && expired:
		metrics.RecordBidSubmission("expired")
		return 0, ErrAuctionExpired
	case err == nil:
		metrics.RecordBidSubmission("accepted")
		e.log.Info("bid recorded",
			log.Int64("bid_id", bidID),
			log.Int64("auction_id", auctionID),
			log.String("amount", amount.String()))
		return bidID, nil
	case errors.Is(err, ErrAuctionClosed):
		metrics.RecordBidSubmission("closed")
	case errors.Is(err, ErrBidTooLow):
		metrics.RecordBidSubmission("too_low")
	case errors.Is(err, ErrNotFound):
		metrics.RecordBidSubmission("not_found")
	default:
		metrics.RecordBidSubmission("error")
	}
	return 0, err
}

// observe applies the lazy-expiry rules to a locked auction.
func (e *Engine) observe(tx AuctionTx, a *model.Auction, bids []model.Bid) error {
	if a.Status == model.AuctionClosed {
		return e.repair(tx, a, bids)
	}
	if !a.Expired(e.clock()) {
		return nil
	}
	return e.settle(tx, a, bids)
}

// settle closes an expired open auction and transitions its bids. Must run
// under the auction lock. Safe to race: the conditional close ensures only
// one observer applies the transitions.
func (e *Engine) settle(tx AuctionTx, a *model.Auction, bids []model.Bid) error {
	start := time.Now()

	winner := SelectWinner(bids)
	var winnerID *int64
	if winner != nil {
		id := winner.ID
		winnerID = &id
	}

	closed, err := tx.CloseAuction(winnerID)
	if err != nil {
		return err
	}
	a.Status = model.AuctionClosed
	if !closed {
		// Another observer settled first; nothing left to do.
		return nil
	}
	a.WinningBidID = winnerID

	for i := range bids {
		st := model.BidLost
		if winner != nil && bids[i].ID == winner.ID {
			st = model.BidWon
		}
		if err := tx.SetBidStatus(bids[i].ID, st); err != nil {
			return err
		}
		bids[i].Status = st
	}

	outcome := "no_bids"
	if winner != nil {
		outcome = "winner"
	}
	metrics.RecordSettlement(outcome, time.Since(start).Seconds())
	e.log.Info("auction settled",
		log.Int64("auction_id", a.ID),
		log.Int("bids", len(bids)),
		log.String("outcome", outcome))
	return nil
}

// repair re-derives the winner for a closed auction whose winning bid was
// never recorded (a partial settlement write). Winner selection falls back
// to raw amounts because bid statuses may be half-applied too.
func (e *Engine) repair(tx AuctionTx, a *model.Auction, bids []model.Bid) error {
	if a.WinningBidID != nil || len(bids) == 0 {
		return nil
	}

	winner := bestByAmount(bids)
	if err := tx.SetWinner(winner.ID); err != nil {
		return err
	}
	id := winner.ID
	a.WinningBidID = &id

	for i := range bids {
		st := model.BidLost
		if bids[i].ID == winner.ID {
			st = model.BidWon
		}
		if bids[i].Status == st {
			continue
		}
		if err := tx.SetBidStatus(bids[i].ID, st); err != nil {
			return err
		}
		bids[i].Status = st
	}

	e.log.Warn("recovered winner for partially settled auction",
		log.Int64("auction_id", a.ID),
		log.Int64("winning_bid_id", winner.ID))
	return nil
}

// SelectWinner returns the live bid with the highest amount. Ties are
// broken by the lowest bid id, i.e. the earliest accepted bid wins. Returns
// nil when no live bids exist.
func SelectWinner(bids []model.Bid) *model.Bid {
	var winner *model.Bid
	for i := range bids {
		b := &bids[i]
		if !b.Status.Live() {
			continue
		}
		if winner == nil ||
			b.BidAmount.GreaterThan(winner.BidAmount) ||
			(b.BidAmount.Equal(winner.BidAmount) && b.ID < winner.ID) {
			winner = b
		}
	}
	return winner
}

// bestByAmount picks the highest bid regardless of status, with the same
// lowest-id tie-break as SelectWinner.
func bestByAmount(bids []model.Bid) *model.Bid {
	var best *model.Bid
	for i := range bids {
		b := &bids[i]
		if best == nil ||
			b.BidAmount.GreaterThan(best.BidAmount) ||
			(b.BidAmount.Equal(best.BidAmount) && b.ID < best.ID) {
			best = b
		}
	}
	return best
}

func sortBids(bids []model.Bid) {
	sort.Slice(bids, func(i, j int) bool {
		if c := bids[i].BidAmount.Cmp(bids[j].BidAmount); c != 0 {
			return c > 0
		}
		return bids[i].ID < bids[j].ID
	})
}
