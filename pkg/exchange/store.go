// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package exchange

import (
	"context"

	"github.com/admarkt/admarkt/pkg/model"
)

// Store is the persistence layer the engine runs against. Implementations
// must translate missing rows into ErrNotFound and backend outages or
// deadline hits into ErrStorageUnavailable.
type Store interface {
	CreateAdSpace(ctx context.Context, s *model.AdSpace) error
	AdSpace(ctx context.Context, id int64) (*model.AdSpace, error)
	AdSpacesByPublisher(ctx context.Context, publisherID int64) ([]model.AdSpace, error)

	CreateCampaign(ctx context.Context, c *model.Campaign) error
	CampaignsByAdvertiser(ctx context.Context, advertiserID int64) ([]model.Campaign, error)

	CreateAuction(ctx context.Context, a *model.Auction) error
	AuctionIDs(ctx context.Context) ([]int64, error)

	Bid(ctx context.Context, id int64) (*model.Bid, error)

	// SetBidCreative updates a bid's creative state. A nil creativeURL
	// leaves the stored URL untouched.
	SetBidCreative(ctx context.Context, bidID int64, creativeURL *string, status model.CreativeStatus) error

	// AddImpression and AddClick increment the respective counter with a
	// single atomic operation.
	AddImpression(ctx context.Context, bidID int64) error
	AddClick(ctx context.Context, bidID int64) error

	// WithAuction runs fn with exclusive access to the auction and its
	// bids: no other settlement or bid write for this auction may
	// interleave. Bids are passed ordered by amount descending, bid id
	// ascending. If fn returns an error all writes made through tx are
	// discarded.
	WithAuction(ctx context.Context, auctionID int64, fn func(tx AuctionTx, a *model.Auction, bids []model.Bid) error) error
}

// AuctionTx exposes the writes allowed under the per-auction lock.
type AuctionTx interface {
	// CloseAuction transitions the auction to closed and records the
	// winning bid, but only if the auction is still open. It returns
	// false when the auction was already closed (the transition is a
	// no-op then).
	CloseAuction(winningBidID *int64) (bool, error)

	// SetWinner records the winning bid on an already-closed auction that
	// is missing one. Used to recover from partial settlement writes.
	SetWinner(winningBidID int64) error

	SetBidStatus(bidID int64, status model.BidStatus) error

	// InsertBid stores a new bid for this auction and fills in its id.
	InsertBid(b *model.Bid) error
}
