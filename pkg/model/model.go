// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionOpen   AuctionStatus = "open"
	AuctionClosed AuctionStatus = "closed"
)

// BidStatus is the settlement state of a bid. New bids are created as
// BidPending; BidAccepted is kept as a legal live value for rows written by
// older code paths and is treated identically by settlement.
type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidWon      BidStatus = "won"
	BidLost     BidStatus = "lost"
)

// Live reports whether the bid is still eligible to win.
func (s BidStatus) Live() bool {
	return s == BidPending || s == BidAccepted
}

// CreativeStatus is the review state of a winning bid's creative.
// Only approved is terminal; a rejected creative may be re-uploaded.
type CreativeStatus string

const (
	CreativePendingUpload CreativeStatus = "pending_upload"
	CreativePendingReview CreativeStatus = "pending_review"
	CreativeApproved      CreativeStatus = "approved"
	CreativeRejected      CreativeStatus = "rejected"
)

// AdSpace is a placement offered by a publisher. Immutable once auctions
// reference it.
type AdSpace struct {
	ID          int64           `db:"id" json:"id"`
	PublisherID int64           `db:"publisher_id" json:"publisher_id"`
	Name        string          `db:"name" json:"name"`
	Width       int             `db:"width" json:"width"`
	Height      int             `db:"height" json:"height"`
	Category    string          `db:"category" json:"category"`
	Description string          `db:"description" json:"description"`
	FloorPrice  decimal.Decimal `db:"floor_price" json:"floor_price"`
	MediaURL    *string         `db:"media_url" json:"media_url,omitempty"`
	TargetURL   *string         `db:"target_url" json:"target_url,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Campaign groups an advertiser's bids.
type Campaign struct {
	ID           int64           `db:"id" json:"id"`
	AdvertiserID int64           `db:"advertiser_id" json:"advertiser_id"`
	Name         string          `db:"name" json:"name"`
	Budget       decimal.Decimal `db:"budget" json:"budget"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Auction is a timed first-price auction over a single ad space. The floor
// price is copied from the ad space at creation time. Status and
// WinningBidID are mutated only under the store's per-auction lock.
type Auction struct {
	ID              int64           `db:"id" json:"id"`
	AdSpaceID       int64           `db:"ad_space_id" json:"ad_space_id"`
	StartTime       time.Time       `db:"start_time" json:"start_time"`
	EndTime         time.Time       `db:"end_time" json:"end_time"`
	MinimumBidFloor decimal.Decimal `db:"minimum_bid_floor" json:"minimum_bid_floor"`
	Status          AuctionStatus   `db:"status" json:"status"`
	WinningBidID    *int64          `db:"winning_bid_id" json:"winning_bid_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Expired reports whether the auction's end time has passed.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// Bid is a CPM offer by an advertiser on an open auction. CreativeStatus is
// meaningful only once the bid has won.
type Bid struct {
	ID             int64           `db:"id" json:"id"`
	AuctionID      int64           `db:"auction_id" json:"auction_id"`
	CampaignID     int64           `db:"campaign_id" json:"campaign_id"`
	AdvertiserID   int64           `db:"advertiser_id" json:"advertiser_id"`
	BidAmount      decimal.Decimal `db:"bid_amount" json:"bid_amount"`
	Status         BidStatus       `db:"status" json:"status"`
	CreativeURL    *string         `db:"creative_url" json:"creative_url,omitempty"`
	CreativeStatus CreativeStatus  `db:"creative_status" json:"creative_status"`
	Impressions    int64           `db:"impressions" json:"impressions"`
	Clicks         int64           `db:"clicks" json:"clicks"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
