// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import "time"

// Request payloads use snake_case and response views camelCase, matching
// the original exchange frontend.

type CreateAdSpaceRequest struct {
	PublisherID int64   `json:"publisher_id" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Width       int     `json:"width" binding:"gte=0"`
	Height      int     `json:"height" binding:"gte=0"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	FloorPrice  float64 `json:"floor_price" binding:"gte=0"`
	MediaURL    *string `json:"media_url"`
	TargetURL   *string `json:"target_url"`
}

type CreateCampaignRequest struct {
	AdvertiserID int64   `json:"advertiser_id" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	Budget       float64 `json:"budget" binding:"gte=0"`
}

type CreateAuctionRequest struct {
	AdSpaceID int64     `json:"ad_space_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`

	// MinimumBidFloor overrides the ad space's floor price when set.
	MinimumBidFloor *float64 `json:"minimum_bid_floor" binding:"omitempty,gte=0"`
}

type SubmitBidRequest struct {
	CampaignID   int64   `json:"campaign_id" binding:"required"`
	AdvertiserID int64   `json:"advertiser_id" binding:"required"`
	BidAmount    float64 `json:"bid_amount" binding:"required,gt=0"`
}

type ReviewCreativeRequest struct {
	CreativeStatus string `json:"creative_status" binding:"required"`
}

// BidView is one entry of an auction's bid list, sorted by amount
// descending in responses.
type BidView struct {
	ID             int64     `json:"id"`
	CampaignID     int64     `json:"campaignId"`
	AdvertiserID   int64     `json:"advertiserId"`
	BidAmountCPM   float64   `json:"bidAmountCPM"`
	SubmitTime     time.Time `json:"submitTime"`
	Status         string    `json:"status"`
	CreativeStatus string    `json:"creativeStatus,omitempty"`
	CreativeURL    *string   `json:"creativeUrl,omitempty"`
	Impressions    int64     `json:"impressions"`
	Clicks         int64     `json:"clicks"`
}

// WinningBidView summarizes the settled winner of a closed auction.
type WinningBidView struct {
	BidID          int64   `json:"bidId"`
	CampaignID     int64   `json:"campaignId"`
	AdvertiserID   int64   `json:"advertiserId"`
	BidAmountCPM   float64 `json:"bidAmountCPM"`
	CreativeStatus string  `json:"creativeStatus"`
	CreativeURL    *string `json:"creativeUrl,omitempty"`
}

// AuctionView is the auction detail/list item returned by the API. Status
// reflects lazy settlement: an expired auction is settled before the view
// is built.
type AuctionView struct {
	ID              int64           `json:"id"`
	AdSpaceID       int64           `json:"adSpaceId"`
	AdSpaceName     string          `json:"adSpaceName"`
	PublisherID     int64           `json:"publisherId"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	MediaURL        *string         `json:"mediaUrl,omitempty"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         time.Time       `json:"endTime"`
	Status          string          `json:"status"`
	MinimumBidFloor float64         `json:"minimumBidFloor"`
	BidCount        int             `json:"bidCount"`
	AllBids         []BidView       `json:"allBids"`
	WinningBid      *WinningBidView `json:"winningBid,omitempty"`
}

// ErrorResponse carries a human-readable message plus a machine-stable
// error code.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Stable error codes returned by the API.
const (
	CodeNotFound           = "not_found"
	CodeInvalidInput       = "invalid_input"
	CodeBidTooLow          = "bid_too_low"
	CodeAuctionClosed      = "auction_closed"
	CodeAuctionExpired     = "auction_expired"
	CodeInvalidState       = "invalid_state"
	CodeStorageUnavailable = "storage_unavailable"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal_error"
)

type CreateAdSpaceResponse struct {
	AdSpaceID int64 `json:"adSpaceId"`
}

type CreateCampaignResponse struct {
	CampaignID int64 `json:"campaignId"`
}

type CreateAuctionResponse struct {
	AuctionID int64 `json:"auctionId"`
}

type SubmitBidResponse struct {
	BidID int64 `json:"bidId"`
}

type UploadCreativeResponse struct {
	BidID       int64  `json:"bidId"`
	CreativeURL string `json:"creativeUrl"`
}
