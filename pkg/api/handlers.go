// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/admarkt/admarkt/pkg/exchange"
	"github.com/admarkt/admarkt/pkg/model"
)

func (s *Server) listAuctions(c *gin.Context) {
	observations, err := s.engine.ObserveAll(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	views := make([]AuctionView, 0, len(observations))
	for i := range observations {
		view, err := s.auctionView(c, &observations[i])
		if err != nil {
			s.writeError(c, err)
			return
		}
		views = append(views, *view)
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) getAuction(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}

	obs, err := s.engine.ObserveAuction(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	view, err := s.auctionView(c, obs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) createAuction(c *gin.Context) {
	var req CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", exchange.ErrInvalidInput, err))
		return
	}

	var floor *decimal.Decimal
	if req.MinimumBidFloor != nil {
		f := decimal.NewFromFloat(*req.MinimumBidFloor)
		floor = &f
	}

	id, err := s.engine.CreateAuction(c.Request.Context(), req.AdSpaceID, req.StartTime, req.EndTime, floor)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateAuctionResponse{AuctionID: id})
}

func (s *Server) submitBid(c *gin.Context) {
	auctionID, err := pathID(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req SubmitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", exchange.ErrInvalidInput, err))
		return
	}

	bidID, err := s.engine.SubmitBid(c.Request.Context(), auctionID, req.CampaignID, req.AdvertiserID, decimal.NewFromFloat(req.BidAmount))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SubmitBidResponse{BidID: bidID})
}

func (s *Server) uploadCreative(c *gin.Context) {
	bidIDStr := c.PostForm("bidId")
	if bidIDStr == "" {
		s.writeError(c, fmt.Errorf("%w: bidId is required", exchange.ErrInvalidInput))
		return
	}
	bidID, err := strconv.ParseInt(bidIDStr, 10, 64)
	if err != nil {
		s.writeError(c, fmt.Errorf("%w: bidId must be numeric", exchange.ErrInvalidInput))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		s.writeError(c, fmt.Errorf("%w: file is required", exchange.ErrInvalidInput))
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	// Reject unknown bids before writing anything to disk.
	if _, err := s.store.Bid(ctx, bidID); err != nil {
		s.writeError(c, err)
		return
	}

	ref, err := s.files.Save(ctx, header.Filename, file)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if err := s.engine.UploadCreative(ctx, bidID, ref); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, UploadCreativeResponse{BidID: bidID, CreativeURL: ref})
}

func (s *Server) reviewCreative(c *gin.Context) {
	bidID, err := pathID(c, "bidId")
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req ReviewCreativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", exchange.ErrInvalidInput, err))
		return
	}

	if err := s.engine.ReviewCreative(c.Request.Context(), bidID, model.CreativeStatus(req.CreativeStatus)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) recordView(c *gin.Context) {
	bidID, err := pathID(c, "bidId")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.engine.RecordImpression(c.Request.Context(), bidID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) recordClick(c *gin.Context) {
	bidID, err := pathID(c, "bidId")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.engine.RecordClick(c.Request.Context(), bidID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createAdSpace(c *gin.Context) {
	var req CreateAdSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", exchange.ErrInvalidInput, err))
		return
	}

	space := &model.AdSpace{
		PublisherID: req.PublisherID,
		Name:        req.Name,
		Width:       req.Width,
		Height:      req.Height,
		Category:    req.Category,
		Description: req.Description,
		FloorPrice:  decimal.NewFromFloat(req.FloorPrice),
		MediaURL:    req.MediaURL,
		TargetURL:   req.TargetURL,
	}
	if err := s.store.CreateAdSpace(c.Request.Context(), space); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateAdSpaceResponse{AdSpaceID: space.ID})
}

func (s *Server) listAdSpacesByPublisher(c *gin.Context) {
	publisherID, err := pathID(c, "publisherId")
	if err != nil {
		s.writeError(c, err)
		return
	}
	spaces, err := s.store.AdSpacesByPublisher(c.Request.Context(), publisherID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, spaces)
}

func (s *Server) createCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", exchange.ErrInvalidInput, err))
		return
	}

	campaign := &model.Campaign{
		AdvertiserID: req.AdvertiserID,
		Name:         req.Name,
		Budget:       decimal.NewFromFloat(req.Budget),
	}
	if err := s.store.CreateCampaign(c.Request.Context(), campaign); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateCampaignResponse{CampaignID: campaign.ID})
}

func (s *Server) listCampaignsByAdvertiser(c *gin.Context) {
	advertiserID, err := pathID(c, "advertiserId")
	if err != nil {
		s.writeError(c, err)
		return
	}
	campaigns, err := s.store.CampaignsByAdvertiser(c.Request.Context(), advertiserID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaigns)
}

// auctionView joins an observation with its ad space into the response
// shape the frontend renders.
func (s *Server) auctionView(c *gin.Context, obs *exchange.Observation) (*AuctionView, error) {
	space, err := s.store.AdSpace(c.Request.Context(), obs.Auction.AdSpaceID)
	if err != nil {
		return nil, err
	}

	bids := make([]BidView, 0, len(obs.Bids))
	for i := range obs.Bids {
		b := &obs.Bids[i]
		view := BidView{
			ID:           b.ID,
			CampaignID:   b.CampaignID,
			AdvertiserID: b.AdvertiserID,
			BidAmountCPM: b.BidAmount.InexactFloat64(),
			SubmitTime:   b.CreatedAt,
			Status:       string(b.Status),
			CreativeURL:  b.CreativeURL,
			Impressions:  b.Impressions,
			Clicks:       b.Clicks,
		}
		if b.Status == model.BidWon {
			view.CreativeStatus = string(b.CreativeStatus)
		}
		bids = append(bids, view)
	}

	view := &AuctionView{
		ID:              obs.Auction.ID,
		AdSpaceID:       space.ID,
		AdSpaceName:     space.Name,
		PublisherID:     space.PublisherID,
		Width:           space.Width,
		Height:          space.Height,
		Category:        space.Category,
		Description:     space.Description,
		MediaURL:        space.MediaURL,
		StartTime:       obs.Auction.StartTime,
		EndTime:         obs.Auction.EndTime,
		Status:          string(obs.Auction.Status),
		MinimumBidFloor: obs.Auction.MinimumBidFloor.InexactFloat64(),
		BidCount:        len(bids),
		AllBids:         bids,
	}

	if obs.Auction.Status == model.AuctionClosed {
		if winner := obs.Winner(); winner != nil {
			view.WinningBid = &WinningBidView{
				BidID:          winner.ID,
				CampaignID:     winner.CampaignID,
				AdvertiserID:   winner.AdvertiserID,
				BidAmountCPM:   winner.BidAmount.InexactFloat64(),
				CreativeStatus: string(winner.CreativeStatus),
				CreativeURL:    winner.CreativeURL,
			}
		}
	}
	return view, nil
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", exchange.ErrInvalidInput, name)
	}
	return id, nil
}
