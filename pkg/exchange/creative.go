// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package exchange

import (
	"context"
	"fmt"

	"github.com/admarkt/admarkt/pkg/log"
	"github.com/admarkt/admarkt/pkg/metrics"
	"github.com/admarkt/admarkt/pkg/model"
)

// UploadCreative attaches a creative to a won bid and moves it to publisher
// review. Allowed from pending_upload and rejected (the retry loop), and
// from pending_review where the new upload simply replaces the old one.
// Approved creatives are final.
func (e *Engine) UploadCreative(ctx context.Context, bidID int64, fileRef string) error {
	if fileRef == "" {
		return fmt.Errorf("%w: creative file reference is required", ErrInvalidInput)
	}

	bid, err := e.store.Bid(ctx, bidID)
	if err != nil {
		return err
	}
	if bid.Status != model.BidWon {
		return fmt.Errorf("%w: creative upload requires a won bid, bid %d is %s", ErrInvalidState, bidID, bid.Status)
	}
	if bid.CreativeStatus == model.CreativeApproved {
		return fmt.Errorf("%w: creative for bid %d is already approved", ErrInvalidState, bidID)
	}

	if err := e.store.SetBidCreative(ctx, bidID, &fileRef, model.CreativePendingReview); err != nil {
		return err
	}
	e.log.Info("creative uploaded",
		log.Int64("bid_id", bidID),
		log.String("creative_url", fileRef))
	return nil
}

// ReviewCreative records the publisher's decision on a creative under
// review. Decision must be approved or rejected; no auction state is
// touched.
func (e *Engine) ReviewCreative(ctx context.Context, bidID int64, decision model.CreativeStatus) error {
	if decision != model.CreativeApproved && decision != model.CreativeRejected {
		return fmt.Errorf("%w: decision must be %q or %q", ErrInvalidInput, model.CreativeApproved, model.CreativeRejected)
	}

	bid, err := e.store.Bid(ctx, bidID)
	if err != nil {
		return err
	}
	if bid.CreativeStatus != model.CreativePendingReview {
		return fmt.Errorf("%w: creative for bid %d is %s, not pending review", ErrInvalidState, bidID, bid.CreativeStatus)
	}

	if err := e.store.SetBidCreative(ctx, bidID, nil, decision); err != nil {
		return err
	}
	e.log.Info("creative reviewed",
		log.Int64("bid_id", bidID),
		log.String("decision", string(decision)))
	return nil
}

// RecordImpression bumps a bid's impression counter. Monotonic, never
// bounded, fails only when the bid does not exist.
func (e *Engine) RecordImpression(ctx context.Context, bidID int64) error {
	if err := e.store.AddImpression(ctx, bidID); err != nil {
		return err
	}
	metrics.Impressions.Inc()
	return nil
}

// RecordClick bumps a bid's click counter.
func (e *Engine) RecordClick(ctx context.Context, bidID int64) error {
	if err := e.store.AddClick(ctx, bidID); err != nil {
		return err
	}
	metrics.Clicks.Inc()
	return nil
}
