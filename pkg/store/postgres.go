// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/admarkt/admarkt/pkg/config"
	"github.com/admarkt/admarkt/pkg/exchange"
	"github.com/admarkt/admarkt/pkg/log"
	"github.com/admarkt/admarkt/pkg/model"
)

//go:embed schema.sql
var schema string

const (
	auctionColumns = `id, ad_space_id, start_time, end_time, minimum_bid_floor, status, winning_bid_id, created_at`
	bidColumns     = `id, auction_id, campaign_id, advertiser_id, bid_amount, status, creative_url, creative_status, impressions, clicks, created_at`
	adSpaceColumns = `id, publisher_id, name, width, height, category, description, floor_price, media_url, target_url, created_at`
)

// Postgres implements exchange.Store on a PostgreSQL pool. Settlement is
// serialized per auction with a row lock; status transitions additionally
// use conditional updates so re-applying a closed transition is a no-op.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
	log     *log.Logger
}

// NewPostgres wraps an existing pool. queryTimeout bounds every storage
// call; zero disables the bound.
func NewPostgres(db *sqlx.DB, queryTimeout time.Duration, logger *log.Logger) *Postgres {
	return &Postgres{db: db, timeout: queryTimeout, log: logger}
}

// Open connects to PostgreSQL with the pool settings from cfg and verifies
// the connection.
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger *log.Logger) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(time.Hour)

	logger.Info("connected to PostgreSQL",
		log.String("host", cfg.Host),
		log.String("database", cfg.Name))
	return NewPostgres(db, time.Duration(cfg.QueryTimeout)*time.Second, logger), nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *Postgres) Close() error {
	return s.db.Close()
}

// opCtx bounds a storage operation with the configured timeout.
func (s *Postgres) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// mapErr translates storage-level failures into the exchange taxonomy.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return exchange.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn):
		return fmt.Errorf("%w: %v", exchange.ErrStorageUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", exchange.ErrStorageUnavailable, err)
	}
	return err
}

func (s *Postgres) CreateAdSpace(ctx context.Context, space *model.AdSpace) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if space.CreatedAt.IsZero() {
		space.CreatedAt = time.Now()
	}
	err := s.db.GetContext(ctx, &space.ID, `
		INSERT INTO ad_spaces (publisher_id, name, width, height, category, description, floor_price, media_url, target_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		space.PublisherID, space.Name, space.Width, space.Height, space.Category,
		space.Description, space.FloorPrice, space.MediaURL, space.TargetURL, space.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Postgres) AdSpace(ctx context.Context, id int64) (*model.AdSpace, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var space model.AdSpace
	err := s.db.GetContext(ctx, &space,
		`SELECT `+adSpaceColumns+` FROM ad_spaces WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &space, nil
}

func (s *Postgres) AdSpacesByPublisher(ctx context.Context, publisherID int64) ([]model.AdSpace, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var spaces []model.AdSpace
	err := s.db.SelectContext(ctx, &spaces,
		`SELECT `+adSpaceColumns+` FROM ad_spaces WHERE publisher_id = $1 ORDER BY id`, publisherID)
	if err != nil {
		return nil, mapErr(err)
	}
	return spaces, nil
}

func (s *Postgres) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	err := s.db.GetContext(ctx, &c.ID, `
		INSERT INTO campaigns (advertiser_id, name, budget, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		c.AdvertiserID, c.Name, c.Budget, c.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Postgres) CampaignsByAdvertiser(ctx context.Context, advertiserID int64) ([]model.Campaign, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var campaigns []model.Campaign
	err := s.db.SelectContext(ctx, &campaigns,
		`SELECT id, advertiser_id, name, budget, created_at FROM campaigns WHERE advertiser_id = $1 ORDER BY id`, advertiserID)
	if err != nil {
		return nil, mapErr(err)
	}
	return campaigns, nil
}

func (s *Postgres) CreateAuction(ctx context.Context, a *model.Auction) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	err := s.db.GetContext(ctx, &a.ID, `
		INSERT INTO auctions (ad_space_id, start_time, end_time, minimum_bid_floor, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		a.AdSpaceID, a.StartTime, a.EndTime, a.MinimumBidFloor, a.Status, a.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Postgres) AuctionIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM auctions ORDER BY id DESC`); err != nil {
		return nil, mapErr(err)
	}
	return ids, nil
}

func (s *Postgres) Bid(ctx context.Context, id int64) (*model.Bid, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var bid model.Bid
	err := s.db.GetContext(ctx, &bid,
		`SELECT `+bidColumns+` FROM bids WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &bid, nil
}

func (s *Postgres) SetBidCreative(ctx context.Context, bidID int64, creativeURL *string, status model.CreativeStatus) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var (
		res sql.Result
		err error
	)
	if creativeURL != nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE bids SET creative_url = $2, creative_status = $3 WHERE id = $1`,
			bidID, *creativeURL, status)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE bids SET creative_status = $2 WHERE id = $1`,
			bidID, status)
	}
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (s *Postgres) AddImpression(ctx context.Context, bidID int64) error {
	return s.increment(ctx, `UPDATE bids SET impressions = impressions + 1 WHERE id = $1`, bidID)
}

func (s *Postgres) AddClick(ctx context.Context, bidID int64) error {
	return s.increment(ctx, `UPDATE bids SET clicks = clicks + 1 WHERE id = $1`, bidID)
}

func (s *Postgres) increment(ctx context.Context, query string, bidID int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, query, bidID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

// requireRow converts a zero-rows-affected update into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return exchange.ErrNotFound
	}
	return nil
}

// WithAuction locks the auction row for the duration of fn. The row lock
// serializes settlement against concurrent observers and bid submissions;
// fn's writes commit atomically or not at all.
func (s *Postgres) WithAuction(ctx context.Context, auctionID int64, fn func(tx exchange.AuctionTx, a *model.Auction, bids []model.Bid) error) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()

	var a model.Auction
	err = tx.GetContext(ctx, &a,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`, auctionID)
	if err != nil {
		return mapErr(err)
	}

	var bids []model.Bid
	err = tx.SelectContext(ctx, &bids,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = $1 ORDER BY bid_amount DESC, id ASC`, auctionID)
	if err != nil {
		return mapErr(err)
	}

	atx := &pgAuctionTx{ctx: ctx, tx: tx, auctionID: auctionID}
	if err := fn(atx, &a, bids); err != nil {
		return err
	}
	return mapErr(tx.Commit())
}

type pgAuctionTx struct {
	ctx       context.Context
	tx        *sqlx.Tx
	auctionID int64
}

func (t *pgAuctionTx) CloseAuction(winningBidID *int64) (bool, error) {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE auctions SET status = $2, winning_bid_id = $3 WHERE id = $1 AND status = $4`,
		t.auctionID, model.AuctionClosed, winningBidID, model.AuctionOpen)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

func (t *pgAuctionTx) SetWinner(winningBidID int64) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE auctions SET winning_bid_id = $2 WHERE id = $1 AND status = $3 AND winning_bid_id IS NULL`,
		t.auctionID, winningBidID, model.AuctionClosed)
	return mapErr(err)
}

func (t *pgAuctionTx) SetBidStatus(bidID int64, status model.BidStatus) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE bids SET status = $2 WHERE id = $1`, bidID, status)
	return mapErr(err)
}

func (t *pgAuctionTx) InsertBid(b *model.Bid) error {
	err := t.tx.GetContext(t.ctx, &b.ID, `
		INSERT INTO bids (auction_id, campaign_id, advertiser_id, bid_amount, status, creative_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		b.AuctionID, b.CampaignID, b.AdvertiserID, b.BidAmount, b.Status, b.CreativeStatus, b.CreatedAt)
	return mapErr(err)
}
