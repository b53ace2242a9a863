// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/admarkt/admarkt/pkg/exchange"
	"github.com/admarkt/admarkt/pkg/model"
)

var (
	_ exchange.Store = (*Postgres)(nil)
	_ exchange.Store = (*Memory)(nil)
)

// Memory is an in-memory exchange.Store for demos and tests. A single
// mutex serializes all access, which trivially satisfies the per-auction
// exclusivity WithAuction requires; writes made through the transaction are
// buffered and applied only when fn succeeds.
type Memory struct {
	mu sync.Mutex

	adSpaces  map[int64]*model.AdSpace
	campaigns map[int64]*model.Campaign
	auctions  map[int64]*model.Auction
	bids      map[int64]*model.Bid

	nextAdSpaceID  int64
	nextCampaignID int64
	nextAuctionID  int64
	nextBidID      int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		adSpaces:  make(map[int64]*model.AdSpace),
		campaigns: make(map[int64]*model.Campaign),
		auctions:  make(map[int64]*model.Auction),
		bids:      make(map[int64]*model.Bid),
	}
}

func (m *Memory) CreateAdSpace(_ context.Context, s *model.AdSpace) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAdSpaceID++
	s.ID = m.nextAdSpaceID
	cp := *s
	m.adSpaces[s.ID] = &cp
	return nil
}

func (m *Memory) AdSpace(_ context.Context, id int64) (*model.AdSpace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.adSpaces[id]
	if !ok {
		return nil, exchange.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) AdSpacesByPublisher(_ context.Context, publisherID int64) ([]model.AdSpace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.AdSpace
	for _, s := range m.adSpaces {
		if s.PublisherID == publisherID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateCampaign(_ context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextCampaignID++
	c.ID = m.nextCampaignID
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *Memory) CampaignsByAdvertiser(_ context.Context, advertiserID int64) ([]model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Campaign
	for _, c := range m.campaigns {
		if c.AdvertiserID == advertiserID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateAuction(_ context.Context, a *model.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAuctionID++
	a.ID = m.nextAuctionID
	cp := *a
	m.auctions[a.ID] = &cp
	return nil
}

func (m *Memory) AuctionIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.auctions))
	for id := range m.auctions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids, nil
}

func (m *Memory) Bid(_ context.Context, id int64) (*model.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bids[id]
	if !ok {
		return nil, exchange.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) SetBidCreative(_ context.Context, bidID int64, creativeURL *string, status model.CreativeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bids[bidID]
	if !ok {
		return exchange.ErrNotFound
	}
	if creativeURL != nil {
		url := *creativeURL
		b.CreativeURL = &url
	}
	b.CreativeStatus = status
	return nil
}

func (m *Memory) AddImpression(_ context.Context, bidID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bids[bidID]
	if !ok {
		return exchange.ErrNotFound
	}
	b.Impressions++
	return nil
}

func (m *Memory) AddClick(_ context.Context, bidID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bids[bidID]
	if !ok {
		return exchange.ErrNotFound
	}
	b.Clicks++
	return nil
}

func (m *Memory) WithAuction(_ context.Context, auctionID int64, fn func(tx exchange.AuctionTx, a *model.Auction, bids []model.Bid) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.auctions[auctionID]
	if !ok {
		return exchange.ErrNotFound
	}

	bids := m.bidsForAuction(auctionID)
	acopy := *a
	tx := &memAuctionTx{store: m, auctionID: auctionID}
	if err := fn(tx, &acopy, bids); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) bidsForAuction(auctionID int64) []model.Bid {
	var bids []model.Bid
	for _, b := range m.bids {
		if b.AuctionID == auctionID {
			bids = append(bids, *b)
		}
	}
	sort.Slice(bids, func(i, j int) bool {
		if c := bids[i].BidAmount.Cmp(bids[j].BidAmount); c != 0 {
			return c > 0
		}
		return bids[i].ID < bids[j].ID
	})
	return bids
}

// memAuctionTx buffers writes until commit so a failed fn leaves the store
// untouched. The store mutex is held for the transaction's whole lifetime.
type memAuctionTx struct {
	store     *Memory
	auctionID int64

	closed       bool
	closeWinner  *int64
	setWinner    *int64
	bidStatuses  map[int64]model.BidStatus
	insertedBids []*model.Bid
}

func (t *memAuctionTx) CloseAuction(winningBidID *int64) (bool, error) {
	a := t.store.auctions[t.auctionID]
	if a.Status == model.AuctionClosed || t.closed {
		return false, nil
	}
	t.closed = true
	t.closeWinner = winningBidID
	return true, nil
}

func (t *memAuctionTx) SetWinner(winningBidID int64) error {
	a := t.store.auctions[t.auctionID]
	if a.Status != model.AuctionClosed || a.WinningBidID != nil {
		return nil
	}
	id := winningBidID
	t.setWinner = &id
	return nil
}

func (t *memAuctionTx) SetBidStatus(bidID int64, status model.BidStatus) error {
	if _, ok := t.store.bids[bidID]; !ok {
		return exchange.ErrNotFound
	}
	if t.bidStatuses == nil {
		t.bidStatuses = make(map[int64]model.BidStatus)
	}
	t.bidStatuses[bidID] = status
	return nil
}

func (t *memAuctionTx) InsertBid(b *model.Bid) error {
	t.store.nextBidID++
	b.ID = t.store.nextBidID
	cp := *b
	t.insertedBids = append(t.insertedBids, &cp)
	return nil
}

func (t *memAuctionTx) commit() {
	a := t.store.auctions[t.auctionID]
	if t.closed {
		a.Status = model.AuctionClosed
		a.WinningBidID = t.closeWinner
	}
	if t.setWinner != nil {
		a.WinningBidID = t.setWinner
	}
	for id, st := range t.bidStatuses {
		if b, ok := t.store.bids[id]; ok {
			b.Status = st
		}
	}
	for _, b := range t.insertedBids {
		t.store.bids[b.ID] = b
	}
}
