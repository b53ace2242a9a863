// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package admarkt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/admarkt/admarkt/pkg/api"
	"github.com/admarkt/admarkt/pkg/creative"
	"github.com/admarkt/admarkt/pkg/exchange"
	"github.com/admarkt/admarkt/pkg/log"
	"github.com/admarkt/admarkt/pkg/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestExchange(t *testing.T) (*Client, *fakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemory()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	engine := exchange.New(st, log.NoLog, exchange.WithClock(clock.Now))

	files, err := creative.NewDiskStorage(t.TempDir())
	require.NoError(t, err)

	srv := api.NewServer(engine, st, files, log.NoLog, 0, 0)
	ts := httptest.NewServer(srv.Router(false, files.Dir()))
	t.Cleanup(ts.Close)

	return NewClient(ts.URL), clock
}

func TestClientLifecycle(t *testing.T) {
	client, clock := newTestExchange(t)
	ctx := context.Background()

	spaceID, err := client.CreateAdSpace(ctx, api.CreateAdSpaceRequest{
		PublisherID: 1,
		Name:        "sidebar",
		Width:       300,
		Height:      250,
		FloorPrice:  2,
	})
	require.NoError(t, err)

	campaignID, err := client.CreateCampaign(ctx, api.CreateCampaignRequest{
		AdvertiserID: 7,
		Name:         "launch",
		Budget:       500,
	})
	require.NoError(t, err)

	auctionID, err := client.CreateAuction(ctx, api.CreateAuctionRequest{
		AdSpaceID: spaceID,
		StartTime: clock.Now(),
		EndTime:   clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	bidID, err := client.SubmitBid(ctx, auctionID, api.SubmitBidRequest{
		CampaignID:   campaignID,
		AdvertiserID: 7,
		BidAmount:    3.5,
	})
	require.NoError(t, err)

	auctions, err := client.ListAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, auctions, 1)
	require.Equal(t, "open", auctions[0].Status)

	clock.Advance(2 * time.Hour)

	view, err := client.GetAuction(ctx, auctionID)
	require.NoError(t, err)
	require.Equal(t, "closed", view.Status)
	require.NotNil(t, view.WinningBid)
	require.Equal(t, bidID, view.WinningBid.BidID)

	url, err := client.UploadCreative(ctx, bidID, "banner.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/uploads/"))

	require.NoError(t, client.ReviewCreative(ctx, bidID, "approved"))
	require.NoError(t, client.TrackView(ctx, bidID))
	require.NoError(t, client.TrackClick(ctx, bidID))

	view, err = client.GetAuction(ctx, auctionID)
	require.NoError(t, err)
	require.Equal(t, "approved", view.WinningBid.CreativeStatus)
	require.Equal(t, int64(1), view.AllBids[0].Impressions)
	require.Equal(t, int64(1), view.AllBids[0].Clicks)
}

func TestClientSurfacesErrorCodes(t *testing.T) {
	client, _ := newTestExchange(t)
	ctx := context.Background()

	_, err := client.GetAuction(ctx, 999)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, api.CodeNotFound, apiErr.Code)
}
