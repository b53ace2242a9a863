// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
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

type testServer struct {
	router *gin.Engine
	clock  *fakeClock
}

func newTestServer(t *testing.T, bidRate float64, bidBurst int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemory()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	engine := exchange.New(st, log.NoLog, exchange.WithClock(clock.Now))

	files, err := creative.NewDiskStorage(t.TempDir())
	require.NoError(t, err)

	srv := api.NewServer(engine, st, files, log.NoLog, bidRate, bidBurst)
	return &testServer{router: srv.Router(false, files.Dir()), clock: clock}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func requireErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := decode[api.ErrorResponse](t, w)
	require.Equal(t, code, resp.Code)
}

// setupAuction creates an ad space, a campaign and an open one-hour auction.
func setupAuction(t *testing.T, ts *testServer) (auctionID, campaignID int64) {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/ad-spaces", gin.H{
		"publisher_id": 1,
		"name":         "homepage banner",
		"width":        728,
		"height":       90,
		"floor_price":  5.0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	spaceID := decode[api.CreateAdSpaceResponse](t, w).AdSpaceID

	w = ts.do(t, http.MethodPost, "/api/campaigns", gin.H{
		"advertiser_id": 1,
		"name":          "summer push",
		"budget":        1000.0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	campaignID = decode[api.CreateCampaignResponse](t, w).CampaignID

	w = ts.do(t, http.MethodPost, "/api/auctions", gin.H{
		"ad_space_id": spaceID,
		"start_time":  ts.clock.Now(),
		"end_time":    ts.clock.Now().Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[api.CreateAuctionResponse](t, w).AuctionID, campaignID
}

func (ts *testServer) submitBid(t *testing.T, auctionID, campaignID int64, amount float64) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, fmt.Sprintf("/api/auctions/%d/bids", auctionID), gin.H{
		"campaign_id":   campaignID,
		"advertiser_id": 1,
		"bid_amount":    amount,
	})
}

func (ts *testServer) uploadCreative(t *testing.T, bidID int64, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("bidId", fmt.Sprint(bidID)))
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/bids/upload-creative", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 0, 0)
	w := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuctionLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, 0, 0)
	auctionID, campaignID := setupAuction(t, ts)

	// Below-floor bid is rejected with a stable code.
	requireErrorCode(t, ts.submitBid(t, auctionID, campaignID, 4.5),
		http.StatusBadRequest, api.CodeBidTooLow)

	w := ts.submitBid(t, auctionID, campaignID, 8)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	winningBid := decode[api.SubmitBidResponse](t, w).BidID

	w = ts.submitBid(t, auctionID, campaignID, 6)
	require.Equal(t, http.StatusCreated, w.Code)

	// Open auction: ranked bids, no winner yet.
	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/auctions/%d", auctionID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[api.AuctionView](t, w)
	require.Equal(t, "open", view.Status)
	require.Equal(t, "homepage banner", view.AdSpaceName)
	require.Equal(t, 5.0, view.MinimumBidFloor)
	require.Equal(t, 2, view.BidCount)
	require.Equal(t, winningBid, view.AllBids[0].ID)
	require.Nil(t, view.WinningBid)

	// Expiry settles on the next read.
	ts.clock.Advance(2 * time.Hour)
	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/auctions/%d", auctionID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	view = decode[api.AuctionView](t, w)
	require.Equal(t, "closed", view.Status)
	require.NotNil(t, view.WinningBid)
	require.Equal(t, winningBid, view.WinningBid.BidID)
	require.Equal(t, 8.0, view.WinningBid.BidAmountCPM)
	require.Equal(t, "pending_upload", view.WinningBid.CreativeStatus)

	// Late bid on the settled auction.
	requireErrorCode(t, ts.submitBid(t, auctionID, campaignID, 20),
		http.StatusBadRequest, api.CodeAuctionClosed)

	// Creative upload and review for the winner.
	w = ts.uploadCreative(t, winningBid, "banner.png", "png-bytes")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	upload := decode[api.UploadCreativeResponse](t, w)
	require.True(t, strings.HasPrefix(upload.CreativeURL, "/uploads/"))

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/bids/%d/status", winningBid),
		gin.H{"creative_status": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Delivery counters.
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, fmt.Sprintf("/api/stats/view/%d", winningBid), nil).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, fmt.Sprintf("/api/stats/click/%d", winningBid), nil).Code)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/auctions/%d", auctionID), nil)
	view = decode[api.AuctionView](t, w)
	require.Equal(t, "approved", view.WinningBid.CreativeStatus)
	require.Equal(t, int64(1), view.AllBids[0].Impressions)
	require.Equal(t, int64(1), view.AllBids[0].Clicks)
}

func TestBidOnExpiredAuction(t *testing.T) {
	ts := newTestServer(t, 0, 0)
	auctionID, campaignID := setupAuction(t, ts)

	ts.clock.Advance(2 * time.Hour)

	requireErrorCode(t, ts.submitBid(t, auctionID, campaignID, 10),
		http.StatusBadRequest, api.CodeAuctionExpired)

	// The rejection force-closed the auction.
	w := ts.do(t, http.MethodGet, fmt.Sprintf("/api/auctions/%d", auctionID), nil)
	view := decode[api.AuctionView](t, w)
	require.Equal(t, "closed", view.Status)
	require.Zero(t, view.BidCount)
	require.Nil(t, view.WinningBid)
}

func TestUploadCreativeBeforeWin(t *testing.T) {
	ts := newTestServer(t, 0, 0)
	auctionID, campaignID := setupAuction(t, ts)

	w := ts.submitBid(t, auctionID, campaignID, 8)
	require.Equal(t, http.StatusCreated, w.Code)
	bidID := decode[api.SubmitBidResponse](t, w).BidID

	requireErrorCode(t, ts.uploadCreative(t, bidID, "banner.png", "png-bytes"),
		http.StatusBadRequest, api.CodeInvalidState)
}

func TestNotFoundAndBadInput(t *testing.T) {
	ts := newTestServer(t, 0, 0)

	requireErrorCode(t, ts.do(t, http.MethodGet, "/api/auctions/999", nil),
		http.StatusNotFound, api.CodeNotFound)
	requireErrorCode(t, ts.do(t, http.MethodGet, "/api/auctions/banana", nil),
		http.StatusBadRequest, api.CodeInvalidInput)
	requireErrorCode(t, ts.do(t, http.MethodPost, "/api/auctions", gin.H{"ad_space_id": 1}),
		http.StatusBadRequest, api.CodeInvalidInput)
	requireErrorCode(t, ts.uploadCreative(t, 999, "banner.png", "png-bytes"),
		http.StatusNotFound, api.CodeNotFound)
}

func TestListEndpoints(t *testing.T) {
	ts := newTestServer(t, 0, 0)
	auctionID, _ := setupAuction(t, ts)

	w := ts.do(t, http.MethodGet, "/api/auctions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	views := decode[[]api.AuctionView](t, w)
	require.Len(t, views, 1)
	require.Equal(t, auctionID, views[0].ID)

	w = ts.do(t, http.MethodGet, "/api/ad-spaces/publisher/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/campaigns/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBidRateLimit(t *testing.T) {
	ts := newTestServer(t, 1, 1)
	auctionID, campaignID := setupAuction(t, ts)

	w := ts.submitBid(t, auctionID, campaignID, 8)
	require.Equal(t, http.StatusCreated, w.Code)

	requireErrorCode(t, ts.submitBid(t, auctionID, campaignID, 9),
		http.StatusTooManyRequests, api.CodeRateLimited)
}
