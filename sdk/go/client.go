// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

// Package admarkt is a typed Go client for the admarkt exchange API.
package admarkt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/admarkt/admarkt/pkg/api"
)

// Client talks to an admarkt exchange server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError is a non-2xx response from the exchange, carrying the stable
// error code alongside the message.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("admarkt: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ListAuctions returns all auctions; listing settles any expired ones
// server-side first.
func (c *Client) ListAuctions(ctx context.Context) ([]api.AuctionView, error) {
	var out []api.AuctionView
	if err := c.do(ctx, http.MethodGet, "/api/auctions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAuction returns a single auction with its ranked bids.
func (c *Client) GetAuction(ctx context.Context, auctionID int64) (*api.AuctionView, error) {
	var out api.AuctionView
	path := "/api/auctions/" + strconv.FormatInt(auctionID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAuction opens an auction over an ad space.
func (c *Client) CreateAuction(ctx context.Context, req api.CreateAuctionRequest) (int64, error) {
	var out api.CreateAuctionResponse
	if err := c.do(ctx, http.MethodPost, "/api/auctions", req, &out); err != nil {
		return 0, err
	}
	return out.AuctionID, nil
}

// SubmitBid places a bid on an open auction.
func (c *Client) SubmitBid(ctx context.Context, auctionID int64, req api.SubmitBidRequest) (int64, error) {
	var out api.SubmitBidResponse
	path := "/api/auctions/" + strconv.FormatInt(auctionID, 10) + "/bids"
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return 0, err
	}
	return out.BidID, nil
}

// UploadCreative uploads a creative file for a won bid.
func (c *Client) UploadCreative(ctx context.Context, bidID int64, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("bidId", strconv.FormatInt(bidID, 10)); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/bids/upload-creative", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out api.UploadCreativeResponse
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	return out.CreativeURL, nil
}

// ReviewCreative records the publisher's approve/reject decision.
func (c *Client) ReviewCreative(ctx context.Context, bidID int64, decision string) error {
	path := "/api/bids/" + strconv.FormatInt(bidID, 10) + "/status"
	return c.do(ctx, http.MethodPost, path, api.ReviewCreativeRequest{CreativeStatus: decision}, nil)
}

// TrackView increments a bid's impression counter.
func (c *Client) TrackView(ctx context.Context, bidID int64) error {
	return c.do(ctx, http.MethodPost, "/api/stats/view/"+strconv.FormatInt(bidID, 10), nil, nil)
}

// TrackClick increments a bid's click counter.
func (c *Client) TrackClick(ctx context.Context, bidID int64) error {
	return c.do(ctx, http.MethodPost, "/api/stats/click/"+strconv.FormatInt(bidID, 10), nil, nil)
}

// CreateAdSpace registers a publisher's ad space.
func (c *Client) CreateAdSpace(ctx context.Context, req api.CreateAdSpaceRequest) (int64, error) {
	var out api.CreateAdSpaceResponse
	if err := c.do(ctx, http.MethodPost, "/api/ad-spaces", req, &out); err != nil {
		return 0, err
	}
	return out.AdSpaceID, nil
}

// CreateCampaign registers an advertiser's campaign.
func (c *Client) CreateCampaign(ctx context.Context, req api.CreateCampaignRequest) (int64, error) {
	var out api.CreateCampaignResponse
	if err := c.do(ctx, http.MethodPost, "/api/campaigns", req, &out); err != nil {
		return 0, err
	}
	return out.CampaignID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: resp.Status}
		}
		return &APIError{StatusCode: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Error}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
