// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/admarkt/admarkt/pkg/creative"
	"github.com/admarkt/admarkt/pkg/exchange"
	"github.com/admarkt/admarkt/pkg/log"
)

// Server wires the exchange engine to the HTTP surface.
type Server struct {
	engine  *exchange.Engine
	store   exchange.Store
	files   creative.Storage
	log     *log.Logger
	limiter *ipRateLimiter
}

// NewServer creates the HTTP server facade. bidRate/bidBurst bound the
// per-client bid submission rate; a zero rate disables limiting.
func NewServer(engine *exchange.Engine, store exchange.Store, files creative.Storage, logger *log.Logger, bidRate float64, bidBurst int) *Server {
	var limiter *ipRateLimiter
	if bidRate > 0 {
		limiter = newIPRateLimiter(rate.Limit(bidRate), bidBurst)
	}
	return &Server{
		engine:  engine,
		store:   store,
		files:   files,
		log:     logger,
		limiter: limiter,
	}
}

// Router builds the gin engine with all routes and middleware. uploadsDir,
// when non-empty, is served under /uploads for stored creatives.
func (s *Server) Router(production bool, uploadsDir string) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "admarkt"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if uploadsDir != "" {
		r.Static("/uploads", uploadsDir)
	}

	api := r.Group("/api")
	{
		api.GET("/auctions", s.listAuctions)
		api.POST("/auctions", s.createAuction)
		api.GET("/auctions/:id", s.getAuction)
		api.POST("/auctions/:id/bids", s.bidRateLimit(), s.submitBid)

		api.POST("/bids/upload-creative", s.uploadCreative)
		api.POST("/bids/:bidId/status", s.reviewCreative)

		api.POST("/stats/view/:bidId", s.recordView)
		api.POST("/stats/click/:bidId", s.recordClick)

		api.POST("/ad-spaces", s.createAdSpace)
		api.GET("/ad-spaces/publisher/:publisherId", s.listAdSpacesByPublisher)

		api.POST("/campaigns", s.createCampaign)
		api.GET("/campaigns/:advertiserId", s.listCampaignsByAdvertiser)
	}

	return r
}

// requestLogger tags every request with an id and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.NewString()
		c.Header("X-Request-ID", reqID)

		c.Next()

		s.log.Info("request",
			log.String("request_id", reqID),
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Int("status", c.Writer.Status()),
			log.Int64("latency_ms", time.Since(start).Milliseconds()))
	}
}

// bidRateLimit throttles bid submission per client IP.
func (s *Server) bidRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "too many bid submissions, slow down",
				Code:  CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}

// writeError maps the exchange error taxonomy onto HTTP statuses and
// stable codes.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		status = http.StatusInternalServerError
		code   = CodeInternal
	)
	switch {
	case errors.Is(err, exchange.ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, exchange.ErrInvalidInput):
		status, code = http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, exchange.ErrBidTooLow):
		status, code = http.StatusBadRequest, CodeBidTooLow
	case errors.Is(err, exchange.ErrAuctionClosed):
		status, code = http.StatusBadRequest, CodeAuctionClosed
	case errors.Is(err, exchange.ErrAuctionExpired):
		status, code = http.StatusBadRequest, CodeAuctionExpired
	case errors.Is(err, exchange.ErrInvalidState):
		status, code = http.StatusBadRequest, CodeInvalidState
	case errors.Is(err, exchange.ErrStorageUnavailable):
		status, code = http.StatusServiceUnavailable, CodeStorageUnavailable
	default:
		s.log.Error("request failed", log.Err(err))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// ipRateLimiter keeps one token bucket per client address.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
