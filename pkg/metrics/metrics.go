// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BidsSubmitted counts bid submissions by outcome (accepted, too_low,
	// closed, expired, not_found, error).
	BidsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admarkt_bids_submitted_total",
			Help: "Total number of bid submission attempts by result",
		},
		[]string{"result"},
	)

	// AuctionsSettled counts auctions closed by the settlement engine,
	// labelled by whether a winner was selected.
	AuctionsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admarkt_auctions_settled_total",
			Help: "Total number of auctions settled",
		},
		[]string{"outcome"}, // "winner" or "no_bids"
	)

	// SettlementDuration tracks the latency of the settle transaction.
	SettlementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admarkt_settlement_duration_seconds",
			Help:    "Duration of auction settlement in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
	)

	// Impressions and Clicks mirror the per-bid counters for dashboards.
	Impressions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admarkt_impressions_total",
		Help: "Total ad impressions recorded",
	})
	Clicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admarkt_clicks_total",
		Help: "Total ad clicks recorded",
	})
)

// RecordBidSubmission records the outcome of a bid submission attempt.
func RecordBidSubmission(result string) {
	BidsSubmitted.WithLabelValues(result).Inc()
}

// RecordSettlement records a completed settlement and its duration.
func RecordSettlement(outcome string, seconds float64) {
	AuctionsSettled.WithLabelValues(outcome).Inc()
	SettlementDuration.Observe(seconds)
}
