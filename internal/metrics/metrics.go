// Package metrics holds the prometheus collectors exposed on /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestionsTotal counts link and refresh runs by final outcome
	IngestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestions_total",
		Help: "Profile ingestion runs by operation and outcome",
	}, []string{"operation", "outcome"})

	ScoresImported = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingestion_scores_imported",
		Help:    "Number of personal bests stored per successful ingestion",
		Buckets: []float64{0, 1, 2, 3, 4, 5},
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "profile_fetch_duration_seconds",
		Help:    "Time spent loading external profile pages",
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 90},
	})

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current circuit breaker state",
	}, []string{"name"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"class"})

	VerificationMails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_mails_total",
		Help: "Verification mails by result",
	}, []string{"result"})
)
