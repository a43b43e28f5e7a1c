// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidsearch_cache_lookups_total",
			Help: "Result cache lookups by kind and outcome (hit, miss).",
		},
		[]string{"kind", "outcome"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kidsearch_cache_entries",
			Help: "Number of entries currently held per result cache.",
		},
		[]string{"kind"},
	)

	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidsearch_source_requests_total",
			Help: "Secondary source calls by source id and kind.",
		},
		[]string{"source", "kind"},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidsearch_source_failures_total",
			Help: "Secondary source calls that failed and degraded to an empty list.",
		},
		[]string{"source", "kind"},
	)

	SourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kidsearch_source_latency_seconds",
			Help:    "Latency of secondary source calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"source"},
	)

	PrimaryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidsearch_primary_requests_total",
			Help: "Metered primary source HTTP attempts by outcome.",
		},
		[]string{"outcome"},
	)

	QuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kidsearch_quota_remaining",
			Help: "Advisory remaining daily calls for the primary source.",
		},
	)

	Searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidsearch_searches_total",
			Help: "Aggregated searches by kind and result (ok, cached, degraded, empty, error).",
		},
		[]string{"kind", "result"},
	)
)
