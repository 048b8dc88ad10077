package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ToolRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewatch_tool_requests_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "outcome"},
	)

	CorrelationSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewatch_correlation_searches_total",
			Help: "Total number of cross-reference correlation searches",
		},
		[]string{"outcome"},
	)

	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewatch_fetch_failures_total",
			Help: "Total number of telemetry fetch failures",
		},
		[]string{"entity"},
	)

	EnrichmentLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewatch_enrichment_lookups_total",
			Help: "Total number of geo enrichment lookups by result source",
		},
		[]string{"source"},
	)

	EnrichmentLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatewatch_enrichment_latency_seconds",
			Help:    "Time taken to resolve one IP through the provider chain",
			Buckets: prometheus.DefBuckets,
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatewatch_cache_hits_total",
			Help: "Total number of enrichment cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatewatch_cache_misses_total",
			Help: "Total number of enrichment cache misses",
		},
	)
)
