package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ScreeningsProcessed counts screened entities by final record status.
var ScreeningsProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "namescreen_screenings_total",
		Help: "Total number of entities screened, by record status",
	},
	[]string{"status"},
)

// MatchesClassified counts classified top matches by match type.
var MatchesClassified = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "namescreen_matches_total",
		Help: "Total number of highest-ranked matches, by match type",
	},
	[]string{"match_type"},
)

// SourceRequestDuration records latency of candidate source calls.
var SourceRequestDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "namescreen_source_request_seconds",
		Help:    "Latency in seconds of candidate source search calls",
		Buckets: prometheus.DefBuckets,
	},
)

// BatchDuration records total elapsed time of screening jobs.
var BatchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "namescreen_batch_duration_seconds",
		Help:    "Elapsed time in seconds of whole screening batches",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
)

// CacheLookups counts candidate cache hits and misses.
var CacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "namescreen_cache_lookups_total",
		Help: "Candidate cache lookups, by outcome (hit/miss)",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(ScreeningsProcessed, MatchesClassified)
	prometheus.MustRegister(SourceRequestDuration, BatchDuration)
	prometheus.MustRegister(CacheLookups)
}
