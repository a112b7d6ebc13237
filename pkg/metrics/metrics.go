// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryMatches         *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	GenomesIndexedTotal  *prometheus.CounterVec
	BasesIndexedTotal    prometheus.Counter
	ShardGenomeCount     *prometheus.GaugeVec
	ActiveShards         prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
	RateLimitedTotal     prometheus.Counter
	WarmStartRetries     prometheus.Counter
}

// New creates all collectors and registers them with reg. Passing nil uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genome_queries_total",
				Help: "Total genome queries by kind (fragment, related) and outcome (match, no_match, error).",
			},
			[]string{"kind", "outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genome_query_latency_seconds",
				Help:    "Genome query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
			[]string{"kind", "cache_status"},
		),
		QueryMatches: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genome_query_matches",
				Help:    "Number of genomes returned per query.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 500},
			},
			[]string{"kind"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		GenomesIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genomes_indexed_total",
				Help: "Total genomes added to the in-memory index by source (warm_start, stream).",
			},
			[]string{"source"},
		),
		BasesIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bases_indexed_total",
				Help: "Total bases added to the in-memory index.",
			},
		),
		ShardGenomeCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shard_genome_count",
				Help: "Number of genomes per shard.",
			},
			[]string{"shard_id"},
		),
		ActiveShards: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_shards",
				Help: "Number of active index shards.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the rate limiter.",
			},
		),
		WarmStartRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_warm_start_retries_total",
				Help: "Failed attempts to load the genome library at startup that were retried.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryMatches,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.GenomesIndexedTotal,
		m.BasesIndexedTotal,
		m.ShardGenomeCount,
		m.ActiveShards,
		m.CircuitBreakerState,
		m.RateLimitedTotal,
		m.WarmStartRetries,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
