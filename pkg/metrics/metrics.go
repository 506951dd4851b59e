// Package metrics defines the Prometheus collectors of the lookup service and
// the generator, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	LookupsTotal         *prometheus.CounterVec
	LookupLatency        *prometheus.HistogramVec
	LookupResultsCount   *prometheus.HistogramVec
	MessageCacheHits     prometheus.Counter
	MessageCacheMisses   prometheus.Counter
	ArtifactsProcessed   *prometheus.CounterVec
	MapFilesWritten      prometheus.Counter
	MapFileEntries       *prometheus.GaugeVec

	registerer prometheus.Registerer
}

// New creates all collectors and registers them with reg. A nil reg means
// the default Prometheus registry.
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
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suggest_lookups_total",
				Help: "Total lookups by mode and outcome (found, empty, error).",
			},
			[]string{"mode", "outcome"},
		),
		LookupLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "suggest_lookup_latency_seconds",
				Help:    "Lookup latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"mode"},
		),
		LookupResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "suggest_lookup_results_count",
				Help:    "Number of results returned per lookup.",
				Buckets: []float64{0, 1, 2, 5, 10, 50, 100, 1000},
			},
			[]string{"mode"},
		),
		MessageCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "suggest_message_cache_hits_total",
				Help: "Total number of suggestion messages served from the result cache.",
			},
		),
		MessageCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "suggest_message_cache_misses_total",
				Help: "Total number of suggestion messages computed.",
			},
		),
		ArtifactsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generate_artifacts_processed_total",
				Help: "Artifacts inspected by the generator, by status (ok, error).",
			},
			[]string{"status"},
		),
		MapFilesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "generate_map_files_written_total",
				Help: "Total map files written by the generator.",
			},
		),
		MapFileEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "generate_map_file_entries",
				Help: "Number of entries in the last written map file.",
			},
			[]string{"channel", "subdir"},
		),
		registerer: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.LookupsTotal,
		m.LookupLatency,
		m.LookupResultsCount,
		m.MessageCacheHits,
		m.MessageCacheMisses,
		m.ArtifactsProcessed,
		m.MapFilesWritten,
		m.MapFileEntries,
	)

	return m
}

// CacheStatsFunc reports hit, miss and load counters of a cache.
type CacheStatsFunc func() (hits, misses, loads int64)

// RegisterMapFileCache exposes the counters of the map file cache and its
// current size, read at scrape time.
func (m *Metrics) RegisterMapFileCache(stats CacheStatsFunc, size func() int) {
	counter := func(name, help string, pick func(h, mi, l int64) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, func() float64 {
			h, mi, l := stats()
			return float64(pick(h, mi, l))
		})
	}
	m.registerer.MustRegister(
		counter("suggest_mapfile_cache_hits_total", "Map file cache hits.",
			func(h, _, _ int64) int64 { return h }),
		counter("suggest_mapfile_cache_misses_total", "Map file cache misses.",
			func(_, mi, _ int64) int64 { return mi }),
		counter("suggest_mapfile_loads_total", "Map files parsed from disk.",
			func(_, _, l int64) int64 { return l }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "suggest_mapfile_cache_size",
			Help: "Map files currently held in memory.",
		}, func() float64 { return float64(size()) }),
	)
}

// Handler returns the Prometheus scrape HTTP handler for the default
// registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
