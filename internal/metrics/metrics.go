// Package metrics exposes Prometheus counters and gauges for cache hits,
// fetcher outcomes, eviction runs, and HTTP status codes, surfaced on
// /metrics via promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiocache",
		Name:      "cache_lookups_total",
		Help:      "Lookups by outcome (hit, miss, caching, error).",
	}, []string{"outcome"})

	FetchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiocache",
		Name:      "fetch_outcomes_total",
		Help:      "Fetcher runs by outcome (success, error).",
	}, []string{"outcome"})

	EvictionRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "audiocache",
		Name:      "eviction_runs_total",
		Help:      "Completed eviction sweeps.",
	})

	EvictedArtifacts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "audiocache",
		Name:      "evicted_artifacts_total",
		Help:      "Artifacts removed by the eviction engine.",
	})

	CacheBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "audiocache",
		Name:      "cache_bytes",
		Help:      "Total bytes currently held in the artifact directory.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiocache",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "status"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
