// Package metrics defines and registers all custom Prometheus metrics for
// the appcore client coordinator. It is the single source of truth for
// metric names, labels, and help strings. Metrics register with the default
// registry at init; the host process decides whether to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "appcore"

// ── Request pipeline metrics ─────────────────────────────────────────────────

// RequestsTotal counts outbound API requests by terminal outcome.
// Labels:
//   - method: HTTP method
//   - outcome: "2xx".."5xx", or "transport" when no response arrived
var RequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of outbound API requests, by method and outcome.",
	},
	[]string{"method", "outcome"},
)

// RequestDuration measures wall time of a single outbound request.
var RequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Duration of outbound API requests from build to decode.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// ── Remote data cache metrics ────────────────────────────────────────────────

// CacheLookupsTotal counts Ensure calls by how they were served.
// Label:
//   - result: "fresh" (served from cache), "stale" (served from cache with a
//     background refetch), or "miss" (awaited a fetch)
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total number of cache lookups, by how the value was served.",
	},
	[]string{"result"},
)

// CacheDedupTotal counts fetch de-duplication decisions.
// Label:
//   - result: "hit" (attached to an in-flight fetch) or "miss" (new fetch)
var CacheDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_dedup_total",
		Help:      "Total number of fetch de-duplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// CacheEvictionsTotal counts entries removed by the garbage-collect loop.
var CacheEvictionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_evictions_total",
		Help:      "Total number of cache entries evicted after the disuse window.",
	},
)
