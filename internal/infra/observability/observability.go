// Package observability exposes Prometheus metrics for the tracking and
// discovery pipeline. All metrics are registered via promauto on the default
// registry and served by the API's /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Tracking Metrics ───────────────────────────────────────────────────────

// SamplesAccepted counts raw samples that passed the filter and entered a route.
var SamplesAccepted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "strollr",
	Subsystem: "tracking",
	Name:      "samples_accepted_total",
	Help:      "Total GPS samples accepted into an active session route.",
})

// SamplesRejected counts filtered-out samples by rejection reason.
var SamplesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "strollr",
	Subsystem: "tracking",
	Name:      "samples_rejected_total",
	Help:      "Total GPS samples rejected before smoothing.",
}, []string{"reason"})

// SamplesDropped counts samples dropped for session-state reasons
// (no active session, paused, stopped, ingest queue full).
var SamplesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "strollr",
	Subsystem: "tracking",
	Name:      "samples_dropped_total",
	Help:      "Total GPS samples dropped without evaluation.",
}, []string{"reason"})

// ActiveSessions tracks the number of sessions currently tracking or paused.
var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "strollr",
	Subsystem: "tracking",
	Name:      "active_sessions",
	Help:      "Number of walk sessions currently active.",
})

// WarmupsStarted counts lifecycle-triggered GPS warm-up periods.
var WarmupsStarted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "strollr",
	Subsystem: "tracking",
	Name:      "warmups_started_total",
	Help:      "Total warm-up periods triggered by foreground transitions.",
})

// ─── Discovery Metrics ──────────────────────────────────────────────────────

// PingRequests counts on-demand queries by outcome
// (ok, cooldown, no_credits, failed).
var PingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "strollr",
	Subsystem: "discovery",
	Name:      "ping_requests_total",
	Help:      "Total on-demand point-of-interest queries by outcome.",
}, []string{"outcome"})

// RouteQueries counts end-of-walk route queries by outcome
// (ok, degenerate, fallback, empty, failed).
var RouteQueries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "strollr",
	Subsystem: "discovery",
	Name:      "route_queries_total",
	Help:      "Total route-wide point-of-interest queries by outcome.",
}, []string{"outcome"})

// QueryLatency tracks place-search latency by query kind (nearby, route).
var QueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "strollr",
	Subsystem: "discovery",
	Name:      "query_latency_seconds",
	Help:      "Point-of-interest search latency in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
}, []string{"kind"})

// DiscoveriesConsolidated counts unique places emitted by consolidation.
var DiscoveriesConsolidated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "strollr",
	Subsystem: "discovery",
	Name:      "consolidated_total",
	Help:      "Total consolidated discoveries emitted.",
})

// DuplicatesMerged counts candidates folded into an existing place group.
var DuplicatesMerged = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "strollr",
	Subsystem: "discovery",
	Name:      "duplicates_merged_total",
	Help:      "Total duplicate candidates merged during consolidation.",
})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// LedgerSelfHeals counts credit ledgers repaired at read time.
var LedgerSelfHeals = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "strollr",
	Subsystem: "ledger",
	Name:      "self_heals_total",
	Help:      "Total credit ledgers reset after corruption was detected.",
})

// LedgerResets counts period-boundary allowance refills.
var LedgerResets = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "strollr",
	Subsystem: "ledger",
	Name:      "period_resets_total",
	Help:      "Total credit ledger period resets.",
})
