package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Token metrics - Track ownership changes
var (
	TokensMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasetoken_tokens_minted_total",
		Help: "Total number of lease ownership tokens minted",
	})

	TransfersApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasetoken_transfers_applied_total",
			Help: "Total number of optimistic ownership transfers by entry point",
		},
		[]string{"kind"}, // transfer, transfer_call
	)

	TransferResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasetoken_transfer_resolutions_total",
			Help: "Total number of resolved transfer calls by outcome",
		},
		[]string{"outcome"}, // committed, reverted, revert_abandoned
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasetoken_events_emitted_total",
			Help: "Total number of token events emitted by type",
		},
		[]string{"event_type"},
	)
)

// Marketplace metrics - Track listing creation
var (
	ApprovalsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasetoken_approvals_received_total",
			Help: "Total number of approval notifications by intake result",
		},
		[]string{"result"}, // accepted, rejected
	)

	ListingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasetoken_listings_created_total",
		Help: "Total number of listings created",
	})

	ListingsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasetoken_listings_dropped_total",
			Help: "Total number of approvals that did not produce a listing, by reason",
		},
		[]string{"reason"}, // payout_failed, payout_malformed, conflict, storage
	)
)

// Performance metrics - Track remote call latency
var (
	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leasetoken_remote_call_duration_seconds",
			Help:    "Time taken by remote calls until they settle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	ContinuationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leasetoken_continuation_duration_seconds",
			Help:    "Time taken to run a continuation once its dependency settled",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"continuation"},
	)
)

// State metrics - Track in-flight work
var (
	PendingChains = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leasetoken_pending_chains",
		Help: "Number of remote call chains waiting for their continuation",
	})
)

// Error metrics - Track failures
var (
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasetoken_errors_total",
			Help: "Total number of errors by service",
		},
		[]string{"service"},
	)

	ProtocolViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasetoken_protocol_violations_total",
		Help: "Total number of continuations aborted because their dependency had not settled",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasetoken_api_rate_limited_total",
		Help: "Total number of API requests rejected by the per-caller rate limiter",
	})
)
