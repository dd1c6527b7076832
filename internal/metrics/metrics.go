package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "pipeline",
		Name:      "events_processed_total",
		Help:      "Total events reconciled into the ledger",
	}, []string{"kind"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "pipeline",
		Name:      "events_dropped_total",
		Help:      "Total events dropped without writes (routine no-op conditions)",
	}, []string{"kind", "reason"})

	EventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "pipeline",
		Name:      "events_failed_total",
		Help:      "Total events that failed after retry exhaustion",
	}, []string{"kind"})

	TradesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "ledger",
		Name:      "trades_recorded_total",
		Help:      "Total trades written to the ledger",
	}, []string{"source", "direction"})

	TradesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "ledger",
		Name:      "trades_suppressed_total",
		Help:      "Total pool-derived trades suppressed by a higher-priority source",
	})

	HoldingsUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "ledger",
		Name:      "holdings_updates_total",
		Help:      "Total transfers folded into the holdings ledger",
	})

	ApplyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tradeledger",
		Subsystem: "ledger",
		Name:      "apply_duration_seconds",
		Help:      "Per-event apply duration (transaction included)",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind"})

	OrderingViolations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "pipeline",
		Name:      "ordering_violations_total",
		Help:      "Total upstream ordering violations (fatal to the stream)",
	})

	FeedReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "feed",
		Name:      "reconnects_total",
		Help:      "Total websocket feed reconnects",
	})

	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeledger",
		Subsystem: "db",
		Name:      "pool_open_connections",
		Help:      "Open connections in the database pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeledger",
		Subsystem: "db",
		Name:      "pool_in_use_connections",
		Help:      "Connections currently in use",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeledger",
		Subsystem: "db",
		Name:      "pool_idle_connections",
		Help:      "Idle connections in the database pool",
	})

	FeedBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeledger",
		Subsystem: "feed",
		Name:      "breaker_state",
		Help:      "Feed circuit breaker state (0=closed, 1=open, 2=half-open)",
	})

	TokenCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "cache",
		Name:      "token_hits_total",
		Help:      "Token lookups served from the in-process cache",
	})

	TokenCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "cache",
		Name:      "token_misses_total",
		Help:      "Token lookups that fell through to the database",
	})

	AuditRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "audit",
		Name:      "runs_total",
		Help:      "Total holdings audit sweeps completed",
	})

	AuditMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "audit",
		Name:      "mismatches_total",
		Help:      "Holdings rows found inconsistent with transfer history",
	})

	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Alerts delivered per channel and type",
	}, []string{"channel", "type"})

	AlertsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeledger",
		Subsystem: "alert",
		Name:      "suppressed_total",
		Help:      "Alerts suppressed by the cooldown window",
	}, []string{"type"})
)
