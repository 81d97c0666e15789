package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConsistencyDrift counts secondary steps that failed after a committed primary mutation.
	ConsistencyDrift = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_consistency_drift_total",
		Help: "Secondary steps that failed after the primary mutation committed",
	}, []string{"step"})

	// LedgerDeltas counts applied counter deltas by event kind.
	LedgerDeltas = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_ledger_events_total",
		Help: "Counter ledger events applied, by kind",
	}, []string{"event"})

	// ReconcileRepairs counts counters rewritten by the reconciler.
	ReconcileRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_reconcile_repairs_total",
		Help: "Counters repaired by reconciliation, by entity",
	}, []string{"entity"})

	// CascadeNodesDeleted counts comments removed by cascading deletion.
	CascadeNodesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_cascade_nodes_deleted_total",
		Help: "Comments removed by cascading deletion",
	})

	// CascadePartialFailures counts cascades that stopped before finishing.
	CascadePartialFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_cascade_partial_failures_total",
		Help: "Cascading deletions that stopped with unprocessed nodes",
	})

	// NotificationsCreated counts notifications created by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_notifications_created_total",
		Help: "Notifications created, by type",
	}, []string{"type"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of active realtime connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped because a client buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
