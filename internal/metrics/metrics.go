package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buyerorders_orders_served_total",
		Help: "Total number of orders returned to buyers, by tab.",
	},
		[]string{"tab"},
	)

	UnknownTabTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buyerorders_unknown_tab_total",
		Help: "Total number of filter requests for an unrecognized tab.",
	})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buyerorders_cache_lookups_total",
		Help: "Response cache lookups by tier and result (hit, miss, stale).",
	},
		[]string{"tier", "result"},
	)

	CacheStoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buyerorders_cache_store_errors_total",
		Help: "Swallowed persisted cache store failures, by operation.",
	},
		[]string{"operation"},
	)

	MemoryCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "buyerorders_memory_cache_items",
		Help: "Current number of entries in the in-memory response cache.",
	})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buyerorders_upstream_requests_total",
		Help: "Requests to the order backend, by outcome.",
	},
		[]string{"outcome"},
	)

	SnapshotMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buyerorders_snapshot_messages_total",
		Help: "Order snapshot messages consumed, by result.",
	},
		[]string{"result"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buyerorders_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)
)
