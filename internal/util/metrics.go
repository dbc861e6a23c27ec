package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	}, []string{"payment_method"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrderStatusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_updates_total",
		Help: "Total number of paid/delivered transitions",
	}, []string{"status"})

	OrderPlacementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_placement_latency_seconds",
		Help:    "Latency of the order placement transaction",
		Buckets: prometheus.DefBuckets,
	})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"operation"})

	CartLockContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_lock_contention_total",
		Help: "Total number of cart mutations rejected because the per-user lock was held",
	})

	CouponsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupons_applied_total",
		Help: "Coupon applications by outcome",
	}, []string{"outcome"})

	InventoryChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_changes_total",
		Help: "Inventory ledger entries by type",
	}, []string{"type"})

	ChatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of chat messages sent",
	})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Currently open websocket connections",
	})

	AuthRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_rate_limited_total",
		Help: "Total number of auth requests rejected by the rate limiter",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
