package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordStoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "record_store_operations_total",
		Help: "Total number of record store operations",
	}, []string{"entity", "op", "result"})

	RecordStoreMutationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "record_store_mutation_latency_seconds",
		Help:    "Latency of record store read-modify-write cycles",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity", "op"})

	RecordStoreLoadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "record_store_load_failures_total",
		Help: "Total number of unreadable or corrupt record documents treated as empty",
	}, []string{"entity"})

	CartOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Total number of cart mutations",
	}, []string{"op"})

	CartQuantityClamped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_quantity_clamped_total",
		Help: "Total number of cart mutations whose quantity was reduced to the stock limit",
	})

	CartPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Total number of failed cart persistence writes",
	})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	InventoryAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_applied_total",
		Help: "Total number of orders whose stock decrement was applied",
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
