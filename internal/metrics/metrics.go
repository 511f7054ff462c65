// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onchainvitals_warehouse_query_duration_seconds",
			Help:    "Duration of warehouse queries in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"query"},
	)

	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onchainvitals_warehouse_query_errors_total",
			Help: "Total number of failed warehouse queries",
		},
		[]string{"query", "reason"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onchainvitals_cache_lookups_total",
			Help: "Query cache lookups by result",
		},
		[]string{"result"},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "onchainvitals_warehouse_breaker_state",
			Help: "Warehouse circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "onchainvitals_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "route", "status"},
	)

	CatalogVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "onchainvitals_catalog_version",
			Help: "Version counter of the loaded metric catalog",
		},
	)
)
