// Package metrics defines the Prometheus collectors for the front service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Core API metrics
var (
	// CoreAPIRequestsTotal tracks outbound core API calls by endpoint and status
	CoreAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_api_requests_total",
			Help: "Total core API requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// CoreAPIRequestDuration tracks core API call latency in seconds
	CoreAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "core_api_request_duration_seconds",
			Help:    "Core API request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)
)

// Page metrics
var (
	// PageViewsTotal tracks rendered pages by page name
	PageViewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_views_total",
			Help: "Total rendered pages by page name",
		},
		[]string{"page"},
	)

	// DatasetUpdatesTotal tracks dataset update submissions by outcome
	DatasetUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_updates_total",
			Help: "Total dataset update submissions by outcome",
		},
		[]string{"outcome"},
	)
)
