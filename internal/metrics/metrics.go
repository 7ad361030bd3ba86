// Package metrics exports Prometheus counters for the query pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorhub_queries_total",
			Help: "Total number of series queries processed, by series kind and resolved strategy",
		},
		[]string{"kind", "strategy"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensorhub_query_duration_seconds",
			Help:    "Series query duration in seconds, fetch through aggregation",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind"},
	)

	RowsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorhub_rows_fetched_total",
			Help: "Total number of raw rows fetched from storage",
		},
		[]string{"kind"},
	)

	RowsReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorhub_rows_returned_total",
			Help: "Total number of rows returned after aggregation",
		},
		[]string{"kind"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensorhub_cache_hits_total",
			Help: "Total number of query cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensorhub_cache_misses_total",
			Help: "Total number of query cache misses",
		},
	)

	IngestedReadings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorhub_ingested_readings_total",
			Help: "Total number of readings ingested over MQTT",
		},
		[]string{"kind"},
	)

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorhub_ingest_errors_total",
			Help: "Total number of readings rejected during ingestion",
		},
		[]string{"kind"},
	)
)
