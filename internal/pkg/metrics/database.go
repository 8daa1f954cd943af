// Package metrics holds the Prometheus collectors shared by the storage,
// service and transport packages. Keeping them here avoids import cycles
// between database and middleware.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SlowQueryThreshold marks a query as slow
const SlowQueryThreshold = 100 * time.Millisecond

var (
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spanengine_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"database", "operation"},
	)

	dbQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spanengine_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation"},
	)

	dbQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spanengine_db_query_errors_total",
			Help: "Total number of database query errors",
		},
		[]string{"database", "operation"},
	)

	dbSlowQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spanengine_db_slow_queries_total",
			Help: "Total number of database queries slower than 100ms",
		},
		[]string{"database", "operation"},
	)
)

// RecordDBQuery records database query metrics
func RecordDBQuery(database, operation string, duration time.Duration) {
	dbQueryTotal.WithLabelValues(database, operation).Inc()
	dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())

	if duration > SlowQueryThreshold {
		dbSlowQueries.WithLabelValues(database, operation).Inc()
	}
}

// RecordDBError records a database query error
func RecordDBError(database, operation string) {
	dbQueryErrors.WithLabelValues(database, operation).Inc()
}

// TrackDBQuery records duration and, when err is set, an error for one query.
// Usage: defer func(start time.Time) { metrics.TrackDBQuery("clickhouse", "insert_span", start, err) }(time.Now())
func TrackDBQuery(database, operation string, start time.Time, err error) {
	RecordDBQuery(database, operation, time.Since(start))
	if err != nil {
		RecordDBError(database, operation)
	}
}
