package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	TaskCreatedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_created_total",
			Help: "Task creation attempts by outcome",
		},
		[]string{"outcome"}, // outcome: success, invalid, failed
	)

	AttachmentStoredBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attachment_stored_bytes",
			Help:    "Size of stored attachments in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KB to ~16MB
		},
	)

	AttachmentCleanupCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attachment_cleanup_total",
			Help: "Compensating deletes of stored attachments by result",
		},
		[]string{"result"}, // result: deleted, orphaned, kept, reconciled, abandoned
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery counts a slow statement. The label is the truncated SQL text.
func IncrementSlowQuery(statement string, _ time.Duration) {
	SlowQueryCount.WithLabelValues(statement).Inc()
}

// IncrementTaskCreated counts a creation attempt.
func IncrementTaskCreated(outcome string) {
	TaskCreatedCount.WithLabelValues(outcome).Inc()
}

// ObserveAttachmentStored records the size of a stored attachment.
func ObserveAttachmentStored(size int64) {
	AttachmentStoredBytes.Observe(float64(size))
}

// IncrementAttachmentCleanup counts a cleanup outcome.
func IncrementAttachmentCleanup(result string) {
	AttachmentCleanupCount.WithLabelValues(result).Inc()
}
