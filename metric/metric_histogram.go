package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	batchRowsHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_rows",
			Help:      "Bucketed histogram of rows per batch request.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 100, 128, 200, 256, 512, 1024},
		}, []string{"kind"})

	batchBytesHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_bytes",
			Help:      "Bucketed histogram of bytes per batch request.",
			Buckets:   prometheus.ExponentialBuckets(256.0, 2.0, 16),
		}, []string{"kind"})

	requestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Bucketed histogram of request duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.0, 20),
		}, []string{"kind", "type"})
)

// ObserveBatch observe rows and bytes per batch request
func ObserveBatch(kind string, rows, bytes int) {
	batchRowsHistogram.WithLabelValues(kind).Observe(float64(rows))
	batchBytesHistogram.WithLabelValues(kind).Observe(float64(bytes))
}

// ObserveBatchDuration observe seconds per batch request
func ObserveBatchDuration(kind string, start time.Time) {
	requestDurationHistogram.WithLabelValues(kind, "batch").Observe(time.Since(start).Seconds())
}

// ObserveSingleRowDuration observe seconds per single row request
func ObserveSingleRowDuration(kind string, start time.Time) {
	requestDurationHistogram.WithLabelValues(kind, "single").Observe(time.Since(start).Seconds())
}
