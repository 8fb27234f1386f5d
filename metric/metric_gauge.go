package metric

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queueGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bucket_queue_size",
			Help:      "Pending events in bucket queue.",
		}, []string{"kind", "bucket"})

	inflightGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inflight_batch_requests",
			Help:      "Batch requests sent but not completed.",
		}, []string{"kind"})
)

// SetBucketQueueMetric set bucket queue size
func SetBucketQueueMetric(kind string, bucket int, size int) {
	queueGauge.WithLabelValues(kind, strconv.Itoa(bucket)).Set(float64(size))
}

// IncInflight inc inflight batch requests
func IncInflight(kind string) {
	inflightGauge.WithLabelValues(kind).Inc()
}

// DecInflight dec inflight batch requests
func DecInflight(kind string) {
	inflightGauge.WithLabelValues(kind).Dec()
}
