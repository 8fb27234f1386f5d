package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	batchRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_request_total",
			Help:      "Total number of batch requests sent.",
		}, []string{"kind", "status"})

	singleRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "single_row_request_total",
			Help:      "Total number of single row requests sent after a batch failed.",
		}, []string{"kind", "status"})

	rowCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "row_total",
			Help:      "Total number of rows completed.",
		}, []string{"kind", "status"})
)

func status(ok bool) string {
	if ok {
		return "succeed"
	}
	return "failed"
}

// IncBatchRequest inc the batch requests completed
func IncBatchRequest(kind string, ok bool) {
	batchRequestCounter.WithLabelValues(kind, status(ok)).Inc()
}

// IncSingleRowRequest inc the single row requests completed
func IncSingleRowRequest(kind string, ok bool) {
	singleRequestCounter.WithLabelValues(kind, status(ok)).Inc()
}

// IncRow inc the rows completed
func IncRow(kind string, ok bool) {
	rowCounter.WithLabelValues(kind, status(ok)).Inc()
}

// AddRejectedRows add rows rejected before sent, too large or invalid
func AddRejectedRows(kind string, value int) {
	rowCounter.WithLabelValues(kind, "rejected").Add(float64(value))
}
