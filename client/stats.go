// Copyright 2022 MatrixOrigin.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"sync/atomic"
	"time"

	"github.com/matrixorigin/cubebatch/components/log"
	"github.com/matrixorigin/cubebatch/metric"
	"github.com/matrixorigin/cubebatch/transport"
	"github.com/matrixorigin/cubebatch/util/movingaverage"
	"go.uber.org/zap"
)

// Statistics counters of a writer or reader since it was created
type Statistics struct {
	// TotalRequests batch requests sent
	TotalRequests uint64
	// TotalSingleRowRequests single row requests sent after a batch failed
	TotalSingleRowRequests uint64
	// TotalBatchFailures batch requests failed as a whole
	TotalBatchFailures uint64
	// TotalRows rows sent in batch requests
	TotalRows uint64
	// TotalBytes bytes of rows sent in batch requests
	TotalBytes uint64
	// TotalSucceededRows operations succeeded
	TotalSucceededRows uint64
	// TotalFailedRows operations failed, including the rejected ones
	TotalFailedRows uint64
	// TotalRejectedRows operations failed without being sent
	TotalRejectedRows uint64
	// BatchLatency median latency of the recent batch requests
	BatchLatency time.Duration
}

const (
	latencyWindow = 128
)

// statistics keeps the counters and reports them to the metrics
type statistics struct {
	kind string

	requests       uint64
	singleRequests uint64
	batchFailures  uint64
	rows           uint64
	bytes          uint64
	succeeded      uint64
	failed         uint64
	rejected       uint64
	latency        *movingaverage.MedianFilter
}

func newStatistics(kind transport.Kind) *statistics {
	return &statistics{
		kind:    kind.String(),
		latency: movingaverage.NewMedianFilter(latencyWindow),
	}
}

func (s *statistics) batchSent(b *batch) {
	atomic.AddUint64(&s.requests, 1)
	atomic.AddUint64(&s.rows, uint64(b.rows))
	atomic.AddUint64(&s.bytes, uint64(b.bytes))
	metric.ObserveBatch(s.kind, b.rows, b.bytes)
}

func (s *statistics) batchCompleted(start time.Time, ok bool) {
	if !ok {
		atomic.AddUint64(&s.batchFailures, 1)
	}
	s.latency.Add(float64(time.Since(start)))
	metric.IncBatchRequest(s.kind, ok)
	metric.ObserveBatchDuration(s.kind, start)
}

func (s *statistics) singleCompleted(start time.Time, ok bool) {
	atomic.AddUint64(&s.singleRequests, 1)
	metric.IncSingleRowRequest(s.kind, ok)
	metric.ObserveSingleRowDuration(s.kind, start)
}

func (s *statistics) rowCompleted(ok bool) {
	if ok {
		atomic.AddUint64(&s.succeeded, 1)
	} else {
		atomic.AddUint64(&s.failed, 1)
	}
	metric.IncRow(s.kind, ok)
}

func (s *statistics) rowRejected() {
	atomic.AddUint64(&s.rejected, 1)
	atomic.AddUint64(&s.failed, 1)
	metric.AddRejectedRows(s.kind, 1)
}

func (s *statistics) snapshot() Statistics {
	return Statistics{
		TotalRequests:          atomic.LoadUint64(&s.requests),
		TotalSingleRowRequests: atomic.LoadUint64(&s.singleRequests),
		TotalBatchFailures:     atomic.LoadUint64(&s.batchFailures),
		TotalRows:              atomic.LoadUint64(&s.rows),
		TotalBytes:             atomic.LoadUint64(&s.bytes),
		TotalSucceededRows:     atomic.LoadUint64(&s.succeeded),
		TotalFailedRows:        atomic.LoadUint64(&s.failed),
		TotalRejectedRows:      atomic.LoadUint64(&s.rejected),
		BatchLatency:           time.Duration(s.latency.Get()),
	}
}

func (s Statistics) fields() []zap.Field {
	return []zap.Field{
		zap.Uint64("requests", s.TotalRequests),
		zap.Uint64("single-row-requests", s.TotalSingleRowRequests),
		zap.Uint64("batch-failures", s.TotalBatchFailures),
		zap.Uint64("rows", s.TotalRows),
		log.ByteSizeField(int(s.TotalBytes)),
		zap.Uint64("succeeded", s.TotalSucceededRows),
		zap.Uint64("failed", s.TotalFailedRows),
		zap.Uint64("rejected", s.TotalRejectedRows),
		zap.Duration("batch-latency", s.BatchLatency),
	}
}
