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
	"context"

	"github.com/juju/ratelimit"
	"github.com/matrixorigin/cubebatch/config"
	"golang.org/x/time/rate"
)

// limiter throttles the batches sent by all buckets. Rows are limited by a
// rate.Limiter, bytes by a token bucket.
type limiter struct {
	rows  *rate.Limiter
	bytes *ratelimit.Bucket
}

func newLimiter(cfg config.Config) *limiter {
	l := &limiter{}
	if cfg.Limit.RowsPerSecond > 0 {
		burst := cfg.Limit.RowsPerSecond
		if burst < cfg.MaxBatchRows {
			burst = cfg.MaxBatchRows
		}
		l.rows = rate.NewLimiter(rate.Limit(cfg.Limit.RowsPerSecond), burst)
	}
	if cfg.Limit.BytesPerSecond > 0 {
		capacity := int64(cfg.Limit.BytesPerSecond)
		if capacity < int64(cfg.MaxBatchBytes) {
			capacity = int64(cfg.MaxBatchBytes)
		}
		l.bytes = ratelimit.NewBucketWithRate(float64(cfg.Limit.BytesPerSecond), capacity)
	}
	return l
}

func (l *limiter) enabled() bool {
	return l.rows != nil || l.bytes != nil
}

// wait blocks until the batch is allowed to be sent
func (l *limiter) wait(ctx context.Context, rows, bytes int) error {
	if l.rows != nil {
		if err := l.rows.WaitN(ctx, rows); err != nil {
			return err
		}
	}
	if l.bytes != nil {
		l.bytes.Wait(int64(bytes))
	}
	return nil
}
