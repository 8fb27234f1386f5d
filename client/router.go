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

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubebatch/components/log"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
	"go.uber.org/zap"
)

// completionRouter routes the response of a batch to the groups of its
// operations. The rows of the response are in request order.
type completionRouter struct {
	m       *requestManager
	batch   *batch
	start   time.Time
	release func()
}

func (r *completionRouter) onCompleted(req *transport.Request, resp *transport.Response, err error) {
	if err == nil && !resp.Matches(req) {
		err = errors.Wrapf(ErrResponseMismatch, "request %d rows in %d tables",
			req.RowCount(), len(req.Tables))
	}

	r.m.stats.batchCompleted(r.start, err == nil)
	if err != nil {
		r.m.logger.Warn("batch failed, retry as single row requests",
			log.BucketField(r.batch.bucket),
			log.RequestIDField(r.batch.id),
			log.RowCountField(r.batch.rows),
			log.CostField(r.start),
			zap.Error(err))
		r.split()
		return
	}

	for i, sb := range r.batch.tables {
		rows := resp.Tables[i].Rows
		for j, op := range sb.ops {
			r.m.complete(op, rows[j].Row, rows[j].Err)
		}
	}

	if ce := r.m.logger.Check(zap.DebugLevel, "batch completed"); ce != nil {
		ce.Write(log.RequestIDField(r.batch.id),
			log.RowCountField(r.batch.rows),
			log.CostField(r.start))
	}
	r.release()
}

// split sends every operation of the batch alone. Each result still goes to
// the original group and slot, and the last one releases the permit.
func (r *completionRouter) split() {
	requests := r.m.splitRequest(r.batch)
	remaining := int32(len(requests))
	for _, req := range requests {
		r.m.sendSingle(&singleRouter{
			m:         r.m,
			request:   req,
			remaining: &remaining,
			release:   r.release,
		})
	}
}

// singleRouter routes the result of a single row request. A failure is the
// final result of the operation.
type singleRouter struct {
	m         *requestManager
	request   singleRequest
	start     time.Time
	remaining *int32
	release   func()
}

func (r *singleRouter) onCompleted(value *row.Row, err error) {
	r.m.stats.singleCompleted(r.start, err == nil)
	if err != nil {
		r.m.logger.Debug("single row request failed",
			log.TableField(r.request.op.table),
			log.KeyField(r.request.op.key),
			log.GroupIDField(r.request.op.group.id),
			log.SlotField(r.request.op.slot),
			zap.Error(err))
	}

	r.m.complete(r.request.op, value, err)
	if atomic.AddInt32(r.remaining, -1) == 0 {
		r.release()
	}
}
