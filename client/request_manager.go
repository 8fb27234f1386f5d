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
	"time"

	"github.com/matrixorigin/cubebatch/components/log"
	"github.com/matrixorigin/cubebatch/metric"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
	"github.com/matrixorigin/cubebatch/util/stop"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// requestManager sends the batches cut by the buckets and the single row
// requests split from the failed batches. Batches are issued on the bucket
// goroutine in cut order, responses are routed on the task runner.
type requestManager struct {
	kind      transport.Kind
	logger    *zap.Logger
	trans     transport.Transport
	runner    *stop.Stopper
	limiter   *limiter
	stats     *statistics
	callbacks *callbackExecutor
	callback  *callbackHolder
}

// send acquires a permit of the bucket and issues the batch. The transport is
// called on the bucket goroutine, so batches of a bucket are issued in the
// order they were cut. The permit is released once all operations of the
// batch have results.
//
// The rate limiter is waited on after the permit is taken, a throttled bucket
// stops consuming its queue until the limiter lets the batch go.
func (m *requestManager) send(b *batch, sem *semaphore.Weighted) {
	ctx := context.Background()
	if err := sem.Acquire(ctx, 1); err != nil {
		panic(err)
	}

	kind := m.kind.String()
	metric.IncInflight(kind)
	r := &completionRouter{
		m:     m,
		batch: b,
		release: func() {
			metric.DecInflight(kind)
			sem.Release(1)
		},
	}

	if err := m.limiter.wait(ctx, b.rows, b.bytes); err != nil {
		m.logger.Error("failed to wait the rate limiter",
			log.RequestIDField(b.id),
			zap.Error(err))
	}

	req := b.request()
	m.stats.batchSent(b)
	if ce := m.logger.Check(zap.DebugLevel, "send batch"); ce != nil {
		ce.Write(log.BucketField(b.bucket),
			log.RequestIDField(b.id),
			log.TableCountField(len(req.Tables)),
			log.RowCountField(b.rows),
			log.ByteSizeField(b.bytes))
	}

	r.start = time.Now()
	m.trans.SendBatch(ctx, req, func(resp *transport.Response, err error) {
		m.route(b.id, func() { r.onCompleted(req, resp, err) })
	})
}

// route runs the completion of a batch on the task runner, the transport may
// call its handler on the bucket goroutine.
func (m *requestManager) route(id []byte, fn func()) {
	if err := m.runner.RunNamedTask(context.Background(), "complete-batch",
		func(context.Context) { fn() }); err != nil {
		m.logger.Debug("complete batch inline",
			log.RequestIDField(id),
			zap.Error(err))
		fn()
	}
}

// singleRequest is an operation of a failed batch, sent alone
type singleRequest struct {
	op  *Operation
	req *transport.SingleRequest
}

// splitRequest returns one single row request per operation of the batch
func (m *requestManager) splitRequest(b *batch) []singleRequest {
	requests := make([]singleRequest, 0, b.rows)
	for _, op := range b.operations() {
		requests = append(requests, singleRequest{
			op:  op,
			req: op.payload.single(op.table),
		})
	}
	return requests
}

// sendSingle issues a single row request. Singles split from one batch are
// issued in operation order by the goroutine routing that batch.
func (m *requestManager) sendSingle(r *singleRouter) {
	r.start = time.Now()
	m.trans.SendSingle(context.Background(), r.request.req, r.onCompleted)
}

// complete delivers the result returned by the transport
func (m *requestManager) complete(op *Operation, value *row.Row, err error) {
	result := op.newResult(value, err)
	m.stats.rowCompleted(result.OK())
	m.deliver(op, result)
}

// reject fails the operation without sending it
func (m *requestManager) reject(op *Operation, err error) {
	m.stats.rowRejected()
	m.deliver(op, op.newResult(nil, err))
}

// deliver records the result in the group, then hands the callback to the
// callback workers. The callback is the one current at this moment.
func (m *requestManager) deliver(op *Operation, result Result) {
	cb := m.callback.load()
	op.group.recordResult(op.slot, result)
	if cb == nil {
		return
	}

	m.callbacks.submit(func() {
		if result.OK() {
			cb.OnCompleted(result)
		} else {
			cb.OnFailed(result)
		}
	})
}
