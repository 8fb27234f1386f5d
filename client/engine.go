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
	"sync"
	"time"

	"github.com/lni/goutils/syncutil"
	"github.com/matrixorigin/cubebatch/components/log"
	"github.com/matrixorigin/cubebatch/config"
	"github.com/matrixorigin/cubebatch/metric"
	"github.com/matrixorigin/cubebatch/transport"
	"github.com/matrixorigin/cubebatch/util/stop"
	"go.uber.org/zap"
)

var (
	addRetryInterval = time.Millisecond
)

// engine is the pipeline shared by the writer and the reader:
// dispatcher -> buckets -> request manager -> transport -> routers.
type engine struct {
	kind       transport.Kind
	cfg        config.Config
	logger     *zap.Logger
	dispatcher *dispatcher
	buckets    []*bucket
	manager    *requestManager
	callbacks  *callbackExecutor
	callback   *callbackHolder
	stats      *statistics
	workers    *syncutil.Stopper
	runner     *stop.Stopper
	metricC    chan struct{}

	mu struct {
		sync.RWMutex
		closed bool
	}
}

func newEngine(kind transport.Kind, cfg config.Config, trans transport.Transport, opts *options) *engine {
	logger := log.Adjust(opts.logger).Named(kind.String())
	e := &engine{
		kind:       kind,
		cfg:        cfg,
		logger:     logger,
		dispatcher: newDispatcher(cfg.DispatchMode, cfg.BucketCount),
		callbacks:  newCallbackExecutor(cfg.CallbackWorkers, logger),
		callback:   &callbackHolder{},
		stats:      newStatistics(kind),
		workers:    syncutil.NewStopper(),
		runner:     stop.NewStopper(kind.String()+"-runner", stop.WithLogger(logger)),
		metricC:    make(chan struct{}),
	}
	e.callback.store(opts.callback)
	e.manager = &requestManager{
		kind:      kind,
		logger:    logger,
		trans:     trans,
		runner:    e.runner,
		limiter:   newLimiter(cfg),
		stats:     e.stats,
		callbacks: e.callbacks,
		callback:  e.callback,
	}
	for i := 0; i < cfg.BucketCount; i++ {
		e.buckets = append(e.buckets, newBucket(i, cfg, e.manager, e.workers, logger))
	}
	for _, b := range e.buckets {
		b.start()
	}
	e.workers.RunWorker(e.flushTimer)
	if cfg.LogInterval.Duration > 0 {
		e.workers.RunWorker(e.logStatistics)
	}
	metric.StartPush(cfg.Metric, logger, e.metricC)

	logger.Info("started",
		zap.Int("buckets", cfg.BucketCount),
		zap.Int("concurrency", cfg.BucketConcurrency()),
		zap.Int("max-batch-rows", cfg.MaxBatchRows),
		zap.String("max-batch-bytes", cfg.MaxBatchBytes.String()),
		zap.String("dispatch-mode", string(cfg.DispatchMode)),
		zap.Bool("limited", e.manager.limiter.enabled()))
	return e
}

// add enqueues the operations in order. If an operation can not be
// enqueued, it and all operations after it are rejected with the returned
// error.
func (e *engine) add(ctx context.Context, ops []*Operation) error {
	for i, op := range ops {
		if err := e.enqueue(ctx, op); err != nil {
			for _, op := range ops[i:] {
				e.manager.reject(op, err)
			}
			return err
		}
	}
	return nil
}

func (e *engine) enqueue(ctx context.Context, op *Operation) error {
	b := e.buckets[e.dispatcher.bucketFor(op)]
	for {
		e.mu.RLock()
		if e.mu.closed {
			e.mu.RUnlock()
			return ErrClosed
		}
		err := b.tryAdd(op)
		e.mu.RUnlock()
		if err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(addRetryInterval):
		}
	}
}

// tryAdd enqueues the operation without waiting for the queue
func (e *engine) tryAdd(op *Operation) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.mu.closed {
		return ErrClosed
	}
	return e.buckets[e.dispatcher.bucketFor(op)].tryAdd(op)
}

// flush blocks until all operations added before have results
func (e *engine) flush() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.mu.closed {
		return ErrClosed
	}
	e.doFlush()
	return nil
}

func (e *engine) doFlush() {
	start := time.Now()
	latch := &sync.WaitGroup{}
	latch.Add(len(e.buckets))
	for _, b := range e.buckets {
		b.addSignal(latch)
	}
	latch.Wait()

	if ce := e.logger.Check(zap.DebugLevel, "flushed"); ce != nil {
		ce.Write(log.CostField(start))
	}
}

// asyncFlush asks all buckets to send the buffered operations
func (e *engine) asyncFlush() {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.mu.closed {
		return
	}
	for _, b := range e.buckets {
		b.addSignal(nil)
	}
}

// close flushes and stops the buckets, all callbacks are called before it
// returns.
func (e *engine) close() error {
	e.mu.Lock()
	if e.mu.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.mu.closed = true
	e.mu.Unlock()

	e.doFlush()
	e.workers.Stop()
	e.callbacks.close()
	e.runner.Stop()
	close(e.metricC)

	e.logger.Info("closed", e.stats.snapshot().fields()...)
	return nil
}

func (e *engine) setCallback(cb Callback) {
	e.callback.store(cb)
}

func (e *engine) statistics() Statistics {
	return e.stats.snapshot()
}

func (e *engine) flushTimer() {
	ticker := time.NewTicker(e.cfg.FlushInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-e.workers.ShouldStop():
			return
		case <-ticker.C:
			e.asyncFlush()
		}
	}
}

func (e *engine) logStatistics() {
	ticker := time.NewTicker(e.cfg.LogInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-e.workers.ShouldStop():
			return
		case <-ticker.C:
			e.logger.Info("statistics", e.stats.snapshot().fields()...)
		}
	}
}
