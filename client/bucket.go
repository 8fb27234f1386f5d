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
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lni/goutils/syncutil"
	"github.com/matrixorigin/cubebatch/components/log"
	"github.com/matrixorigin/cubebatch/config"
	"github.com/matrixorigin/cubebatch/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	signalRetryInterval = time.Millisecond
)

type bucketState int32

const (
	running bucketState = iota
	draining
	closed
)

func (s bucketState) String() string {
	switch s {
	case running:
		return "running"
	case draining:
		return "draining"
	case closed:
		return "closed"
	}
	return "unknown"
}

type eventType int

const (
	dataEvent eventType = iota
	flushEvent
)

// event is a DATA event carrying an operation, or a FLUSH event. A FLUSH event
// with a latch is a barrier, the latch is done once no batch of the bucket is
// in flight.
type event struct {
	typ   eventType
	op    *Operation
	latch *sync.WaitGroup
}

// bucket is an independent batching pipeline. All events of a bucket are
// handled by one goroutine in FIFO order, so the operations of a bucket are
// sent in submission order.
type bucket struct {
	index   int
	kind    string
	logger  *zap.Logger
	stopper *syncutil.Stopper
	manager *requestManager
	queue   chan event
	buffer  *batchBuffer
	sem     *semaphore.Weighted
	permits int64
	state   int32
}

func newBucket(index int, cfg config.Config, manager *requestManager,
	stopper *syncutil.Stopper, logger *zap.Logger) *bucket {
	permits := int64(cfg.BucketConcurrency())
	return &bucket{
		index:   index,
		kind:    manager.kind.String(),
		logger:  logger.With(log.BucketField(index)),
		stopper: stopper,
		manager: manager,
		queue:   make(chan event, cfg.QueueCapacity),
		buffer: newBatchBuffer(manager.kind, index, cfg.MaxBatchRows,
			int(cfg.MaxBatchBytes), cfg.DisableDuplicatedRowInBatch),
		sem:     semaphore.NewWeighted(permits),
		permits: permits,
	}
}

func (b *bucket) start() {
	b.stopper.RunWorker(b.workerMain)
}

func (b *bucket) getState() bucketState {
	return bucketState(atomic.LoadInt32(&b.state))
}

func (b *bucket) setState(state bucketState) {
	atomic.StoreInt32(&b.state, int32(state))
}

// tryAdd adds a DATA event without blocking. A closed bucket has no
// goroutine left to handle the event.
func (b *bucket) tryAdd(op *Operation) error {
	if b.getState() == closed {
		return ErrClosed
	}

	select {
	case b.queue <- event{typ: dataEvent, op: op}:
		return nil
	default:
		return ErrQueueFull
	}
}

// addSignal adds a FLUSH event, retrying until the queue has room. A nil latch
// only cuts the buffer.
func (b *bucket) addSignal(latch *sync.WaitGroup) {
	e := event{typ: flushEvent, latch: latch}
	for {
		if b.getState() == closed {
			if latch != nil {
				latch.Done()
			}
			return
		}

		select {
		case b.queue <- e:
			return
		default:
		}
		time.Sleep(signalRetryInterval)
	}
}

func (b *bucket) workerMain() {
	b.logger.Debug("bucket started")
	for {
		select {
		case <-b.stopper.ShouldStop():
			b.drain()
			b.setState(closed)
			b.logger.Debug("bucket stopped",
				log.StateField(b.getState().String()))
			return
		case e := <-b.queue:
			b.handleEvent(e)
			metric.SetBucketQueueMetric(b.kind, b.index, len(b.queue))
		}
	}
}

// drain handles the events left in the queue and sends the pending buffer
func (b *bucket) drain() {
	for {
		select {
		case e := <-b.queue:
			b.handleEvent(e)
		default:
			b.cut()
			return
		}
	}
}

func (b *bucket) handleEvent(e event) {
	switch e.typ {
	case dataEvent:
		b.handleData(e.op)
	case flushEvent:
		b.handleFlush(e.latch)
	}
}

func (b *bucket) handleData(op *Operation) {
	if b.buffer.tryAppend(op) {
		return
	}

	b.cut()
	if b.buffer.tryAppend(op) {
		return
	}

	b.logger.Warn("operation too large for a single batch",
		log.TableField(op.table),
		log.KeyField(op.key),
		log.GroupIDField(op.group.id),
		log.ByteSizeField(op.size()))
	b.manager.reject(op, errors.Wrapf(ErrOperationTooLarge,
		"%d bytes, max batch rows %d, max batch bytes %d",
		op.size(), b.buffer.maxRows, b.buffer.maxBytes))
}

func (b *bucket) handleFlush(latch *sync.WaitGroup) {
	b.cut()
	if latch == nil {
		return
	}

	b.setState(draining)
	// all permits are free only when no batch of the bucket is in flight
	if err := b.sem.Acquire(context.Background(), b.permits); err != nil {
		panic(err)
	}
	b.sem.Release(b.permits)
	b.setState(running)
	latch.Done()
}

// cut sends the buffered operations as a batch. It blocks until a permit is
// acquired.
func (b *bucket) cut() {
	if v := b.buffer.cut(); v != nil {
		b.manager.send(v, b.sem)
	}
}
