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
	"sync"
	"sync/atomic"

	"github.com/lni/goutils/syncutil"
	"github.com/matrixorigin/cubebatch/components/log"
	"github.com/phf/go-queue/queue"
	"go.uber.org/zap"
)

// Callback receives the result of every operation exactly once, no matter
// how many times the operation is retried internally. It is called on the
// callback workers, never on the bucket goroutines.
type Callback interface {
	// OnCompleted the operation succeeded
	OnCompleted(result Result)
	// OnFailed the operation failed, result.Err is the reason
	OnFailed(result Result)
}

// CallbackFuncs adapts functions to Callback, nil functions are skipped
type CallbackFuncs struct {
	Completed func(Result)
	Failed    func(Result)
}

// OnCompleted implements Callback
func (c CallbackFuncs) OnCompleted(result Result) {
	if c.Completed != nil {
		c.Completed(result)
	}
}

// OnFailed implements Callback
func (c CallbackFuncs) OnFailed(result Result) {
	if c.Failed != nil {
		c.Failed(result)
	}
}

// callbackHolder allows the callback to be swapped while results are routed
type callbackHolder struct {
	value atomic.Value
}

type callbackBox struct {
	cb Callback
}

func (h *callbackHolder) store(cb Callback) {
	h.value.Store(callbackBox{cb: cb})
}

func (h *callbackHolder) load() Callback {
	if v := h.value.Load(); v != nil {
		return v.(callbackBox).cb
	}
	return nil
}

// callbackExecutor runs the user callbacks on a fixed number of workers. The
// queue is unbounded so the routers never block on user code.
type callbackExecutor struct {
	logger  *zap.Logger
	stopper *syncutil.Stopper
	notifyC chan struct{}

	mu struct {
		sync.Mutex
		closed bool
		queue  *queue.Queue
	}
}

func newCallbackExecutor(workers int, logger *zap.Logger) *callbackExecutor {
	e := &callbackExecutor{
		logger:  logger,
		stopper: syncutil.NewStopper(),
		notifyC: make(chan struct{}, workers),
	}
	e.mu.queue = queue.New()
	for i := 0; i < workers; i++ {
		e.stopper.RunWorker(e.workerMain)
	}
	return e
}

func (e *callbackExecutor) submit(fn func()) {
	e.mu.Lock()
	if e.mu.closed {
		e.mu.Unlock()
		// the engine is closed, nobody drains the queue any more
		e.run(fn)
		return
	}
	e.mu.queue.PushBack(fn)
	e.mu.Unlock()

	select {
	case e.notifyC <- struct{}{}:
	default:
	}
}

func (e *callbackExecutor) pop() func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v := e.mu.queue.PopFront(); v != nil {
		return v.(func())
	}
	return nil
}

func (e *callbackExecutor) pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mu.queue.Len()
}

func (e *callbackExecutor) workerMain() {
	for {
		for fn := e.pop(); fn != nil; fn = e.pop() {
			e.run(fn)
		}

		select {
		case <-e.notifyC:
		case <-e.stopper.ShouldStop():
			for fn := e.pop(); fn != nil; fn = e.pop() {
				e.run(fn)
			}
			return
		}
	}
}

func (e *callbackExecutor) run(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			e.logger.Error("callback panic",
				zap.Any("error", err))
		}
	}()
	fn()
}

// close runs all queued callbacks and stops the workers
func (e *callbackExecutor) close() {
	e.mu.Lock()
	e.mu.closed = true
	e.mu.Unlock()

	e.stopper.Stop()
	e.logger.Debug("callback executor stopped",
		log.ReasonField("closed"))
}
