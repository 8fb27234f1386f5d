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

package stop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubebatch/components/log"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable stopper is not running
	ErrUnavailable = errors.New("runner is unavailable")
)

var (
	defaultStoppedTimeout = time.Minute
)

type state int

const (
	running  = state(0)
	stopping = state(1)
	stopped  = state(2)
)

// Option stopper option
type Option func(*options)

type options struct {
	stopTimeout time.Duration
	logger      *zap.Logger
}

// WithStopTimeout the stopper logs the names of the tasks still running after
// timeout and keeps waiting.
func WithStopTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		opts.stopTimeout = timeout
	}
}

// WithLogger set the logger for stopper
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// Stopper manages all tasks that are executed in a separate goroutine, so
// that the owner can wait all of them to exit.
type Stopper struct {
	name    string
	opts    *options
	stopC   chan struct{}
	cancels sync.Map // id -> cancelFunc
	tasks   sync.Map // id -> name

	atomic struct {
		lastID    uint64
		taskCount int64
	}

	mu struct {
		sync.RWMutex
		state state
	}
}

// NewStopper create a stopper
func NewStopper(name string, opts ...Option) *Stopper {
	s := &Stopper{
		name:  name,
		opts:  &options{},
		stopC: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s.opts)
	}
	if s.opts.stopTimeout == 0 {
		s.opts.stopTimeout = defaultStoppedTimeout
	}
	s.opts.logger = log.Adjust(s.opts.logger).With(zap.String("stopper", name))

	s.mu.state = running
	return s
}

// RunTask run a task that can be cancelled. ErrUnavailable returned if stopped is not running
// See also `RunNamedTask`
func (s *Stopper) RunTask(ctx context.Context, task func(context.Context)) error {
	return s.RunNamedTask(ctx, "undefined", task)
}

// RunNamedTask run a task that can be cancelled. The context passed to the
// task is cancelled when ctx is done or the stopper is stopped. ErrUnavailable
// returned if stopped is not running
func (s *Stopper) RunNamedTask(ctx context.Context, name string, task func(context.Context)) error {
	// we use read lock here for avoid race
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.mu.state != running {
		return ErrUnavailable
	}

	id, ctx := s.allocate(ctx)
	s.doRunCancelableTask(ctx, id, name, task)
	return nil
}

// TaskCount returns the number of running tasks
func (s *Stopper) TaskCount() int64 {
	return atomic.LoadInt64(&s.atomic.taskCount)
}

// Stop cancels all tasks and waits for them to exit. The names of the tasks
// that do not exit within the stop timeout are logged.
func (s *Stopper) Stop() {
	s.mu.Lock()
	state := s.mu.state
	s.mu.state = stopping
	s.mu.Unlock()

	switch state {
	case stopped:
		return
	case stopping:
		<-s.stopC // wait concurrent stop completed
		return
	}

	defer func() {
		s.mu.Lock()
		s.mu.state = stopped
		s.mu.Unlock()
		close(s.stopC)
	}()

	s.cancels.Range(func(key, value interface{}) bool {
		cancel := value.(context.CancelFunc)
		cancel()
		return true
	})

	timer := time.NewTimer(s.opts.stopTimeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.opts.logger.Warn("tasks still running in stopper",
				zap.Strings("tasks", s.runningTasks()))
			timer.Reset(s.opts.stopTimeout)
		default:
			if s.TaskCount() == 0 {
				return
			}
		}

		time.Sleep(time.Millisecond * 5)
	}
}

func (s *Stopper) runningTasks() []string {
	var tasks []string
	s.tasks.Range(func(key, value interface{}) bool {
		tasks = append(tasks, value.(string))
		return true
	})
	return tasks
}

func (s *Stopper) setupTask(id uint64, name string) {
	s.tasks.Store(id, name)
	atomic.AddInt64(&s.atomic.taskCount, 1)
}

func (s *Stopper) shutdownTask(id uint64) {
	if cancel, ok := s.cancels.Load(id); ok {
		cancel.(context.CancelFunc)()
		s.cancels.Delete(id)
	}
	s.tasks.Delete(id)
	atomic.AddInt64(&s.atomic.taskCount, -1)
}

func (s *Stopper) doRunCancelableTask(ctx context.Context, taskID uint64, name string, task func(context.Context)) {
	s.setupTask(taskID, name)
	go func() {
		defer s.shutdownTask(taskID)
		task(ctx)
	}()
}

func (s *Stopper) allocate(ctx context.Context) (uint64, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	id := atomic.AddUint64(&s.atomic.lastID, 1)
	s.cancels.Store(id, cancel)
	return id, ctx
}
