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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunTaskOnNotRunning(t *testing.T) {
	s := NewStopper("test")
	s.Stop()
	assert.Equal(t, ErrUnavailable, s.RunTask(context.Background(), func(ctx context.Context) {}))
}

func TestRunTask(t *testing.T) {
	s := NewStopper("test")
	defer s.Stop()

	c := make(chan struct{})
	assert.NoError(t, s.RunTask(context.Background(), func(ctx context.Context) {
		close(c)
	}))
	select {
	case <-c:
	case <-time.After(time.Second):
		assert.Fail(t, "run task timeout")
	}
}

func TestStopCancelsTasks(t *testing.T) {
	s := NewStopper("test")

	var cancelled uint32
	assert.NoError(t, s.RunNamedTask(context.Background(), "wait", func(ctx context.Context) {
		<-ctx.Done()
		atomic.StoreUint32(&cancelled, 1)
	}))
	s.Stop()
	assert.Equal(t, uint32(1), atomic.LoadUint32(&cancelled))
	assert.Equal(t, int64(0), s.TaskCount())
}

func TestStopWaitsSlowTasks(t *testing.T) {
	s := NewStopper("test", WithStopTimeout(time.Millisecond*10))

	var completed uint32
	assert.NoError(t, s.RunNamedTask(context.Background(), "slow", func(ctx context.Context) {
		time.Sleep(time.Millisecond * 50)
		atomic.StoreUint32(&completed, 1)
	}))
	s.Stop()
	assert.Equal(t, uint32(1), atomic.LoadUint32(&completed))
}

func TestStopTwice(t *testing.T) {
	s := NewStopper("test")
	s.Stop()
	s.Stop()
}
