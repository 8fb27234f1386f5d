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
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

var (
	groupID uint64
)

// Group tracks the completion of the operations submitted together. Each
// operation owns one slot, and a slot is written once. The goroutine that
// records the last result closes the done channel.
type Group struct {
	id        uint64
	total     int32
	remaining int32
	allocated int32
	recorded  []uint32
	results   []Result
	doneC     chan struct{}
}

func newGroup(total int) *Group {
	g := &Group{
		id:        atomic.AddUint64(&groupID, 1),
		total:     int32(total),
		remaining: int32(total),
		recorded:  make([]uint32, total),
		results:   make([]Result, total),
		doneC:     make(chan struct{}),
	}
	if total == 0 {
		close(g.doneC)
	}
	return g
}

// ID returns the id of the group
func (g *Group) ID() uint64 {
	return g.id
}

// allocSlot returns a slot no other caller gets
func (g *Group) allocSlot() int {
	n := atomic.AddInt32(&g.allocated, 1)
	if n > g.total {
		panic(errors.AssertionFailedf("group %d allocates slot %d, total %d", g.id, n-1, g.total))
	}
	return int(n - 1)
}

// recordResult records the result of the slot, returns true if it is the
// last result of the group. Recording a slot twice is a bug.
func (g *Group) recordResult(slot int, result Result) bool {
	if !atomic.CompareAndSwapUint32(&g.recorded[slot], 0, 1) {
		panic(errors.AssertionFailedf("group %d slot %d completed twice", g.id, slot))
	}

	g.results[slot] = result
	remaining := atomic.AddInt32(&g.remaining, -1)
	if remaining < 0 {
		panic(errors.AssertionFailedf("group %d completed %d times, total %d",
			g.id, g.total-remaining, g.total))
	}
	if remaining == 0 {
		close(g.doneC)
		return true
	}
	return false
}

// Future is used to obtain the results of a group of operations.
type Future struct {
	group *Group
}

func newFuture(g *Group) *Future {
	return &Future{group: g}
}

// GroupID returns the id of the group
func (f *Future) GroupID() uint64 {
	return f.group.id
}

// Done returns a channel closed when all results are recorded
func (f *Future) Done() <-chan struct{} {
	return f.group.doneC
}

// Wait blocks until all results are recorded or the context is done
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.group.doneC:
		return nil
	}
}

// Results returns the results in submission order, blocking until all
// results are recorded or the context is done.
func (f *Future) Results(ctx context.Context) ([]Result, error) {
	if err := f.Wait(ctx); err != nil {
		return nil, err
	}
	return f.group.results, nil
}

// Get returns the result of the first operation. The error is the context
// error or the error of the operation.
func (f *Future) Get(ctx context.Context) (Result, error) {
	results, err := f.Results(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(results) == 0 {
		return Result{}, nil
	}
	return results[0], results[0].Err
}

// GetError is similar to Get, but returns the first failure of all
// operations.
func (f *Future) GetError(ctx context.Context) error {
	results, err := f.Results(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
