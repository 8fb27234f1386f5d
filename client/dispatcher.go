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

	"github.com/cespare/xxhash/v2"
	"github.com/fagongzi/util/hack"
	"github.com/matrixorigin/cubebatch/config"
)

// dispatcher maps an operation to a bucket. With the hash modes the same key
// always goes to the same bucket.
type dispatcher struct {
	mode       config.DispatchMode
	buckets    uint64
	next       uint64
	dispatched []uint64
}

func newDispatcher(mode config.DispatchMode, buckets int) *dispatcher {
	return &dispatcher{
		mode:       mode,
		buckets:    uint64(buckets),
		dispatched: make([]uint64, buckets),
	}
}

func (d *dispatcher) bucketFor(op *Operation) int {
	var v uint64
	switch d.mode {
	case config.RoundRobin:
		v = atomic.AddUint64(&d.next, 1) - 1
	case config.HashPrimaryKey:
		v = xxhash.Sum64(hack.StringToSlice(op.rowID))
	default:
		v = xxhash.Sum64(op.key.PartitionKey())
	}

	index := int(v % d.buckets)
	atomic.AddUint64(&d.dispatched[index], 1)
	return index
}

// dispatchedCount returns the number of operations dispatched to each bucket
func (d *dispatcher) dispatchedCount() []uint64 {
	counts := make([]uint64, len(d.dispatched))
	for i := range d.dispatched {
		counts[i] = atomic.LoadUint64(&d.dispatched[i])
	}
	return counts
}
