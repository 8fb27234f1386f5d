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
	"fmt"
	"testing"

	"github.com/matrixorigin/cubebatch/config"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/stretchr/testify/assert"
)

func newTestKey(partition, id string) row.PrimaryKey {
	return row.PrimaryKey{
		row.NewColumn("pk0", []byte(partition)),
		row.NewColumn("pk1", []byte(id)),
	}
}

func TestDispatchByPartitionKey(t *testing.T) {
	d := newDispatcher(config.HashPartitionKey, 3)
	for i := 0; i < 100; i++ {
		partition := fmt.Sprintf("p%d", i)
		op1 := newReadOperation("t", newTestKey(partition, "1"), nil, newGroup(1))
		op2 := newReadOperation("t", newTestKey(partition, "2"), nil, newGroup(1))
		b := d.bucketFor(op1)
		assert.True(t, b >= 0 && b < 3)
		assert.Equal(t, b, d.bucketFor(op2))
	}

	total := uint64(0)
	for _, n := range d.dispatchedCount() {
		total += n
	}
	assert.Equal(t, uint64(200), total)
}

func TestDispatchByPrimaryKey(t *testing.T) {
	d := newDispatcher(config.HashPrimaryKey, 8)
	buckets := make(map[int]struct{})
	for i := 0; i < 100; i++ {
		op := newReadOperation("t", newTestKey("p", fmt.Sprintf("%d", i)), nil, newGroup(1))
		b := d.bucketFor(op)
		assert.Equal(t, b, d.bucketFor(op))
		buckets[b] = struct{}{}
	}
	assert.True(t, len(buckets) > 1)
}

func TestDispatchRoundRobin(t *testing.T) {
	d := newDispatcher(config.RoundRobin, 3)
	op := newReadOperation("t", newTestKey("p", "1"), nil, newGroup(1))
	for i := 0; i < 9; i++ {
		assert.Equal(t, i%3, d.bucketFor(op))
	}
	assert.Equal(t, []uint64{3, 3, 3}, d.dispatchedCount())
}
