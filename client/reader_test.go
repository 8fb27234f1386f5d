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
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubebatch/config"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
	"github.com/matrixorigin/cubebatch/transport/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(t *testing.T, trans transport.Transport, adjust func(*config.Config), opts ...Option) *Reader {
	r, err := NewReader(newTestConfig(adjust), trans, opts...)
	require.NoError(t, err)
	return r
}

func writeTestRows(t *testing.T, store *mem.Store, n int) {
	for i := 0; i < n; i++ {
		_, err := transport.SendSingleSync(context.Background(), store, &transport.SingleRequest{
			Kind:  transport.Write,
			Table: "t1",
			Change: row.NewPut("t1", newTestKey("p", strconv.Itoa(i)),
				row.NewColumn("a", []byte("a"+strconv.Itoa(i))),
				row.NewColumn("b", []byte("b"+strconv.Itoa(i)))),
		})
		require.NoError(t, err)
	}
}

func TestReaderQueryConfigSwap(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	writeTestRows(t, store, 2)
	r := newTestReader(t, store, nil)

	r.SetQueryConfig("t1", row.QueryConfig{Columns: []string{"a"}})
	f1, err := r.AddPrimaryKeys(ctx, "t1", []row.PrimaryKey{newTestKey("p", "0"), newTestKey("p", "missing")})
	require.NoError(t, err)
	r.SetQueryConfig("t1", row.QueryConfig{Columns: []string{"b"}})
	f2, err := r.AddPrimaryKey(ctx, "t1", newTestKey("p", "1"))
	require.NoError(t, err)
	require.NoError(t, r.Flush())

	results, err := f1.Results(ctx)
	require.NoError(t, err)
	require.NotNil(t, results[0].Row)
	require.Equal(t, 1, len(results[0].Row.Columns))
	assert.Equal(t, []byte("a0"), results[0].Row.Columns[0].Value)
	assert.Nil(t, results[1].Row)
	assert.NoError(t, results[1].Err)

	result, err := f2.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, len(result.Row.Columns))
	assert.Equal(t, []byte("b1"), result.Row.Columns[0].Value)

	// the swapped config starts a new batch
	assert.Equal(t, uint64(2), store.BatchRequests())
	require.NoError(t, r.Close())
}

func TestReaderBatchRequests(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	writeTestRows(t, store, 250)
	var found uint64
	r := newTestReader(t, store, nil, WithCallback(CallbackFuncs{
		Completed: func(result Result) {
			if result.Row != nil {
				atomic.AddUint64(&found, 1)
			}
		},
	}))

	keys := make([]row.PrimaryKey, 0, 250)
	for i := 0; i < 250; i++ {
		keys = append(keys, newTestKey("p", strconv.Itoa(i)))
	}
	f, err := r.AddPrimaryKeys(ctx, "t1", keys)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	results, err := f.Results(ctx)
	require.NoError(t, err)
	for i, result := range results {
		require.NotNil(t, result.Row)
		assert.True(t, keys[i].Equal(result.Row.Key))
		c, ok := result.Row.Column("a")
		assert.True(t, ok)
		assert.Equal(t, []byte("a"+strconv.Itoa(i)), c.Value)
	}
	// reader default max batch rows is 100
	assert.Equal(t, uint64(3), r.Statistics().TotalRequests)
	assert.Equal(t, uint64(250), atomic.LoadUint64(&found))
}

func TestReaderSplitKeepsSlots(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(mem.WithMaxRowBytes(64))
	writeTestRows(t, store, 10)
	r := newTestReader(t, store, func(c *config.Config) {
		c.BucketCount = 1
	})

	dirty := 5
	keys := make([]row.PrimaryKey, 0, 11)
	for i := 0; i < 10; i++ {
		if i == dirty {
			keys = append(keys, newTestKey("p", strings.Repeat("x", 100)))
		}
		keys = append(keys, newTestKey("p", strconv.Itoa(i)))
	}
	f, err := r.AddPrimaryKeys(ctx, "t1", keys)
	require.NoError(t, err)
	require.NoError(t, r.Flush())

	results, err := f.Results(ctx)
	require.NoError(t, err)
	require.Equal(t, 11, len(results))
	for i, result := range results {
		assert.True(t, keys[i].Equal(result.Key))
		if i == dirty {
			assert.True(t, errors.Is(result.Err, transport.ErrRowTooLarge))
			assert.Nil(t, result.Row)
			continue
		}
		require.NoError(t, result.Err)
		require.NotNil(t, result.Row)
		assert.True(t, keys[i].Equal(result.Row.Key))
	}

	stats := r.Statistics()
	assert.Equal(t, uint64(1), stats.TotalRequests)
	assert.Equal(t, uint64(1), stats.TotalBatchFailures)
	assert.Equal(t, uint64(11), stats.TotalSingleRowRequests)
	assert.Equal(t, uint64(10), stats.TotalSucceededRows)
	assert.Equal(t, uint64(1), stats.TotalFailedRows)
	assert.Equal(t, uint64(11), store.SingleRequests())
	require.NoError(t, r.Close())
}

func TestReaderErrors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	r := newTestReader(t, store, nil)

	f1, err := r.AddPrimaryKey(ctx, "t9", newTestKey("p", "1"))
	require.NoError(t, err)
	f2, err := r.TryAddPrimaryKey("t1", nil)
	require.NoError(t, err)
	require.NoError(t, r.Flush())

	assert.True(t, errors.Is(f1.GetError(ctx), transport.ErrTableNotExist))
	assert.True(t, errors.Is(f2.GetError(ctx), ErrInvalidPrimaryKey))

	require.NoError(t, r.Close())
	assert.Equal(t, ErrClosed, r.Close())
	_, err = r.AddPrimaryKey(ctx, "t1", newTestKey("p", "1"))
	assert.Equal(t, ErrClosed, err)
}
