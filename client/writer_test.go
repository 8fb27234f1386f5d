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
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubebatch/config"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
	"github.com/matrixorigin/cubebatch/transport/mem"
	"github.com/matrixorigin/cubebatch/util/typeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(adjust func(*config.Config)) config.Config {
	cfg := config.Config{
		FlushInterval: typeutil.NewDuration(time.Hour),
		LogInterval:   typeutil.NewDuration(-1),
	}
	if adjust != nil {
		adjust(&cfg)
	}
	return cfg
}

func newTestStore(opts ...mem.Option) *mem.Store {
	s := mem.NewStore(opts...)
	s.CreateTable("t1", "t2")
	return s
}

func newTestWriter(t *testing.T, trans transport.Transport, adjust func(*config.Config), opts ...Option) *Writer {
	w, err := NewWriter(newTestConfig(adjust), trans, opts...)
	require.NoError(t, err)
	return w
}

func assertDone(t *testing.T, f *Future) {
	select {
	case <-f.Done():
	default:
		assert.Fail(t, "future must be done")
	}
}

func TestWriterBatchRequests(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newTestWriter(t, store, func(c *config.Config) {
		c.MaxBatchRows = 200
	})

	futures := make([]*Future, 0, 10000)
	for i := 0; i < 10000; i++ {
		f, err := w.AddRowChange(ctx, newTestPut("t1", strconv.Itoa(i), 8))
		require.NoError(t, err)
		futures = append(futures, f)
	}
	require.NoError(t, w.Flush())

	for _, f := range futures {
		assertDone(t, f)
		assert.NoError(t, f.GetError(ctx))
	}
	assert.Equal(t, uint64(50), store.BatchRequests())
	assert.Equal(t, 10000, store.Len("t1"))

	stats := w.Statistics()
	assert.Equal(t, uint64(50), stats.TotalRequests)
	assert.Equal(t, uint64(10000), stats.TotalRows)
	assert.Equal(t, uint64(10000), stats.TotalSucceededRows)
	assert.Equal(t, uint64(0), stats.TotalSingleRowRequests)
	require.NoError(t, w.Close())
}

func TestWriterSplitDirtyBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(mem.WithMaxRowBytes(1024))
	w := newTestWriter(t, store, func(c *config.Config) {
		c.MaxBatchRows = 50
	})

	dirty := 70
	changes := make([]*row.Change, 0, 100)
	for i := 0; i < 100; i++ {
		size := 8
		if i == dirty {
			size = 2048
		}
		changes = append(changes, newTestPut("t1", strconv.Itoa(i), size))
	}
	f, err := w.AddRowChanges(ctx, changes)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	results, err := f.Results(ctx)
	require.NoError(t, err)
	require.Equal(t, 100, len(results))
	for i, r := range results {
		assert.True(t, changes[i] == r.Change)
		if i == dirty {
			assert.True(t, errors.Is(r.Err, transport.ErrRowTooLarge))
		} else {
			assert.NoError(t, r.Err)
		}
	}

	stats := w.Statistics()
	assert.Equal(t, uint64(2), stats.TotalRequests)
	assert.Equal(t, uint64(1), stats.TotalBatchFailures)
	assert.Equal(t, uint64(50), stats.TotalSingleRowRequests)
	assert.Equal(t, uint64(99), stats.TotalSucceededRows)
	assert.Equal(t, uint64(1), stats.TotalFailedRows)
	assert.Equal(t, uint64(50), store.SingleRequests())
	assert.Equal(t, 99, store.Len("t1"))
	require.NoError(t, w.Close())
}

func TestWriterCloseDeliversAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	var delivered uint64
	w := newTestWriter(t, store, nil, WithCallback(CallbackFuncs{
		Completed: func(Result) { atomic.AddUint64(&delivered, 1) },
	}))

	futures := make([]*Future, 0, 999)
	for i := 0; i < 999; i++ {
		f, err := w.AddRowChange(ctx, newTestPut("t1", strconv.Itoa(i), 8))
		require.NoError(t, err)
		futures = append(futures, f)
	}
	require.NoError(t, w.Close())

	for _, f := range futures {
		assertDone(t, f)
	}
	assert.Equal(t, uint64(999), atomic.LoadUint64(&delivered))
	assert.Equal(t, 999, store.Len("t1"))
}

func TestWriterSwapCallback(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	var old, current uint64
	w := newTestWriter(t, store, nil, WithCallback(CallbackFuncs{
		Completed: func(Result) { atomic.AddUint64(&old, 1) },
	}))

	for i := 0; i < 1100; i++ {
		_, err := w.AddRowChange(ctx, newTestPut("t1", strconv.Itoa(i), 8))
		require.NoError(t, err)
	}
	require.NoError(t, w.Flush())
	require.Eventually(t, func() bool {
		return atomic.LoadUint64(&old) == 1100
	}, time.Second*10, time.Millisecond*10)

	w.SetCallback(CallbackFuncs{
		Completed: func(Result) { atomic.AddUint64(&current, 1) },
	})
	for i := 0; i < 1200; i++ {
		_, err := w.AddRowChange(ctx, newTestPut("t2", strconv.Itoa(i), 8))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	assert.Equal(t, uint64(1100), atomic.LoadUint64(&old))
	assert.Equal(t, uint64(1200), atomic.LoadUint64(&current))
}

func TestWriterOrderingWithinKey(t *testing.T) {
	for _, mode := range []config.WriteMode{config.Parallel, config.Sequential} {
		t.Run(string(mode), func(t *testing.T) {
			store := newTestStore(mem.WithLatency(time.Millisecond))
			testWriterOrdering(t, store, 10, 50, func(c *config.Config) {
				c.MaxBatchRows = 7
				c.WriteMode = mode
			})
		})
	}
}

func TestWriterOrderingWithManyBatchesInFlight(t *testing.T) {
	store := newTestStore(mem.WithLatency(time.Millisecond))
	testWriterOrdering(t, store, 1, 2000, func(c *config.Config) {
		c.BucketCount = 1
		c.MaxBatchRows = 1
	})
}

// testWriterOrdering writes versions of every key, then checks the versions
// of a key reached the store in order and the last one is stored
func testWriterOrdering(t *testing.T, store *mem.Store, keys, versions int, adjust func(*config.Config)) {
	ctx := context.Background()
	w := newTestWriter(t, store, adjust)

	for v := 0; v < versions; v++ {
		for k := 0; k < keys; k++ {
			_, err := w.AddRowChange(ctx, row.NewPut("t1", newTestKey(fmt.Sprintf("p%d", k), "1"),
				row.NewColumn("seq", []byte(strconv.Itoa(v)))))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Flush())

	last := make(map[string]int)
	for _, issue := range store.Issues() {
		require.NotNil(t, issue.Change)
		seq, err := strconv.Atoi(string(issue.Change.Columns[0].Value))
		require.NoError(t, err)
		id := issue.Key.String()
		if prev, ok := last[id]; ok {
			assert.True(t, seq > prev, "key %s: %d issued after %d", id, seq, prev)
		}
		last[id] = seq
	}
	assert.Equal(t, keys, len(last))

	for k := 0; k < keys; k++ {
		r, ok := store.Get("t1", newTestKey(fmt.Sprintf("p%d", k), "1"))
		require.True(t, ok)
		assert.Equal(t, []byte(strconv.Itoa(versions-1)), r.Columns[0].Value)
	}
	require.NoError(t, w.Close())
}

func TestWriterBatchLimits(t *testing.T) {
	ctx := context.Background()
	maxRows, maxBytes := 10, 200
	var violations uint64
	store := newTestStore(mem.WithBatchHook(func(req *transport.Request) error {
		bytes := 0
		for _, tb := range req.Tables {
			for _, c := range tb.Changes {
				bytes += c.Size()
			}
		}
		if req.RowCount() > maxRows || bytes > maxBytes {
			atomic.AddUint64(&violations, 1)
		}
		return nil
	}))
	w := newTestWriter(t, store, func(c *config.Config) {
		c.MaxBatchRows = maxRows
		c.MaxBatchBytes = typeutil.ByteSize(maxBytes)
	})

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < 1000; i++ {
		table := "t1"
		if i%3 == 0 {
			table = "t2"
		}
		c := row.NewPut(table, newTestKey(fmt.Sprintf("p%d", i%7), strconv.Itoa(i)),
			row.NewColumn("v", make([]byte, 1+rnd.Intn(50))))
		_, err := w.AddRowChange(ctx, c)
		require.NoError(t, err)
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, uint64(0), atomic.LoadUint64(&violations))
	assert.Equal(t, uint64(1000), w.Statistics().TotalSucceededRows)
	require.NoError(t, w.Close())
}

func TestWriterFlushIsBarrier(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(mem.WithLatency(time.Millisecond * 5))
	w := newTestWriter(t, store, func(c *config.Config) {
		c.MaxBatchRows = 16
		c.Concurrency = 4
	})

	futures := make([]*Future, 0, 500)
	for i := 0; i < 500; i++ {
		f, err := w.AddRowChange(ctx, newTestPut("t1", strconv.Itoa(i), 8))
		require.NoError(t, err)
		futures = append(futures, f)
	}
	require.NoError(t, w.Flush())
	for _, f := range futures {
		assertDone(t, f)
	}
	require.NoError(t, w.Close())
}

func TestWriterCloseTwice(t *testing.T) {
	ctx := context.Background()
	w := newTestWriter(t, newTestStore(), nil)
	require.NoError(t, w.Close())
	assert.Equal(t, ErrClosed, w.Close())
	assert.Equal(t, ErrClosed, w.Flush())

	f, err := w.AddRowChange(ctx, newTestPut("t1", "1", 8))
	assert.Equal(t, ErrClosed, err)
	assertDone(t, f)
	assert.Equal(t, ErrClosed, f.GetError(ctx))

	_, err = w.TryAddRowChange(newTestPut("t1", "1", 8))
	assert.Equal(t, ErrClosed, err)
}

func TestWriterOperationTooLarge(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newTestWriter(t, store, func(c *config.Config) {
		c.MaxBatchBytes = typeutil.ByteSize(100)
	})

	large, err := w.AddRowChange(ctx, newTestPut("t1", "1", 200))
	require.NoError(t, err)
	small, err := w.AddRowChange(ctx, newTestPut("t1", "2", 8))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	assert.True(t, errors.Is(large.GetError(ctx), ErrOperationTooLarge))
	assert.NoError(t, small.GetError(ctx))
	assert.Equal(t, uint64(1), store.Rows())
	assert.Equal(t, uint64(1), w.Statistics().TotalRejectedRows)
	require.NoError(t, w.Close())
}

func TestWriterRejectInvalidRowChange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	var failed uint64
	w := newTestWriter(t, store, func(c *config.Config) {
		c.Validator.MaxColumns = 2
	}, WithCallback(CallbackFuncs{
		Failed: func(r Result) {
			if errors.Is(r.Err, ErrInvalidRowChange) {
				atomic.AddUint64(&failed, 1)
			}
		},
	}))

	f, err := w.AddRowChanges(ctx, []*row.Change{
		row.NewPut("t1", newTestKey("p", "1"),
			row.NewColumn("a", nil), row.NewColumn("b", nil), row.NewColumn("c", nil)),
		nil,
		newTestPut("t1", "2", 8),
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	results, err := f.Results(ctx)
	require.NoError(t, err)
	assert.True(t, errors.Is(results[0].Err, ErrInvalidRowChange))
	assert.True(t, errors.Is(results[1].Err, ErrInvalidRowChange))
	assert.NoError(t, results[2].Err)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&failed))
	assert.Equal(t, uint64(1), store.Rows())
}

func TestWriterEmptySubmission(t *testing.T) {
	w := newTestWriter(t, newTestStore(), nil)
	f, err := w.AddRowChanges(context.Background(), nil)
	require.NoError(t, err)
	assertDone(t, f)
	require.NoError(t, w.Close())
}

func TestWriterFlushTimer(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newTestWriter(t, store, func(c *config.Config) {
		c.FlushInterval = typeutil.NewDuration(time.Millisecond * 10)
	})

	f, err := w.AddRowChange(ctx, newTestPut("t1", "1", 8))
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()
	assert.NoError(t, f.GetError(waitCtx))
	require.NoError(t, w.Close())
}

func TestWriterRateLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	w := newTestWriter(t, store, func(c *config.Config) {
		c.MaxBatchRows = 10
		c.Limit.RowsPerSecond = 100000
		c.Limit.BytesPerSecond = typeutil.ByteSize(10 * 1024 * 1024)
	})
	for i := 0; i < 100; i++ {
		_, err := w.AddRowChange(ctx, newTestPut("t1", strconv.Itoa(i), 8))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	assert.Equal(t, 100, store.Len("t1"))
}

func TestNewWriterWithInvalidConfig(t *testing.T) {
	_, err := NewWriter(newTestConfig(func(c *config.Config) {
		c.MaxBatchRows = -1
	}), newTestStore())
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestWriterAddAfterCloseFailsThroughCallback(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	var failed uint64
	w := newTestWriter(t, store, nil, WithCallback(CallbackFuncs{
		Failed: func(r Result) {
			if errors.Is(r.Err, ErrClosed) {
				atomic.AddUint64(&failed, 1)
			}
		},
	}))
	require.NoError(t, w.Close())

	f, err := w.AddRowChanges(ctx, newTestChanges(5))
	assert.True(t, errors.Is(err, ErrClosed))
	assertDone(t, f)
	results, err := f.Results(ctx)
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, errors.Is(r.Err, ErrClosed))
	}

	assert.Equal(t, uint64(5), atomic.LoadUint64(&failed))
	stats := w.Statistics()
	assert.Equal(t, uint64(5), stats.TotalRejectedRows)
	assert.Equal(t, uint64(5), stats.TotalFailedRows)
	assert.Equal(t, 0, store.Len("t1"))
}

func TestClosedBucketRejectsOperation(t *testing.T) {
	store := newTestStore()
	w := newTestWriter(t, store, func(c *config.Config) {
		c.BucketCount = 2
	})
	for _, b := range w.e.buckets {
		assert.Equal(t, running, b.getState())
	}
	require.NoError(t, w.Close())

	for _, b := range w.e.buckets {
		assert.Equal(t, closed, b.getState())
		op := newWriteOperation(newTestPut("t1", "1", 8), newGroup(1))
		assert.Equal(t, ErrClosed, b.tryAdd(op))
	}
	assert.Equal(t, 0, store.Len("t1"))
}
