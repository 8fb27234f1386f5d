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

// Package mem is an in-memory table store implementing transport.Transport.
// It is used by tests and benchmarks, and can inject batch-level failures to
// exercise the split retry of the client.
package mem

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
	"github.com/matrixorigin/cubebatch/components/log"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
	"github.com/matrixorigin/cubebatch/util/stop"
	"go.uber.org/zap"
)

const (
	btreeDegree = 32
)

// BatchHook is called before a batch is applied. A non-nil error fails the
// whole batch.
type BatchHook func(req *transport.Request) error

// Option store option
type Option func(*options)

type options struct {
	logger      *zap.Logger
	maxRowBytes int
	latency     time.Duration
	hook        BatchHook
}

// WithLogger set the logger
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithMaxRowBytes rows larger than max fail the batch carrying them, and fail
// alone when sent as a single row request.
func WithMaxRowBytes(max int) Option {
	return func(opts *options) {
		opts.maxRowBytes = max
	}
}

// WithLatency the response of every request is delayed by latency, the
// request itself is applied when it is issued
func WithLatency(latency time.Duration) Option {
	return func(opts *options) {
		opts.latency = latency
	}
}

// WithBatchHook set the batch hook
func WithBatchHook(hook BatchHook) Option {
	return func(opts *options) {
		opts.hook = hook
	}
}

// Issue a row received by the store, in arriving order
type Issue struct {
	Table string
	Key   row.PrimaryKey
	// Change is nil for reads
	Change *row.Change
	Single bool
}

type item struct {
	key []byte
	row *row.Row
}

// Less returns true if the item key is less than the other.
func (i *item) Less(other btree.Item) bool {
	return bytes.Compare(i.key, other.(*item).key) < 0
}

// Store in-memory table store
type Store struct {
	opts   *options
	runner *stop.Stopper

	atomic struct {
		batchRequests  uint64
		singleRequests uint64
		rows           uint64
		closed         uint32
	}

	mu struct {
		sync.RWMutex
		tables map[string]*btree.BTree
	}

	issueMu struct {
		sync.Mutex
		issues []Issue
	}
}

var _ transport.Transport = (*Store)(nil)

// NewStore returns an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{opts: &options{}}
	for _, opt := range opts {
		opt(s.opts)
	}
	s.opts.logger = log.Adjust(s.opts.logger).Named("mem-store")
	s.runner = stop.NewStopper("mem-store", stop.WithLogger(s.opts.logger))
	s.mu.tables = make(map[string]*btree.BTree)
	return s
}

// CreateTable create a table if it does not exist
func (s *Store) CreateTable(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		if _, ok := s.mu.tables[name]; !ok {
			s.mu.tables[name] = btree.New(btreeDegree)
		}
	}
}

// SendBatch implements transport.Transport. The batch is applied before
// SendBatch returns, the response is delivered after the latency.
func (s *Store) SendBatch(ctx context.Context, req *transport.Request, handler transport.BatchHandler) {
	if err := s.before(ctx); err != nil {
		handler(nil, err)
		return
	}

	resp, err := s.handleBatch(req)
	s.respond(ctx, "batch-response",
		func() { handler(resp, err) },
		func(err error) { handler(nil, err) })
}

func (s *Store) handleBatch(req *transport.Request) (*transport.Response, error) {
	atomic.AddUint64(&s.atomic.batchRequests, 1)
	atomic.AddUint64(&s.atomic.rows, uint64(req.RowCount()))
	s.recordBatch(req)

	if s.opts.hook != nil {
		if err := s.opts.hook(req); err != nil {
			return nil, err
		}
	}

	for _, tb := range req.Tables {
		for _, c := range tb.Changes {
			if err := s.checkSize(c.Size()); err != nil {
				return nil, errors.Wrapf(err, "decode batch request, table %s, key %s", tb.Table, c.Key)
			}
		}
		for _, key := range tb.Keys {
			if err := s.checkSize(key.Size()); err != nil {
				return nil, errors.Wrapf(err, "decode batch request, table %s, key %s", tb.Table, key)
			}
		}
	}

	resp := &transport.Response{Tables: make([]transport.TableResult, 0, len(req.Tables))}
	for _, tb := range req.Tables {
		result := transport.TableResult{Table: tb.Table, Rows: make([]transport.RowResult, 0, tb.Len())}
		switch req.Kind {
		case transport.Write:
			for _, c := range tb.Changes {
				result.Rows = append(result.Rows, transport.RowResult{Err: s.apply(tb.Table, c)})
			}
		case transport.Read:
			for _, key := range tb.Keys {
				r, err := s.get(tb.Table, key, tb.Config)
				result.Rows = append(result.Rows, transport.RowResult{Row: r, Err: err})
			}
		}
		resp.Tables = append(resp.Tables, result)
	}
	return resp, nil
}

// SendSingle implements transport.Transport
func (s *Store) SendSingle(ctx context.Context, req *transport.SingleRequest, handler transport.SingleHandler) {
	if err := s.before(ctx); err != nil {
		handler(nil, err)
		return
	}

	value, err := s.handleSingle(req)
	s.respond(ctx, "single-response",
		func() { handler(value, err) },
		func(err error) { handler(nil, err) })
}

func (s *Store) handleSingle(req *transport.SingleRequest) (*row.Row, error) {
	atomic.AddUint64(&s.atomic.singleRequests, 1)
	atomic.AddUint64(&s.atomic.rows, 1)
	key := req.Key
	if req.Change != nil {
		key = req.Change.Key
	}
	s.record(Issue{Table: req.Table, Key: key, Change: req.Change, Single: true})

	if err := s.checkSize(req.Size()); err != nil {
		return nil, err
	}

	switch req.Kind {
	case transport.Write:
		return nil, s.apply(req.Table, req.Change)
	case transport.Read:
		return s.get(req.Table, req.Key, req.Config)
	}
	return nil, errors.Newf("unknown request kind %d", req.Kind)
}

// respond calls ok after the latency, or fail if ctx is done or the store is
// closed first
func (s *Store) respond(ctx context.Context, name string, ok func(), fail func(error)) {
	if s.opts.latency <= 0 {
		ok()
		return
	}

	if err := s.runner.RunNamedTask(ctx, name, func(ctx context.Context) {
		timer := time.NewTimer(s.opts.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			if atomic.LoadUint32(&s.atomic.closed) == 1 {
				fail(transport.ErrClosed)
				return
			}
			fail(ctx.Err())
		case <-timer.C:
			ok()
		}
	}); err != nil {
		fail(transport.ErrClosed)
	}
}

// Close implements transport.Transport, the pending responses fail with
// transport.ErrClosed
func (s *Store) Close() error {
	if atomic.CompareAndSwapUint32(&s.atomic.closed, 0, 1) {
		s.runner.Stop()
	}
	return nil
}

// Get returns the row of the key
func (s *Store) Get(table string, key row.PrimaryKey) (*row.Row, bool) {
	r, err := s.get(table, key, nil)
	return r, err == nil && r != nil
}

// Len returns the rows count of the table
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if tree, ok := s.mu.tables[table]; ok {
		return tree.Len()
	}
	return 0
}

// BatchRequests returns the number of batch requests received
func (s *Store) BatchRequests() uint64 {
	return atomic.LoadUint64(&s.atomic.batchRequests)
}

// SingleRequests returns the number of single row requests received
func (s *Store) SingleRequests() uint64 {
	return atomic.LoadUint64(&s.atomic.singleRequests)
}

// Rows returns the number of rows received
func (s *Store) Rows() uint64 {
	return atomic.LoadUint64(&s.atomic.rows)
}

// Issues returns the rows received in arriving order
func (s *Store) Issues() []Issue {
	s.issueMu.Lock()
	defer s.issueMu.Unlock()

	issues := make([]Issue, len(s.issueMu.issues))
	copy(issues, s.issueMu.issues)
	return issues
}

func (s *Store) before(ctx context.Context) error {
	if atomic.LoadUint32(&s.atomic.closed) == 1 {
		return transport.ErrClosed
	}
	return ctx.Err()
}

func (s *Store) checkSize(size int) error {
	if s.opts.maxRowBytes > 0 && size > s.opts.maxRowBytes {
		return errors.Wrapf(transport.ErrRowTooLarge, "%d bytes, max %d", size, s.opts.maxRowBytes)
	}
	return nil
}

func (s *Store) recordBatch(req *transport.Request) {
	s.issueMu.Lock()
	defer s.issueMu.Unlock()

	for _, tb := range req.Tables {
		for _, c := range tb.Changes {
			s.issueMu.issues = append(s.issueMu.issues, Issue{Table: tb.Table, Key: c.Key, Change: c})
		}
		for _, key := range tb.Keys {
			s.issueMu.issues = append(s.issueMu.issues, Issue{Table: tb.Table, Key: key})
		}
	}
}

func (s *Store) record(issue Issue) {
	s.issueMu.Lock()
	defer s.issueMu.Unlock()
	s.issueMu.issues = append(s.issueMu.issues, issue)
}

func (s *Store) apply(table string, c *row.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, ok := s.mu.tables[table]
	if !ok {
		return errors.Wrapf(transport.ErrTableNotExist, "table %s", table)
	}

	key := c.Key.Encode()
	switch c.Type {
	case row.Put, row.Update:
		var columns []row.Column
		if v := tree.Get(&item{key: key}); v != nil {
			columns = v.(*item).row.Columns
		}
		tree.ReplaceOrInsert(&item{
			key: key,
			row: &row.Row{Key: c.Key, Columns: c.Merge(columns)},
		})
	case row.Delete:
		tree.Delete(&item{key: key})
	default:
		return errors.Newf("unknown change type %d", c.Type)
	}

	if ce := s.opts.logger.Check(zap.DebugLevel, "row applied"); ce != nil {
		ce.Write(log.TableField(table), log.KeyField(c.Key), zap.Stringer("type", c.Type))
	}
	return nil
}

func (s *Store) get(table string, key row.PrimaryKey, cfg *row.QueryConfig) (*row.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.mu.tables[table]
	if !ok {
		return nil, errors.Wrapf(transport.ErrTableNotExist, "table %s", table)
	}

	v := tree.Get(&item{key: key.Encode()})
	if v == nil {
		return nil, nil
	}

	return cfg.Project(v.(*item).row), nil
}
