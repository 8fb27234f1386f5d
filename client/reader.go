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

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubebatch/config"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
)

// Reader batches primary key reads
type Reader struct {
	e *engine

	mu      sync.Mutex
	configs atomic.Value // map[string]*row.QueryConfig
}

// NewReader returns a reader. The zero values of cfg are filled with the
// reader defaults. The transport is not closed by the reader.
func NewReader(cfg config.Config, trans transport.Transport, opts ...Option) (*Reader, error) {
	cfg.AdjustReader()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	r := &Reader{e: newEngine(transport.Read, cfg, trans, o)}
	r.configs.Store(map[string]*row.QueryConfig{})
	return r, nil
}

// SetQueryConfig replaces the query config of the table. Keys added after the
// call are read with the new config, keys added before keep the old one.
func (r *Reader) SetQueryConfig(table string, cfg row.QueryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.configs.Load().(map[string]*row.QueryConfig)
	configs := make(map[string]*row.QueryConfig, len(current)+1)
	for k, v := range current {
		configs[k] = v
	}
	configs[table] = &cfg
	r.configs.Store(configs)
}

func (r *Reader) queryConfig(table string) *row.QueryConfig {
	return r.configs.Load().(map[string]*row.QueryConfig)[table]
}

// AddPrimaryKey adds a key to read, waiting if the queue is full. A key not
// found has a nil Row in its result.
func (r *Reader) AddPrimaryKey(ctx context.Context, table string, key row.PrimaryKey) (*Future, error) {
	return r.AddPrimaryKeys(ctx, table, []row.PrimaryKey{key})
}

// AddPrimaryKeys adds keys of a table sharing one future
func (r *Reader) AddPrimaryKeys(ctx context.Context, table string, keys []row.PrimaryKey) (*Future, error) {
	g := newGroup(len(keys))
	cfg := r.queryConfig(table)
	ops := make([]*Operation, 0, len(keys))
	for _, key := range keys {
		op := newReadOperation(table, key, cfg, g)
		if err := validateKey(table, key); err != nil {
			r.e.manager.reject(op, err)
			continue
		}
		ops = append(ops, op)
	}
	return newFuture(g), r.e.add(ctx, ops)
}

// TryAddPrimaryKey adds a key without waiting, returns ErrQueueFull if the
// queue of its bucket is full.
func (r *Reader) TryAddPrimaryKey(table string, key row.PrimaryKey) (*Future, error) {
	g := newGroup(1)
	op := newReadOperation(table, key, r.queryConfig(table), g)
	if err := validateKey(table, key); err != nil {
		r.e.manager.reject(op, err)
		return newFuture(g), nil
	}
	if err := r.e.tryAdd(op); err != nil {
		return nil, err
	}
	return newFuture(g), nil
}

// Flush blocks until all keys added before have results
func (r *Reader) Flush() error {
	return r.e.flush()
}

// Close flushes and releases the reader. A second close returns ErrClosed.
func (r *Reader) Close() error {
	return r.e.close()
}

// SetCallback replaces the callback. Results recorded after the call go to
// the new callback.
func (r *Reader) SetCallback(cb Callback) {
	r.e.setCallback(cb)
}

// Statistics returns the statistics of the reader
func (r *Reader) Statistics() Statistics {
	return r.e.statistics()
}

func validateKey(table string, key row.PrimaryKey) error {
	if table == "" {
		return errors.Wrap(ErrInvalidPrimaryKey, "empty table")
	}
	if len(key) == 0 {
		return errors.Wrapf(ErrInvalidPrimaryKey, "table %s: empty primary key", table)
	}
	return nil
}
