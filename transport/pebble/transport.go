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

// Package pebble is a local durable table store implementing
// transport.Transport on top of a pebble database. Every batch request is
// committed as one pebble batch.
package pebble

import (
	"context"
	"encoding/binary"
	"io"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	cpebble "github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/matrixorigin/cubebatch/components/log"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
	"go.uber.org/zap"
)

// Option transport option
type Option func(*options)

type options struct {
	logger *zap.Logger
	fs     vfs.FS
	sync   bool
}

// WithLogger set the logger
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithFS set the file system, vfs.NewMem() keeps the data in memory
func WithFS(fs vfs.FS) Option {
	return func(opts *options) {
		opts.fs = fs
	}
}

// WithSync if true, every write batch is synced to disk before the response
func WithSync(sync bool) Option {
	return func(opts *options) {
		opts.sync = sync
	}
}

// Transport pebble backed table store
type Transport struct {
	opts   *options
	db     *cpebble.DB
	closed uint32
}

var _ transport.Transport = (*Transport)(nil)

// NewTransport opens the pebble database in dir
func NewTransport(dir string, opts ...Option) (*Transport, error) {
	t := &Transport{opts: &options{}}
	for _, opt := range opts {
		opt(t.opts)
	}
	t.opts.logger = log.Adjust(t.opts.logger).Named("pebble")
	if t.opts.fs == nil {
		t.opts.fs = vfs.Default
	}

	db, err := cpebble.Open(dir, &cpebble.Options{
		FS:            t.opts.fs,
		EventListener: getEventListener(t.opts.logger),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble in %s", dir)
	}
	t.db = db
	return t, nil
}

// RowKey returns the pebble key of the row
func RowKey(table string, key row.PrimaryKey) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(table)))
	dst := make([]byte, 0, n+len(table)+key.Size()+len(key)*2)
	dst = append(dst, tmp[:n]...)
	dst = append(dst, table...)
	return key.AppendEncode(dst)
}

// SendBatch implements transport.Transport. The batch is committed before
// SendBatch returns.
func (t *Transport) SendBatch(ctx context.Context, req *transport.Request, handler transport.BatchHandler) {
	handler(t.handleBatch(ctx, req))
}

func (t *Transport) handleBatch(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := t.before(ctx); err != nil {
		return nil, err
	}

	resp := &transport.Response{Tables: make([]transport.TableResult, 0, len(req.Tables))}
	switch req.Kind {
	case transport.Write:
		b := t.db.NewIndexedBatch()
		defer b.Close()
		for _, tb := range req.Tables {
			result := transport.TableResult{Table: tb.Table, Rows: make([]transport.RowResult, 0, len(tb.Changes))}
			for _, c := range tb.Changes {
				result.Rows = append(result.Rows, transport.RowResult{Err: t.apply(b, tb.Table, c)})
			}
			resp.Tables = append(resp.Tables, result)
		}
		if err := b.Commit(t.writeOptions()); err != nil {
			return nil, errors.Wrapf(err, "commit batch %d rows", req.RowCount())
		}
	case transport.Read:
		for _, tb := range req.Tables {
			result := transport.TableResult{Table: tb.Table, Rows: make([]transport.RowResult, 0, len(tb.Keys))}
			for _, key := range tb.Keys {
				r, err := t.get(t.db, tb.Table, key, tb.Config)
				result.Rows = append(result.Rows, transport.RowResult{Row: r, Err: err})
			}
			resp.Tables = append(resp.Tables, result)
		}
	default:
		return nil, errors.Newf("unknown request kind %d", req.Kind)
	}
	return resp, nil
}

// SendSingle implements transport.Transport
func (t *Transport) SendSingle(ctx context.Context, req *transport.SingleRequest, handler transport.SingleHandler) {
	handler(t.handleSingle(ctx, req))
}

func (t *Transport) handleSingle(ctx context.Context, req *transport.SingleRequest) (*row.Row, error) {
	if err := t.before(ctx); err != nil {
		return nil, err
	}

	switch req.Kind {
	case transport.Write:
		b := t.db.NewIndexedBatch()
		defer b.Close()
		if err := t.apply(b, req.Table, req.Change); err != nil {
			return nil, err
		}
		return nil, b.Commit(t.writeOptions())
	case transport.Read:
		return t.get(t.db, req.Table, req.Key, req.Config)
	}
	return nil, errors.Newf("unknown request kind %d", req.Kind)
}

// Close implements transport.Transport, the database is closed
func (t *Transport) Close() error {
	if !atomic.CompareAndSwapUint32(&t.closed, 0, 1) {
		return nil
	}
	return t.db.Close()
}

func (t *Transport) before(ctx context.Context) error {
	if atomic.LoadUint32(&t.closed) == 1 {
		return transport.ErrClosed
	}
	return ctx.Err()
}

func (t *Transport) writeOptions() *cpebble.WriteOptions {
	if t.opts.sync {
		return cpebble.Sync
	}
	return cpebble.NoSync
}

// reader is implemented by both the db and an indexed batch
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func (t *Transport) apply(b *cpebble.Batch, table string, c *row.Change) error {
	if c == nil {
		return errors.New("missing row change")
	}

	key := RowKey(table, c.Key)
	if c.Type == row.Delete {
		return b.Delete(key, nil)
	}
	if c.Type != row.Put && c.Type != row.Update {
		return errors.Newf("unknown change type %d", c.Type)
	}

	var current []row.Column
	if c.Type == row.Update {
		stored, err := t.load(b, key)
		if err != nil {
			return err
		}
		current = stored
	}
	return b.Set(key, row.EncodeColumns(c.Merge(current)), nil)
}

func (t *Transport) get(r reader, table string, key row.PrimaryKey, cfg *row.QueryConfig) (*row.Row, error) {
	columns, err := t.load(r, RowKey(table, key))
	if err != nil || columns == nil {
		return nil, err
	}
	return cfg.Project(&row.Row{Key: key, Columns: columns}), nil
}

// load returns nil columns if the row does not exist
func (t *Transport) load(r reader, key []byte) ([]row.Column, error) {
	value, closer, err := r.Get(key)
	if err == cpebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	columns, err := row.DecodeColumns(value)
	if err != nil {
		t.opts.logger.Error("failed to decode row",
			zap.Binary("key", key),
			zap.Error(err))
		return nil, err
	}
	if columns == nil {
		columns = []row.Column{}
	}
	return columns, nil
}

func getEventListener(logger *zap.Logger) cpebble.EventListener {
	return cpebble.EventListener{
		BackgroundError: func(err error) {
			logger.Error("background error", zap.Error(err))
		},
		CompactionEnd: func(info cpebble.CompactionInfo) {
			logger.Info(info.String())
		},
		DiskSlow: func(info cpebble.DiskSlowInfo) {
			logger.Warn(info.String())
		},
		FlushEnd: func(info cpebble.FlushInfo) {
			logger.Debug(info.String())
		},
		WriteStallBegin: func(info cpebble.WriteStallBeginInfo) {
			logger.Warn(info.String())
		},
		WriteStallEnd: func() {
			logger.Info("write stall ended")
		},
	}
}
