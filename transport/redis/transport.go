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

// Package redis implements transport.Transport on redis. Every row is a hash,
// the fields are the columns. A batch request is sent as one pipeline.
//
// Redis keeps no column versions, so the column timestamps are dropped on
// write, and MaxVersions and TimeRange of a query are ignored.
package redis

import (
	"context"
	"encoding/hex"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubebatch/components/log"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Option transport option
type Option func(*Transport)

// WithLogger set the logger
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithKeyPrefix set the prefix of all row keys
func WithKeyPrefix(prefix string) Option {
	return func(t *Transport) {
		t.prefix = prefix
	}
}

// Transport redis transport
type Transport struct {
	logger *zap.Logger
	prefix string
	cli    redis.UniversalClient
}

var _ transport.Transport = (*Transport)(nil)

// NewTransport returns a transport on the given client. The client is closed
// with the transport.
func NewTransport(cli redis.UniversalClient, opts ...Option) *Transport {
	t := &Transport{cli: cli}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = log.Adjust(t.logger).Named("redis-transport")
	return t
}

// Dial returns a transport connected to the redis at addr
func Dial(addr string, opts ...Option) *Transport {
	return NewTransport(redis.NewClient(&redis.Options{Addr: addr}), opts...)
}

// RowKey returns the redis key of the row. The encoded primary key is a hash
// tag, so all columns of a row stay in one cluster slot.
func RowKey(prefix, table string, key row.PrimaryKey) string {
	return prefix + table + ":{" + hex.EncodeToString(key.Encode()) + "}"
}

// rowCmds commands queued for a row
type rowCmds struct {
	key  row.PrimaryKey
	cfg  *row.QueryConfig
	cmds []redis.Cmder
	read *redis.MapStringStringCmd
}

// SendBatch implements transport.Transport. The pipeline is executed before
// SendBatch returns, so a later request never overtakes it.
func (t *Transport) SendBatch(ctx context.Context, req *transport.Request, handler transport.BatchHandler) {
	handler(t.execBatch(ctx, req))
}

func (t *Transport) execBatch(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	pipe := t.cli.Pipeline()
	tables := make([][]rowCmds, 0, len(req.Tables))
	for _, tb := range req.Tables {
		rows := make([]rowCmds, 0, tb.Len())
		for _, c := range tb.Changes {
			rows = append(rows, t.queueWrite(ctx, pipe, tb.Table, c))
		}
		for _, key := range tb.Keys {
			rows = append(rows, t.queueRead(ctx, pipe, tb.Table, key, tb.Config))
		}
		tables = append(tables, rows)
	}

	if _, err := pipe.Exec(ctx); err != nil && !isRowError(err) {
		t.logger.Error("failed to exec pipeline",
			log.RequestIDField(req.ID),
			log.RowCountField(req.RowCount()),
			zap.Error(err))
		return nil, errors.Wrap(err, "exec pipeline")
	}

	resp := &transport.Response{Tables: make([]transport.TableResult, 0, len(req.Tables))}
	for i, tb := range req.Tables {
		result := transport.TableResult{Table: tb.Table, Rows: make([]transport.RowResult, 0, len(tables[i]))}
		for _, rc := range tables[i] {
			r, err := rc.result()
			result.Rows = append(result.Rows, transport.RowResult{Row: r, Err: err})
		}
		resp.Tables = append(resp.Tables, result)
	}
	return resp, nil
}

// SendSingle implements transport.Transport
func (t *Transport) SendSingle(ctx context.Context, req *transport.SingleRequest, handler transport.SingleHandler) {
	handler(t.execSingle(ctx, req))
}

func (t *Transport) execSingle(ctx context.Context, req *transport.SingleRequest) (*row.Row, error) {
	pipe := t.cli.Pipeline()
	var rc rowCmds
	switch req.Kind {
	case transport.Write:
		rc = t.queueWrite(ctx, pipe, req.Table, req.Change)
	case transport.Read:
		rc = t.queueRead(ctx, pipe, req.Table, req.Key, req.Config)
	default:
		return nil, errors.Newf("unknown request kind %d", req.Kind)
	}

	if _, err := pipe.Exec(ctx); err != nil && !isRowError(err) {
		return nil, errors.Wrap(err, "exec pipeline")
	}
	return rc.result()
}

// Close implements transport.Transport
func (t *Transport) Close() error {
	return t.cli.Close()
}

func (t *Transport) queueWrite(ctx context.Context, pipe redis.Pipeliner, table string, c *row.Change) rowCmds {
	key := RowKey(t.prefix, table, c.Key)
	rc := rowCmds{key: c.Key}
	switch c.Type {
	case row.Put:
		rc.cmds = append(rc.cmds, pipe.Del(ctx, key))
		if len(c.Columns) > 0 {
			rc.cmds = append(rc.cmds, pipe.HSet(ctx, key, columnValues(c.Columns)...))
		}
	case row.Update:
		if len(c.DeleteColumns) > 0 {
			rc.cmds = append(rc.cmds, pipe.HDel(ctx, key, c.DeleteColumns...))
		}
		if len(c.Columns) > 0 {
			rc.cmds = append(rc.cmds, pipe.HSet(ctx, key, columnValues(c.Columns)...))
		}
	case row.Delete:
		rc.cmds = append(rc.cmds, pipe.Del(ctx, key))
	}
	return rc
}

func (t *Transport) queueRead(ctx context.Context, pipe redis.Pipeliner, table string,
	key row.PrimaryKey, cfg *row.QueryConfig) rowCmds {
	read := pipe.HGetAll(ctx, RowKey(t.prefix, table, key))
	return rowCmds{key: key, cfg: cfg, read: read, cmds: []redis.Cmder{read}}
}

func (rc rowCmds) result() (*row.Row, error) {
	for _, cmd := range rc.cmds {
		if err := cmd.Err(); err != nil {
			return nil, err
		}
	}
	if rc.read == nil {
		return nil, nil
	}

	fields := rc.read.Val()
	if len(fields) == 0 {
		return nil, nil
	}

	r := &row.Row{Key: rc.key}
	for name, value := range fields {
		if rc.cfg.Wants(name) {
			r.Columns = append(r.Columns, row.NewColumn(name, []byte(value)))
		}
	}
	sort.Slice(r.Columns, func(i, j int) bool {
		return r.Columns[i].Name < r.Columns[j].Name
	})
	return r, nil
}

func columnValues(columns []row.Column) []interface{} {
	values := make([]interface{}, 0, len(columns)*2)
	for _, c := range columns {
		values = append(values, c.Name, c.Value)
	}
	return values
}

// isRowError returns true if the error is a reply of a command, e.g. WRONGTYPE,
// rather than a failure of the connection.
func isRowError(err error) bool {
	var redisErr redis.Error
	return errors.As(err, &redisErr)
}
