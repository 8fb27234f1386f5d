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
	"github.com/fagongzi/util/uuid"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
)

// subBatch operations of a table in a batch, in append order
type subBatch struct {
	table string
	cfg   *row.QueryConfig
	ops   []*Operation
}

// batch is a cut batch buffer. The operations of each sub batch are in the
// same order as the rows of the request, so the response can be routed back
// by position.
type batch struct {
	id     []byte
	kind   transport.Kind
	bucket int
	tables []*subBatch
	rows   int
	bytes  int
}

func (b *batch) request() *transport.Request {
	req := &transport.Request{
		ID:     b.id,
		Kind:   b.kind,
		Tables: make([]*transport.TableBatch, 0, len(b.tables)),
	}
	for _, sb := range b.tables {
		tb := &transport.TableBatch{Table: sb.table}
		for _, op := range sb.ops {
			op.payload.appendTo(tb)
		}
		req.Tables = append(req.Tables, tb)
	}
	return req
}

func (b *batch) operations() []*Operation {
	ops := make([]*Operation, 0, b.rows)
	for _, sb := range b.tables {
		ops = append(ops, sb.ops...)
	}
	return ops
}

// batchBuffer buffers the operations of a bucket until a cut. It is only used
// by the bucket goroutine.
type batchBuffer struct {
	kind              transport.Kind
	bucket            int
	maxRows           int
	maxBytes          int
	disableDuplicated bool

	rows   int
	bytes  int
	tables []*subBatch
	index  map[string]*subBatch
	keys   map[string]struct{}
}

func newBatchBuffer(kind transport.Kind, bucket, maxRows, maxBytes int, disableDuplicated bool) *batchBuffer {
	b := &batchBuffer{
		kind:              kind,
		bucket:            bucket,
		maxRows:           maxRows,
		maxBytes:          maxBytes,
		disableDuplicated: disableDuplicated,
	}
	b.reset()
	return b
}

func (b *batchBuffer) reset() {
	b.rows = 0
	b.bytes = 0
	b.tables = nil
	b.index = make(map[string]*subBatch)
	if b.disableDuplicated {
		b.keys = make(map[string]struct{})
	}
}

func (b *batchBuffer) isEmpty() bool {
	return b.rows == 0
}

// tryAppend returns false if the operation does not fit the buffer. An
// operation that does not fit an empty buffer is too large.
func (b *batchBuffer) tryAppend(op *Operation) bool {
	size := op.size()
	if b.rows+1 > b.maxRows || b.bytes+size > b.maxBytes {
		return false
	}

	sb, ok := b.index[op.table]
	// a query config swapped after the sub batch started goes to the next batch
	if ok && sb.cfg != op.payload.queryConfig() {
		return false
	}

	var rowKey string
	if b.disableDuplicated {
		rowKey = op.table + "/" + op.rowID
		if _, ok := b.keys[rowKey]; ok {
			return false
		}
	}

	if !ok {
		sb = &subBatch{table: op.table, cfg: op.payload.queryConfig()}
		b.index[op.table] = sb
		b.tables = append(b.tables, sb)
	}
	if b.disableDuplicated {
		b.keys[rowKey] = struct{}{}
	}
	sb.ops = append(sb.ops, op)
	b.rows++
	b.bytes += size
	return true
}

// cut returns the buffered operations as a batch and resets the buffer
func (b *batchBuffer) cut() *batch {
	if b.isEmpty() {
		return nil
	}

	v := &batch{
		id:     uuid.NewV4().Bytes(),
		kind:   b.kind,
		bucket: b.bucket,
		tables: b.tables,
		rows:   b.rows,
		bytes:  b.bytes,
	}
	b.reset()
	return v
}
