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
	"github.com/fagongzi/util/hack"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
)

// payload is the body of an operation. It knows how to put itself into a batch
// and how to be sent alone when its batch failed.
type payload interface {
	size() int
	queryConfig() *row.QueryConfig
	appendTo(tb *transport.TableBatch)
	single(table string) *transport.SingleRequest
	fill(result *Result)
}

type writePayload struct {
	change *row.Change
}

func (p writePayload) size() int                     { return p.change.Size() }
func (p writePayload) queryConfig() *row.QueryConfig { return nil }

func (p writePayload) appendTo(tb *transport.TableBatch) {
	tb.Changes = append(tb.Changes, p.change)
}

func (p writePayload) single(table string) *transport.SingleRequest {
	return &transport.SingleRequest{Kind: transport.Write, Table: table, Change: p.change}
}

func (p writePayload) fill(result *Result) {
	result.Change = p.change
}

type readPayload struct {
	key row.PrimaryKey
	cfg *row.QueryConfig
}

func (p readPayload) size() int                     { return p.key.Size() }
func (p readPayload) queryConfig() *row.QueryConfig { return p.cfg }

func (p readPayload) appendTo(tb *transport.TableBatch) {
	tb.Keys = append(tb.Keys, p.key)
	tb.Config = p.cfg
}

func (p readPayload) single(table string) *transport.SingleRequest {
	return &transport.SingleRequest{Kind: transport.Read, Table: table, Key: p.key, Config: p.cfg}
}

func (p readPayload) fill(result *Result) {}

// Operation a single row operation and the place its result goes to.
// Immutable once created.
type Operation struct {
	table   string
	key     row.PrimaryKey
	rowID   string
	payload payload
	group   *Group
	slot    int
}

func newOperation(table string, key row.PrimaryKey, p payload, g *Group) *Operation {
	return &Operation{
		table:   table,
		key:     key,
		rowID:   hack.SliceToString(key.Encode()),
		payload: p,
		group:   g,
		slot:    g.allocSlot(),
	}
}

func newWriteOperation(change *row.Change, g *Group) *Operation {
	if change == nil {
		return newOperation("", nil, writePayload{}, g)
	}
	return newOperation(change.Table, change.Key, writePayload{change: change}, g)
}

func newReadOperation(table string, key row.PrimaryKey, cfg *row.QueryConfig, g *Group) *Operation {
	return newOperation(table, key, readPayload{key: key, cfg: cfg}, g)
}

// Table returns the table of the operation
func (op *Operation) Table() string {
	return op.table
}

// Key returns the primary key of the operation
func (op *Operation) Key() row.PrimaryKey {
	return op.key
}

func (op *Operation) size() int {
	return op.payload.size()
}

func (op *Operation) newResult(r *row.Row, err error) Result {
	result := Result{Table: op.table, Key: op.key, Row: r, Err: err}
	op.payload.fill(&result)
	return result
}

// Result result of an operation
type Result struct {
	Table string
	Key   row.PrimaryKey
	// Change the row change of a write
	Change *row.Change
	// Row the row of a read, nil if not found
	Row *row.Row
	Err error
}

// OK returns true if the operation succeeded
func (r Result) OK() bool {
	return r.Err == nil
}
