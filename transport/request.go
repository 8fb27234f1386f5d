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

package transport

import (
	"github.com/matrixorigin/cubebatch/row"
)

// Request is a multi-table batch request
type Request struct {
	ID     []byte
	Kind   Kind
	Tables []*TableBatch
}

// RowCount returns the number of rows of all tables
func (r *Request) RowCount() int {
	n := 0
	for _, tb := range r.Tables {
		n += tb.Len()
	}
	return n
}

// TableBatch rows of a table in a batch request. Changes is used by write
// requests, Keys and Config by read requests.
type TableBatch struct {
	Table   string
	Changes []*row.Change
	Keys    []row.PrimaryKey
	Config  *row.QueryConfig
}

// Len returns the number of rows
func (tb *TableBatch) Len() int {
	return len(tb.Changes) + len(tb.Keys)
}

// Response response of a batch request
type Response struct {
	Tables []TableResult
}

// Matches returns true if the response has a result for every row of the
// request, in the same shape.
func (r *Response) Matches(req *Request) bool {
	if r == nil || len(r.Tables) != len(req.Tables) {
		return false
	}
	for i, tb := range req.Tables {
		if r.Tables[i].Table != tb.Table ||
			len(r.Tables[i].Rows) != tb.Len() {
			return false
		}
	}
	return true
}

// TableResult results of a table, in request order
type TableResult struct {
	Table string
	Rows  []RowResult
}

// RowResult result of a row. Row is the row read, nil for writes and for keys
// not found.
type RowResult struct {
	Row *row.Row
	Err error
}

// SingleRequest a single row request, used when a batch failed as a whole
type SingleRequest struct {
	Kind   Kind
	Table  string
	Change *row.Change
	Key    row.PrimaryKey
	Config *row.QueryConfig
}

// Size returns the bytes accounted for the request
func (r *SingleRequest) Size() int {
	if r.Change != nil {
		return r.Change.Size()
	}
	return r.Key.Size()
}
