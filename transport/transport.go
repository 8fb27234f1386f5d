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
	"context"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubebatch/row"
)

var (
	// ErrTableNotExist the table of the row does not exist
	ErrTableNotExist = errors.New("table not exist")
	// ErrRowTooLarge the row exceeds the limit of the store
	ErrRowTooLarge = errors.New("row too large")
	// ErrClosed the transport is closed
	ErrClosed = errors.New("transport closed")
)

//go:generate mockgen -source=transport.go -destination=mock/mock_transport.go -package=mock

// BatchHandler receives the result of a batch request. A non-nil error means
// the whole batch failed, e.g. the store rejected the request while decoding
// it. Otherwise the response has one TableResult per TableBatch and one
// RowResult per row, in request order, and per-row failures are reported in
// RowResult.Err.
type BatchHandler func(resp *Response, err error)

// SingleHandler receives the result of a single row request, the error is the
// failure of the row.
type SingleHandler func(value *row.Row, err error)

// Transport is the asynchronous batched RPC surface of the remote tabular
// store.
//
// A request is issued when the send method returns: requests sent one after
// another by the same goroutine reach the store in that order, even when
// their results arrive out of order. The handler is called exactly once,
// either before the send method returns or later on another goroutine, and
// must not block.
type Transport interface {
	// SendBatch send a multi-table batch request
	SendBatch(ctx context.Context, req *Request, handler BatchHandler)
	// SendSingle send a single row request
	SendSingle(ctx context.Context, req *SingleRequest, handler SingleHandler)
	// Close close the transport
	Close() error
}

// SendBatchSync sends the batch request and waits for its result
func SendBatchSync(ctx context.Context, t Transport, req *Request) (*Response, error) {
	var resp *Response
	var err error
	doneC := make(chan struct{})
	t.SendBatch(ctx, req, func(v *Response, e error) {
		resp, err = v, e
		close(doneC)
	})
	<-doneC
	return resp, err
}

// SendSingleSync sends the single row request and waits for its result
func SendSingleSync(ctx context.Context, t Transport, req *SingleRequest) (*row.Row, error) {
	var value *row.Row
	var err error
	doneC := make(chan struct{})
	t.SendSingle(ctx, req, func(v *row.Row, e error) {
		value, err = v, e
		close(doneC)
	})
	<-doneC
	return value, err
}

// Kind request kind
type Kind int

const (
	// Write batch of row changes
	Write Kind = iota
	// Read batch of primary keys
	Read
)

func (k Kind) String() string {
	switch k {
	case Write:
		return "write"
	case Read:
		return "read"
	}
	return "unknown"
}
