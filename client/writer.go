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

	"github.com/matrixorigin/cubebatch/config"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
)

// Writer batches row changes. The results are returned by the futures and
// the callback.
type Writer struct {
	e         *engine
	validator validator
}

// NewWriter returns a writer. The zero values of cfg are filled with the
// writer defaults. The transport is not closed by the writer.
func NewWriter(cfg config.Config, trans transport.Transport, opts ...Option) (*Writer, error) {
	cfg.Adjust()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &Writer{
		e:         newEngine(transport.Write, cfg, trans, o),
		validator: newValidator(cfg.Validator),
	}, nil
}

// AddRowChange adds a row change, waiting if the queue is full. An invalid
// change fails through the future. The returned error is ErrClosed or the
// context error, the future has failed in that case.
func (w *Writer) AddRowChange(ctx context.Context, change *row.Change) (*Future, error) {
	return w.AddRowChanges(ctx, []*row.Change{change})
}

// AddRowChanges adds row changes sharing one future
func (w *Writer) AddRowChanges(ctx context.Context, changes []*row.Change) (*Future, error) {
	g := newGroup(len(changes))
	ops := make([]*Operation, 0, len(changes))
	for _, c := range changes {
		op := newWriteOperation(c, g)
		if err := w.validator.validate(c); err != nil {
			w.e.manager.reject(op, err)
			continue
		}
		ops = append(ops, op)
	}
	return newFuture(g), w.e.add(ctx, ops)
}

// TryAddRowChange adds a row change without waiting, returns ErrQueueFull if
// the queue of its bucket is full.
func (w *Writer) TryAddRowChange(change *row.Change) (*Future, error) {
	g := newGroup(1)
	op := newWriteOperation(change, g)
	if err := w.validator.validate(change); err != nil {
		w.e.manager.reject(op, err)
		return newFuture(g), nil
	}
	if err := w.e.tryAdd(op); err != nil {
		return nil, err
	}
	return newFuture(g), nil
}

// Flush blocks until all row changes added before have results
func (w *Writer) Flush() error {
	return w.e.flush()
}

// Close flushes and releases the writer. All callbacks are called before it
// returns. A second close returns ErrClosed.
func (w *Writer) Close() error {
	return w.e.close()
}

// SetCallback replaces the callback. Results recorded after the call go to
// the new callback.
func (w *Writer) SetCallback(cb Callback) {
	w.e.setCallback(cb)
}

// Statistics returns the statistics of the writer
func (w *Writer) Statistics() Statistics {
	return w.e.statistics()
}
