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
	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubebatch/config"
)

var (
	// ErrClosed the writer or reader is closed, or is closing
	ErrClosed = errors.New("already closed")
	// ErrQueueFull the queue of the bucket is full, try again
	ErrQueueFull = errors.New("queue is full, try again")
	// ErrOperationTooLarge the operation exceeds the batch limits on its own, it
	// is never sent
	ErrOperationTooLarge = errors.New("operation too large for a single batch")
	// ErrResponseMismatch the batch response does not have one result per row,
	// the batch is treated as failed
	ErrResponseMismatch = errors.New("batch response does not match the request")
	// ErrInvalidRowChange the row change is rejected by the validator
	ErrInvalidRowChange = errors.New("invalid row change")
	// ErrInvalidPrimaryKey the primary key of a read is empty
	ErrInvalidPrimaryKey = errors.New("invalid primary key")
	// ErrInvalidConfig invalid config
	ErrInvalidConfig = config.ErrInvalidConfig
)
