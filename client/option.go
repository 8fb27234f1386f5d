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
	"go.uber.org/zap"
)

// Option writer and reader option
type Option func(*options)

type options struct {
	logger   *zap.Logger
	callback Callback
}

// WithLogger set the logger
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithCallback set the initial callback, see SetCallback
func WithCallback(cb Callback) Option {
	return func(opts *options) {
		opts.callback = cb
	}
}
