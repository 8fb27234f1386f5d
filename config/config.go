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

package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubebatch/metric"
	"github.com/matrixorigin/cubebatch/util/typeutil"
)

var (
	kb = 1024
	mb = 1024 * kb

	defaultWriterMaxBatchRows = 200
	defaultReaderMaxBatchRows = 100
	defaultMaxBatchBytes      = 4 * mb
	defaultConcurrency        = 10
	defaultBucketCount        = 3
	defaultQueueCapacity      = 1024
	defaultCallbackWorkers    = 4
	defaultFlushInterval      = time.Second * 10
	defaultLogInterval        = time.Second * 10
	defaultMaxColumns         = 128
	defaultMaxPKColumnBytes   = kb
	defaultMaxColumnBytes     = 2 * mb
	defaultWriteMode          = Parallel
	defaultDispatchMode       = HashPartitionKey
)

var (
	// ErrInvalidConfig the config has an invalid value
	ErrInvalidConfig = errors.New("invalid config")
)

// WriteMode how batches of the same bucket are sent
type WriteMode string

const (
	// Parallel up to Concurrency batches of a bucket are in flight. Batches are
	// still issued in cut order.
	Parallel WriteMode = "parallel"
	// Sequential one batch of a bucket is in flight, the next batch is issued after
	// the previous one has results
	Sequential WriteMode = "sequential"
)

// DispatchMode how an operation is mapped to a bucket
type DispatchMode string

const (
	// HashPartitionKey hash the first primary key column
	HashPartitionKey DispatchMode = "hash-partition-key"
	// HashPrimaryKey hash the whole primary key
	HashPrimaryKey DispatchMode = "hash-primary-key"
	// RoundRobin rotate buckets, no ordering for the same key
	RoundRobin DispatchMode = "round-robin"
)

// Config engine config, read-only after the engine is created
type Config struct {
	// MaxBatchRows max rows in a batch request
	MaxBatchRows int `toml:"max-batch-rows"`
	// MaxBatchBytes max bytes of rows in a batch request
	MaxBatchBytes typeutil.ByteSize `toml:"max-batch-bytes"`
	// Concurrency max inflight batch requests per bucket
	Concurrency int `toml:"concurrency"`
	// BucketCount number of independent pipelines
	BucketCount int `toml:"bucket-count"`
	// QueueCapacity capacity of the event queue of each bucket
	QueueCapacity int `toml:"queue-capacity"`
	// FlushInterval max duration a buffered operation waits before it is sent
	FlushInterval typeutil.Duration `toml:"flush-interval"`
	// LogInterval interval to log the statistics, a negative value disables it
	LogInterval typeutil.Duration `toml:"log-interval"`
	// CallbackWorkers goroutines running user callbacks
	CallbackWorkers int `toml:"callback-workers"`
	// WriteMode parallel or sequential
	WriteMode WriteMode `toml:"write-mode"`
	// DispatchMode bucket dispatch mode
	DispatchMode DispatchMode `toml:"dispatch-mode"`
	// DisableDuplicatedRowInBatch if true, a change to a row already in the
	// buffered batch starts a new batch
	DisableDuplicatedRowInBatch bool `toml:"disable-duplicated-row-in-batch"`
	// Limit client side throughput limit
	Limit LimitConfig `toml:"limit"`
	// Validator row change validation
	Validator ValidatorConfig `toml:"validator"`
	// Metric metric push config
	Metric metric.Cfg `toml:"metric"`
}

// LimitConfig client side throughput limit, zero means unlimited
type LimitConfig struct {
	RowsPerSecond  int               `toml:"rows-per-second"`
	BytesPerSecond typeutil.ByteSize `toml:"bytes-per-second"`
}

// ValidatorConfig limits checked before a row change is accepted
type ValidatorConfig struct {
	MaxColumns       int               `toml:"max-columns"`
	MaxPKColumnBytes typeutil.ByteSize `toml:"max-pk-column-bytes"`
	MaxColumnBytes   typeutil.ByteSize `toml:"max-column-bytes"`
}

// Load load config from a toml file
func Load(file string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(file, cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config file %s", file)
	}
	return cfg, nil
}

// Parse parse config from toml content
func Parse(content string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.Decode(content, cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Adjust fill the zero values with the writer defaults
func (c *Config) Adjust() {
	c.adjust(defaultWriterMaxBatchRows)
}

// AdjustReader fill the zero values with the reader defaults
func (c *Config) AdjustReader() {
	c.adjust(defaultReaderMaxBatchRows)
}

func (c *Config) adjust(maxBatchRows int) {
	if c.MaxBatchRows == 0 {
		c.MaxBatchRows = maxBatchRows
	}

	if c.MaxBatchBytes == 0 {
		c.MaxBatchBytes = typeutil.ByteSize(defaultMaxBatchBytes)
	}

	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}

	if c.BucketCount == 0 {
		c.BucketCount = defaultBucketCount
	}

	if c.QueueCapacity == 0 {
		c.QueueCapacity = defaultQueueCapacity
	}

	if c.FlushInterval.Duration == 0 {
		c.FlushInterval.Duration = defaultFlushInterval
	}

	if c.LogInterval.Duration == 0 {
		c.LogInterval.Duration = defaultLogInterval
	}

	if c.CallbackWorkers == 0 {
		c.CallbackWorkers = defaultCallbackWorkers
	}

	if c.WriteMode == "" {
		c.WriteMode = defaultWriteMode
	}

	if c.DispatchMode == "" {
		c.DispatchMode = defaultDispatchMode
	}

	(&c.Validator).adjust()
}

func (c *ValidatorConfig) adjust() {
	if c.MaxColumns == 0 {
		c.MaxColumns = defaultMaxColumns
	}

	if c.MaxPKColumnBytes == 0 {
		c.MaxPKColumnBytes = typeutil.ByteSize(defaultMaxPKColumnBytes)
	}

	if c.MaxColumnBytes == 0 {
		c.MaxColumnBytes = typeutil.ByteSize(defaultMaxColumnBytes)
	}
}

// Validate returns ErrInvalidConfig if any value is out of range. Call it
// after Adjust.
func (c *Config) Validate() error {
	positives := []struct {
		name  string
		value int64
	}{
		{"max-batch-rows", int64(c.MaxBatchRows)},
		{"max-batch-bytes", int64(c.MaxBatchBytes)},
		{"concurrency", int64(c.Concurrency)},
		{"bucket-count", int64(c.BucketCount)},
		{"queue-capacity", int64(c.QueueCapacity)},
		{"flush-interval", int64(c.FlushInterval.Duration)},
		{"callback-workers", int64(c.CallbackWorkers)},
		{"validator.max-columns", int64(c.Validator.MaxColumns)},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "%s must be positive, got %d", p.name, p.value)
		}
	}

	if c.Limit.RowsPerSecond < 0 {
		return errors.Wrapf(ErrInvalidConfig, "limit.rows-per-second must not be negative, got %d",
			c.Limit.RowsPerSecond)
	}

	switch c.WriteMode {
	case Parallel, Sequential:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown write-mode %q", c.WriteMode)
	}

	switch c.DispatchMode {
	case HashPartitionKey, HashPrimaryKey, RoundRobin:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown dispatch-mode %q", c.DispatchMode)
	}
	return nil
}

// BucketConcurrency returns the semaphore size of a bucket
func (c *Config) BucketConcurrency() int {
	if c.WriteMode == Sequential {
		return 1
	}
	return c.Concurrency
}
