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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjust(t *testing.T) {
	c := &Config{}
	c.Adjust()
	assert.NoError(t, c.Validate())
	assert.Equal(t, defaultWriterMaxBatchRows, c.MaxBatchRows)
	assert.Equal(t, defaultMaxBatchBytes, int(c.MaxBatchBytes))
	assert.Equal(t, defaultFlushInterval, c.FlushInterval.Duration)
	assert.Equal(t, Parallel, c.WriteMode)
	assert.Equal(t, defaultConcurrency, c.BucketConcurrency())

	c = &Config{}
	c.AdjustReader()
	assert.Equal(t, defaultReaderMaxBatchRows, c.MaxBatchRows)

	c = &Config{WriteMode: Sequential, Concurrency: 8}
	c.Adjust()
	assert.Equal(t, 1, c.BucketConcurrency())
}

func TestValidate(t *testing.T) {
	cases := []func(c *Config){
		func(c *Config) { c.MaxBatchRows = -1 },
		func(c *Config) { c.Concurrency = -1 },
		func(c *Config) { c.BucketCount = -2 },
		func(c *Config) { c.QueueCapacity = -1 },
		func(c *Config) { c.FlushInterval.Duration = -time.Second },
		func(c *Config) { c.Limit.RowsPerSecond = -1 },
		func(c *Config) { c.WriteMode = "fast" },
		func(c *Config) { c.DispatchMode = "random" },
	}
	for i, fn := range cases {
		c := &Config{}
		fn(c)
		c.Adjust()
		err := c.Validate()
		assert.Error(t, err, "case %d", i)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "case %d", i)
	}
}

func TestParse(t *testing.T) {
	c, err := Parse(`
max-batch-rows = 50
max-batch-bytes = "1MB"
concurrency = 2
bucket-count = 4
flush-interval = "200ms"
write-mode = "sequential"
dispatch-mode = "hash-primary-key"
disable-duplicated-row-in-batch = true

[limit]
rows-per-second = 1000
bytes-per-second = "8MB"

[metric]
addr = "127.0.0.1:9091"
job = "bench"
interval = 5
`)
	require.NoError(t, err)
	c.Adjust()
	require.NoError(t, c.Validate())
	assert.Equal(t, 50, c.MaxBatchRows)
	assert.Equal(t, 1024*1024, int(c.MaxBatchBytes))
	assert.Equal(t, 2, c.Concurrency)
	assert.Equal(t, 4, c.BucketCount)
	assert.Equal(t, time.Millisecond*200, c.FlushInterval.Duration)
	assert.Equal(t, Sequential, c.WriteMode)
	assert.Equal(t, HashPrimaryKey, c.DispatchMode)
	assert.True(t, c.DisableDuplicatedRowInBatch)
	assert.Equal(t, 1000, c.Limit.RowsPerSecond)
	assert.Equal(t, 8*1024*1024, int(c.Limit.BytesPerSecond))
	assert.True(t, c.Metric.Enabled())
}

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cubebatch.toml")
	require.NoError(t, os.WriteFile(file, []byte("bucket-count = 7\n"), 0644))

	c, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 7, c.BucketCount)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
