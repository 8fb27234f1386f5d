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

package movingaverage

import (
	"sync"

	"github.com/montanaflynn/stats"
)

// MedianFilter keeps the last `size` data points and returns their median.
// It is safe for concurrent use.
type MedianFilter struct {
	sync.Mutex
	records []float64
	size    uint64
	count   uint64
}

// NewMedianFilter returns a MedianFilter with the window size
func NewMedianFilter(size int) *MedianFilter {
	if size <= 0 {
		size = 1
	}
	return &MedianFilter{
		records: make([]float64, size),
		size:    uint64(size),
	}
}

// Add adds a data point, the oldest one is dropped if the window is full
func (r *MedianFilter) Add(n float64) {
	r.Lock()
	defer r.Unlock()
	r.records[r.count%r.size] = n
	r.count++
}

// Get returns the median of the window, 0 if empty
func (r *MedianFilter) Get() float64 {
	r.Lock()
	defer r.Unlock()
	if r.count == 0 {
		return 0
	}
	records := r.records
	if r.count < r.size {
		records = r.records[:r.count]
	}
	// stats.Median sorts a copy
	median, _ := stats.Median(records)
	return median
}

// Reset drops all data points
func (r *MedianFilter) Reset() {
	r.Lock()
	defer r.Unlock()
	r.count = 0
}
