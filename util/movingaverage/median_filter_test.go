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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedianFilter(t *testing.T) {
	mf := NewMedianFilter(3)
	assert.Equal(t, 0.0, mf.Get())

	mf.Add(1)
	assert.Equal(t, 1.0, mf.Get())
	mf.Add(5)
	mf.Add(3)
	assert.Equal(t, 3.0, mf.Get())

	// window slides, 1 is dropped
	mf.Add(10)
	assert.Equal(t, 5.0, mf.Get())

	mf.Reset()
	assert.Equal(t, 0.0, mf.Get())
}

func TestMedianFilterWithInvalidSize(t *testing.T) {
	mf := NewMedianFilter(0)
	mf.Add(2)
	mf.Add(4)
	assert.Equal(t, 4.0, mf.Get())
}
