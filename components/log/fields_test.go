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

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAdjust(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)
	assert.Equal(t, l, Adjust(l))

	old := Logger()
	defer UseLogger(old)
	UseLogger(l)
	Adjust(nil).Info("adjusted", BucketField(1), TableField("t1"), RequestIDField([]byte{0xab}))
	assert.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, int64(1), fields["bucket"])
	assert.Equal(t, "t1", fields["table"])
	assert.Equal(t, "ab", fields["request-id"])
}

func TestGetZapLogger(t *testing.T) {
	assert.True(t, GetZapLogger("debug").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, GetZapLogger("unknown").Core().Enabled(zapcore.DebugLevel))
}
