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
	"encoding/hex"
	"fmt"
	"time"

	"github.com/docker/go-units"
	"go.uber.org/zap"
)

// BucketField returns zap.IntField
func BucketField(index int) zap.Field {
	return zap.Int("bucket", index)
}

// TableField returns zap.StringField
func TableField(table string) zap.Field {
	return zap.String("table", table)
}

// GroupIDField returns zap.Uint64Field
func GroupIDField(id uint64) zap.Field {
	return zap.Uint64("group-id", id)
}

// SlotField returns zap.IntField
func SlotField(slot int) zap.Field {
	return zap.Int("slot", slot)
}

// RequestIDField returns zap.StringField
func RequestIDField(id []byte) zap.Field {
	return zap.String("request-id", hex.EncodeToString(id))
}

// KindField returns zap.StringField
func KindField(kind string) zap.Field {
	return zap.String("kind", kind)
}

// RowCountField returns zap.IntField
func RowCountField(count int) zap.Field {
	return zap.Int("row-count", count)
}

// TableCountField returns zap.IntField
func TableCountField(count int) zap.Field {
	return zap.Int("table-count", count)
}

// ByteSizeField returns a human readable size field
func ByteSizeField(size int) zap.Field {
	return zap.String("bytes", units.BytesSize(float64(size)))
}

// ReasonField returns zap.StringField
func ReasonField(why string) zap.Field {
	return zap.String("reason", why)
}

// StateField returns zap.StringField
func StateField(state string) zap.Field {
	return zap.String("state", state)
}

// CostField returns zap.DurationField
func CostField(start time.Time) zap.Field {
	return zap.Duration("cost", time.Since(start))
}

// KeyField returns zap.StringField
func KeyField(key fmt.Stringer) zap.Field {
	return zap.Stringer("key", key)
}
