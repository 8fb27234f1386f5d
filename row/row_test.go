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

package row

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimaryKeyEncode(t *testing.T) {
	pk := PrimaryKey{NewColumn("a", []byte("1")), NewColumn("b", []byte("22"))}
	v, err := DecodePrimaryKey(pk.Encode())
	require.NoError(t, err)
	assert.True(t, pk.Equal(v))

	// the same bytes split differently must not collide
	other := PrimaryKey{NewColumn("a", []byte("1b")), NewColumn("", []byte("22"))}
	assert.NotEqual(t, pk.Encode(), other.Encode())
	assert.False(t, pk.Equal(other))
}

func TestDecodePrimaryKeyWithInvalidData(t *testing.T) {
	_, err := DecodePrimaryKey([]byte{10, 'a'})
	assert.Error(t, err)
}

func TestChangeSize(t *testing.T) {
	pk := PrimaryKey{NewColumn("id", []byte("k1"))}
	c := NewUpdate("t", pk, []Column{{Name: "c", Value: []byte("value"), Timestamp: 1}}, "old")
	assert.Equal(t, 4+1+5+timestampSize+3, c.Size())
	assert.Equal(t, 4, NewDelete("t", pk).Size())
}

func TestQueryConfig(t *testing.T) {
	var c *QueryConfig
	assert.True(t, c.Wants("any"))

	c = &QueryConfig{Columns: []string{"a"}, TimeRange: TimeRange{Start: 10, End: 20}}
	assert.True(t, c.Wants("a"))
	assert.False(t, c.Wants("b"))
	assert.True(t, c.TimeRange.Contains(10))
	assert.False(t, c.TimeRange.Contains(20))
	assert.True(t, TimeRange{}.Contains(1))
}

func TestColumnsEncode(t *testing.T) {
	columns := []Column{
		{Name: "a", Value: []byte("1"), Timestamp: 10},
		{Name: "b", Value: nil},
	}
	v, err := DecodeColumns(EncodeColumns(columns))
	require.NoError(t, err)
	require.Len(t, v, 2)
	assert.Equal(t, "a", v[0].Name)
	assert.Equal(t, []byte("1"), v[0].Value)
	assert.Equal(t, int64(10), v[0].Timestamp)
	assert.Empty(t, v[1].Value)

	v, err = DecodeColumns(EncodeColumns(nil))
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = DecodeColumns([]byte{2, 1, 'a'})
	assert.Error(t, err)
}

func TestChangeMerge(t *testing.T) {
	pk := PrimaryKey{NewColumn("id", []byte("k1"))}
	current := []Column{NewColumn("a", []byte("1")), NewColumn("b", []byte("2"))}

	put := NewPut("t", pk, NewColumn("c", []byte("3")))
	assert.Equal(t, []Column{NewColumn("c", []byte("3"))}, put.Merge(current))

	update := NewUpdate("t", pk, []Column{NewColumn("a", []byte("10"))}, "b")
	assert.Equal(t, []Column{NewColumn("a", []byte("10"))}, update.Merge(current))

	update = NewUpdate("t", pk, []Column{NewColumn("c", []byte("3"))})
	assert.Len(t, update.Merge(current), 3)

	assert.Nil(t, NewDelete("t", pk).Merge(current))
}

func TestQueryConfigProject(t *testing.T) {
	r := &Row{
		Key: PrimaryKey{NewColumn("id", []byte("k1"))},
		Columns: []Column{
			{Name: "a", Value: []byte("1"), Timestamp: 5},
			{Name: "b", Value: []byte("2"), Timestamp: 15},
			{Name: "c", Value: []byte("3")},
		},
	}

	var c *QueryConfig
	assert.Len(t, c.Project(r).Columns, 3)
	assert.Nil(t, c.Project(nil))

	c = &QueryConfig{Columns: []string{"a", "b"}, TimeRange: TimeRange{Start: 10}}
	v := c.Project(r)
	require.Len(t, v.Columns, 1)
	assert.Equal(t, "b", v.Columns[0].Name)
	assert.Len(t, r.Columns, 3)
}
