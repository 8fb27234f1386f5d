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

// ChangeType row change type
type ChangeType int

const (
	// Put replaces the whole row
	Put ChangeType = iota
	// Update sets Columns and removes DeleteColumns of an existing row, the row is
	// created if it does not exist
	Update
	// Delete removes the row
	Delete
)

func (t ChangeType) String() string {
	switch t {
	case Put:
		return "put"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Change is a single row change
type Change struct {
	Type          ChangeType
	Table         string
	Key           PrimaryKey
	Columns       []Column
	DeleteColumns []string
}

// NewPut returns a put change
func NewPut(table string, key PrimaryKey, columns ...Column) *Change {
	return &Change{Type: Put, Table: table, Key: key, Columns: columns}
}

// NewUpdate returns an update change
func NewUpdate(table string, key PrimaryKey, columns []Column, deleteColumns ...string) *Change {
	return &Change{Type: Update, Table: table, Key: key, Columns: columns, DeleteColumns: deleteColumns}
}

// NewDelete returns a delete change
func NewDelete(table string, key PrimaryKey) *Change {
	return &Change{Type: Delete, Table: table, Key: key}
}

// Size returns the bytes accounted for the change in a batch request
func (c *Change) Size() int {
	n := c.Key.Size()
	for _, col := range c.Columns {
		n += col.Size()
	}
	for _, name := range c.DeleteColumns {
		n += len(name)
	}
	return n
}

// TimeRange [Start, End) of column versions, zero value means all versions
type TimeRange struct {
	Start int64
	End   int64
}

// IsEmpty returns true if no range is set
func (r TimeRange) IsEmpty() bool {
	return r.Start == 0 && r.End == 0
}

// Contains returns true if the timestamp is in the range
func (r TimeRange) Contains(ts int64) bool {
	if r.IsEmpty() {
		return true
	}
	return ts >= r.Start && (r.End == 0 || ts < r.End)
}

// QueryConfig read criteria applied to every key of a table in a batch read
type QueryConfig struct {
	// Columns columns to get, empty means all columns
	Columns []string
	// MaxVersions max versions per column, 0 means the latest only
	MaxVersions int
	// TimeRange versions range
	TimeRange TimeRange
}

// Wants returns true if the column should be returned
func (c *QueryConfig) Wants(name string) bool {
	if c == nil || len(c.Columns) == 0 {
		return true
	}
	for _, col := range c.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Merge returns the columns of the row after the change is applied to a row
// with the current columns. The values of the change replace the columns with
// the same name. A nil result means the row is removed.
func (c *Change) Merge(current []Column) []Column {
	switch c.Type {
	case Put:
		current = nil
	case Delete:
		return nil
	}

	columns := make([]Column, 0, len(current)+len(c.Columns))
	for _, col := range current {
		if !containsName(c.DeleteColumns, col.Name) && !containsColumn(c.Columns, col.Name) {
			columns = append(columns, col)
		}
	}
	return append(columns, c.Columns...)
}

// Project returns a copy of the row with the columns matching the config
func (c *QueryConfig) Project(r *Row) *Row {
	if r == nil {
		return nil
	}
	v := &Row{Key: r.Key}
	for _, col := range r.Columns {
		if c.Wants(col.Name) &&
			(c == nil || col.Timestamp == 0 || c.TimeRange.Contains(col.Timestamp)) {
			v.Columns = append(v.Columns, col)
		}
	}
	return v
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func containsColumn(columns []Column, name string) bool {
	for _, c := range columns {
		if c.Name == name {
			return true
		}
	}
	return false
}
