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
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidKeyEncoding the encoded primary key is corrupted
	ErrInvalidKeyEncoding = errors.New("invalid primary key encoding")
	// ErrInvalidColumnsEncoding the encoded columns are corrupted
	ErrInvalidColumnsEncoding = errors.New("invalid columns encoding")
)

const (
	// timestampSize bytes accounted for the timestamp of a column
	timestampSize = 8
)

// Column is a named cell value. Timestamp is optional, 0 means the server
// assigns the version.
type Column struct {
	Name      string
	Value     []byte
	Timestamp int64
}

// NewColumn returns a column without timestamp
func NewColumn(name string, value []byte) Column {
	return Column{Name: name, Value: value}
}

// Size returns the bytes accounted for the column
func (c Column) Size() int {
	n := len(c.Name) + len(c.Value)
	if c.Timestamp > 0 {
		n += timestampSize
	}
	return n
}

// PrimaryKey is the ordered primary key columns of a row. The first column
// is the partition key.
type PrimaryKey []Column

// Size returns the bytes accounted for the primary key
func (pk PrimaryKey) Size() int {
	n := 0
	for _, c := range pk {
		n += len(c.Name) + len(c.Value)
	}
	return n
}

// PartitionKey returns the first primary key column value
func (pk PrimaryKey) PartitionKey() []byte {
	if len(pk) == 0 {
		return nil
	}
	return pk[0].Value
}

// Encode returns a deterministic encoding of the primary key. Two keys are
// equal iff their encodings are equal.
func (pk PrimaryKey) Encode() []byte {
	return pk.AppendEncode(make([]byte, 0, pk.Size()+len(pk)*2*binary.MaxVarintLen32))
}

// AppendEncode appends the encoding of the primary key to dst
func (pk PrimaryKey) AppendEncode(dst []byte) []byte {
	var tmp [binary.MaxVarintLen64]byte
	for _, c := range pk {
		n := binary.PutUvarint(tmp[:], uint64(len(c.Name)))
		dst = append(dst, tmp[:n]...)
		dst = append(dst, c.Name...)
		n = binary.PutUvarint(tmp[:], uint64(len(c.Value)))
		dst = append(dst, tmp[:n]...)
		dst = append(dst, c.Value...)
	}
	return dst
}

// DecodePrimaryKey decodes the value returned by Encode
func DecodePrimaryKey(data []byte) (PrimaryKey, error) {
	var pk PrimaryKey
	for len(data) > 0 {
		name, rest, err := readBytes(data)
		if err != nil {
			return nil, err
		}
		value, rest, err := readBytes(rest)
		if err != nil {
			return nil, err
		}
		pk = append(pk, Column{Name: string(name), Value: value})
		data = rest
	}
	return pk, nil
}

// EncodeColumns returns the encoding of the columns, timestamps included
func EncodeColumns(columns []Column) []byte {
	var tmp [binary.MaxVarintLen64]byte
	dst := make([]byte, 0, 64)
	n := binary.PutUvarint(tmp[:], uint64(len(columns)))
	dst = append(dst, tmp[:n]...)
	for _, c := range columns {
		n = binary.PutUvarint(tmp[:], uint64(len(c.Name)))
		dst = append(dst, tmp[:n]...)
		dst = append(dst, c.Name...)
		n = binary.PutUvarint(tmp[:], uint64(len(c.Value)))
		dst = append(dst, tmp[:n]...)
		dst = append(dst, c.Value...)
		n = binary.PutVarint(tmp[:], c.Timestamp)
		dst = append(dst, tmp[:n]...)
	}
	return dst
}

// DecodeColumns decodes the value returned by EncodeColumns. The returned
// columns do not reference data.
func DecodeColumns(data []byte) ([]Column, error) {
	count, n := binary.Uvarint(data)
	// every column takes at least 3 bytes
	if n <= 0 || count > uint64(len(data)-n)/3 {
		return nil, ErrInvalidColumnsEncoding
	}
	data = data[n:]

	columns := make([]Column, 0, count)
	for i := uint64(0); i < count; i++ {
		name, rest, err := readBytes(data)
		if err != nil {
			return nil, ErrInvalidColumnsEncoding
		}
		value, rest, err := readBytes(rest)
		if err != nil {
			return nil, ErrInvalidColumnsEncoding
		}
		ts, n := binary.Varint(rest)
		if n <= 0 {
			return nil, ErrInvalidColumnsEncoding
		}
		columns = append(columns, Column{
			Name:      string(name),
			Value:     append([]byte(nil), value...),
			Timestamp: ts,
		})
		data = rest[n:]
	}
	if len(data) > 0 {
		return nil, ErrInvalidColumnsEncoding
	}
	return columns, nil
}

func readBytes(data []byte) ([]byte, []byte, error) {
	size, n := binary.Uvarint(data)
	if n <= 0 || uint64(len(data)-n) < size {
		return nil, nil, ErrInvalidKeyEncoding
	}
	data = data[n:]
	return data[:size], data[size:], nil
}

// Equal returns true if both keys have the same columns in the same order
func (pk PrimaryKey) Equal(other PrimaryKey) bool {
	if len(pk) != len(other) {
		return false
	}
	for i := range pk {
		if pk[i].Name != other[i].Name ||
			!bytes.Equal(pk[i].Value, other[i].Value) {
			return false
		}
	}
	return true
}

func (pk PrimaryKey) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, c := range pk {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(c.Name)
		sb.WriteByte('=')
		sb.WriteString(fmt.Sprintf("%q", c.Value))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Row is a row returned by the store
type Row struct {
	Key     PrimaryKey
	Columns []Column
}

// Column returns the column with the given name
func (r *Row) Column(name string) (Column, bool) {
	if r == nil {
		return Column{}, false
	}
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
