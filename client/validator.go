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
	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubebatch/config"
	"github.com/matrixorigin/cubebatch/row"
)

// validator checks the sizes of a row change before it enters the pipeline
type validator struct {
	maxColumns       int
	maxPKColumnBytes int
	maxColumnBytes   int
}

func newValidator(cfg config.ValidatorConfig) validator {
	return validator{
		maxColumns:       cfg.MaxColumns,
		maxPKColumnBytes: int(cfg.MaxPKColumnBytes),
		maxColumnBytes:   int(cfg.MaxColumnBytes),
	}
}

func (v validator) validate(c *row.Change) error {
	if c == nil {
		return errors.Wrap(ErrInvalidRowChange, "nil row change")
	}
	if c.Table == "" {
		return errors.Wrap(ErrInvalidRowChange, "empty table")
	}
	if len(c.Key) == 0 {
		return errors.Wrapf(ErrInvalidRowChange, "table %s: empty primary key", c.Table)
	}

	for _, pk := range c.Key {
		if len(pk.Value) > v.maxPKColumnBytes {
			return errors.Wrapf(ErrInvalidRowChange, "table %s: primary key column %s has %d bytes, max %d",
				c.Table, pk.Name, len(pk.Value), v.maxPKColumnBytes)
		}
	}

	if n := len(c.Columns) + len(c.DeleteColumns); n > v.maxColumns {
		return errors.Wrapf(ErrInvalidRowChange, "table %s: %d columns, max %d",
			c.Table, n, v.maxColumns)
	}
	for _, col := range c.Columns {
		if col.Name == "" {
			return errors.Wrapf(ErrInvalidRowChange, "table %s: empty column name", c.Table)
		}
		if len(col.Value) > v.maxColumnBytes {
			return errors.Wrapf(ErrInvalidRowChange, "table %s: column %s has %d bytes, max %d",
				c.Table, col.Name, len(col.Value), v.maxColumnBytes)
		}
	}
	return nil
}
