// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"database/sql"
	"fmt"
	"strconv"
)

// Record is one result row keyed by column name
type Record map[string]any

// Get returns the column value, or nil when the column is absent
func (r Record) Get(column string) any {
	return r[column]
}

// String returns the column value formatted as a string
func (r Record) String(column string) string {
	v, ok := r[column]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int64 returns the column value as an int64. Values decoded from JSON
// (float64) and numeric strings are converted.
func (r Record) Int64(column string) (int64, bool) {
	switch v := r[column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// ResultSet is the collection returned by FindMany
type ResultSet []Record

// Len returns the number of records
func (rs ResultSet) Len() int { return len(rs) }

// Column returns the values of one column across all records
func (rs ResultSet) Column(name string) []any {
	out := make([]any, 0, len(rs))
	for _, r := range rs {
		out = append(out, r[name])
	}
	return out
}

// Each calls fn for every record until fn returns false
func (rs ResultSet) Each(fn func(Record) bool) {
	for _, r := range rs {
		if !fn(r) {
			return
		}
	}
}

// Clone copies the result set and every record so the copy can be
// modified without affecting the original
func (rs ResultSet) Clone() ResultSet {
	if rs == nil {
		return nil
	}
	out := make(ResultSet, len(rs))
	for i, r := range rs {
		rec := make(Record, len(r))
		for k, v := range r {
			rec[k] = v
		}
		out[i] = rec
	}
	return out
}

// scanRows reads all rows into records. []byte values are converted to
// strings since drivers hand back text columns that way.
func scanRows(rows *sql.Rows) (ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	results := ResultSet{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rec := make(Record, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = values[i]
			}
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}
