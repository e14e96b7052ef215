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
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type whereClause struct {
	sql  string
	args []any
}

// Query is a fluent SELECT/INSERT/DELETE builder bound to one table and one
// connection. Builder methods mutate and return the receiver.
type Query struct {
	engine     *Engine
	table      string
	connection string
	model      string
	idColumn   string

	distinct bool
	columns  []string
	wheres   []whereClause
	orders   []string
	limit    int
	offset   int

	err error
}

// Table returns the table the query targets
func (q *Query) Table() string { return q.table }

// Connection returns the connection name the query runs on
func (q *Query) Connection() string { return q.connection }

// Model returns the model identifier when the query came from Factory
func (q *Query) Model() string { return q.model }

// Err returns the last error swallowed in silent error mode
func (q *Query) Err() error { return q.err }

// Select restricts the selected columns
func (q *Query) Select(columns ...string) *Query {
	q.columns = append(q.columns, columns...)
	return q
}

// Distinct adds DISTINCT to the select
func (q *Query) Distinct() *Query {
	q.distinct = true
	return q
}

// Where adds "column = value"
func (q *Query) Where(column string, value any) *Query {
	return q.whereOp(column, "=", value)
}

// WhereNotEqual adds "column != value"
func (q *Query) WhereNotEqual(column string, value any) *Query {
	return q.whereOp(column, "!=", value)
}

// WhereLike adds "column LIKE pattern"
func (q *Query) WhereLike(column, pattern string) *Query {
	return q.whereOp(column, "LIKE", pattern)
}

// WhereNull adds "column IS NULL"
func (q *Query) WhereNull(column string) *Query {
	q.wheres = append(q.wheres, whereClause{sql: "\x00" + column + "\x00 IS NULL"})
	return q
}

// WhereIn adds "column IN (...)". An empty list matches nothing.
func (q *Query) WhereIn(column string, values ...any) *Query {
	if len(values) == 0 {
		q.wheres = append(q.wheres, whereClause{sql: "1 = 0"})
		return q
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	q.wheres = append(q.wheres, whereClause{
		sql:  "\x00" + column + "\x00 IN (" + marks + ")",
		args: values,
	})
	return q
}

// WhereRaw adds a raw condition using "?" placeholders
func (q *Query) WhereRaw(clause string, args ...any) *Query {
	q.wheres = append(q.wheres, whereClause{sql: "(" + clause + ")", args: args})
	return q
}

// WhereIDIs adds a condition on the table's primary key column
func (q *Query) WhereIDIs(id any) *Query {
	return q.Where(q.primaryKey(), id)
}

// OrderByAsc adds an ascending sort
func (q *Query) OrderByAsc(column string) *Query {
	q.orders = append(q.orders, "\x00"+column+"\x00 ASC")
	return q
}

// OrderByDesc adds a descending sort
func (q *Query) OrderByDesc(column string) *Query {
	q.orders = append(q.orders, "\x00"+column+"\x00 DESC")
	return q
}

// Limit caps the number of returned rows
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips rows. It is ignored for TOP-N dialects.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

func (q *Query) whereOp(column, op string, value any) *Query {
	q.wheres = append(q.wheres, whereClause{
		sql:  "\x00" + column + "\x00 " + op + " ?",
		args: []any{value},
	})
	return q
}

func (q *Query) primaryKey() string {
	if q.idColumn != "" {
		return q.idColumn
	}
	return q.engine.idColumnFor(q.table, q.connection)
}

func (q *Query) clone() *Query {
	c := *q
	c.columns = append([]string(nil), q.columns...)
	c.wheres = append([]whereClause(nil), q.wheres...)
	c.orders = append([]string(nil), q.orders...)
	return &c
}

// SQL renders the SELECT statement and its arguments without running it
func (q *Query) SQL() (string, []any, error) {
	d, err := q.engine.Dialect(q.connection)
	if err != nil {
		return "", nil, err
	}
	query, args := q.renderSelect(d, "")
	return query, args, nil
}

func (q *Query) renderSelect(d Dialect, countExpr string) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.distinct {
		b.WriteString("DISTINCT ")
	}
	if d.Limit == LimitStyleTopN && q.limit > 0 && countExpr == "" {
		b.WriteString("TOP " + strconv.Itoa(q.limit) + " ")
	}

	switch {
	case countExpr != "":
		b.WriteString(countExpr)
	case len(q.columns) == 0:
		b.WriteString("*")
	default:
		cols := make([]string, len(q.columns))
		for i, c := range q.columns {
			cols[i] = quoteColumn(d, c)
		}
		b.WriteString(strings.Join(cols, ", "))
	}

	b.WriteString(" FROM " + d.QuoteIdentifier(q.table))
	args := q.writeWhere(&b, d)

	if len(q.orders) > 0 && countExpr == "" {
		b.WriteString(" ORDER BY " + quoteMarked(d, strings.Join(q.orders, ", ")))
	}
	if d.Limit == LimitStyleLimit && countExpr == "" {
		if q.limit > 0 {
			b.WriteString(" LIMIT " + strconv.Itoa(q.limit))
		}
		if q.offset > 0 {
			b.WriteString(" OFFSET " + strconv.Itoa(q.offset))
		}
	}

	return placeholders(d, b.String()), args
}

func (q *Query) writeWhere(b *strings.Builder, d Dialect) []any {
	if len(q.wheres) == 0 {
		return nil
	}
	var args []any
	parts := make([]string, len(q.wheres))
	for i, w := range q.wheres {
		parts[i] = quoteMarked(d, w.sql)
		args = append(args, w.args...)
	}
	b.WriteString(" WHERE " + strings.Join(parts, " AND "))
	return args
}

// quoteColumn quotes plain column names and leaves expressions alone
func quoteColumn(d Dialect, c string) string {
	if c == "*" || strings.ContainsAny(c, "( ") {
		return c
	}
	return d.QuoteIdentifier(c)
}

// quoteMarked replaces \x00name\x00 markers with quoted identifiers
func quoteMarked(d Dialect, s string) string {
	for {
		start := strings.IndexByte(s, 0)
		if start < 0 {
			return s
		}
		end := strings.IndexByte(s[start+1:], 0)
		if end < 0 {
			return s
		}
		end += start + 1
		s = s[:start] + d.QuoteIdentifier(s[start+1:end]) + s[end+1:]
	}
}

// placeholders rewrites "?" to "$n" for dollar-style drivers, skipping
// quoted string literals
func placeholders(d Dialect, query string) string {
	var prefix string
	switch d.Placeholder {
	case PlaceholderDollar:
		prefix = "$"
	case PlaceholderAtP:
		prefix = "@p"
	default:
		return query
	}
	var b strings.Builder
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteString(prefix + strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindMany runs the query and returns every matching row
func (q *Query) FindMany(ctx context.Context) (ResultSet, error) {
	rows, err := q.runSelect(ctx, "find_many", "")
	if err != nil {
		if handled := q.fail("find_many", err); handled != nil {
			return nil, handled
		}
		return ResultSet{}, nil
	}
	return rows, nil
}

// FindOne returns the first matching row, or nil when nothing matches.
// When id is given the query is narrowed to that primary key.
func (q *Query) FindOne(ctx context.Context, id ...any) (Record, error) {
	c := q.clone()
	if len(id) > 0 {
		c.WhereIDIs(id[0])
	}
	c.limit = 1

	rows, err := c.runSelect(ctx, "find_one", "")
	if err != nil {
		handled := q.fail("find_one", err)
		return nil, handled
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Count returns the number of matching rows
func (q *Query) Count(ctx context.Context) (int64, error) {
	rows, err := q.runSelect(ctx, "count", "COUNT(*) AS count")
	if err != nil {
		return 0, q.fail("count", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, _ := rows[0].Int64("count")
	return n, nil
}

func (q *Query) runSelect(ctx context.Context, operation, countExpr string) (ResultSet, error) {
	d, err := q.engine.Dialect(q.connection)
	if err != nil {
		return nil, err
	}
	query, args := q.renderSelect(d, countExpr)

	caching := q.engine.cachingEnabled(q.connection)
	key := cacheKey(q.table, query, args)
	if caching {
		rows, hit, err := q.engine.cache.Get(ctx, q.connection, key)
		if err != nil {
			q.engine.logger.ErrorWithCause(q.connection, "Query cache read failed", err, nil)
		}
		if hit {
			promCacheLookups.WithLabelValues(q.connection, "hit").Inc()
			return rows, nil
		}
		promCacheLookups.WithLabelValues(q.connection, "miss").Inc()
	}

	db, err := q.engine.DB(ctx, q.connection)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sqlRows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		q.engine.observe(q.connection, operation, query, args, start, err)
		return nil, &QueryError{Connection: q.connection, Operation: operation, Message: "query failed", Cause: err}
	}
	defer sqlRows.Close()

	rows, err := scanRows(sqlRows)
	q.engine.observe(q.connection, operation, query, args, start, err)
	if err != nil {
		return nil, &QueryError{Connection: q.connection, Operation: operation, Message: "failed to read results", Cause: err}
	}

	if caching {
		if err := q.engine.cache.Set(ctx, q.connection, key, rows); err != nil {
			q.engine.logger.ErrorWithCause(q.connection, "Query cache write failed", err, nil)
		}
	}
	return rows, nil
}

// Insert writes one row and returns the number of affected rows
func (q *Query) Insert(ctx context.Context, values map[string]any) (int64, error) {
	if len(values) == 0 {
		return 0, q.fail("insert", fmt.Errorf("insert into %s: no values", q.table))
	}
	d, err := q.engine.Dialect(q.connection)
	if err != nil {
		return 0, q.fail("insert", err)
	}

	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	quoted := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		quoted[i] = d.QuoteIdentifier(col)
		args[i] = values[col]
	}

	query := placeholders(d, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdentifier(q.table),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")))

	return q.exec(ctx, "insert", query, args)
}

// DeleteMany deletes every matching row and returns the affected count
func (q *Query) DeleteMany(ctx context.Context) (int64, error) {
	d, err := q.engine.Dialect(q.connection)
	if err != nil {
		return 0, q.fail("delete_many", err)
	}

	var b strings.Builder
	b.WriteString("DELETE FROM " + d.QuoteIdentifier(q.table))
	args := q.writeWhere(&b, d)

	return q.exec(ctx, "delete_many", placeholders(d, b.String()), args)
}

func (q *Query) exec(ctx context.Context, operation, query string, args []any) (int64, error) {
	db, err := q.engine.DB(ctx, q.connection)
	if err != nil {
		return 0, q.fail(operation, err)
	}

	start := time.Now()
	res, err := db.ExecContext(ctx, query, args...)
	q.engine.observe(q.connection, operation, query, args, start, err)
	if err != nil {
		return 0, q.fail(operation, &QueryError{Connection: q.connection, Operation: operation, Message: "statement failed", Cause: err})
	}

	if settingBool(q.engine.settings, KeyCachingAutoClear, q.connection) {
		if err := q.engine.cache.Clear(ctx, q.connection); err != nil {
			q.engine.logger.ErrorWithCause(q.connection, "Failed to clear query cache after write", err, nil)
		}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, q.fail(operation, &QueryError{Connection: q.connection, Operation: operation, Message: "failed to read affected rows", Cause: err})
	}
	return affected, nil
}

// fail applies the connection's error mode. It returns the error to hand
// back to the caller, or nil when the error is swallowed.
func (q *Query) fail(operation string, err error) error {
	switch q.engine.errorMode(q.connection) {
	case ErrorModeSilent:
		q.err = err
		return nil
	case ErrorModeWarning:
		q.engine.logger.ErrorWithCause(q.connection, "Query failed", err, map[string]interface{}{
			"operation": operation,
			"table":     q.table,
		})
		return err
	default:
		return err
	}
}
