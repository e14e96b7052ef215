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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"ormbridge/shared/logger"
)

// DefaultIDColumn is the primary key column assumed when id_column is unset
const DefaultIDColumn = "id"

// DefaultQueryLogLimit bounds the per-connection query log
const DefaultQueryLogLimit = 100

// ErrUnknownConnection is returned when a query targets a connection that
// has no connection_string configured
var ErrUnknownConnection = errors.New("engine: connection is not configured")

// ErrorMode controls how query failures are reported
type ErrorMode string

const (
	ErrorModeException ErrorMode = "exception"
	ErrorModeWarning   ErrorMode = "warning"
	ErrorModeSilent    ErrorMode = "silent"
)

// Opener opens a database handle. sql.Open is used unless WithOpener is given.
type Opener func(driverName, dataSourceName string) (*sql.DB, error)

// QueryLogger is the signature accepted by the "logger" setting
type QueryLogger func(query string, elapsed time.Duration)

// ModelDef maps a model identifier to its table
type ModelDef struct {
	Table    string
	IDColumn string
}

// QueryLogEntry records one executed statement
type QueryLogEntry struct {
	ID       string
	SQL      string
	Args     []any
	Duration time.Duration
	At       time.Time
}

// QueryError describes a failed engine operation
type QueryError struct {
	Connection string
	Operation  string
	Message    string
	Cause      error
}

func (e *QueryError) Error() string {
	if e.Cause != nil {
		return e.Connection + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.Connection + "." + e.Operation + ": " + e.Message
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

type pool struct {
	db     *sql.DB
	driver string
}

// Engine builds and runs queries against named connections. Connection
// parameters are read from its Settings store; handles are opened lazily on
// the first query for a connection.
type Engine struct {
	settings Settings
	opener   Opener
	cache    Cache
	logger   *logger.Logger
	logLimit int

	mu       sync.Mutex
	pools    map[string]*pool
	models   map[string]ModelDef
	queryLog map[string][]QueryLogEntry
}

// Option configures an Engine
type Option func(*Engine)

// WithOpener replaces sql.Open, mainly for tests
func WithOpener(opener Opener) Option {
	return func(e *Engine) { e.opener = opener }
}

// WithCache sets the result cache used when caching is enabled
func WithCache(cache Cache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithLogger sets the structured logger
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithQueryLogLimit bounds how many statements are kept per connection
func WithQueryLogLimit(n int) Option {
	return func(e *Engine) { e.logLimit = n }
}

// New creates an engine reading configuration from settings. A nil store
// gets a fresh MemorySettings.
func New(settings Settings, opts ...Option) *Engine {
	if settings == nil {
		settings = NewMemorySettings()
	}
	e := &Engine{
		settings: settings,
		opener:   sql.Open,
		cache:    NewMemoryCache(),
		logger:   logger.New("engine"),
		logLimit: DefaultQueryLogLimit,
		pools:    make(map[string]*pool),
		models:   make(map[string]ModelDef),
		queryLog: make(map[string][]QueryLogEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the configuration store
func (e *Engine) Settings() Settings {
	return e.settings
}

// Configure stores a setting for a connection. Changing connection
// parameters drops any open handle so the next query reconnects.
func (e *Engine) Configure(key string, value any, connection string) {
	connection = connectionName(connection)
	e.settings.Configure(key, value, connection)

	switch key {
	case KeyConnectionString, KeyUsername, KeyPassword, KeyDriverOptions:
		e.mu.Lock()
		if p, ok := e.pools[connection]; ok {
			_ = p.db.Close()
			delete(e.pools, connection)
		}
		e.mu.Unlock()
	}
}

// ResetConfig clears every connection's settings, closes open handles and
// empties the cache and query logs
func (e *Engine) ResetConfig() {
	e.settings.Reset()

	e.mu.Lock()
	for name, p := range e.pools {
		_ = p.db.Close()
		delete(e.pools, name)
	}
	e.queryLog = make(map[string][]QueryLogEntry)
	e.mu.Unlock()

	if err := e.cache.Clear(context.Background(), ""); err != nil {
		e.logger.ErrorWithCause("", "Failed to clear query cache on reset", err, nil)
	}
}

// Close closes all open database handles
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for name, p := range e.pools {
		if err := p.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(e.pools, name)
	}
	return errors.Join(errs...)
}

// DB returns the handle for a connection, opening it on first use
func (e *Engine) DB(ctx context.Context, connection string) (*sql.DB, error) {
	connection = connectionName(connection)

	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.pools[connection]; ok {
		return p.db, nil
	}

	ds, err := e.dataSource(connection)
	if err != nil {
		return nil, err
	}

	db, err := e.opener(ds.Driver, ds.Source)
	if err != nil {
		return nil, &QueryError{Connection: connection, Operation: "Connect", Message: "failed to open connection", Cause: err}
	}

	e.pools[connection] = &pool{db: db, driver: ds.Driver}
	e.logger.Info(connection, "Opened database handle", map[string]interface{}{
		"driver": ds.Driver,
	})
	return db, nil
}

// Dialect returns the SQL dialect for a connection, including quote and
// limit-style overrides
func (e *Engine) Dialect(connection string) (Dialect, error) {
	connection = connectionName(connection)

	e.mu.Lock()
	p, ok := e.pools[connection]
	e.mu.Unlock()

	driver := ""
	if ok {
		driver = p.driver
	} else {
		ds, err := e.dataSource(connection)
		if err != nil {
			return Dialect{}, err
		}
		driver = ds.Driver
	}
	return DialectFor(driver).withOverrides(e.settings, connection), nil
}

func (e *Engine) dataSource(connection string) (DataSource, error) {
	dsn := settingString(e.settings, KeyConnectionString, connection)
	if strings.TrimSpace(dsn) == "" {
		return DataSource{}, fmt.Errorf("%w: %q", ErrUnknownConnection, connection)
	}
	opts, _ := e.settings.Get(KeyDriverOptions, connection)
	ds, err := ParseDSN(dsn,
		settingString(e.settings, KeyUsername, connection),
		settingString(e.settings, KeyPassword, connection),
		opts)
	if err != nil {
		return DataSource{}, &QueryError{Connection: connection, Operation: "Connect", Message: "invalid connection string", Cause: err}
	}
	return ds, nil
}

// ForTable starts a query against a table on the named connection
func (e *Engine) ForTable(table, connection string) *Query {
	return &Query{
		engine:     e,
		table:      table,
		connection: connectionName(connection),
	}
}

// RegisterModel maps a model identifier to a table and optional id column
func (e *Engine) RegisterModel(model string, def ModelDef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.models[model] = def
}

// Factory starts a query for a model. Unregistered models use the snake_case
// form of their short name as table name ("app.UserProfile" -> "user_profile").
func (e *Engine) Factory(model, connection string) *Query {
	e.mu.Lock()
	def, ok := e.models[model]
	e.mu.Unlock()

	if !ok || def.Table == "" {
		def.Table = TableNameForModel(model)
	}

	q := e.ForTable(def.Table, connection)
	q.model = model
	q.idColumn = def.IDColumn
	return q
}

// TableNameForModel derives a table name from a model identifier
func TableNameForModel(model string) string {
	short := model
	if i := strings.LastIndexAny(short, `.\/`); i >= 0 {
		short = short[i+1:]
	}

	var b strings.Builder
	runes := []rune(short)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && unicode.IsLower(runes[i-1]) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// idColumnFor resolves the primary key column for a table: per-table
// override, then the connection's id_column, then DefaultIDColumn
func (e *Engine) idColumnFor(table, connection string) string {
	if v, ok := e.settings.Get(KeyIDColumnOverrides, connection); ok {
		switch overrides := v.(type) {
		case map[string]string:
			if col := overrides[table]; col != "" {
				return col
			}
		case map[string]any:
			if col, ok := overrides[table].(string); ok && col != "" {
				return col
			}
		}
	}
	if col := settingString(e.settings, KeyIDColumn, connection); col != "" {
		return col
	}
	return DefaultIDColumn
}

func (e *Engine) errorMode(connection string) ErrorMode {
	switch ErrorMode(strings.ToLower(settingString(e.settings, KeyErrorMode, connection))) {
	case ErrorModeSilent:
		return ErrorModeSilent
	case ErrorModeWarning:
		return ErrorModeWarning
	default:
		return ErrorModeException
	}
}

// ReturnsResultSets reports the return_result_sets setting. FindMany always
// returns a ResultSet; the flag is kept for callers that branch on it.
func (e *Engine) ReturnsResultSets(connection string) bool {
	return settingBool(e.settings, KeyReturnResultSets, connectionName(connection))
}

func (e *Engine) cachingEnabled(connection string) bool {
	return settingBool(e.settings, KeyCaching, connection)
}

// ClearCache drops cached results for a connection, or all of them when
// connection is empty
func (e *Engine) ClearCache(ctx context.Context, connection string) error {
	return e.cache.Clear(ctx, connection)
}

// observe records metrics and, when logging is enabled for the connection,
// the query log entry
func (e *Engine) observe(connection, operation, query string, args []any, start time.Time, err error) {
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	promQueries.WithLabelValues(connection, operation, status).Inc()
	promQueryDuration.WithLabelValues(connection, operation).Observe(float64(elapsed.Microseconds()) / 1000)

	if !settingBool(e.settings, KeyLogging, connection) {
		return
	}

	e.mu.Lock()
	entries := append(e.queryLog[connection], QueryLogEntry{
		ID:       uuid.NewString(),
		SQL:      query,
		Args:     args,
		Duration: elapsed,
		At:       start,
	})
	if e.logLimit > 0 && len(entries) > e.logLimit {
		entries = entries[len(entries)-e.logLimit:]
	}
	e.queryLog[connection] = entries
	e.mu.Unlock()

	if v, ok := e.settings.Get(KeyLogger, connection); ok {
		switch fn := v.(type) {
		case QueryLogger:
			fn(query, elapsed)
		case func(string, time.Duration):
			fn(query, elapsed)
		}
	}

	e.logger.Debug(connection, "Query executed", map[string]interface{}{
		"operation":   operation,
		"sql":         query,
		"duration_ms": float64(elapsed.Microseconds()) / 1000,
	})
}

// LastQuery returns the most recent logged statement for a connection
func (e *Engine) LastQuery(connection string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.queryLog[connectionName(connection)]
	if len(entries) == 0 {
		return ""
	}
	return entries[len(entries)-1].SQL
}

// QueryLog returns a copy of the logged statements for a connection
func (e *Engine) QueryLog(connection string) []QueryLogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.queryLog[connectionName(connection)]
	out := make([]QueryLogEntry, len(entries))
	copy(out, entries)
	return out
}

func connectionName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultConnection
	}
	return name
}
