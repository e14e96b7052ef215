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

package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ormbridge/shared/logger"
)

// DefaultConnectionsTable is the table PostgresSource reads from
const DefaultConnectionsTable = "orm_connections"

// PostgresSource stores connection definitions in PostgreSQL so several
// services can share them
type PostgresSource struct {
	db     *sql.DB
	table  string
	logger *logger.Logger
}

// NewPostgresSource connects to dbURL, retrying with a linear backoff while
// the database comes up, and creates the connections table if needed
func NewPostgresSource(ctx context.Context, dbURL string) (*PostgresSource, error) {
	const maxRetries = 5
	log := logger.New("config")

	var db *sql.DB
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = sql.Open("postgres", dbURL)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				break
			}
			_ = db.Close()
		}
		if attempt < maxRetries {
			backoff := time.Duration(attempt*2) * time.Second
			log.Warn("", "Connection source database unavailable, retrying", map[string]interface{}{
				"attempt": attempt,
				"backoff": backoff.String(),
				"error":   err.Error(),
			})
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	src := NewPostgresSourceWithDB(db, DefaultConnectionsTable, log)
	if err := src.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return src, nil
}

// NewPostgresSourceWithDB wraps an open handle. An empty table selects
// DefaultConnectionsTable.
func NewPostgresSourceWithDB(db *sql.DB, table string, l *logger.Logger) *PostgresSource {
	if table == "" {
		table = DefaultConnectionsTable
	}
	if l == nil {
		l = logger.New("config")
	}
	return &PostgresSource{db: db, table: table, logger: l}
}

// InitSchema creates the connections table if it does not exist
func (s *PostgresSource) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		name VARCHAR(255) PRIMARY KEY,
		connection_string TEXT NOT NULL,
		username VARCHAR(255),
		password TEXT,
		settings JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`, pq.QuoteIdentifier(s.table))

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// LoadConnections returns every stored connection in the shape expected by
// the "orm.connections" application setting
func (s *PostgresSource) LoadConnections(ctx context.Context) (map[string]any, error) {
	query := fmt.Sprintf(`SELECT name, connection_string, username, password, settings FROM %s ORDER BY name`,
		pq.QuoteIdentifier(s.table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]any)
	for rows.Next() {
		var name, dsn string
		var username, password sql.NullString
		var settingsJSON []byte
		if err := rows.Scan(&name, &dsn, &username, &password, &settingsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		params := make(map[string]any)
		if len(settingsJSON) > 0 {
			if err := json.Unmarshal(settingsJSON, &params); err != nil {
				return nil, fmt.Errorf("failed to unmarshal settings for %s: %w", name, err)
			}
		}
		params["connection_string"] = dsn
		if username.Valid {
			params["username"] = username.String
		}
		if password.Valid {
			params["password"] = password.String
		}
		out[name] = params
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	s.logger.Info("", "Loaded connections from database", map[string]interface{}{
		"count": len(out),
		"table": s.table,
	})
	return out, nil
}

// SaveConnection inserts or replaces a stored connection. Parameters other
// than connection_string, username and password go to the settings column.
func (s *PostgresSource) SaveConnection(ctx context.Context, name string, params map[string]any) error {
	dsn, _ := params["connection_string"].(string)
	if dsn == "" {
		return fmt.Errorf("connection %s: connection_string is required", name)
	}

	settings := make(map[string]any)
	for k, v := range params {
		switch k {
		case "connection_string", "username", "password":
			continue
		}
		settings[k] = v
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (name, connection_string, username, password, settings, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (name) DO UPDATE SET
			connection_string = EXCLUDED.connection_string,
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			settings = EXCLUDED.settings,
			updated_at = NOW()`, pq.QuoteIdentifier(s.table))

	_, err = s.db.ExecContext(ctx, query, name, dsn, nullString(params["username"]), nullString(params["password"]), settingsJSON)
	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}

	s.logger.Info(name, "Saved connection", nil)
	return nil
}

// DeleteConnection removes a stored connection
func (s *PostgresSource) DeleteConnection(ctx context.Context, name string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, pq.QuoteIdentifier(s.table))

	result, err := s.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("connection not found: %s", name)
	}
	return nil
}

// Close closes the database handle
func (s *PostgresSource) Close() error {
	return s.db.Close()
}

func nullString(v any) sql.NullString {
	s, ok := v.(string)
	if !ok || s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
