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
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormbridge/shared/logger"
)

func newMockSource(t *testing.T) (*PostgresSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresSourceWithDB(db, "", logger.Discard()), mock
}

func TestPostgresSource_InitSchema(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "orm_connections"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, src.InitSchema(context.Background()))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	err := src.InitSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create schema")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_LoadConnections(t *testing.T) {
	src, mock := newMockSource(t)

	rows := sqlmock.NewRows([]string{"name", "connection_string", "username", "password", "settings"}).
		AddRow("default", "pgsql:host=db;dbname=app", "app", " pw ", []byte(`{"caching":true}`)).
		AddRow("reports", "sqlite::memory:", nil, nil, []byte(`{}`))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name, connection_string, username, password, settings FROM "orm_connections" ORDER BY name`)).
		WillReturnRows(rows)

	conns, err := src.LoadConnections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"connection_string": "pgsql:host=db;dbname=app",
		"username":          "app",
		"password":          " pw ",
		"caching":           true,
	}, conns["default"])
	assert.Equal(t, map[string]any{"connection_string": "sqlite::memory:"}, conns["reports"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_LoadConnectionsErrors(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery("SELECT name").WillReturnError(sql.ErrConnDone)
	_, err := src.LoadConnections(context.Background())
	assert.ErrorIs(t, err, sql.ErrConnDone)

	mock.ExpectQuery("SELECT name").WillReturnRows(
		sqlmock.NewRows([]string{"name", "connection_string", "username", "password", "settings"}).
			AddRow("bad", "dsn", nil, nil, []byte(`not json`)))
	_, err = src.LoadConnections(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal settings for bad")
}

func TestPostgresSource_SaveConnection(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "orm_connections"`)).
		WithArgs("reports", "sqlite::memory:", "svc", nil, []byte(`{"error_mode":"warning"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := src.SaveConnection(context.Background(), "reports", map[string]any{
		"connection_string": "sqlite::memory:",
		"username":          "svc",
		"error_mode":        "warning",
	})
	require.NoError(t, err)

	err = src.SaveConnection(context.Background(), "empty", map[string]any{})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_DeleteConnection(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "orm_connections" WHERE name = $1`)).
		WithArgs("reports").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "orm_connections" WHERE name = $1`)).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, src.DeleteConnection(context.Background(), "reports"))
	err := src.DeleteConnection(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNullString(t *testing.T) {
	assert.Equal(t, sql.NullString{}, nullString(nil))
	assert.Equal(t, sql.NullString{}, nullString(""))
	assert.Equal(t, sql.NullString{}, nullString(3))
	assert.Equal(t, sql.NullString{String: " x ", Valid: true}, nullString(" x "))
}
