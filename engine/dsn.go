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
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
)

// ErrUnsupportedDSN is returned when a connection string names a driver the
// engine cannot translate
var ErrUnsupportedDSN = errors.New("engine: unsupported connection string")

// DataSource is a connection string translated for database/sql
type DataSource struct {
	Driver string
	Source string
}

// ParseDSN translates a PDO-style connection string ("mysql:host=..;dbname=..",
// "pgsql:host=..", "sqlite:/path") or a postgres:// URL into a database/sql
// driver name and data source. Credentials and driver options are merged
// into the result.
func ParseDSN(dsn, username, password string, driverOptions any) (DataSource, error) {
	dsn = strings.TrimSpace(dsn)
	params, err := optionParams(driverOptions)
	if err != nil {
		return DataSource{}, err
	}

	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		conninfo, err := pq.ParseURL(dsn)
		if err != nil {
			return DataSource{}, fmt.Errorf("failed to parse postgres URL: %w", err)
		}
		return DataSource{Driver: "postgres", Source: appendConninfo(conninfo, username, password, params)}, nil
	case strings.HasPrefix(dsn, "mysql://"):
		cfg, err := mysql.ParseDSN(strings.TrimPrefix(dsn, "mysql://"))
		if err != nil {
			return DataSource{}, fmt.Errorf("failed to parse mysql DSN: %w", err)
		}
		return DataSource{Driver: "mysql", Source: finishMySQL(cfg, username, password, params)}, nil
	}

	prefix, body, ok := strings.Cut(dsn, ":")
	if !ok {
		return DataSource{}, fmt.Errorf("%w: missing driver prefix in %q", ErrUnsupportedDSN, redact(dsn))
	}

	switch strings.ToLower(prefix) {
	case "mysql":
		return DataSource{Driver: "mysql", Source: mysqlSource(pairs(body), username, password, params)}, nil
	case "pgsql", "postgres", "postgresql":
		return DataSource{Driver: "postgres", Source: postgresSource(pairs(body), username, password, params)}, nil
	case "sqlite", "sqlite3":
		return DataSource{Driver: "sqlite3", Source: sqliteSource(body, params)}, nil
	case "sqlsrv", "mssql", "dblib":
		return DataSource{Driver: "sqlserver", Source: sqlserverSource(pairs(body), username, password, params)}, nil
	default:
		return DataSource{}, fmt.Errorf("%w: driver %q", ErrUnsupportedDSN, prefix)
	}
}

// pairs splits "key=value;key=value" into a map
func pairs(body string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(body, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func mysqlSource(kv map[string]string, username, password string, params map[string]string) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"

	host := kv["host"]
	if host == "" {
		host = "localhost"
	}
	port := kv["port"]
	if port == "" {
		port = "3306"
	}
	cfg.Addr = net.JoinHostPort(host, port)
	if socket := kv["unix_socket"]; socket != "" {
		cfg.Net = "unix"
		cfg.Addr = socket
	}
	cfg.DBName = kv["dbname"]
	if charset := kv["charset"]; charset != "" {
		params["charset"] = charset
	}

	return finishMySQL(cfg, username, password, params)
}

func finishMySQL(cfg *mysql.Config, username, password string, params map[string]string) string {
	if username != "" {
		cfg.User = username
	}
	if password != "" {
		cfg.Passwd = password
	}
	cfg.ParseTime = true
	if len(params) > 0 {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string, len(params))
		}
		for k, v := range params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN()
}

func postgresSource(kv map[string]string, username, password string, params map[string]string) string {
	var parts []string
	for _, key := range sortedKeys(kv) {
		parts = append(parts, key+"="+quoteConninfo(kv[key]))
	}
	return appendConninfo(strings.Join(parts, " "), username, password, params)
}

func appendConninfo(conninfo, username, password string, params map[string]string) string {
	parts := []string{}
	if conninfo != "" {
		parts = append(parts, conninfo)
	}
	if username != "" {
		parts = append(parts, "user="+quoteConninfo(username))
	}
	if password != "" {
		parts = append(parts, "password="+quoteConninfo(password))
	}
	for _, key := range sortedKeys(params) {
		parts = append(parts, key+"="+quoteConninfo(params[key]))
	}
	return strings.Join(parts, " ")
}

// quoteConninfo quotes a libpq conninfo value when it is empty or contains
// spaces, quotes or backslashes
func quoteConninfo(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// sqlserverKeys are the PDO pairs consumed by sqlserverSource; any other
// pair is passed to the driver as a URL parameter
var sqlserverKeys = map[string]bool{
	"server": true, "host": true, "port": true, "database": true, "dbname": true, "uid": true, "pwd": true,
}

// sqlserverSource builds a sqlserver:// URL from sqlsrv ("Server=host,port;
// Database=app") or dblib ("host=..;port=..;dbname=..") pairs
func sqlserverSource(kv map[string]string, username, password string, params map[string]string) string {
	host := kv["server"]
	if host == "" {
		host = kv["host"]
	}
	host = strings.TrimPrefix(host, "tcp:")
	port := kv["port"]
	if h, p, ok := strings.Cut(host, ","); ok {
		host, port = strings.TrimSpace(h), strings.TrimSpace(p)
	}
	if host == "" {
		host = "localhost"
	}

	u := url.URL{Scheme: "sqlserver"}
	if h, instance, ok := strings.Cut(host, `\`); ok {
		host = h
		u.Path = "/" + instance
	}
	u.Host = host
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	}

	if username == "" {
		username = kv["uid"]
	}
	if password == "" {
		password = kv["pwd"]
	}
	switch {
	case username != "" && password != "":
		u.User = url.UserPassword(username, password)
	case username != "":
		u.User = url.User(username)
	}

	q := url.Values{}
	database := kv["database"]
	if database == "" {
		database = kv["dbname"]
	}
	if database != "" {
		q.Set("database", database)
	}
	for k, v := range kv {
		if !sqlserverKeys[k] {
			q.Set(k, v)
		}
	}
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func sqliteSource(path string, params map[string]string) string {
	path = strings.TrimSpace(path)
	if len(params) == 0 {
		return path
	}
	var q []string
	for _, key := range sortedKeys(params) {
		q = append(q, key+"="+params[key])
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(q, "&")
}

// optionParams flattens driver options into string parameters. Options may
// be a map or a "key=value;key=value" string.
func optionParams(options any) (map[string]string, error) {
	out := make(map[string]string)
	switch o := options.(type) {
	case nil:
	case string:
		for k, v := range pairs(strings.ReplaceAll(o, "&", ";")) {
			out[k] = v
		}
	case map[string]string:
		for k, v := range o {
			out[k] = v
		}
	case map[string]any:
		for k, v := range o {
			out[k] = fmt.Sprint(v)
		}
	default:
		return nil, fmt.Errorf("engine: driver options must be a map or key=value string, got %T", options)
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	userinfoPattern   = regexp.MustCompile(`(?i)^([a-z][a-z0-9+.-]*://[^:@/]*):[^@/]*@`)
	secretPairPattern = regexp.MustCompile(`(?i)(^|[;:?&\s])(password|pwd)(\s*=\s*)('(?:[^'\\]|\\.)*'|[^;&\s]*)`)
)

// RedactDSN masks credentials embedded in a connection string: the
// password in URL userinfo and any password= or pwd= pair. The rest of the
// string is kept so it stays useful for display.
func RedactDSN(dsn string) string {
	out := userinfoPattern.ReplaceAllString(dsn, "${1}:****@")
	return secretPairPattern.ReplaceAllString(out, "${1}${2}${3}****")
}

// redact hides anything after the driver prefix of a connection string
func redact(dsn string) string {
	if len(dsn) <= 8 {
		return "****"
	}
	return dsn[:4] + "****"
}
