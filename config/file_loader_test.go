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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("ORMTEST_HOST", "db.internal")
	t.Setenv("ORMTEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"braced", "host=${ORMTEST_HOST}", "host=db.internal"},
		{"bare", "host=$ORMTEST_HOST;", "host=db.internal;"},
		{"default used", "${ORMTEST_MISSING:-localhost}", "localhost"},
		{"default ignored", "${ORMTEST_HOST:-localhost}", "db.internal"},
		{"empty uses default", "${ORMTEST_EMPTY:-fallback}", "fallback"},
		{"undefined", "[${ORMTEST_MISSING}]", "[]"},
		{"no references", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.input))
		})
	}
}

func TestParseFile(t *testing.T) {
	t.Setenv("ORMTEST_DB_PASSWORD", "  spaced  ")

	cfg, err := ParseFile([]byte(`
version: "1.0"
orm:
  cache:
    backend: memory
    ttl: 30s
  connections:
    default:
      connection_string: "sqlite::memory:"
      password: "${ORMTEST_DB_PASSWORD}"
      caching: true
    reports:
      connection_string: "pgsql:host=localhost;dbname=reports"
      id_column_overrides:
        daily: day
`))
	require.NoError(t, err)
	assert.Equal(t, "1.0", cfg.Version)

	conns := cfg.ConnectionSettings()
	require.Len(t, conns, 2)

	def := conns["default"].(map[string]any)
	assert.Equal(t, "sqlite::memory:", def["connection_string"])
	assert.Equal(t, "  spaced  ", def["password"])
	assert.Equal(t, true, def["caching"])

	reports := conns["reports"].(map[string]any)
	assert.Equal(t, map[string]any{"daily": "day"}, reports["id_column_overrides"])

	ttl, err := cfg.ORM.Cache.TTLDuration()
	require.NoError(t, err)
	assert.Equal(t, "30s", ttl.String())
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name    string
		cfg     File
		wantErr string
	}{
		{"missing version", File{}, "version"},
		{"bad backend", File{Version: "1", ORM: ORMConfig{Cache: CacheConfig{Backend: "memcached"}}}, "invalid cache backend"},
		{"redis without url", File{Version: "1", ORM: ORMConfig{Cache: CacheConfig{Backend: "redis"}}}, "redis_url"},
		{"bad ttl", File{Version: "1", ORM: ORMConfig{Cache: CacheConfig{TTL: "soon"}}}, "invalid cache ttl"},
		{"valid", File{Version: "1", ORM: ORMConfig{Cache: CacheConfig{Backend: "redis", RedisURL: "redis://x"}}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile(&tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestYAMLFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "1.0"
orm:
  connections:
    default:
      connection_string: "sqlite::memory:"
`), 0o600))

	loader, err := NewYAMLFileLoader(path)
	require.NoError(t, err)
	assert.Len(t, loader.Connections(), 1)

	require.NoError(t, os.WriteFile(path, []byte(`
version: "1.0"
orm:
  connections:
    a:
      connection_string: "sqlite::memory:"
    b:
      connection_string: "sqlite::memory:"
`), 0o600))
	require.NoError(t, loader.Reload())
	assert.Len(t, loader.Connections(), 2)

	_, err = NewYAMLFileLoader(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version: [unclosed"), 0o600))
	assert.Error(t, loader.Reload())
}

func TestExampleFileParses(t *testing.T) {
	cfg, err := ParseFile([]byte(ExampleFile()))
	require.NoError(t, err)
	assert.Len(t, cfg.ORM.Connections, 3)
	assert.Equal(t, "secret://prod/reporting-db#password", cfg.ORM.Connections["reporting"]["password"])
}
