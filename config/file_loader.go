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
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the root structure of a configuration file
type File struct {
	Version  string         `yaml:"version"`
	ORM      ORMConfig      `yaml:"orm"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// ORMConfig holds the connection definitions and query cache settings
type ORMConfig struct {
	Connections map[string]map[string]any `yaml:"connections,omitempty"`
	Cache       CacheConfig               `yaml:"cache,omitempty"`
}

// CacheConfig selects the query cache backend
type CacheConfig struct {
	// Backend is "memory" (default) or "redis"
	Backend  string `yaml:"backend,omitempty"`
	RedisURL string `yaml:"redis_url,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	TTL      string `yaml:"ttl,omitempty"`
}

// TTLDuration parses TTL. An empty TTL means no expiry.
func (c CacheConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", c.TTL, err)
	}
	return d, nil
}

// YAMLFileLoader loads connection definitions from a YAML file
type YAMLFileLoader struct {
	filePath string
	config   *File
}

// NewYAMLFileLoader reads, expands and validates the file at filePath
func NewYAMLFileLoader(filePath string) (*YAMLFileLoader, error) {
	loader := &YAMLFileLoader{filePath: filePath}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	return loader, nil
}

func (l *YAMLFileLoader) reload() error {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", l.filePath, err)
	}

	cfg, err := ParseFile(data)
	if err != nil {
		return err
	}
	l.config = cfg
	return nil
}

// Reload re-reads the file
func (l *YAMLFileLoader) Reload() error {
	return l.reload()
}

// Config returns the parsed file
func (l *YAMLFileLoader) Config() *File {
	return l.config
}

// Connections returns the connection definitions in the shape expected by
// the "orm.connections" application setting
func (l *YAMLFileLoader) Connections() map[string]any {
	if l.config == nil {
		return map[string]any{}
	}
	return l.config.ConnectionSettings()
}

// ParseFile expands environment references in data and decodes it
func ParseFile(data []byte) (*File, error) {
	expanded := expandEnvVars(string(data))

	var cfg File
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := ValidateFile(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConnectionSettings copies the connections into a map of parameter maps
func (f *File) ConnectionSettings() map[string]any {
	out := make(map[string]any, len(f.ORM.Connections))
	for name, params := range f.ORM.Connections {
		copied := make(map[string]any, len(params))
		for k, v := range params {
			copied[k] = v
		}
		out[name] = copied
	}
	return out
}

// ValidateFile checks the parts of a file the registry does not validate
// itself
func ValidateFile(cfg *File) error {
	if cfg.Version == "" {
		return fmt.Errorf("config file must specify a version")
	}

	switch cfg.ORM.Cache.Backend {
	case "", "memory":
	case "redis":
		if cfg.ORM.Cache.RedisURL == "" {
			return fmt.Errorf("cache backend 'redis' requires redis_url")
		}
	default:
		return fmt.Errorf("invalid cache backend '%s'", cfg.ORM.Cache.Backend)
	}

	if _, err := cfg.ORM.Cache.TTLDuration(); err != nil {
		return err
	}
	return nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands ${VAR}, ${VAR:-default} and $VAR references.
// Undefined variables without a default expand to "".
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}

// ExampleFile returns a commented example configuration
func ExampleFile() string {
	return `# ormbridge configuration
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default}

version: "1.0"

orm:
  cache:
    backend: ${ORM_CACHE_BACKEND:-memory}
    redis_url: ${REDIS_URL:-redis://localhost:6379/0}
    ttl: 5m

  connections:
    default:
      connection_string: "mysql:host=${DB_HOST:-localhost};port=3306;dbname=app;charset=utf8mb4"
      username: ${DB_USER:-app}
      password: ${DB_PASSWORD}
      caching: true
      caching_auto_clear: true

    reporting:
      connection_string: ${REPORTING_DATABASE_URL:-postgres://localhost:5432/warehouse?sslmode=disable}
      username: reporter
      password: secret://prod/reporting-db#password
      error_mode: warning
      id_column_overrides:
        daily_totals: day

    local:
      connection_string: "sqlite:/var/lib/ormbridge/local.db"
      logging: true
`
}
