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
	"sort"
	"strings"
)

// EnvConnectionsVar lists the connection names LoadConnectionsFromEnv reads,
// comma separated
const EnvConnectionsVar = "ORM_CONNECTIONS"

// envKeys maps environment suffixes to connection parameters
var envKeys = map[string]string{
	"DSN":                "connection_string",
	"USERNAME":           "username",
	"PASSWORD":           "password",
	"OPTIONS":            "driver_options",
	"CACHING":            "caching",
	"CACHING_AUTO_CLEAR": "caching_auto_clear",
	"LOGGING":            "logging",
	"ERROR_MODE":         "error_mode",
	"RETURN_RESULT_SETS": "return_result_sets",
	"QUOTE_CHARACTER":    "identifier_quote_character",
	"ID_COLUMN":          "id_column",
	"LIMIT_CLAUSE_STYLE": "limit_clause_style",
}

// EnvPrefix returns the variable prefix for a connection,
// e.g. "ORM_REPORTING_" for "reporting"
func EnvPrefix(connection string) string {
	name := strings.ToUpper(strings.TrimSpace(connection))
	name = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)
	return "ORM_" + name + "_"
}

// LoadFromEnv reads one connection's parameters from ORM_<NAME>_* variables.
// ORM_<NAME>_DSN is required. Password values are kept exactly as set.
func LoadFromEnv(connection string) (map[string]any, error) {
	prefix := EnvPrefix(connection)

	dsn := os.Getenv(prefix + "DSN")
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("missing required environment variable: %sDSN", prefix)
	}

	params := make(map[string]any)
	for suffix, key := range envKeys {
		if value, ok := os.LookupEnv(prefix + suffix); ok && value != "" {
			params[key] = value
		}
	}
	return params, nil
}

// LoadConnectionsFromEnv reads every connection named in ORM_CONNECTIONS.
// An unset variable yields no connections.
func LoadConnectionsFromEnv() (map[string]any, error) {
	out := make(map[string]any)

	list := os.Getenv(EnvConnectionsVar)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		params, err := LoadFromEnv(name)
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", name, err)
		}
		out[name] = params
	}
	return out, nil
}

// MergeConnections overlays connection maps left to right. Parameters of a
// connection present in several sources are merged key by key.
func MergeConnections(sources ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, src := range sources {
		names := make([]string, 0, len(src))
		for name := range src {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			params, ok := src[name].(map[string]any)
			if !ok {
				out[name] = src[name]
				continue
			}
			merged, ok := out[name].(map[string]any)
			if !ok {
				merged = make(map[string]any, len(params))
				out[name] = merged
			}
			for k, v := range params {
				merged[k] = v
			}
		}
	}
	return out
}
