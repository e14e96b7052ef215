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
	"sort"
	"sync"
)

// DefaultConnection is the name used when no connection name is given
const DefaultConnection = "default"

// Configuration keys understood by the engine. Unknown keys are stored and
// returned by Snapshot but otherwise ignored.
const (
	KeyConnectionString         = "connection_string"
	KeyUsername                 = "username"
	KeyPassword                 = "password"
	KeyDriverOptions            = "driver_options"
	KeyCaching                  = "caching"
	KeyCachingAutoClear         = "caching_auto_clear"
	KeyLogging                  = "logging"
	KeyLogger                   = "logger"
	KeyReturnResultSets         = "return_result_sets"
	KeyErrorMode                = "error_mode"
	KeyIdentifierQuoteCharacter = "identifier_quote_character"
	KeyIDColumn                 = "id_column"
	KeyIDColumnOverrides        = "id_column_overrides"
	KeyLimitClauseStyle         = "limit_clause_style"
)

// Settings is the key/value configuration store consulted by the engine.
// Values are scoped by connection name.
type Settings interface {
	Configure(key string, value any, connection string)
	Get(key, connection string) (any, bool)
	Reset()
	Connections() []string
	Snapshot(connection string) map[string]any
}

// MemorySettings is an in-process Settings implementation.
// It is safe for concurrent use.
type MemorySettings struct {
	mu    sync.RWMutex
	store map[string]map[string]any
}

// NewMemorySettings creates an empty settings store
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{store: make(map[string]map[string]any)}
}

// Configure sets key to value for the connection. Later writes win.
func (s *MemorySettings) Configure(key string, value any, connection string) {
	if connection == "" {
		connection = DefaultConnection
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.store[connection]
	if !ok {
		values = make(map[string]any)
		s.store[connection] = values
	}
	values[key] = value
}

// Get returns the value stored under key for the connection
func (s *MemorySettings) Get(key, connection string) (any, bool) {
	if connection == "" {
		connection = DefaultConnection
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.store[connection]
	if !ok {
		return nil, false
	}
	v, ok := values[key]
	return v, ok
}

// Reset drops every connection's settings
func (s *MemorySettings) Reset() {
	s.mu.Lock()
	s.store = make(map[string]map[string]any)
	s.mu.Unlock()
}

// Connections returns the names of connections holding at least one
// setting, sorted
func (s *MemorySettings) Connections() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.store))
	for name := range s.store {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the connection's settings
func (s *MemorySettings) Snapshot(connection string) map[string]any {
	if connection == "" {
		connection = DefaultConnection
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.store[connection]))
	for k, v := range s.store[connection] {
		out[k] = v
	}
	return out
}

// settingString reads a string setting, returning "" when absent or not a string
func settingString(s Settings, key, connection string) string {
	v, ok := s.Get(key, connection)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// settingBool reads a boolean setting. Strings "true", "1", "yes" and "on"
// count as true so that env-sourced configuration behaves the same as YAML.
func settingBool(s Settings, key, connection string) bool {
	v, ok := s.Get(key, connection)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch b {
		case "true", "1", "yes", "on":
			return true
		}
	case int:
		return b != 0
	}
	return false
}
