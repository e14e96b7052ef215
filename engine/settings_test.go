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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemorySettings_ConfigureAndGet(t *testing.T) {
	s := NewMemorySettings()

	s.Configure(KeyConnectionString, "sqlite::memory:", "")
	s.Configure(KeyUsername, "u", "reporting")

	v, ok := s.Get(KeyConnectionString, DefaultConnection)
	assert.True(t, ok)
	assert.Equal(t, "sqlite::memory:", v)

	v, ok = s.Get(KeyConnectionString, "")
	assert.True(t, ok, "empty connection name maps to default")
	assert.Equal(t, "sqlite::memory:", v)

	_, ok = s.Get(KeyPassword, "reporting")
	assert.False(t, ok)

	_, ok = s.Get(KeyUsername, "missing")
	assert.False(t, ok)
}

func TestMemorySettings_LastWriteWins(t *testing.T) {
	s := NewMemorySettings()
	s.Configure(KeyErrorMode, "warning", "c1")
	s.Configure(KeyErrorMode, "silent", "c1")

	assert.Equal(t, "silent", settingString(s, KeyErrorMode, "c1"))
}

func TestMemorySettings_ResetAndConnections(t *testing.T) {
	s := NewMemorySettings()
	s.Configure(KeyConnectionString, "dsn-b", "b")
	s.Configure(KeyConnectionString, "dsn-a", "a")
	s.Configure(KeyConnectionString, "dsn", "")

	assert.Equal(t, []string{"a", "b", DefaultConnection}, s.Connections())

	s.Reset()
	assert.Empty(t, s.Connections())
	_, ok := s.Get(KeyConnectionString, "a")
	assert.False(t, ok)
}

func TestMemorySettings_SnapshotIsCopy(t *testing.T) {
	s := NewMemorySettings()
	s.Configure(KeyCaching, true, "")

	snap := s.Snapshot("")
	snap[KeyCaching] = false

	v, _ := s.Get(KeyCaching, "")
	assert.Equal(t, true, v)
	assert.Empty(t, s.Snapshot("unknown"))
}

func TestSettingBool(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"string true", "true", true},
		{"string yes", "yes", true},
		{"string 1", "1", true},
		{"string off", "off", false},
		{"int", 1, true},
		{"int zero", 0, false},
		{"unsupported type", 1.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemorySettings()
			s.Configure(KeyLogging, tt.value, "")
			assert.Equal(t, tt.want, settingBool(s, KeyLogging, ""))
		})
	}

	assert.False(t, settingBool(NewMemorySettings(), KeyLogging, ""))
}
