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

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func decodeEntry(t *testing.T, output string) LogEntry {
	t.Helper()

	var entry LogEntry
	line := strings.TrimSpace(output)
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v\nOutput: %s", err, output)
	}
	return entry
}

// TestNew tests logger initialization
func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		component  string
		instanceID string
	}{
		{name: "with instance ID set", component: "registry", instanceID: "instance-123"},
		{name: "without instance ID", component: "engine", instanceID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INSTANCE_ID", tt.instanceID)

			logger := New(tt.component)

			if logger.Component != tt.component {
				t.Errorf("Expected component %s, got %s", tt.component, logger.Component)
			}
			if tt.instanceID != "" && logger.InstanceID != tt.instanceID {
				t.Errorf("Expected instance ID %s, got %s", tt.instanceID, logger.InstanceID)
			}
			if tt.instanceID == "" && len(logger.InstanceID) != 36 {
				t.Errorf("Expected generated UUID instance ID, got %q", logger.InstanceID)
			}
			if logger.Container == "" {
				t.Error("Expected container to be set from hostname")
			}
		})
	}
}

// TestLogLevels tests all log level methods
func TestLogLevels(t *testing.T) {
	tests := []struct {
		name       string
		logFunc    func(*Logger, string, string, map[string]interface{})
		level      LogLevel
		connection string
		fields     map[string]interface{}
	}{
		{name: "Info log", logFunc: (*Logger).Info, level: INFO, connection: "default", fields: map[string]interface{}{"key": "value"}},
		{name: "Error log", logFunc: (*Logger).Error, level: ERROR, connection: "reporting", fields: map[string]interface{}{"code": 500}},
		{name: "Warn log", logFunc: (*Logger).Warn, level: WARN, connection: "", fields: nil},
		{name: "Debug log", logFunc: (*Logger).Debug, level: DEBUG, connection: "archive", fields: map[string]interface{}{"debug": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter("test-component", &buf)
			logger.SetLevel(DEBUG)

			tt.logFunc(logger, tt.connection, "message for "+tt.name, tt.fields)

			entry := decodeEntry(t, buf.String())

			if entry.Level != tt.level {
				t.Errorf("Expected level %s, got %s", tt.level, entry.Level)
			}
			if entry.Message != "message for "+tt.name {
				t.Errorf("Unexpected message %q", entry.Message)
			}
			if entry.Connection != tt.connection {
				t.Errorf("Expected connection %q, got %q", tt.connection, entry.Connection)
			}
			if entry.Component != "test-component" {
				t.Errorf("Expected component 'test-component', got '%s'", entry.Component)
			}
			if _, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err != nil {
				t.Errorf("Invalid timestamp format: %s", entry.Timestamp)
			}
			if len(tt.fields) != len(entry.Fields) {
				t.Errorf("Expected %d fields, got %d", len(tt.fields), len(entry.Fields))
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("test-component", &buf)
	logger.SetLevel(WARN)

	logger.Debug("default", "dropped", nil)
	logger.Info("default", "dropped", nil)
	if buf.Len() != 0 {
		t.Fatalf("Expected no output below WARN, got %q", buf.String())
	}

	logger.Warn("default", "kept", nil)
	if !strings.Contains(buf.String(), `"kept"`) {
		t.Errorf("Expected WARN entry to be written, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		" WARN ":  WARN,
		"warning": WARN,
		"error":   ERROR,
		"":        INFO,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

// TestInfoWithDuration tests the InfoWithDuration helper method
func TestInfoWithDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("test-component", &buf)
	logger.SetLevel(DEBUG)

	logger.InfoWithDuration("default", "Query executed", 12.5, map[string]interface{}{
		"table": "user",
	})

	entry := decodeEntry(t, buf.String())

	if entry.Fields["duration_ms"] != 12.5 {
		t.Errorf("Expected duration_ms 12.5, got %v", entry.Fields["duration_ms"])
	}
	if entry.Fields["table"] != "user" {
		t.Errorf("Expected table 'user', got %v", entry.Fields["table"])
	}
	if entry.Level != INFO {
		t.Errorf("Expected INFO level, got %s", entry.Level)
	}
}

func TestErrorWithCause(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("test-component", &buf)
	logger.SetLevel(DEBUG)

	logger.ErrorWithCause("default", "Query failed", errors.New("connection refused"), nil)

	entry := decodeEntry(t, buf.String())
	if entry.Fields["error"] != "connection refused" {
		t.Errorf("Expected error field, got %v", entry.Fields["error"])
	}
	if entry.Level != ERROR {
		t.Errorf("Expected ERROR level, got %s", entry.Level)
	}
}

// TestJSONMarshalError tests behavior when JSON marshaling fails
func TestJSONMarshalError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("test-component", &buf)
	logger.SetLevel(DEBUG)

	logger.Info("default", "Test message", map[string]interface{}{
		"channel": make(chan int),
	})

	if !strings.Contains(buf.String(), "Failed to marshal log entry") {
		t.Error("Expected error message about JSON marshaling failure")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(WARN) {
		t.Error("Discard logger should only enable ERROR")
	}
	logger.Error("default", "goes nowhere", nil)
}
