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

package registry

import "errors"

var (
	// ErrNullHostContext is returned when no application is supplied
	ErrNullHostContext = errors.New("registry: host application is nil")

	// ErrAlreadyRegistered is returned when the application's "db" slot
	// already holds a registry
	ErrAlreadyRegistered = errors.New("registry: already registered")

	// ErrResourceConflict is returned when the "db" slot holds something
	// other than a registry
	ErrResourceConflict = errors.New("registry: resource name taken by another value")

	// ErrInvalidConfiguration is returned for malformed connection settings
	ErrInvalidConfiguration = errors.New("registry: invalid connection configuration")

	// ErrEmptyDSN is returned when a connection string is empty or blank
	ErrEmptyDSN = errors.New("registry: connection string is empty")
)

// ConfigError reports which connection and key failed validation. Cause is
// one of the sentinel errors above.
type ConfigError struct {
	Connection string
	Key        string
	Message    string
	Cause      error
}

func (e *ConfigError) Error() string {
	prefix := e.Connection
	if e.Key != "" {
		prefix += "." + e.Key
	}
	if e.Cause != nil {
		return prefix + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return prefix + ": " + e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func newConfigError(connection, key, message string, cause error) *ConfigError {
	return &ConfigError{
		Connection: connection,
		Key:        key,
		Message:    message,
		Cause:      cause,
	}
}
