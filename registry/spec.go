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

import (
	"fmt"
	"sort"
	"strings"

	"ormbridge/engine"
)

// ConnectionSpec is one named connection's declared parameters
type ConnectionSpec struct {
	// Name of the connection. Blank means engine.DefaultConnection.
	Name string

	// DSN is the connection string, e.g. "mysql:host=db;dbname=app"
	DSN string

	Username string
	Password string

	// DriverOptions is passed to the engine unexamined apart from
	// trimming string values
	DriverOptions any

	// Extra holds any other parameter (caching, error_mode, ...) forwarded
	// verbatim under the connection's name
	Extra map[string]any
}

// normalizedName returns the trimmed name, or the default connection name
// when blank
func (s ConnectionSpec) normalizedName() string {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return engine.DefaultConnection
	}
	return name
}

func (s ConnectionSpec) validate() error {
	if strings.TrimSpace(s.DSN) == "" {
		return newConfigError(s.normalizedName(), engine.KeyConnectionString, "connection string must not be blank", ErrEmptyDSN)
	}
	return nil
}

// ParseConnections converts the raw "orm.connections" value into specs
// sorted by name. A nil value yields no specs.
func ParseConnections(raw any) ([]ConnectionSpec, error) {
	if raw == nil {
		return nil, nil
	}

	entries, ok := toStringMap(raw)
	if !ok {
		return nil, fmt.Errorf("%w: expected a mapping of connection name to parameters, got %T", ErrInvalidConfiguration, raw)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]ConnectionSpec, 0, len(names))
	for _, name := range names {
		spec, err := parseEntry(name, entries[name])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseEntry(name string, raw any) (ConnectionSpec, error) {
	params, ok := toStringMap(raw)
	if !ok {
		return ConnectionSpec{}, newConfigError(name, "", fmt.Sprintf("expected a mapping of parameters, got %T", raw), ErrInvalidConfiguration)
	}

	dsn, ok := params[engine.KeyConnectionString]
	if !ok {
		return ConnectionSpec{}, newConfigError(name, engine.KeyConnectionString, "required parameter is missing", ErrInvalidConfiguration)
	}

	spec := ConnectionSpec{Name: name, Extra: make(map[string]any)}
	// A non-string DSN is treated as absent and fails as an empty DSN
	spec.DSN, _ = dsn.(string)

	var err error
	if spec.Username, err = optionalString(name, engine.KeyUsername, params); err != nil {
		return ConnectionSpec{}, err
	}
	if spec.Password, err = optionalString(name, engine.KeyPassword, params); err != nil {
		return ConnectionSpec{}, err
	}
	spec.DriverOptions = params[engine.KeyDriverOptions]

	for key, value := range params {
		switch key {
		case engine.KeyConnectionString, engine.KeyUsername, engine.KeyPassword, engine.KeyDriverOptions:
			continue
		}
		spec.Extra[key] = value
	}
	return spec, nil
}

func optionalString(connection, key string, params map[string]any) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", newConfigError(connection, key, fmt.Sprintf("expected a string, got %T", v), ErrInvalidConfiguration)
	}
	return s, nil
}

// toStringMap accepts the map shapes produced by YAML and JSON decoders
func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]map[string]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}
