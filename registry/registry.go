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
	"errors"
	"fmt"
	"sort"
	"strings"

	"ormbridge/engine"
	"ormbridge/host"
	"ormbridge/shared/logger"
)

const (
	// ResourceName is the container slot the registry installs itself in
	ResourceName = "db"

	// SettingConnections is the application setting holding the
	// connection definitions
	SettingConnections = "orm.connections"
)

// Registry applies connection definitions to a query engine and exposes
// the engine's table and model factories
type Registry struct {
	app    *host.App
	engine *engine.Engine
	logger *logger.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithEngine sets the query engine the registry configures. Without it a
// new engine with an in-memory settings store is used.
func WithEngine(e *engine.Engine) Option {
	return func(r *Registry) { r.engine = e }
}

// WithLogger sets the registry logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// Register creates a registry for app and installs it in the application's
// container under ResourceName. It fails without side effects when the
// slot is already occupied.
func Register(app *host.App, opts ...Option) (*Registry, error) {
	if app == nil {
		return nil, ErrNullHostContext
	}
	if err := checkSlot(app.Container()); err != nil {
		return nil, err
	}

	r, err := New(app, opts...)
	if err != nil {
		return nil, err
	}

	if err := app.Container().Set(ResourceName, r); err != nil {
		if errors.Is(err, host.ErrSlotTaken) {
			return nil, checkSlot(app.Container())
		}
		return nil, err
	}

	r.logger.Info("", "ORM registry registered", map[string]interface{}{
		"resource":    ResourceName,
		"connections": r.Connections(),
	})
	return r, nil
}

// checkSlot classifies an occupied slot without building it. A lazy
// Singleton that has not been resolved yet counts as a conflict.
func checkSlot(c *host.Container) error {
	if !c.Has(ResourceName) {
		return nil
	}
	if v, ok := c.Peek(ResourceName); ok {
		if _, isRegistry := v.(*Registry); isRegistry {
			return ErrAlreadyRegistered
		}
	}
	return fmt.Errorf("%w: %q", ErrResourceConflict, ResourceName)
}

// FromApp returns the registry installed in app's container
func FromApp(app *host.App) (*Registry, error) {
	if app == nil {
		return nil, ErrNullHostContext
	}
	v, err := app.Container().Resolve(ResourceName)
	if err != nil {
		return nil, err
	}
	r, ok := v.(*Registry)
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %T", ErrResourceConflict, ResourceName, v)
	}
	return r, nil
}

// New creates a registry bound to app and applies the connections found
// under SettingConnections. Every entry is validated before anything is
// written to the engine, so a bad entry leaves the engine untouched.
func New(app *host.App, opts ...Option) (*Registry, error) {
	if app == nil {
		return nil, ErrNullHostContext
	}

	r := &Registry{app: app}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.New("registry")
	}
	if r.engine == nil {
		r.engine = engine.New(nil, engine.WithLogger(r.logger))
	}

	raw, _ := app.Config(SettingConnections)
	specs, err := ParseConnections(raw)
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		if err := spec.validate(); err != nil {
			return nil, err
		}
	}

	for _, spec := range specs {
		if err := r.AddConnection(spec); err != nil {
			return nil, err
		}
		name := spec.normalizedName()
		for _, key := range sortedKeys(spec.Extra) {
			r.engine.Configure(key, spec.Extra[key], name)
		}
	}
	return r, nil
}

// AddConnection writes a connection's parameters to the engine. The DSN and
// username are trimmed; the password is written as given. Blank optional
// values are not written.
func (r *Registry) AddConnection(spec ConnectionSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}
	name := spec.normalizedName()

	r.engine.Configure(engine.KeyConnectionString, strings.TrimSpace(spec.DSN), name)
	if username := strings.TrimSpace(spec.Username); username != "" {
		r.engine.Configure(engine.KeyUsername, username, name)
	}
	if strings.TrimSpace(spec.Password) != "" {
		r.engine.Configure(engine.KeyPassword, spec.Password, name)
	}
	if options, ok := normalizeDriverOptions(spec.DriverOptions); ok {
		r.engine.Configure(engine.KeyDriverOptions, options, name)
	}

	r.logger.Debug(name, "Connection configured", map[string]interface{}{
		"has_username": strings.TrimSpace(spec.Username) != "",
		"has_password": strings.TrimSpace(spec.Password) != "",
	})
	return nil
}

// SetConnection replaces every configured connection with a single default
// connection. spec.Name is ignored. The DSN is checked before anything is
// reset.
func (r *Registry) SetConnection(spec ConnectionSpec) error {
	spec.Name = engine.DefaultConnection
	if err := spec.validate(); err != nil {
		return err
	}

	r.ResetConnections()
	return r.AddConnection(spec)
}

// ResetConnections removes every connection from the engine
func (r *Registry) ResetConnections() {
	r.engine.ResetConfig()
	r.logger.Info("", "All connections reset", nil)
}

// Configure forwards a single setting to the engine. The default connection
// is used when none is given.
func (r *Registry) Configure(key string, value any, connection ...string) {
	r.engine.Configure(key, value, pick(connection))
}

// Table starts a query against table on the given (or default) connection
func (r *Registry) Table(table string, connection ...string) *engine.Query {
	return r.engine.ForTable(table, pick(connection))
}

// Model starts a query for a model on the given (or default) connection
func (r *Registry) Model(model string, connection ...string) *engine.Query {
	return r.engine.Factory(model, pick(connection))
}

// App returns the host application the registry is bound to
func (r *Registry) App() *host.App {
	return r.app
}

// Engine returns the configured query engine
func (r *Registry) Engine() *engine.Engine {
	return r.engine
}

// Connections returns the configured connection names, sorted
func (r *Registry) Connections() []string {
	return r.engine.Settings().Connections()
}

// Describe returns a connection's settings for display. The password is
// masked, credentials embedded in the connection string or driver options
// are redacted and callback values are replaced by a placeholder.
func (r *Registry) Describe(connection string) map[string]any {
	out := r.engine.Settings().Snapshot(pick([]string{connection}))
	for key, value := range out {
		switch key {
		case engine.KeyPassword:
			out[key] = maskSecret(fmt.Sprint(value))
		case engine.KeyConnectionString:
			if s, ok := value.(string); ok {
				out[key] = engine.RedactDSN(s)
			}
		case engine.KeyDriverOptions:
			out[key] = redactOptions(value)
		case engine.KeyLogger:
			out[key] = "<func>"
		}
	}
	return out
}

// redactOptions masks password entries in driver options, returning a copy
func redactOptions(options any) any {
	switch o := options.(type) {
	case string:
		return engine.RedactDSN(o)
	case map[string]any:
		out := make(map[string]any, len(o))
		for k, v := range o {
			if isSecretKey(k) {
				v = "****"
			}
			out[k] = v
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(o))
		for k, v := range o {
			if isSecretKey(k) {
				v = "****"
			}
			out[k] = v
		}
		return out
	}
	return options
}

func isSecretKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "password", "pwd", "passwd":
		return true
	}
	return false
}

// Close closes every database handle the engine opened
func (r *Registry) Close() error {
	return r.engine.Close()
}

func pick(connection []string) string {
	if len(connection) == 0 {
		return engine.DefaultConnection
	}
	name := strings.TrimSpace(connection[0])
	if name == "" {
		return engine.DefaultConnection
	}
	return name
}

// normalizeDriverOptions trims string options and drops empty values
func normalizeDriverOptions(options any) (any, bool) {
	switch o := options.(type) {
	case nil:
		return nil, false
	case string:
		o = strings.TrimSpace(o)
		return o, o != ""
	case map[string]any:
		return o, len(o) > 0
	case map[string]string:
		return o, len(o) > 0
	}
	return options, true
}

// maskSecret keeps the first and last character of long values
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:1] + "****" + s[len(s)-1:]
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
