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

package host

import (
	"strings"
	"sync"
)

// App is the host application context
type App struct {
	mu        sync.RWMutex
	settings  map[string]any
	container *Container
}

// NewApp creates an application with the given settings. Nested maps are
// addressable with dotted keys ("orm.connections").
func NewApp(settings map[string]any) *App {
	s := make(map[string]any, len(settings))
	for k, v := range settings {
		s[k] = v
	}
	return &App{settings: s, container: NewContainer()}
}

// Config returns a setting by key. A dotted key is looked up verbatim
// first and then walked through nested maps.
func (a *App) Config(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if v, ok := a.settings[key]; ok {
		return v, true
	}

	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return nil, false
	}

	var cur any = a.settings
	for _, p := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetConfig stores a setting under key, replacing any previous value
func (a *App) SetConfig(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings[key] = value
}

// Container returns the application's resource container
func (a *App) Container() *Container {
	return a.container
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
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
