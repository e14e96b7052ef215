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
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_Config(t *testing.T) {
	app := NewApp(map[string]any{
		"debug": true,
		"orm": map[string]any{
			"connections": map[string]any{
				"default": map[string]any{"connection_string": "sqlite::memory:"},
			},
		},
		"legacy": map[any]any{"name": "x"},
	})

	v, ok := app.Config("debug")
	assert.True(t, ok)
	assert.Equal(t, true, v)

	v, ok = app.Config("orm.connections")
	require.True(t, ok)
	assert.Contains(t, v, "default")

	v, ok = app.Config("legacy.name")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = app.Config("orm.missing")
	assert.False(t, ok)
	_, ok = app.Config("debug.nested")
	assert.False(t, ok)
	_, ok = app.Config("absent")
	assert.False(t, ok)
}

func TestApp_SetConfigOverridesNested(t *testing.T) {
	app := NewApp(nil)
	app.SetConfig("orm.connections", map[string]any{"c1": map[string]any{}})

	v, ok := app.Config("orm.connections")
	require.True(t, ok)
	assert.Contains(t, v, "c1")
}

func TestContainer_Singleton(t *testing.T) {
	c := NewContainer()

	var builds int32
	require.NoError(t, c.Singleton("db", func() (any, error) {
		atomic.AddInt32(&builds, 1)
		return &struct{ n int }{n: 1}, nil
	}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&builds), "builder is lazy")

	var wg sync.WaitGroup
	results := make([]any, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Resolve("db")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestContainer_SingletonBuildError(t *testing.T) {
	c := NewContainer()
	boom := errors.New("boom")
	require.NoError(t, c.Singleton("db", func() (any, error) { return nil, boom }))

	_, err := c.Resolve("db")
	assert.ErrorIs(t, err, boom)
	_, err = c.Resolve("db")
	assert.ErrorIs(t, err, boom, "failed builds are not retried")
}

func TestContainer_SlotTaken(t *testing.T) {
	c := NewContainer()
	require.NoError(t, c.Set("db", "first"))

	err := c.Set("db", "second")
	assert.ErrorIs(t, err, ErrSlotTaken)
	err = c.Singleton("db", func() (any, error) { return "third", nil })
	assert.ErrorIs(t, err, ErrSlotTaken)

	v, err := c.Resolve("db")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestContainer_Peek(t *testing.T) {
	c := NewContainer()
	_, ok := c.Peek("missing")
	assert.False(t, ok)

	require.NoError(t, c.Set("eager", 1))
	v, ok := c.Peek("eager")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	var builds int32
	require.NoError(t, c.Singleton("lazy", func() (any, error) {
		atomic.AddInt32(&builds, 1)
		return "built", nil
	}))
	_, ok = c.Peek("lazy")
	assert.False(t, ok)
	assert.Equal(t, int32(0), atomic.LoadInt32(&builds), "peek never builds")

	_, err := c.Resolve("lazy")
	require.NoError(t, err)
	v, ok = c.Peek("lazy")
	assert.True(t, ok)
	assert.Equal(t, "built", v)

	require.NoError(t, c.Singleton("broken", func() (any, error) { return nil, errors.New("boom") }))
	_, _ = c.Resolve("broken")
	_, ok = c.Peek("broken")
	assert.False(t, ok)
}

func TestContainer_Resolve(t *testing.T) {
	c := NewContainer()
	_, err := c.Resolve("missing")
	assert.ErrorIs(t, err, ErrUnknownResource)

	assert.Error(t, c.Singleton("nil", nil))
	assert.False(t, c.Has("nil"))

	require.NoError(t, c.Set("b", 2))
	require.NoError(t, c.Set("a", 1))
	assert.True(t, c.Has("a"))
	assert.Equal(t, []string{"a", "b"}, c.Names())
}
