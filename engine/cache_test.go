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
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, hit, err := c.Get(ctx, "a", "k")
	require.NoError(t, err)
	assert.False(t, hit)

	rows := ResultSet{{"id": int64(1)}}
	require.NoError(t, c.Set(ctx, "a", "k", rows))
	require.NoError(t, c.Set(ctx, "b", "k", rows))

	got, hit, err := c.Get(ctx, "a", "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, rows, got)

	require.NoError(t, c.Clear(ctx, "a"))
	assert.Equal(t, 0, c.Len("a"))
	assert.Equal(t, 1, c.Len("b"))

	require.NoError(t, c.Clear(ctx, ""))
	assert.Equal(t, 0, c.Len("b"))
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("users", "SELECT * FROM users WHERE id = ?", []any{1})
	b := cacheKey("users", "SELECT * FROM users WHERE id = ?", []any{2})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, cacheKey("users", "SELECT * FROM users WHERE id = ?", []any{1}))
	assert.Len(t, a, 40)
}

func TestCacheKey_ArgumentTypes(t *testing.T) {
	q := "SELECT * FROM users WHERE x = ?"
	assert.NotEqual(t, cacheKey("users", q, []any{nil}), cacheKey("users", q, []any{"<nil>"}))
	assert.NotEqual(t, cacheKey("users", q, []any{1}), cacheKey("users", q, []any{"1"}))
	assert.NotEqual(t, cacheKey("users", q, []any{"a b"}), cacheKey("users", q, []any{"a", "b"}))
}

func TestMemoryCache_CopiesResults(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	rows := ResultSet{{"name": "alice"}}
	require.NoError(t, c.Set(ctx, "a", "k", rows))
	rows[0]["name"] = "changed after set"

	got, hit, err := c.Get(ctx, "a", "k")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "alice", got[0]["name"])

	got[0]["name"] = "changed after get"
	again, _, err := c.Get(ctx, "a", "k")
	require.NoError(t, err)
	assert.Equal(t, "alice", again[0]["name"])
}

func setupRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheWithClient(client, "", ttl)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t, time.Minute)

	_, hit, err := c.Get(ctx, "default", "k1")
	require.NoError(t, err)
	assert.False(t, hit)

	rows := ResultSet{{"name": "alice"}, {"name": "bob"}}
	require.NoError(t, c.Set(ctx, "default", "k1", rows))
	assert.True(t, mr.Exists(DefaultCachePrefix+":default:k1"))
	assert.Equal(t, time.Minute, mr.TTL(DefaultCachePrefix+":default:k1"))

	got, hit, err := c.Get(ctx, "default", "k1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, rows, got)

	mr.FastForward(2 * time.Minute)
	_, hit, err = c.Get(ctx, "default", "k1")
	require.NoError(t, err)
	assert.False(t, hit, "entry expires with the ttl")
}

func TestRedisCache_Clear(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t, 0)

	rows := ResultSet{{"id": "1"}}
	for i := 0; i < 150; i++ {
		require.NoError(t, c.Set(ctx, "reports", cacheKey("t", "q", []any{i}), rows))
	}
	require.NoError(t, c.Set(ctx, "default", "keep", rows))

	require.NoError(t, c.Clear(ctx, "reports"))
	assert.Len(t, mr.Keys(), 1)
	assert.True(t, mr.Exists(DefaultCachePrefix+":default:keep"))

	require.NoError(t, c.Clear(ctx, ""))
	assert.Empty(t, mr.Keys())
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t, 0)

	require.NoError(t, mr.Set(DefaultCachePrefix+":default:bad", "not json"))

	_, hit, err := c.Get(ctx, "default", "bad")
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestNewRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c, err := NewRedisCache(context.Background(), RedisCacheOptions{URL: "redis://" + mr.Addr(), Prefix: "test"})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "test:conn:key", c.key("conn", "key"))

	_, err = NewRedisCache(context.Background(), RedisCacheOptions{URL: "not-a-url"})
	assert.Error(t, err)
}

func TestEngine_WithRedisCache(t *testing.T) {
	c, mr := setupRedisCache(t, 0)
	e := New(nil, WithLogger(discardLogger()), WithCache(c))

	require.NoError(t, c.Set(context.Background(), "default", "x", ResultSet{{"id": "1"}}))
	e.ResetConfig()
	assert.Empty(t, mr.Keys(), "reset clears the shared cache")
}
