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
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
)

// Cache stores query results per connection. Keys are opaque strings
// derived from the rendered SQL and its arguments.
type Cache interface {
	Get(ctx context.Context, connection, key string) (ResultSet, bool, error)
	Set(ctx context.Context, connection, key string, rows ResultSet) error
	// Clear drops cached results for the connection, or for every
	// connection when connection is empty
	Clear(ctx context.Context, connection string) error
}

// MemoryCache keeps results in process memory with no expiry. Results are
// copied on the way in and out, so callers own what they get back.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]map[string]ResultSet
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]map[string]ResultSet)}
}

func (c *MemoryCache) Get(_ context.Context, connection, key string) (ResultSet, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, ok := c.entries[connection][key]
	if !ok {
		return nil, false, nil
	}
	return rows.Clone(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, connection, key string, rows ResultSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.entries[connection]
	if !ok {
		bucket = make(map[string]ResultSet)
		c.entries[connection] = bucket
	}
	bucket[key] = rows.Clone()
	return nil
}

func (c *MemoryCache) Clear(_ context.Context, connection string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if connection == "" {
		c.entries = make(map[string]map[string]ResultSet)
		return nil
	}
	delete(c.entries, connection)
	return nil
}

// Len returns the number of cached results for the connection
func (c *MemoryCache) Len(connection string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries[connection])
}

// cacheKey hashes a rendered statement and its arguments. Each argument
// contributes its type as well as its value so 1 and "1" differ.
func cacheKey(table, query string, args []any) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s\x00%s", table, query)
	for _, arg := range args {
		fmt.Fprintf(h, "\x00%T:%#v", arg, arg)
	}
	return hex.EncodeToString(h.Sum(nil))
}
