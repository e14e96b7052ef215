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
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	// ErrSlotTaken is returned when a resource name is already in use
	ErrSlotTaken = errors.New("host: resource slot already taken")

	// ErrUnknownResource is returned when resolving a name with no slot
	ErrUnknownResource = errors.New("host: unknown resource")
)

// Builder lazily creates a resource value
type Builder func() (any, error)

type slot struct {
	once  sync.Once
	build Builder
	value any
	err   error
	built atomic.Bool
}

func (s *slot) get() (any, error) {
	s.once.Do(func() {
		if s.build != nil {
			s.value, s.err = s.build()
			s.build = nil
		}
		s.built.Store(true)
	})
	return s.value, s.err
}

// Container holds named single-instance resources. It is safe for
// concurrent use.
type Container struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{slots: make(map[string]*slot)}
}

// Singleton registers a lazily built resource. build runs at most once, on
// the first Resolve.
func (c *Container) Singleton(name string, build Builder) error {
	if build == nil {
		return fmt.Errorf("host: nil builder for %q", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.slots[name]; exists {
		return fmt.Errorf("%w: %q", ErrSlotTaken, name)
	}
	c.slots[name] = &slot{build: build}
	return nil
}

// Set installs an already built resource
func (c *Container) Set(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.slots[name]; exists {
		return fmt.Errorf("%w: %q", ErrSlotTaken, name)
	}
	s := &slot{value: value}
	s.once.Do(func() { s.built.Store(true) })
	c.slots[name] = s
	return nil
}

// Resolve returns the resource stored under name, building it on first use.
// Every call returns the same value.
func (c *Container) Resolve(name string) (any, error) {
	c.mu.RLock()
	s, ok := c.slots[name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return s.get()
}

// Peek returns the value under name without building it. ok is false when
// there is no slot, the slot is a Singleton not yet resolved, or its build
// failed.
func (c *Container) Peek(name string) (value any, ok bool) {
	c.mu.RLock()
	s, exists := c.slots[name]
	c.mu.RUnlock()

	if !exists || !s.built.Load() || s.err != nil {
		return nil, false
	}
	return s.value, true
}

// Has reports whether a slot exists for name
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.slots[name]
	return ok
}

// Names returns the registered slot names, sorted
func (c *Container) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.slots))
	for name := range c.slots {
		names = append(names, name)
	}
	c.mu.RUnlock()

	sort.Strings(names)
	return names
}
