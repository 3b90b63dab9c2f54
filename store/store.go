// This file is part of ndnode, a Named-Data Network overlay node.
// Copyright (C) 2019-2022 Bernd Fix  >Y<
//
// ndnode is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// ndnode is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// Package store implements the object store and cache (spec §4.1, C1):
// an unbounded set of locally published names and a bounded FIFO cache
// of names observed in transit. Modeled after the generic key/value
// Store interface of the teacher's service/dht/store.go (Put/Get over a
// bounded backing), here specialized to a name-only set and queue since
// payloads never travel on this overlay (spec §1).
//
// Every write comes from the single event-loop goroutine (spec §5), but
// the debug API (C9) reads Owned/Cached from its own goroutine, the same
// split neighbor.Set and pit.Table handle with util.Map — here a plain
// mutex plays that role since CacheInsert must update the cache map and
// its FIFO order slice as one atomic step, which util.Map's single-key
// operations can't express.
package store

import "sync"

// Store holds one node's owned names and its bounded cache.
type Store struct {
	mu       sync.RWMutex
	owned    map[string]struct{}
	capacity int
	cache    map[string]struct{}
	order    []string // FIFO order of cache entries, oldest first
}

// New creates a store with the given cache capacity. Capacity 0 means
// "never cache" (spec §8): cache_insert is then always a no-op but
// OBJECT traffic still forwards normally.
func New(capacity int) *Store {
	return &Store{
		owned:    make(map[string]struct{}),
		capacity: capacity,
		cache:    make(map[string]struct{}),
		order:    make([]string, 0, capacity),
	}
}

// Publish adds name to the owned set. Idempotent.
func (s *Store) Publish(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owned[name] = struct{}{}
}

// Unpublish removes name from the owned set. Idempotent.
func (s *Store) Unpublish(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.owned, name)
}

// HasLocal reports whether name is in the owned set.
func (s *Store) HasLocal(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.owned[name]
	return ok
}

// HasCached reports whether name is in the cache.
func (s *Store) HasCached(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[name]
	return ok
}

// Has reports whether name is locally known, owned or cached (spec §4.4.2).
func (s *Store) Has(name string) bool {
	return s.HasLocal(name) || s.HasCached(name)
}

// CacheInsert inserts name into the cache. A no-op if already cached or
// if capacity is 0. Otherwise evicts the oldest entries (FIFO, not LRU)
// until len(cache) < capacity, then appends (spec §4.1).
func (s *Store) CacheInsert(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity == 0 {
		return
	}
	if _, ok := s.cache[name]; ok {
		return
	}
	for len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest)
	}
	s.cache[name] = struct{}{}
	s.order = append(s.order, name)
}

// Owned returns a snapshot of the owned-name set.
func (s *Store) Owned() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.owned))
	for n := range s.owned {
		out = append(out, n)
	}
	return out
}

// Cached returns a snapshot of the cache in eviction order (oldest first).
func (s *Store) Cached() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// CacheLen returns the current number of cached names.
func (s *Store) CacheLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
