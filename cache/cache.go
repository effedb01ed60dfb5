// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache provides the in-memory store of resolved addresses that
// backs bucket-key generation. The store is pure data access: it holds one
// entry per host and knows nothing about TTLs or refresh policy, which
// belong to the coordinating [github.com/bufbuild/poolkey.Keyer].
//
// Entries are never evicted. Staleness is a read-time decision made by the
// coordinator; the only way entries leave the store is a full Clear.
package cache

import (
	"sync"
	"time"
)

// Entry is the cached resolution state for a single host.
//
// IP only ever holds a successfully resolved address; a failed resolution
// never clears it or writes a placeholder. Expiry only moves forward, and
// only as the result of a successful resolution. Refreshing is true exactly
// while a resolution attempt for the host is in flight, and is reset when
// that attempt completes, whether or not it succeeded.
type Entry struct {
	// IP is the most recently resolved address for the host.
	IP string
	// Expiry is the instant after which the entry is considered stale.
	// A stale entry is still returned to readers; it just also triggers
	// a background refresh.
	Expiry time.Time
	// Refreshing reports whether a resolution attempt is in flight.
	Refreshing bool
}

// Store is a host-keyed collection of entries, safe for concurrent use.
//
// Store operations are individually atomic, but sequences of operations are
// not: callers that need read-modify-write semantics (such as flipping the
// Refreshing flag based on the current entry) must provide their own
// coordination on top.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]Entry),
	}
}

// Get returns the entry for the given host, if one exists.
func (s *Store) Get(host string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[host]
	return entry, ok
}

// Set stores the entry for the given host, replacing any existing one.
func (s *Store) Set(host string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[host] = entry
}

// Clear removes all entries. This is the only removal operation the store
// supports; individual entries cannot be deleted.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
}

// Len returns the number of entries in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of the store's contents. Mutating the returned
// map has no effect on the store.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]Entry, len(s.entries))
	for host, entry := range s.entries {
		snapshot[host] = entry
	}
	return snapshot
}
