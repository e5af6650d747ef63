// Package allowlist holds the administrator-controlled sets of trusted
// accounts. The marketplace only reads them.
package allowlist

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Set is a concurrency-safe set of account ids
type Set struct {
	name string
	mu   sync.RWMutex
	ids  map[string]bool
}

// New creates a named set seeded with ids. Blank ids are ignored.
func New(name string, ids ...string) *Set {
	s := &Set{
		name: name,
		ids:  make(map[string]bool, len(ids)),
	}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Contains reports whether id is allowed
func (s *Set) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids[id]
}

// Add allows id
func (s *Set) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.mu.Lock()
	s.ids[id] = true
	s.mu.Unlock()
	slog.Debug("Allowlist: Added account", "allowlist", s.name, "account_id", id)
}

// Remove disallows id
func (s *Set) Remove(id string) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
	slog.Debug("Allowlist: Removed account", "allowlist", s.name, "account_id", id)
}

// List returns the allowed ids in lexical order
func (s *Set) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Name returns the set name for logging
func (s *Set) Name() string {
	return s.name
}
