// Package logstore holds the observed command log: the global log in hub
// arrival order, one log per instance, and the instance registry.
//
// A Store is not safe for concurrent use. The hub event loop is its only
// owner and every access happens on that goroutine.
package logstore

import (
	"sort"

	"github.com/modoterra/cmdhub/pkg/core"
)

// Store is the in-memory command log. The zero value is not usable; call New.
type Store struct {
	global    []string
	instances map[core.InstanceID][]string
}

// New returns an empty store.
func New() *Store {
	return &Store{instances: make(map[core.InstanceID][]string)}
}

// Register adds id to the registry with an empty log. It reports false if
// id was already registered, in which case nothing changes.
func (s *Store) Register(id core.InstanceID) bool {
	if _, ok := s.instances[id]; ok {
		return false
	}
	s.instances[id] = []string{}
	return true
}

// Registered reports whether id is in the registry.
func (s *Store) Registered(id core.InstanceID) bool {
	_, ok := s.instances[id]
	return ok
}

// Append records body for id. An id seen for the first time is registered
// implicitly.
func (s *Store) Append(id core.InstanceID, body string) {
	s.global = append(s.global, body)
	s.instances[id] = append(s.instances[id], body)
}

// Last returns the most recent global record without removing it.
func (s *Store) Last() (string, bool) {
	if len(s.global) == 0 {
		return "", false
	}
	return s.global[len(s.global)-1], true
}

// LastByInstance returns the most recent record for id without removing it.
// It reports false if id is unknown or its log is empty.
func (s *Store) LastByInstance(id core.InstanceID) (string, bool) {
	log := s.instances[id]
	if len(log) == 0 {
		return "", false
	}
	return log[len(log)-1], true
}

// All returns a copy of the global log. It is never nil.
func (s *Store) All() []string {
	out := make([]string, len(s.global))
	copy(out, s.global)
	return out
}

// AllByInstance returns a copy of the log for id. It reports false if id is
// unknown or its log is empty.
func (s *Store) AllByInstance(id core.InstanceID) ([]string, bool) {
	log := s.instances[id]
	if len(log) == 0 {
		return nil, false
	}
	out := make([]string, len(log))
	copy(out, log)
	return out, true
}

// Counts returns the number of records per registered instance, including
// instances whose log is still empty.
func (s *Store) Counts() map[core.InstanceID]int {
	counts := make(map[core.InstanceID]int, len(s.instances))
	for id, log := range s.instances {
		counts[id] = len(log)
	}
	return counts
}

// Instances returns the registered ids in sorted order.
func (s *Store) Instances() []core.InstanceID {
	ids := make([]core.InstanceID, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the size of the global log.
func (s *Store) Len() int { return len(s.global) }

// Reset clears the registry, the global log and every instance log.
func (s *Store) Reset() {
	s.global = nil
	s.instances = make(map[core.InstanceID][]string)
}
