package rbac

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Store resolves role reads from an immutable snapshot that can be swapped
// atomically. The zero value is an empty store.
type Store struct {
	current atomic.Pointer[snapshot]

	mu      sync.Mutex // serialises writers
	version uint64
}

type snapshot struct {
	version uint64
	byID    map[string]Role
	byName  map[string]string
	ordered []Role
}

// NewStore builds a Store seeded with roles.
func NewStore(roles []Role) *Store {
	s := &Store{}
	s.Replace(roles)
	return s
}

// GetRole resolves a role by ID, falling back to a case-insensitive name
// match. The returned Permissions slice is shared and must not be modified.
func (s *Store) GetRole(id string) (Role, bool) {
	if s == nil {
		return Role{}, false
	}
	snap := s.current.Load()
	if snap == nil {
		return Role{}, false
	}
	if role, ok := snap.byID[id]; ok {
		return role, true
	}
	if roleID, ok := snap.byName[strings.ToLower(strings.TrimSpace(id))]; ok {
		return snap.byID[roleID], true
	}
	return Role{}, false
}

// Roles returns every role ordered by ID.
func (s *Store) Roles() []Role {
	if s == nil {
		return nil
	}
	snap := s.current.Load()
	if snap == nil {
		return nil
	}
	out := make([]Role, len(snap.ordered))
	copy(out, snap.ordered)
	return out
}

// Len reports the number of roles in the current snapshot.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	if snap := s.current.Load(); snap != nil {
		return len(snap.ordered)
	}
	return 0
}

// Version reports the version of the current snapshot.
func (s *Store) Version() uint64 {
	if s == nil {
		return 0
	}
	if snap := s.current.Load(); snap != nil {
		return snap.version
	}
	return 0
}

// Replace swaps in a new snapshot built from roles and returns its version.
// Later duplicates of an ID are dropped.
func (s *Store) Replace(roles []Role) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	snap := &snapshot{
		version: s.version,
		byID:    make(map[string]Role, len(roles)),
		byName:  make(map[string]string, len(roles)),
		ordered: make([]Role, 0, len(roles)),
	}
	for _, role := range roles {
		if role.ID == "" {
			continue
		}
		if _, dup := snap.byID[role.ID]; dup {
			continue
		}
		role.Permissions = append([]ScopedPermission(nil), role.Permissions...)
		snap.byID[role.ID] = role
		if name := strings.ToLower(strings.TrimSpace(role.Name)); name != "" {
			if _, taken := snap.byName[name]; !taken {
				snap.byName[name] = role.ID
			}
		}
		snap.ordered = append(snap.ordered, role)
	}
	sort.Slice(snap.ordered, func(i, j int) bool { return snap.ordered[i].ID < snap.ordered[j].ID })
	s.current.Store(snap)
	return snap.version
}
