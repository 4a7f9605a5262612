package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

var (
	_ PrincipalStore = (*MemoryStore)(nil)
	_ RoleStore      = (*MemoryRoles)(nil)
)

// MemoryStore keeps principals in process memory. It backs tests and
// development runs without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Principal
	roles  *MemoryRoles
	now    func() time.Time
}

// NewMemoryStore returns an empty principal store validating role names
// against roles.
func NewMemoryStore(roles *MemoryRoles) *MemoryStore {
	return &MemoryStore{
		byID:  make(map[int64]*Principal),
		roles: roles,
		now:   time.Now,
	}
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byID {
		if p.Username == username {
			return clonePrincipal(p), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByID(_ context.Context, id int64) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePrincipal(p), nil
}

func (s *MemoryStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.FindByUsername(ctx, username)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *MemoryStore) Save(_ context.Context, p *Principal) error {
	for _, r := range p.Roles {
		if !s.roles.has(r) {
			return fmt.Errorf("role %s: %w", r, ErrNotFound)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if p.ID == 0 {
		for _, existing := range s.byID {
			if existing.Username == p.Username {
				return ErrConflict
			}
		}
		s.nextID++
		p.ID = s.nextID
		p.CreatedAt = now
		p.UpdatedAt = now
		p.Version = 1
		s.byID[p.ID] = clonePrincipal(p)
		return nil
	}
	existing, ok := s.byID[p.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != p.Version {
		return ErrConflict
	}
	existing.Email = p.Email
	existing.PasswordHash = p.PasswordHash
	existing.Roles = slices.Clone(p.Roles)
	existing.UpdatedAt = now
	existing.Version++
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = now
	p.Version = existing.Version
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; !ok {
		return ErrNotFound
	}
	delete(s.byID, p.ID)
	return nil
}

func clonePrincipal(p *Principal) *Principal {
	c := *p
	c.Roles = slices.Clone(p.Roles)
	return &c
}

// MemoryRoles is an in-memory role catalog.
type MemoryRoles struct {
	mu     sync.RWMutex
	nextID int64
	byName map[string]Role
}

func NewMemoryRoles() *MemoryRoles {
	return &MemoryRoles{byName: make(map[string]Role)}
}

func (s *MemoryRoles) FindByName(_ context.Context, name string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryRoles) Save(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[role.Name]; ok {
		return ErrConflict
	}
	s.nextID++
	role.ID = s.nextID
	s.byName[role.Name] = *role
	return nil
}

func (s *MemoryRoles) List(_ context.Context) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Role, 0, len(s.byName))
	for _, r := range s.byName {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryRoles) has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byName[name]
	return ok
}
