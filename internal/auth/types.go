package auth

import (
	"slices"
	"strings"
	"time"
)

const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"

	rolePrefix = "ROLE_"
)

// Principal is a stored identity with credentials and roles.
type Principal struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	// Version increments on every update; Save rejects a stale copy with
	// ErrConflict.
	Version int64 `json:"-"`
}

// Role is a named authority. Names are unique and immutable once referenced.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Identity is the authenticated principal snapshot attached to a request.
// It is built once when the pipeline completes and never re-resolved.
type Identity struct {
	ID       int64
	Username string
	Roles    RoleSet
}

// IdentityOf snapshots the principal's id, username and roles.
func IdentityOf(p *Principal) Identity {
	return Identity{ID: p.ID, Username: p.Username, Roles: NewRoleSet(p.Roles...)}
}

// RoleSet is an immutable set of normalized role names.
type RoleSet struct {
	names []string
}

// NewRoleSet normalizes, deduplicates and sorts the given role names.
func NewRoleSet(roles ...string) RoleSet {
	if len(roles) == 0 {
		return RoleSet{}
	}
	seen := make(map[string]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		r = NormalizeRole(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		names = append(names, r)
	}
	slices.Sort(names)
	return RoleSet{names: names}
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role string) bool {
	_, found := slices.BinarySearch(s.names, NormalizeRole(role))
	return found
}

// Intersects reports whether any of roles is in the set.
func (s RoleSet) Intersects(roles ...string) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Names returns a copy of the sorted role names.
func (s RoleSet) Names() []string {
	return slices.Clone(s.names)
}

func (s RoleSet) Len() int { return len(s.names) }

func (s RoleSet) String() string {
	return "[" + strings.Join(s.names, ", ") + "]"
}

// NormalizeRole upper-cases a role name and adds the ROLE_ prefix, so
// "admin", "ADMIN" and "ROLE_ADMIN" all name the same role.
func NormalizeRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		return ""
	}
	if !strings.HasPrefix(role, rolePrefix) {
		role = rolePrefix + role
	}
	return role
}
