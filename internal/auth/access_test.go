package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	admin := Identity{ID: 1, Username: "root", Roles: NewRoleSet(RoleAdmin, RoleUser)}
	user := Identity{ID: 2, Username: "bob", Roles: NewRoleSet("user")}

	cases := []struct {
		name    string
		id      Identity
		present bool
		req     Requirement
		want    Decision
	}{
		{"public anonymous", Identity{}, false, Public(), Allow},
		{"authenticated anonymous", Identity{}, false, Authenticated(), Deny},
		{"authenticated user", user, true, Authenticated(), Allow},
		{"admin route anonymous", Identity{}, false, AnyRole(RoleAdmin), Deny},
		{"admin route user", user, true, AnyRole(RoleAdmin), Deny},
		{"admin route admin", admin, true, AnyRole(RoleAdmin), Allow},
		{"any of user or admin", user, true, AnyRole("admin", "user"), Allow},
		{"no roles at all", Identity{ID: 3}, true, AnyRole(RoleUser), Deny},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.id, tc.present, tc.req))
		})
	}
}

func TestDecideContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Deny, DecideContext(ctx, AnyRole(RoleAdmin)))

	ctx = ContextWithIdentity(ctx, Identity{ID: 7, Roles: NewRoleSet(RoleAdmin)})
	assert.Equal(t, Allow, DecideContext(ctx, AnyRole(RoleAdmin)))
	assert.Equal(t, int64(7), *ActorID(ctx))
}

func TestRoleSetNormalizes(t *testing.T) {
	s := NewRoleSet("admin", "ROLE_ADMIN", " user ", "")
	assert.Equal(t, []string{RoleAdmin, RoleUser}, s.Names())
	assert.True(t, s.Has("ADMIN"))
	assert.False(t, s.Has("auditor"))
	assert.Equal(t, "[ROLE_ADMIN, ROLE_USER]", s.String())
}

func TestRequirementRolesIsCopy(t *testing.T) {
	req := AnyRole("admin")
	roles := req.Roles()
	roles[0] = "ROLE_USER"
	assert.Equal(t, []string{RoleAdmin}, req.Roles())
}
