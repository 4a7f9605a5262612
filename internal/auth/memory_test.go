package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	roles := NewMemoryRoles()
	require.NoError(t, EnsureRoles(ctx, roles))
	store := NewMemoryStore(roles)

	p := &Principal{Username: "alice", Email: "a@x.com", PasswordHash: "h", Roles: []string{RoleUser}}
	require.NoError(t, store.Save(ctx, p))
	assert.Equal(t, int64(1), p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	exists, err := store.ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	dup := &Principal{Username: "alice", Roles: []string{RoleUser}}
	assert.ErrorIs(t, store.Save(ctx, dup), ErrConflict)

	p.Roles = []string{RoleUser, RoleAdmin}
	p.Email = "new@x.com"
	require.NoError(t, store.Save(ctx, p))
	got, err := store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", got.Email)
	assert.ElementsMatch(t, []string{RoleUser, RoleAdmin}, got.Roles)

	got.Roles[0] = "MUTATED"
	again, _ := store.FindByUsername(ctx, "alice")
	assert.NotContains(t, again.Roles, "MUTATED")

	p.Roles = []string{"ROLE_AUDITOR"}
	assert.ErrorIs(t, store.Save(ctx, p), ErrNotFound)

	require.NoError(t, store.Delete(ctx, p))
	_, err = store.FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, p), ErrNotFound)
}

func TestEnsureRolesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	roles := NewMemoryRoles()
	require.NoError(t, EnsureRoles(ctx, roles))
	require.NoError(t, EnsureRoles(ctx, roles))

	list, err := roles.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, RoleAdmin, list[0].Name)
	assert.Equal(t, RoleUser, list[1].Name)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)
	hash, err := h.Hash("pw123")
	require.NoError(t, err)
	assert.NoError(t, h.Verify(hash, "pw123"))
	assert.ErrorIs(t, h.Verify(hash, "nope"), ErrInvalidCredentials)
	assert.ErrorIs(t, h.Verify("", "pw123"), ErrInvalidCredentials)

	_, err = h.Hash("")
	assert.Error(t, err)
}

func TestMemoryStoreRejectsStaleUpdate(t *testing.T) {
	ctx := context.Background()
	roles := NewMemoryRoles()
	require.NoError(t, EnsureRoles(ctx, roles))
	store := NewMemoryStore(roles)

	p := &Principal{Username: "bob", Email: "b@x.com", PasswordHash: "old", Roles: []string{RoleUser}}
	require.NoError(t, store.Save(ctx, p))
	assert.Equal(t, int64(1), p.Version)

	first, err := store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	second, err := store.FindByID(ctx, p.ID)
	require.NoError(t, err)

	first.PasswordHash = "new"
	require.NoError(t, store.Save(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Roles = []string{RoleAdmin}
	assert.ErrorIs(t, store.Save(ctx, second), ErrConflict)

	got, err := store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.Equal(t, []string{RoleUser}, got.Roles)
}
