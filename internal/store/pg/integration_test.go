//go:build integration

package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"accountd.io/internal/audit"
	"accountd.io/internal/auth"
	"accountd.io/internal/migrate"
)

// setupTestDB starts a PostgreSQL container, applies the bundled schema and
// returns a connected Store. Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("accountd_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m := migrate.NewManager(store.DB(), nil)
	_, err = m.Up(ctx)
	require.NoError(t, err)
	_, err = m.Seed(ctx)
	require.NoError(t, err)
	return store
}

func TestPostgresPrincipalLifecycle(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	principals := s.Principals()

	require.NoError(t, auth.EnsureRoles(ctx, s.Roles()))

	p := &auth.Principal{Username: "alice", Email: "a@x.com", PasswordHash: "h", Roles: []string{auth.RoleUser}}
	require.NoError(t, principals.Save(ctx, p))
	require.NotZero(t, p.ID)

	dup := &auth.Principal{Username: "alice", Email: "b@x.com", PasswordHash: "h", Roles: []string{auth.RoleUser}}
	assert.ErrorIs(t, principals.Save(ctx, dup), auth.ErrConflict)

	p.Roles = []string{auth.RoleAdmin, auth.RoleUser}
	p.Email = "new@x.com"
	require.NoError(t, principals.Save(ctx, p))

	got, err := principals.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", got.Email)
	assert.Equal(t, []string{auth.RoleAdmin, auth.RoleUser}, got.Roles)

	stale := *got
	stale.PasswordHash = "stale"
	got.PasswordHash = "fresh"
	require.NoError(t, principals.Save(ctx, got))
	assert.ErrorIs(t, principals.Save(ctx, &stale), auth.ErrConflict)
	*p = *got

	p.Roles = []string{"ROLE_AUDITOR"}
	assert.ErrorIs(t, principals.Save(ctx, p), auth.ErrNotFound)
	got, err = principals.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Roles, 2, "failed role update must roll back")

	require.NoError(t, principals.Delete(ctx, p))
	_, err = principals.FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestPostgresAuditLog(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	log := s.Audit()

	for _, a := range []audit.Action{audit.ActionLoginFailed, audit.ActionLoginSuccess} {
		e := &audit.Entry{Timestamp: time.Now().UTC(), EntityName: audit.EntityUser, Action: a, Level: audit.LevelInfo}
		require.NoError(t, log.Append(ctx, e))
		require.NotZero(t, e.ID)
	}

	got, err := log.List(ctx, audit.Filter{Action: audit.ActionLoginFailed})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].ActorID)
}
