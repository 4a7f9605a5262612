package auth

import "context"

// PrincipalStore describes persistence operations for principals.
// Lookups return ErrNotFound when nothing matches.
type PrincipalStore interface {
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	FindByID(ctx context.Context, id int64) (*Principal, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// Save inserts p when p.ID is zero and assigns the new id; otherwise it
	// updates email, password hash and the role set in one atomic step,
	// failing with ErrConflict when p.Version is stale. Roles must already
	// exist in the RoleStore.
	Save(ctx context.Context, p *Principal) error
	Delete(ctx context.Context, p *Principal) error
}

// RoleStore manages the role catalog.
type RoleStore interface {
	FindByName(ctx context.Context, name string) (*Role, error)
	Save(ctx context.Context, role *Role) error
	List(ctx context.Context) ([]Role, error)
}
