package auth

import (
	"context"
	"errors"
)

// BuiltinRoles must exist before the first registration.
var BuiltinRoles = []Role{
	{Name: RoleUser},
	{Name: RoleAdmin},
}

// EnsureRoles creates any builtin role missing from the store.
func EnsureRoles(ctx context.Context, roles RoleStore) error {
	for _, r := range BuiltinRoles {
		_, err := roles.FindByName(ctx, r.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		role := r
		if err := roles.Save(ctx, &role); err != nil && !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return nil
}
