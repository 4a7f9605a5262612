package pg

import (
	"context"
	"database/sql"
	"errors"

	"accountd.io/internal/auth"
)

var _ auth.RoleStore = (*Roles)(nil)

// Roles persists the role catalog.
type Roles struct{ s *Store }

func (r *Roles) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	var role auth.Role
	err := r.s.db.QueryRowContext(ctx, `select id, name from roles where name = $1`, name).Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *Roles) Save(ctx context.Context, role *auth.Role) error {
	err := r.s.db.QueryRowContext(ctx, `insert into roles(name) values ($1) returning id`, role.Name).Scan(&role.ID)
	if isUniqueViolation(err) {
		return auth.ErrConflict
	}
	return err
}

func (r *Roles) List(ctx context.Context) ([]auth.Role, error) {
	rows, err := r.s.db.QueryContext(ctx, `select id, name from roles order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}
