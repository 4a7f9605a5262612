package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"accountd.io/internal/auth"
)

var _ auth.PrincipalStore = (*Principals)(nil)

// Principals persists auth.Principal rows and their role links.
type Principals struct{ s *Store }

const selectPrincipal = `
	select u.id, u.username, u.email, u.password_hash, u.created_at, u.updated_at, u.version,
	       coalesce(string_agg(r.name, ',' order by r.name), '')
	from users u
	left join users_roles ur on ur.user_id = u.id
	left join roles r on r.id = ur.role_id
`

func (p *Principals) FindByUsername(ctx context.Context, username string) (*auth.Principal, error) {
	return p.findOne(ctx, selectPrincipal+` where u.username = $1 group by u.id`, username)
}

func (p *Principals) FindByID(ctx context.Context, id int64) (*auth.Principal, error) {
	return p.findOne(ctx, selectPrincipal+` where u.id = $1 group by u.id`, id)
}

func (p *Principals) findOne(ctx context.Context, query string, arg any) (*auth.Principal, error) {
	var (
		out   auth.Principal
		roles string
	)
	err := p.s.db.QueryRowContext(ctx, query, arg).Scan(
		&out.ID, &out.Username, &out.Email, &out.PasswordHash, &out.CreatedAt, &out.UpdatedAt, &out.Version, &roles,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Roles = []string{}
	if roles != "" {
		out.Roles = strings.Split(roles, ",")
	}
	return &out, nil
}

func (p *Principals) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := p.s.db.QueryRowContext(ctx, `select exists(select 1 from users where username = $1)`, username).Scan(&exists)
	return exists, err
}

// Save writes the row and replaces the role links in one transaction. An
// update only applies when pr.Version matches the stored version.
func (p *Principals) Save(ctx context.Context, pr *auth.Principal) (err error) {
	if pr.ID == 0 {
		defer func() {
			if err != nil {
				pr.ID = 0
				pr.CreatedAt = time.Time{}
			}
		}()
	}

	tx, err := p.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := p.s.now().UTC()
	var version int64
	if pr.ID == 0 {
		err = tx.QueryRowContext(ctx, `
			insert into users(username, email, password_hash, created_at, updated_at)
			values ($1, $2, $3, $4, $4)
			returning id, created_at, version
		`, pr.Username, pr.Email, pr.PasswordHash, now).Scan(&pr.ID, &pr.CreatedAt, &version)
		if err != nil {
			if isUniqueViolation(err) {
				return auth.ErrConflict
			}
			return err
		}
	} else {
		err = tx.QueryRowContext(ctx, `
			update users set email = $2, password_hash = $3, updated_at = $4, version = version + 1
			where id = $1 and version = $5
			returning created_at, version
		`, pr.ID, pr.Email, pr.PasswordHash, now, pr.Version).Scan(&pr.CreatedAt, &version)
		if errors.Is(err, sql.ErrNoRows) {
			if p.exists(ctx, tx, pr.ID) {
				return auth.ErrConflict
			}
			return auth.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `delete from users_roles where user_id = $1`, pr.ID); err != nil {
			return err
		}
	}

	for _, role := range pr.Roles {
		res, err := tx.ExecContext(ctx, `
			insert into users_roles(user_id, role_id)
			select $1, id from roles where name = $2
			on conflict do nothing
		`, pr.ID, role)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			if !p.roleExists(ctx, tx, role) {
				return fmt.Errorf("role %s: %w", role, auth.ErrNotFound)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	pr.UpdatedAt = now
	pr.Version = version
	return nil
}

func (p *Principals) exists(ctx context.Context, tx *sql.Tx, id int64) bool {
	var exists bool
	_ = tx.QueryRowContext(ctx, `select exists(select 1 from users where id = $1)`, id).Scan(&exists)
	return exists
}

func (p *Principals) roleExists(ctx context.Context, tx *sql.Tx, name string) bool {
	var exists bool
	_ = tx.QueryRowContext(ctx, `select exists(select 1 from roles where name = $1)`, name).Scan(&exists)
	return exists
}

func (p *Principals) Delete(ctx context.Context, pr *auth.Principal) error {
	res, err := p.s.db.ExecContext(ctx, `delete from users where id = $1`, pr.ID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: principal is still referenced", auth.ErrConflict)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
