package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"accountd.io/internal/audit"
	"accountd.io/internal/auth"
)

// BootstrapAdmin creates the first administrator, holding ROLE_ADMIN and
// ROLE_USER. It fails with a conflict when the username is taken.
func (s *Service) BootstrapAdmin(ctx context.Context, req auth.RegisterRequest) (*auth.Principal, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, auth.Errorf(auth.ErrInvalidInput, "Username is required")
	}
	if req.Password == "" {
		return nil, auth.Errorf(auth.ErrInvalidInput, "Password is required")
	}
	email, err := auth.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := auth.EnsureRoles(ctx, s.roles); err != nil {
		return nil, fmt.Errorf("ensure roles: %w", err)
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	p := &auth.Principal{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{auth.RoleAdmin, auth.RoleUser},
	}
	if err := s.principals.Save(ctx, p); err != nil {
		if errors.Is(err, auth.ErrConflict) {
			return nil, auth.Errorf(auth.ErrConflict, "Username is already taken")
		}
		return nil, fmt.Errorf("save principal: %w", err)
	}
	s.record(ctx, audit.ActionCreateUser, p, "username", nil, audit.String(p.Username))
	return p, nil
}
