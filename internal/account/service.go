// Package account implements the profile and administration operations
// behind /user. Every successful mutation writes exactly one audit entry
// whose entity id is the affected principal.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"accountd.io/internal/audit"
	"accountd.io/internal/auth"
)

type Service struct {
	principals auth.PrincipalStore
	roles      auth.RoleStore
	hasher     auth.PasswordHasher
	auditor    auth.Auditor
}

func NewService(principals auth.PrincipalStore, roles auth.RoleStore, hasher auth.PasswordHasher, auditor auth.Auditor) *Service {
	return &Service{principals: principals, roles: roles, hasher: hasher, auditor: auditor}
}

// Me loads the caller's own principal.
func (s *Service) Me(ctx context.Context) (*auth.Principal, error) {
	p, err := s.self(ctx)
	if err != nil {
		return nil, err
	}
	s.read(ctx, p)
	return p, nil
}

// Get loads any principal by username.
func (s *Service) Get(ctx context.Context, username string) (*auth.Principal, error) {
	p, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	s.read(ctx, p)
	return p, nil
}

// ChangeOwnPassword requires the current password.
func (s *Service) ChangeOwnPassword(ctx context.Context, oldPassword, newPassword string) error {
	p, err := s.self(ctx)
	if err != nil {
		return err
	}
	if err := s.hasher.Verify(p.PasswordHash, oldPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return auth.Errorf(auth.ErrIncorrectPassword, "Old password is incorrect")
		}
		return fmt.Errorf("verify password: %w", err)
	}
	return s.setPassword(ctx, p, newPassword)
}

// ChangePassword sets a new password without checking the old one.
func (s *Service) ChangePassword(ctx context.Context, username, newPassword string) error {
	p, err := s.byUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, p, newPassword)
}

func (s *Service) setPassword(ctx context.Context, p *auth.Principal, password string) error {
	if password == "" {
		return auth.Errorf(auth.ErrInvalidInput, "New password is required")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	p.PasswordHash = hash
	if err := s.save(ctx, p); err != nil {
		return err
	}
	// values stay empty: neither plaintext nor hash is ever recorded
	s.record(ctx, audit.ActionChangePassword, p, "password", nil, nil)
	return nil
}

// ChangeOwnEmail updates the caller's email.
func (s *Service) ChangeOwnEmail(ctx context.Context, email string) (*auth.Principal, error) {
	p, err := s.self(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.setEmail(ctx, p, email); err != nil {
		return nil, err
	}
	return p, nil
}

// ChangeEmail updates any principal's email.
func (s *Service) ChangeEmail(ctx context.Context, username, email string) (*auth.Principal, error) {
	p, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.setEmail(ctx, p, email); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) setEmail(ctx context.Context, p *auth.Principal, email string) error {
	email, err := auth.NormalizeEmail(email)
	if err != nil {
		return err
	}
	old := p.Email
	p.Email = email
	if err := s.save(ctx, p); err != nil {
		return err
	}
	s.record(ctx, audit.ActionChangeEmail, p, "email", audit.String(old), audit.String(email))
	return nil
}

// UpdateRoles replaces a principal's role set. Every role must exist and the
// resulting set must not be empty.
func (s *Service) UpdateRoles(ctx context.Context, username string, roles []string) (*auth.Principal, error) {
	names := auth.NewRoleSet(roles...).Names()
	if len(names) == 0 {
		return nil, auth.Errorf(auth.ErrInvalidInput, "At least one role is required")
	}
	for _, name := range names {
		if _, err := s.roles.FindByName(ctx, name); err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				return nil, auth.Errorf(auth.ErrNotFound, "Role not found: %s", name)
			}
			return nil, fmt.Errorf("load role: %w", err)
		}
	}

	p, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	old := auth.NewRoleSet(p.Roles...).Names()
	p.Roles = names
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionUpdateRoles, p, "roles",
		audit.String(strings.Join(old, ",")), audit.String(strings.Join(names, ",")))
	return p, nil
}

// Delete removes a principal. Audit entries keep its id.
func (s *Service) Delete(ctx context.Context, username string) error {
	p, err := s.byUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.principals.Delete(ctx, p); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return userNotFound(username)
		}
		return fmt.Errorf("delete principal: %w", err)
	}
	s.record(ctx, audit.ActionDeleteUser, p, "username", audit.String(p.Username), nil)
	return nil
}

func (s *Service) self(ctx context.Context) (*auth.Principal, error) {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, auth.Errorf(auth.ErrUnauthorized, "Unauthorized: full authentication is required")
	}
	p, err := s.principals.FindByID(ctx, id.ID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, userNotFound(id.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	return p, nil
}

func (s *Service) byUsername(ctx context.Context, username string) (*auth.Principal, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, auth.Errorf(auth.ErrInvalidInput, "Username is required")
	}
	p, err := s.principals.FindByUsername(ctx, username)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, userNotFound(username)
	}
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, p *auth.Principal) error {
	err := s.principals.Save(ctx, p)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrNotFound):
		// deleted concurrently
		return userNotFound(p.Username)
	case errors.Is(err, auth.ErrConflict):
		return auth.Errorf(auth.ErrConflict, "User %s was modified concurrently; retry the request", p.Username)
	default:
		return fmt.Errorf("save principal: %w", err)
	}
}

func (s *Service) read(ctx context.Context, p *auth.Principal) {
	s.record(ctx, audit.ActionReadUser, p, "", nil, nil)
}

func (s *Service) record(ctx context.Context, action audit.Action, p *auth.Principal, field string, oldV, newV *string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Event{
		Action:   action,
		ActorID:  auth.ActorID(ctx),
		Entity:   audit.EntityUser,
		EntityID: audit.Int64(p.ID),
		Field:    field,
		OldValue: oldV,
		NewValue: newV,
	})
}

func userNotFound(username string) error {
	return auth.Errorf(auth.ErrNotFound, "User not found: %s", username)
}
