package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"accountd.io/internal/audit"
	"accountd.io/internal/obs"
)

// Auditor receives security-relevant events. Implementations must not block
// or fail the caller.
type Auditor interface {
	Record(ctx context.Context, ev audit.Event)
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, audit.Event) {}

// Service orchestrates registration, login, refresh and bearer
// authentication over the stores, the hasher and the token codec.
type Service struct {
	principals  PrincipalStore
	roles       RoleStore
	hasher      PasswordHasher
	tokens      *TokenCodec
	auditor     Auditor
	defaultRole string
	dummy       dummyHash
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithHasher overrides the password hasher (bcrypt by default).
func WithHasher(h PasswordHasher) ServiceOption {
	return func(s *Service) error {
		if h == nil {
			return errors.New("auth: hasher is nil")
		}
		s.hasher = h
		return nil
	}
}

// WithAuditor wires the audit trail.
func WithAuditor(a Auditor) ServiceOption {
	return func(s *Service) error {
		if a != nil {
			s.auditor = a
		}
		return nil
	}
}

// WithDefaultRole sets the role assigned on registration.
func WithDefaultRole(role string) ServiceOption {
	return func(s *Service) error {
		role = NormalizeRole(role)
		if role == "" {
			return errors.New("auth: default role is empty")
		}
		s.defaultRole = role
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(principals PrincipalStore, roles RoleStore, tokens *TokenCodec, opts ...ServiceOption) (*Service, error) {
	if principals == nil || roles == nil || tokens == nil {
		return nil, errors.New("auth: principal store, role store and token codec are required")
	}
	svc := &Service{
		principals:  principals,
		roles:       roles,
		hasher:      NewBcryptHasher(0),
		tokens:      tokens,
		auditor:     nopAuditor{},
		defaultRole: RoleUser,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Tokens exposes the codec used by the service.
func (s *Service) Tokens() *TokenCodec { return s.tokens }

// RegisterRequest carries the fields of a new principal.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// TokenPair is issued on successful login.
type TokenPair struct {
	Access  Token
	Refresh Token
}

// Register creates a principal with the default role.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (p Principal, err error) {
	defer func() { obs.ObserveCredentialFlow("register", err) }()

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return Principal{}, Errorf(ErrInvalidInput, "Username is required")
	}
	if req.Password == "" {
		return Principal{}, Errorf(ErrInvalidInput, "Password is required")
	}
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return Principal{}, err
	}

	exists, err := s.principals.ExistsByUsername(ctx, username)
	if err != nil {
		return Principal{}, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return Principal{}, Errorf(ErrConflict, "Username is already taken")
	}
	if _, err := s.roles.FindByName(ctx, s.defaultRole); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, Errorf(ErrNotFound, "Role not found: %s", s.defaultRole)
		}
		return Principal{}, fmt.Errorf("load default role: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return Principal{}, fmt.Errorf("hash password: %w", err)
	}
	p = Principal{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{s.defaultRole},
	}
	if err := s.principals.Save(ctx, &p); err != nil {
		if errors.Is(err, ErrConflict) {
			return Principal{}, Errorf(ErrConflict, "Username is already taken")
		}
		return Principal{}, fmt.Errorf("save principal: %w", err)
	}

	s.auditor.Record(ctx, audit.Event{
		Action:   audit.ActionCreateUser,
		Entity:   audit.EntityUser,
		EntityID: audit.Int64(p.ID),
		Field:    "username",
		NewValue: audit.String(p.Username),
	})
	return p, nil
}

// Login verifies credentials and issues an access and refresh token.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (pair TokenPair, err error) {
	defer func() { obs.ObserveCredentialFlow("login", err) }()

	username = strings.TrimSpace(username)
	p, err := s.principals.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, ErrNotFound):
		s.dummy.compare(s.hasher, password)
		return TokenPair{}, s.loginFailed(ctx, username)
	case err != nil:
		return TokenPair{}, fmt.Errorf("find principal: %w", err)
	}

	if err := s.hasher.Verify(p.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return TokenPair{}, s.loginFailed(ctx, username)
		}
		return TokenPair{}, fmt.Errorf("verify password: %w", err)
	}

	access, err := s.tokens.Issue(TokenAccess, p.Username, p.ID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.Issue(TokenRefresh, p.Username, p.ID)
	if err != nil {
		return TokenPair{}, err
	}

	s.auditor.Record(ctx, audit.Event{
		Action:   audit.ActionLoginSuccess,
		ActorID:  audit.Int64(p.ID),
		Entity:   audit.EntityUser,
		EntityID: audit.Int64(p.ID),
	})
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *Service) loginFailed(ctx context.Context, username string) error {
	s.auditor.Record(ctx, audit.Event{
		Action:   audit.ActionLoginFailed,
		Level:    audit.LevelWarn,
		Entity:   audit.EntityUser,
		Field:    "username",
		NewValue: audit.String(username),
	})
	return Errorf(ErrInvalidCredentials, "Invalid username or password")
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is never reissued. Every token-level failure collapses to
// ErrInvalidRefreshToken.
func (s *Service) Refresh(ctx context.Context, raw string) (tok Token, err error) {
	defer func() { obs.ObserveCredentialFlow("refresh", err) }()

	tc, err := s.tokens.ValidateKind(raw, TokenRefresh)
	if err != nil {
		return Token{}, s.refreshFailed(ctx, reasonOf(err))
	}
	p, err := s.principals.FindByID(ctx, tc.PrincipalID)
	if errors.Is(err, ErrNotFound) {
		return Token{}, s.refreshFailed(ctx, "unknown_principal")
	}
	if err != nil {
		return Token{}, fmt.Errorf("find principal: %w", err)
	}

	tok, err = s.tokens.Issue(TokenAccess, p.Username, p.ID)
	if err != nil {
		return Token{}, err
	}
	s.auditor.Record(ctx, audit.Event{
		Action:   audit.ActionRefreshToken,
		ActorID:  audit.Int64(p.ID),
		Entity:   audit.EntityUser,
		EntityID: audit.Int64(p.ID),
	})
	return tok, nil
}

func (s *Service) refreshFailed(ctx context.Context, reason string) error {
	s.auditor.Record(ctx, audit.Event{
		Action:   audit.ActionInvalidRefreshToken,
		Level:    audit.LevelWarn,
		Entity:   audit.EntityUser,
		Field:    "reason",
		NewValue: audit.String(reason),
	})
	return Errorf(ErrInvalidRefreshToken, "Invalid refresh token")
}

// Authenticate resolves a bearer access token to an identity. It returns
// ErrTokenExpired for an expired but authentic token, ErrTokenMalformed for
// every other rejection, and a wrapped store error on infrastructure
// failure. Each rejection is audited as INVALID_TOKEN.
func (s *Service) Authenticate(ctx context.Context, raw string) (Identity, error) {
	tc, err := s.tokens.ValidateKind(raw, TokenAccess)
	if err != nil {
		reason := reasonOf(err)
		s.rejectToken(ctx, reason)
		if errors.Is(err, ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenMalformed
	}

	p, err := s.principals.FindByUsername(ctx, tc.Subject)
	if errors.Is(err, ErrNotFound) {
		s.rejectToken(ctx, "unknown_principal")
		return Identity{}, ErrTokenMalformed
	}
	if err != nil {
		obs.ObserveAuthentication("error")
		return Identity{}, fmt.Errorf("resolve principal: %w", err)
	}
	if p.ID != tc.PrincipalID {
		s.rejectToken(ctx, "principal_mismatch")
		return Identity{}, ErrTokenMalformed
	}

	obs.ObserveAuthentication("authenticated")
	return IdentityOf(p), nil
}

func (s *Service) rejectToken(ctx context.Context, reason string) {
	obs.ObserveAuthentication(reason)
	s.auditor.Record(ctx, audit.Event{
		Action:   audit.ActionInvalidToken,
		Level:    audit.LevelWarn,
		Entity:   audit.EntityHTTPRequest,
		Field:    "reason",
		NewValue: audit.String(reason),
	})
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrWrongTokenKind):
		return "wrong_kind"
	default:
		return "malformed"
	}
}

// NormalizeEmail trims and validates a bare address such as a@x.com.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", Errorf(ErrInvalidInput, "Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", Errorf(ErrInvalidInput, "Email is not valid")
	}
	return email, nil
}
