package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "accountd"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

func (k TokenKind) valid() bool {
	return k == TokenAccess || k == TokenRefresh
}

// Token is a signed, expiring bearer credential. It is never persisted.
type Token struct {
	Value       string
	Kind        TokenKind
	Subject     string
	PrincipalID int64
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// TokenClaims is what a successfully validated token asserts.
type TokenClaims struct {
	Subject     string
	PrincipalID int64
	Kind        TokenKind
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type claims struct {
	PrincipalID int64     `json:"principal_id"`
	TokenType   TokenKind `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 access and refresh tokens.
// It holds no mutable state after construction and is safe for concurrent use.
type TokenCodec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			c.issuer = issuer
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *TokenCodec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *TokenCodec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewTokenCodec builds a codec around the shared signing secret. An empty
// secret still yields a codec, but every Issue fails with
// ErrSigningKeyUnavailable and every Validate with ErrTokenMalformed.
func NewTokenCodec(secret string, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	if s := strings.TrimSpace(secret); s != "" {
		c.secret = []byte(s)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the lifetime applied to tokens of the given kind.
func (c *TokenCodec) TTL(kind TokenKind) time.Duration {
	if kind == TokenRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue signs a new token of the given kind for the principal.
func (c *TokenCodec) Issue(kind TokenKind, username string, principalID int64) (Token, error) {
	if len(c.secret) == 0 {
		return Token{}, ErrSigningKeyUnavailable
	}
	if !kind.valid() {
		return Token{}, fmt.Errorf("%w: unknown token kind %q", ErrInvalidInput, kind)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return Token{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if principalID <= 0 {
		return Token{}, fmt.Errorf("%w: principal id must be positive", ErrInvalidInput)
	}

	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(c.TTL(kind))
	cl := claims{
		PrincipalID: principalID,
		TokenType:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{
		Value:       signed,
		Kind:        kind,
		Subject:     username,
		PrincipalID: principalID,
		IssuedAt:    now,
		ExpiresAt:   exp,
	}, nil
}

// Validate verifies signature, issuer and expiry. It returns ErrTokenExpired
// only when the signature is valid and exp has passed; every other failure
// is ErrTokenMalformed.
func (c *TokenCodec) Validate(raw string) (TokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(c.secret) == 0 {
		return TokenClaims{}, ErrTokenMalformed
	}

	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		// jwt/v5 checks the signature before claims, so an expiry error
		// implies the signature verified.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, ErrTokenMalformed
	}
	cl, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return TokenClaims{}, ErrTokenMalformed
	}
	if strings.TrimSpace(cl.Subject) == "" || !cl.TokenType.valid() || cl.IssuedAt == nil {
		return TokenClaims{}, ErrTokenMalformed
	}
	return TokenClaims{
		Subject:     cl.Subject,
		PrincipalID: cl.PrincipalID,
		Kind:        cl.TokenType,
		IssuedAt:    cl.IssuedAt.Time,
		ExpiresAt:   cl.ExpiresAt.Time,
	}, nil
}

// ValidateKind is Validate plus a kind check. A refresh token is never
// accepted where an access token is required, and vice versa.
func (c *TokenCodec) ValidateKind(raw string, want TokenKind) (TokenClaims, error) {
	tc, err := c.Validate(raw)
	if err != nil {
		return TokenClaims{}, err
	}
	if tc.Kind != want {
		return TokenClaims{}, ErrWrongTokenKind
	}
	return tc, nil
}
