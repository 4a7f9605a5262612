package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	codec := NewTokenCodec(testSecret)

	for _, kind := range []TokenKind{TokenAccess, TokenRefresh} {
		tok, err := codec.Issue(kind, "alice", 42)
		require.NoError(t, err)
		assert.Equal(t, codec.TTL(kind), tok.ExpiresAt.Sub(tok.IssuedAt))

		claims, err := codec.Validate(tok.Value)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Subject)
		assert.Equal(t, int64(42), claims.PrincipalID)
		assert.Equal(t, kind, claims.Kind)
	}
}

func TestTokenDefaultLifetimes(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	assert.Equal(t, 15*time.Minute, codec.TTL(TokenAccess))
	assert.Equal(t, 7*24*time.Hour, codec.TTL(TokenRefresh))
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	codec := NewTokenCodec(testSecret, WithClock(clock), WithAccessTTL(time.Minute))

	tok, err := codec.Issue(TokenAccess, "alice", 1)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = codec.Validate(tok.Value)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenWrongKindBothWays(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	access, err := codec.Issue(TokenAccess, "alice", 1)
	require.NoError(t, err)
	refresh, err := codec.Issue(TokenRefresh, "alice", 1)
	require.NoError(t, err)

	_, err = codec.ValidateKind(refresh.Value, TokenAccess)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
	_, err = codec.ValidateKind(access.Value, TokenRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestTokenMalformed(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	tok, err := codec.Issue(TokenAccess, "alice", 1)
	require.NoError(t, err)

	other := NewTokenCodec(strings.Repeat("x", 32))
	foreign, err := other.Issue(TokenAccess, "alice", 1)
	require.NoError(t, err)

	otherIssuer := NewTokenCodec(testSecret, WithIssuer("someone-else"))
	wrongIss, err := otherIssuer.Issue(TokenAccess, "alice", 1)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice", "token_type": "access"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"tampered":       tok.Value[:len(tok.Value)-2] + "xx",
		"foreign secret": foreign.Value,
		"wrong issuer":   wrongIss.Value,
		"alg none":       unsigned,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Validate(raw)
			assert.ErrorIs(t, err, ErrTokenMalformed)
		})
	}
}

func TestExpiredWithBadSignatureIsMalformed(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	other := NewTokenCodec(strings.Repeat("y", 32), WithClock(clock))
	tok, err := other.Issue(TokenAccess, "alice", 1)
	require.NoError(t, err)

	later := func() time.Time { return now.Add(time.Hour) }
	codec := NewTokenCodec(testSecret, WithClock(later))
	_, err = codec.Validate(tok.Value)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestIssueWithoutSecret(t *testing.T) {
	codec := NewTokenCodec("  ")
	_, err := codec.Issue(TokenAccess, "alice", 1)
	assert.ErrorIs(t, err, ErrSigningKeyUnavailable)
}

func TestIssueRejectsBadInput(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	_, err := codec.Issue(TokenAccess, " ", 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = codec.Issue(TokenKind("id"), "alice", 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	for _, id := range []int64{0, -7} {
		_, err = codec.Issue(TokenAccess, "alice", id)
		assert.ErrorIs(t, err, ErrInvalidInput, id)
	}
}
