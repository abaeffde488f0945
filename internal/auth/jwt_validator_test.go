package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-b2b/internal/common"
)

func ownerToken(t *testing.T, now time.Time, mutate func(*jwt.Builder) *jwt.Builder) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("b2b-identity").
		Audience([]string{"b2b-listings"}).
		Subject("owner-1").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(time.Minute)).
		Claim(roleClaim, common.RoleBusinessOwner)
	if mutate != nil {
		b = mutate(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func listingValidator() TokenValidator {
	return TokenValidator{Issuer: "b2b-identity", Audience: "b2b-listings", ClockSkew: time.Second, Algorithm: jwa.HS256}
}

func TestTokenValidatorExtractsIdentity(t *testing.T) {
	now := time.Now()
	id, err := listingValidator().Validate(ownerToken(t, now, nil), jwa.HS256, now)
	require.NoError(t, err)
	require.Equal(t, Identity{UserID: "owner-1", Role: common.RoleBusinessOwner}, id)
}

func TestTokenValidatorRejects(t *testing.T) {
	now := time.Now()
	cases := map[string]struct {
		mutate func(*jwt.Builder) *jwt.Builder
		alg    jwa.SignatureAlgorithm
		v      func(TokenValidator) TokenValidator
	}{
		"issuer mismatch": {mutate: func(b *jwt.Builder) *jwt.Builder { return b.Issuer("other") }},
		"expired": {mutate: func(b *jwt.Builder) *jwt.Builder {
			return b.IssuedAt(now.Add(-2 * time.Hour)).NotBefore(now.Add(-2 * time.Hour)).Expiration(now.Add(-time.Minute))
		}},
		"not yet valid": {mutate: func(b *jwt.Builder) *jwt.Builder {
			return b.NotBefore(now.Add(5 * time.Minute)).Expiration(now.Add(10 * time.Minute))
		}},
		"algorithm mismatch": {alg: jwa.RS256},
		"missing subject":    {mutate: func(b *jwt.Builder) *jwt.Builder { return b.Subject("") }},
		"non-string role":    {mutate: func(b *jwt.Builder) *jwt.Builder { return b.Claim(roleClaim, 7) }},
		"role not allowed": {v: func(v TokenValidator) TokenValidator {
			v.Roles = []string{common.RoleStudent}
			return v
		}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			alg := tc.alg
			if alg == "" {
				alg = jwa.HS256
			}
			v := listingValidator()
			if tc.v != nil {
				v = tc.v(v)
			}
			_, err := v.Validate(ownerToken(t, now, tc.mutate), alg, now)
			require.Error(t, err)
		})
	}
}

func TestTokenValidatorRequiresExpiry(t *testing.T) {
	now := time.Now()
	tok, err := jwt.NewBuilder().Subject("owner-1").IssuedAt(now).Build()
	require.NoError(t, err)
	_, err = TokenValidator{Algorithm: jwa.HS256}.Validate(tok, jwa.HS256, now)
	require.Error(t, err)
}
