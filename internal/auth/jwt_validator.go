package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator checks the registered claims of an access token and extracts
// the caller identity from it.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
	// Roles, when set, restricts the role claim to these values. Tokens
	// without a role are accepted and treated as plain buyers.
	Roles []string
}

// Validate checks algorithm, time window, issuer and audience, then returns
// the subject and role carried by tok.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) (Identity, error) {
	if tok == nil {
		return Identity{}, errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return Identity{}, errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return Identity{}, fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return Identity{}, err
	}

	id := Identity{UserID: tok.Subject()}
	if id.UserID == "" {
		return Identity{}, errors.New("auth: token missing subject")
	}
	if raw, ok := tok.Get(roleClaim); ok {
		role, ok := raw.(string)
		if !ok {
			return Identity{}, errors.New("auth: role claim must be a string")
		}
		id.Role = role
	}
	if id.Role != "" && len(v.Roles) > 0 && !slices.Contains(v.Roles, id.Role) {
		return Identity{}, fmt.Errorf("auth: unknown role %q", id.Role)
	}
	return id, nil
}
