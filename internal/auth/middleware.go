package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-b2b/internal/common"
)

var errNoToken = errors.New("auth: bearer token missing")

// Middleware authenticates bearer tokens on listing routes. Tokens are only
// accepted from the Authorization header.
type Middleware struct {
	Verifier *Verifier
	// Realm is reported in WWW-Authenticate challenges.
	Realm string
}

// RequireAuth rejects requests without a valid access token and stores the
// caller's user id and role on the context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.identify(r)
		if err != nil {
			m.challenge(w, err)
			return
		}
		ctx := common.WithUserID(r.Context(), id.UserID)
		if id.Role != "" {
			ctx = common.WithRole(ctx, id.Role)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated callers whose role is not one of roles.
// It must run after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := common.Role(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "role not permitted", map[string]any{"required": roles})
		})
	}
}

func (m Middleware) identify(r *http.Request) (Identity, error) {
	if m.Verifier == nil {
		return Identity{}, errors.New("auth: verifier not configured")
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return Identity{}, errNoToken
	}
	return m.Verifier.ParseAccessToken(token)
}

func (m Middleware) challenge(w http.ResponseWriter, err error) {
	realm := m.Realm
	if realm == "" {
		realm = "b2b"
	}
	value := `Bearer realm="` + realm + `"`
	if !errors.Is(err, errNoToken) {
		value += `, error="invalid_token"`
	}
	w.Header().Set("WWW-Authenticate", value)

	var appErr *common.AppError
	if !errors.Is(err, errNoToken) && errors.As(err, &appErr) {
		common.WriteError(w, appErr)
		return
	}
	common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
}
