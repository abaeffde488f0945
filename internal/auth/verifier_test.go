package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-b2b/internal/common"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{Secret: "test-secret", ClockSkew: time.Second})
	require.NoError(t, err)
	return v
}

func TestVerifierRoundTrip(t *testing.T) {
	v := newTestVerifier(t)
	token, err := v.Issue(Identity{UserID: "owner-1", Role: common.RoleBusinessOwner}, time.Minute)
	require.NoError(t, err)

	id, err := v.ParseAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "owner-1", id.UserID)
	require.Equal(t, common.RoleBusinessOwner, id.Role)
}

func TestVerifierRejectsExpired(t *testing.T) {
	v := newTestVerifier(t)
	issuedAt := time.Now().Add(-time.Hour)
	v.WithNow(func() time.Time { return issuedAt })
	token, err := v.Issue(Identity{UserID: "owner-1"}, time.Minute)
	require.NoError(t, err)

	v.WithNow(time.Now)
	_, err = v.ParseAccessToken(token)
	require.Error(t, err)
	require.True(t, common.IsAppError(err))
}

func TestVerifierRejectsForeignSecret(t *testing.T) {
	v := newTestVerifier(t)
	other, err := NewVerifier(Config{Secret: "another-secret"})
	require.NoError(t, err)
	token, err := other.Issue(Identity{UserID: "owner-1"}, time.Minute)
	require.NoError(t, err)

	_, err = v.ParseAccessToken(token)
	require.Error(t, err)
}

func TestVerifierRejectsUnexpectedAlgorithm(t *testing.T) {
	v := newTestVerifier(t)
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Subject("owner-1").
		Issuer(defaultIssuer).
		Audience([]string{defaultAudience}).
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, []byte("test-secret")))
	require.NoError(t, err)

	_, err = v.ParseAccessToken(string(signed))
	require.Error(t, err)
}

func TestRequireAuthAndRole(t *testing.T) {
	v := newTestVerifier(t)
	mw := Middleware{Verifier: v}
	var seenUser, seenRole string
	handler := mw.RequireAuth(RequireRole(common.RoleBusinessOwner)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = common.UserID(r.Context())
		seenRole = common.Role(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, `Bearer realm="b2b"`, rr.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Header().Get("WWW-Authenticate"), `error="invalid_token"`)

	student, err := v.Issue(Identity{UserID: "student-1", Role: common.RoleStudent}, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)
	req.Header.Set("Authorization", "Bearer "+student)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	owner, err := v.Issue(Identity{UserID: "owner-1", Role: common.RoleBusinessOwner}, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)
	req.Header.Set("Authorization", "Bearer "+owner)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "owner-1", seenUser)
	require.Equal(t, common.RoleBusinessOwner, seenRole)
}
