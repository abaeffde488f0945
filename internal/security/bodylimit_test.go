package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = w.Write(data)
	})
}

func TestBodyLimit(t *testing.T) {
	tiers := `{"sellerPrice":"250.00"}`
	cases := []struct {
		name        string
		limit       BodyLimit
		method      string
		contentType string
		body        string
		declared    int64
		wantStatus  int
	}{
		{name: "within limit", limit: BodyLimit{Max: 64}, method: http.MethodPut, body: tiers, wantStatus: http.StatusOK},
		{name: "oversized", limit: BodyLimit{Max: 8}, method: http.MethodPut, body: tiers, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "declared oversized", limit: BodyLimit{Max: 64}, method: http.MethodPost, body: tiers, declared: 1000, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "reads not limited", limit: BodyLimit{Max: 1}, method: http.MethodGet, body: tiers, wantStatus: http.StatusOK},
		{name: "json with charset", limit: BodyLimit{Max: 64, RequireJSON: true}, method: http.MethodPut, contentType: "application/json; charset=utf-8", body: tiers, wantStatus: http.StatusOK},
		{name: "json suffix", limit: BodyLimit{Max: 64, RequireJSON: true}, method: http.MethodPut, contentType: "application/merge-patch+json", body: tiers, wantStatus: http.StatusOK},
		{name: "form rejected", limit: BodyLimit{Max: 64, RequireJSON: true}, method: http.MethodPost, contentType: "application/x-www-form-urlencoded", body: "a=b", wantStatus: http.StatusUnsupportedMediaType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/listings/x/tiers/1-5", strings.NewReader(tc.body))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			if tc.declared > 0 {
				req.ContentLength = tc.declared
			}
			rr := httptest.NewRecorder()
			tc.limit.Middleware(echoHandler(t)).ServeHTTP(rr, req)
			require.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantStatus == http.StatusOK {
				require.Equal(t, tc.body, rr.Body.String())
			}
		})
	}
}

func TestBodyLimitReportsLimitInError(t *testing.T) {
	handler := BodyLimit{Max: 8}.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/v1/listings/x/tiers/1-5", strings.NewReader(`{"sellerPrice":"250.00"}`)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Contains(t, rr.Body.String(), `"PAYLOAD_TOO_LARGE"`)
	require.Contains(t, rr.Body.String(), `"maxBytes":8`)
}
