package common

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func idemFixture(t *testing.T, status int) (http.Handler, *atomic.Int32, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var calls atomic.Int32
	h := Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		JSON(w, status, map[string]any{"version": n})
	}))
	return h, &calls, mr
}

func saveRequest(key, user string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/abc/save", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req.WithContext(WithUserID(req.Context(), user))
}

func TestIdemReplaysStoredResponse(t *testing.T) {
	h, calls, _ := idemFixture(t, http.StatusOK)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, saveRequest("k1", "owner-1"))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, saveRequest("k1", "owner-1"))
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, first.Body.String(), second.Body.String())
	require.EqualValues(t, 1, calls.Load())

	other := httptest.NewRecorder()
	h.ServeHTTP(other, saveRequest("k1", "owner-2"))
	require.EqualValues(t, 2, calls.Load())
}

func TestIdemWithoutKeyAlwaysRuns(t *testing.T) {
	h, calls, _ := idemFixture(t, http.StatusOK)
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), saveRequest("", "owner-1"))
	}
	require.EqualValues(t, 2, calls.Load())
}

func TestIdemForgetsServerErrors(t *testing.T) {
	h, calls, _ := idemFixture(t, http.StatusInternalServerError)
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), saveRequest("k2", "owner-1"))
	}
	require.EqualValues(t, 2, calls.Load())
}

func TestIdemRejectsInFlightDuplicate(t *testing.T) {
	h, calls, mr := idemFixture(t, http.StatusOK)
	req := saveRequest("k3", "owner-1")
	require.NoError(t, mr.Set(idemKey(req, "k3"), idemPending))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "IDEMPOTENT_REPLAY")
	require.Zero(t, calls.Load())
}
