package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-b2b/internal/health"
	"github.com/noah-isme/backend-b2b/internal/pricing"
)

type countingChecker struct{ pings int }

func (c *countingChecker) PingDB(context.Context, time.Duration) error    { c.pings++; return nil }
func (c *countingChecker) PingRedis(context.Context, time.Duration) error { c.pings++; return nil }

func TestReadinessDrainsWithoutProbing(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	calc := pricing.Default()
	checker := &countingChecker{}
	handler := health.Handler{Checker: checker, Calculator: &calc}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	health.SetReady(true)
	rr := httptest.NewRecorder()
	handler.Ready(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 2, checker.pings)

	health.SetReady(false)
	require.False(t, health.IsReady())
	rr = httptest.NewRecorder()
	handler.Ready(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NotContains(t, rr.Body.String(), "pricing")
	require.Equal(t, 2, checker.pings, "draining instance must not touch dependencies")

	rr = httptest.NewRecorder()
	handler.Live(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}
