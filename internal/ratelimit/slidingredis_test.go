package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr, client := newTestClient(t)
	limiter := Limiter{Client: client, Prefix: "test:"}
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "tier-edit:owner-1:l1", window, 2)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		require.Equal(t, 1-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "tier-edit:owner-1:l1", window, 2)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Zero(t, d.Remaining)
	require.WithinDuration(t, time.Now().Add(window), d.ResetAt, window)

	members, err := client.ZCard(ctx, "test:tier-edit:owner-1:l1").Result()
	require.NoError(t, err)
	require.EqualValues(t, 2, members, "rejected requests are not recorded")

	other, err := limiter.Allow(ctx, "tier-edit:owner-1:l2", window, 2)
	require.NoError(t, err)
	require.True(t, other.Allowed)

	mr.FastForward(window)
	d, err = limiter.Allow(ctx, "tier-edit:owner-1:l1", window, 2)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	d, err := Limiter{}.Allow(context.Background(), "k", time.Minute, 5)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 5, d.Remaining)
}
