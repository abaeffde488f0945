package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-b2b/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}, client
}

func TestWithLockSerialisesSaves(t *testing.T) {
	locker, _ := newLocker(t)
	key := lock.ListingKey(uuid.New())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var mu sync.Mutex
	var order []string
	firstIn := make(chan struct{})
	releaseFirst := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_ = locker.WithLock(ctx, key, time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstIn)
			<-releaseFirst
			return nil
		})
	}()
	<-firstIn
	go func() {
		defer wg.Done()
		_ = locker.WithLock(ctx, key, time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)
	close(releaseFirst)
	wg.Wait()

	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockTimesOut(t *testing.T) {
	locker, client := newLocker(t)
	key := lock.ListingKey(uuid.New())
	require.NoError(t, client.Set(context.Background(), key, "someone-else", time.Minute).Err())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	called := false
	err := locker.WithLock(ctx, key, time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, called)

	owner, err := client.Get(context.Background(), key).Result()
	require.NoError(t, err)
	require.Equal(t, "someone-else", owner)
}

func TestWithLockReleasesAfterError(t *testing.T) {
	locker, client := newLocker(t)
	key := lock.ListingKey(uuid.New())
	boom := errors.New("update failed")

	err := locker.WithLock(context.Background(), key, time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	exists, err := client.Exists(context.Background(), key).Result()
	require.NoError(t, err)
	require.Zero(t, exists)
}

func TestWithLockRenewsLease(t *testing.T) {
	locker, client := newLocker(t)
	key := lock.ListingKey(uuid.New())

	err := locker.WithLock(context.Background(), key, 60*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(150 * time.Millisecond)
		ttl, err := client.PTTL(ctx, key).Result()
		require.NoError(t, err)
		require.Greater(t, ttl, time.Duration(0))
		return nil
	})
	require.NoError(t, err)
}
