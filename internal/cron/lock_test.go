package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func newLockStore(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store, _ := newLockStore(t)

	first, err := NewRedisLock(store, "pending-orders", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "pending-orders", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, second.Release(ctx))

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockLeavesForeignLeaseAlone(t *testing.T) {
	ctx := context.Background()
	store, mr := newLockStore(t)

	lock, err := NewRedisLock(store, "pending-orders", time.Minute)
	require.NoError(t, err)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Lease expired and another worker took over.
	key := store.LockKey("pending-orders")
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set(key, "someone-else"))

	require.NoError(t, lock.Release(ctx))
	got, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestNewRedisLockValidates(t *testing.T) {
	store, _ := newLockStore(t)
	_, err := NewRedisLock(nil, "x", time.Minute)
	require.Error(t, err)
	_, err = NewRedisLock(store, "", time.Minute)
	require.Error(t, err)

	lock, err := NewRedisLock(store, "x", 0)
	require.NoError(t, err)
	require.Equal(t, defaultLockTTL, lock.ttl)
}
