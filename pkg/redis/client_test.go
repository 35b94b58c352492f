package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestSetNXOnlyFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	key := client.IdempotencyKey("stripe", "evt_1")

	ok, err := client.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, time.Minute, mr.TTL(key))

	require.NoError(t, client.Del(ctx, key))
	ok, err = client.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Get(context.Background(), "sf:missing")
	require.True(t, errors.Is(err, redis.Nil))
}

func TestPublishReachesSubscribers(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	sub := client.raw.Subscribe(ctx, "orders")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	receivers, err := client.Publish(ctx, "orders", []byte(`{"type":"order.updated"}`))
	require.NoError(t, err)
	require.EqualValues(t, 1, receivers)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"type":"order.updated"}`, msg.Payload)
}

func TestKeysAreNamespaced(t *testing.T) {
	c := &Client{}
	require.Equal(t, "sf:idempotency:square:evt-9", c.IdempotencyKey("square", " evt-9 "))
	require.Equal(t, "sf:lock:cron", c.LockKey("cron"))
	require.Equal(t, "sf:idempotency:stripe", c.IdempotencyKey("stripe", ""))
}

func TestUninitializedClientErrors(t *testing.T) {
	c := &Client{}
	_, err := c.SetNX(context.Background(), "k", "v", 0)
	require.ErrorIs(t, err, errNotInitialized)
	require.NoError(t, c.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@localhost:6380/3", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, "localhost:6380", opts.Addr)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 2})
	require.NoError(t, err)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
}
