package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/notify"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		Checkout: config.CheckoutConfig{
			DefaultGateway: "stripe",
			Currency:       "USD",
			SuccessURL:     "https://shop.test/ok",
			CancelURL:      "https://shop.test/cancel",
			CardFormURL:    "https://shop.test/card",
		},
		Notify: config.NotifyConfig{RedisChannel: "orders"},
	}
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBuildWiresStripeOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Stripe = config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_123", Env: "test"}

	svc, err := Build(context.Background(), cfg, logger.Nop(), db.FromGorm(dbtest.Open(t)), newRedis(t), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	require.NotNil(t, svc.Stripe)
	require.Nil(t, svc.Square)
	require.Equal(t, []enums.Gateway{enums.GatewayStripe}, svc.Gateways.Names())
	_, isBroadcaster := svc.Notifier.(*notify.Broadcaster)
	require.True(t, isBroadcaster)
	require.NotNil(t, svc.Checkout)
	require.NotNil(t, svc.Reconciler)
}

func TestBuildNeedsAGateway(t *testing.T) {
	_, err := Build(context.Background(), testConfig(), logger.Nop(), db.FromGorm(dbtest.Open(t)), nil, nil)
	require.Error(t, err)
}

func TestBuildRejectsBadStripeKey(t *testing.T) {
	cfg := testConfig()
	cfg.Stripe = config.StripeConfig{APIKey: "sk_live_123", Secret: "whsec_123", Env: "test"}
	_, err := Build(context.Background(), cfg, logger.Nop(), db.FromGorm(dbtest.Open(t)), nil, nil)
	require.ErrorContains(t, err, "stripe")
}
