// Package app wires the order services shared by the api and cron-worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/gateways"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notify"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type closer interface {
	Close() error
}

type Services struct {
	Metrics    *metrics.OrderMetrics
	Notifier   notify.Notifier
	OrdersRepo orders.Repository
	Orders     orders.Service
	Pricing    pricing.Service
	Checkout   checkout.Service
	Gateways   *gateways.Registry
	Reconciler *paymentwebhook.Reconciler

	// Nil when the gateway is not configured.
	Stripe *stripe.Client
	Square *square.Client

	closers []closer
}

// Build constructs every service over the shared connections. reg receives the
// order metrics; pass nil to skip registration.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*Services, error) {
	s := &Services{Metrics: metrics.NewOrderMetrics(reg)}

	notifier, err := s.buildNotifier(ctx, cfg.Notify, logg, redisClient)
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	s.Notifier = notifier

	registry, err := s.buildGateways(ctx, cfg, logg)
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	s.Gateways = registry

	conn := dbClient.DB()
	s.OrdersRepo = orders.NewRepository(conn)
	inv := inventory.NewManager(logg, s.Metrics)

	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	s.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:      s.OrdersRepo,
		Tx:        dbClient,
		Inventory: inv,
		Audit:     auditSvc,
		Notifier:  s.Notifier,
		Logger:    logg,
		Metrics:   s.Metrics,
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("orders service: %w", err), s.Close())
	}

	s.Pricing, err = pricing.NewService(pricing.NewRepository(conn))
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}

	s.Checkout, err = checkout.NewService(checkout.ServiceParams{
		Repo:       checkout.NewRepository(conn),
		OrdersRepo: s.OrdersRepo,
		Orders:     s.Orders,
		Tx:         dbClient,
		Inventory:  inv,
		Pricing:    s.Pricing,
		Gateways:   s.Gateways,
		Notifier:   s.Notifier,
		Logger:     logg,
		Currency:   cfg.Checkout.Currency,
		SuccessURL: cfg.Checkout.SuccessURL,
		CancelURL:  cfg.Checkout.CancelURL,
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("checkout service: %w", err), s.Close())
	}

	s.Reconciler, err = paymentwebhook.NewReconciler(paymentwebhook.ReconcilerParams{
		Orders:   s.Orders,
		Payments: s.OrdersRepo,
		Gateways: s.Gateways,
		Logger:   logg,
		Metrics:  s.Metrics,
	})
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	return s, nil
}

// buildNotifier fans events out to Redis always, and to Pub/Sub and Kafka when configured.
func (s *Services) buildNotifier(ctx context.Context, cfg config.NotifyConfig, logg *logger.Logger, redisClient *redis.Client) (notify.Notifier, error) {
	var sinks []notify.Sink
	if redisClient != nil {
		sink, err := notify.NewRedisSink(redisClient, cfg.RedisChannel)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	if cfg.PubSubEnabled() {
		client, err := pubsub.NewClient(ctx, cfg.PubSubProject, cfg.PubSubTopic, logg)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		s.closers = append(s.closers, client)
		sink, err := notify.NewPubSubSink(client)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	if cfg.KafkaEnabled() {
		sink, err := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		s.closers = append(s.closers, sink)
		sinks = append(sinks, sink)
	}
	if len(sinks) == 0 {
		return notify.Noop, nil
	}
	return notify.NewBroadcaster(sinks...), nil
}

func (s *Services) buildGateways(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*gateways.Registry, error) {
	var gws []gateways.Gateway
	if cfg.Stripe.Enabled() {
		client, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
		s.Stripe = client
		gws = append(gws, gateways.NewStripe(client))
	}
	if cfg.Square.Enabled() {
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, fmt.Errorf("square: %w", err)
		}
		s.Square = client
		gws = append(gws, gateways.NewSquare(client, cfg.Checkout.CardFormURL))
	}
	return gateways.NewRegistry(enums.Gateway(cfg.Checkout.DefaultGateway), gws...)
}

// Close flushes the notification sinks.
func (s *Services) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i].Close())
	}
	s.closers = nil
	return err
}
