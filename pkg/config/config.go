package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Webhooks     WebhookConfig
	Square       SquareConfig
	Stripe       StripeConfig
	Notify       NotifyConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type CheckoutConfig struct {
	DefaultGateway string        `envconfig:"STOREFRONT_CHECKOUT_DEFAULT_GATEWAY" default:"stripe"`
	Currency       string        `envconfig:"STOREFRONT_CHECKOUT_CURRENCY" default:"USD"`
	SuccessURL     string        `envconfig:"STOREFRONT_CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/checkout/success"`
	CancelURL      string        `envconfig:"STOREFRONT_CHECKOUT_CANCEL_URL" default:"http://localhost:3000/checkout/cancel"`
	CardFormURL    string        `envconfig:"STOREFRONT_CHECKOUT_CARD_FORM_URL" default:"http://localhost:3000/checkout/card"`
	PendingTTL     time.Duration `envconfig:"STOREFRONT_CHECKOUT_PENDING_TTL" default:"24h"`
}

func (c CheckoutConfig) validate() error {
	for name, raw := range map[string]string{
		EnvCheckoutSuccessURL:  c.SuccessURL,
		EnvCheckoutCancelURL:   c.CancelURL,
		EnvCheckoutCardFormURL: c.CardFormURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute url, got %q", name, raw)
		}
	}
	if c.PendingTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutPendingTTL)
	}
	return nil
}

type WebhookConfig struct {
	Workers        int           `envconfig:"STOREFRONT_WEBHOOK_WORKERS" default:"4"`
	QueueSize      int           `envconfig:"STOREFRONT_WEBHOOK_QUEUE_SIZE" default:"256"`
	ProcessTimeout time.Duration `envconfig:"STOREFRONT_WEBHOOK_PROCESS_TIMEOUT" default:"30s"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type SquareConfig struct {
	AccessToken     string `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	WebhookSecret   string `envconfig:"STOREFRONT_SQUARE_WEBHOOK_SECRET"`
	Env             string `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
	LocationID      string `envconfig:"STOREFRONT_SQUARE_LOCATION_ID"`
	NotificationURL string `envconfig:"STOREFRONT_SQUARE_NOTIFICATION_URL"`
}

// Enabled reports whether Square credentials were supplied.
func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type StripeConfig struct {
	APIKey string `envconfig:"STOREFRONT_STRIPE_API_KEY"`
	Secret string `envconfig:"STOREFRONT_STRIPE_SECRET"`
	Env    string `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
}

func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type NotifyConfig struct {
	RedisChannel  string   `envconfig:"STOREFRONT_NOTIFY_REDIS_CHANNEL" default:"storefront:orders:events"`
	PubSubProject string   `envconfig:"STOREFRONT_NOTIFY_PUBSUB_PROJECT_ID"`
	PubSubTopic   string   `envconfig:"STOREFRONT_NOTIFY_PUBSUB_TOPIC"`
	KafkaBrokers  []string `envconfig:"STOREFRONT_NOTIFY_KAFKA_BROKERS"`
	KafkaTopic    string   `envconfig:"STOREFRONT_NOTIFY_KAFKA_TOPIC" default:"storefront.orders.events"`
}

func (n NotifyConfig) PubSubEnabled() bool {
	return strings.TrimSpace(n.PubSubProject) != "" && strings.TrimSpace(n.PubSubTopic) != ""
}

func (n NotifyConfig) KafkaEnabled() bool {
	return len(n.KafkaBrokers) > 0 && strings.TrimSpace(n.KafkaTopic) != ""
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"5m"`
	LockKey  string        `envconfig:"STOREFRONT_CRON_LOCK_KEY" default:"cron:pending-orders"`
	LockTTL  time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
