package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "STOREFRONT_APP_ENV"
	EnvPort         = "STOREFRONT_APP_PORT"
	EnvLogLevel     = "STOREFRONT_LOG_LEVEL"
	EnvLogWarnStack = "STOREFRONT_LOG_WARN_STACK"

	EnvDBDSN      = "STOREFRONT_DB_DSN"
	EnvDBHost     = "STOREFRONT_DB_HOST"
	EnvDBPort     = "STOREFRONT_DB_PORT"
	EnvDBUser     = "STOREFRONT_DB_USER"
	EnvDBPassword = "STOREFRONT_DB_PASSWORD"
	EnvDBName     = "STOREFRONT_DB_NAME"
	EnvDBSSLMode  = "STOREFRONT_DB_SSLMODE"

	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvRedisAddr = "STOREFRONT_REDIS_ADDR"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvAutoMigrate = "STOREFRONT_AUTO_MIGRATE"

	EnvCheckoutDefaultGateway = "STOREFRONT_CHECKOUT_DEFAULT_GATEWAY"
	EnvCheckoutCurrency       = "STOREFRONT_CHECKOUT_CURRENCY"
	EnvCheckoutSuccessURL     = "STOREFRONT_CHECKOUT_SUCCESS_URL"
	EnvCheckoutCancelURL      = "STOREFRONT_CHECKOUT_CANCEL_URL"
	EnvCheckoutCardFormURL    = "STOREFRONT_CHECKOUT_CARD_FORM_URL"
	EnvCheckoutPendingTTL     = "STOREFRONT_CHECKOUT_PENDING_TTL"

	EnvWebhookWorkers        = "STOREFRONT_WEBHOOK_WORKERS"
	EnvWebhookQueueSize      = "STOREFRONT_WEBHOOK_QUEUE_SIZE"
	EnvWebhookTimeout        = "STOREFRONT_WEBHOOK_PROCESS_TIMEOUT"
	EnvWebhookIdempotencyTTL = "STOREFRONT_WEBHOOK_IDEMPOTENCY_TTL"

	EnvSquareAccessToken     = "STOREFRONT_SQUARE_ACCESS_TOKEN"
	EnvSquareWebhookSecret   = "STOREFRONT_SQUARE_WEBHOOK_SECRET"
	EnvSquareEnv             = "STOREFRONT_SQUARE_ENV"
	EnvSquareLocationID      = "STOREFRONT_SQUARE_LOCATION_ID"
	EnvSquareNotificationURL = "STOREFRONT_SQUARE_NOTIFICATION_URL"

	EnvStripeAPIKey = "STOREFRONT_STRIPE_API_KEY"
	EnvStripeSecret = "STOREFRONT_STRIPE_SECRET"
	EnvStripeEnv    = "STOREFRONT_STRIPE_ENV"

	EnvNotifyRedisChannel  = "STOREFRONT_NOTIFY_REDIS_CHANNEL"
	EnvNotifyPubSubProject = "STOREFRONT_NOTIFY_PUBSUB_PROJECT_ID"
	EnvNotifyPubSubTopic   = "STOREFRONT_NOTIFY_PUBSUB_TOPIC"
	EnvNotifyKafkaBrokers  = "STOREFRONT_NOTIFY_KAFKA_BROKERS"
	EnvNotifyKafkaTopic    = "STOREFRONT_NOTIFY_KAFKA_TOPIC"

	EnvCronInterval = "STOREFRONT_CRON_INTERVAL"
	EnvCronLockKey  = "STOREFRONT_CRON_LOCK_KEY"
	EnvCronLockTTL  = "STOREFRONT_CRON_LOCK_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
