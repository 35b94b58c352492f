// Package dbtest opens sqlite databases carrying the storefront schema for tests.
package dbtest

import (
	"io"
	"log"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlite mirror of pkg/migrate/migrations; postgres-only types are mapped to TEXT.
var schema = []string{
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		category_id TEXT,
		name TEXT NOT NULL,
		price_cents INTEGER NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		stock_total INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_variants (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		color_code TEXT NOT NULL,
		color_name TEXT,
		size TEXT NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (product_id, color_code, size)
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		fulfillment_type TEXT NOT NULL,
		gateway TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		subtotal_cents INTEGER NOT NULL,
		discount_cents INTEGER NOT NULL DEFAULT 0,
		gateway_fee_cents INTEGER NOT NULL DEFAULT 0,
		total_cents INTEGER NOT NULL,
		coupon_code TEXT,
		payment_approved_at DATETIME,
		preparing_started_at DATETIME,
		ready_for_shipping_at DATETIME,
		ready_for_pickup_at DATETIME,
		shipped_at DATETIME,
		delivered_at DATETIME,
		cancelled_at DATETIME,
		delivery_reason TEXT,
		cancellation_reason TEXT,
		tracking_number TEXT,
		carrier TEXT,
		tracking_url TEXT,
		delivery_attempts INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		variant_id TEXT,
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		size TEXT,
		color_code TEXT,
		unit_price_cents INTEGER NOT NULL,
		original_price_cents INTEGER NOT NULL,
		discount_cents INTEGER NOT NULL DEFAULT 0,
		promotion_id TEXT,
		promotion_name TEXT,
		promotion_type TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL UNIQUE,
		gateway TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		preference_id TEXT,
		external_payment_id TEXT,
		raw_payload TEXT,
		approved_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE gateway_payments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		gateway TEXT NOT NULL,
		external_reference TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (gateway, external_reference)
	)`,
	`CREATE TABLE order_audits (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		action TEXT NOT NULL,
		previous_status TEXT NOT NULL,
		new_status TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE price_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		scope TEXT NOT NULL,
		target_id TEXT,
		type TEXT NOT NULL,
		amount_type TEXT NOT NULL,
		value TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		starts_at DATETIME,
		ends_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE gateway_fees (
		id TEXT PRIMARY KEY,
		gateway TEXT NOT NULL UNIQUE,
		fixed_fee_cents INTEGER NOT NULL DEFAULT 0,
		percent_fee TEXT NOT NULL DEFAULT '0',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME
	)`,
	`CREATE TABLE promotions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		product_id TEXT,
		category_id TEXT,
		value TEXT NOT NULL DEFAULT '0',
		buy_quantity INTEGER NOT NULL DEFAULT 0,
		pay_quantity INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		starts_at DATETIME,
		ends_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE coupons (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		percent_off TEXT NOT NULL DEFAULT '0',
		amount_off_cents INTEGER NOT NULL DEFAULT 0,
		buy_quantity INTEGER NOT NULL DEFAULT 0,
		pay_quantity INTEGER NOT NULL DEFAULT 0,
		combinable BOOLEAN NOT NULL DEFAULT 0,
		min_subtotal_cents INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		starts_at DATETIME,
		ends_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a private in-memory sqlite database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
