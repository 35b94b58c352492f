package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Payment is the single gateway-agnostic payment record of an order.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Gateway           enums.Gateway       `gorm:"column:gateway;type:text;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	PreferenceID      *string             `gorm:"column:preference_id"`
	ExternalPaymentID *string             `gorm:"column:external_payment_id;index"`
	RawPayload        json.RawMessage     `gorm:"column:raw_payload;type:jsonb"`
	ApprovedAt        *time.Time          `gorm:"column:approved_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// GatewayPayment is one attempt recorded by a pluggable gateway integration.
type GatewayPayment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Gateway           enums.Gateway       `gorm:"column:gateway;type:text;not null"`
	ExternalReference string              `gorm:"column:external_reference;not null"`
	AmountCents       int64               `gorm:"column:amount_cents;not null"`
	Currency          string              `gorm:"column:currency;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	Metadata          json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (g *GatewayPayment) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}
