package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is the aggregate root of the purchase lifecycle. It is only mutated through
// version-guarded updates and never deleted.
type Order struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string                `gorm:"column:order_number;not null;uniqueIndex"`
	UserID             uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Status             enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'PENDING'"`
	FulfillmentType    enums.FulfillmentType `gorm:"column:fulfillment_type;type:text;not null"`
	Gateway            enums.Gateway         `gorm:"column:gateway;type:text;not null"`
	Currency           string                `gorm:"column:currency;type:text;not null;default:'USD'"`
	SubtotalCents      int64                 `gorm:"column:subtotal_cents;not null"`
	DiscountCents      int64                 `gorm:"column:discount_cents;not null;default:0"`
	GatewayFeeCents    int64                 `gorm:"column:gateway_fee_cents;not null;default:0"`
	TotalCents         int64                 `gorm:"column:total_cents;not null"`
	CouponCode         *string               `gorm:"column:coupon_code"`
	PaymentApprovedAt  *time.Time            `gorm:"column:payment_approved_at"`
	PreparingStartedAt *time.Time            `gorm:"column:preparing_started_at"`
	ReadyForShippingAt *time.Time            `gorm:"column:ready_for_shipping_at"`
	ReadyForPickupAt   *time.Time            `gorm:"column:ready_for_pickup_at"`
	ShippedAt          *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time            `gorm:"column:delivered_at"`
	CancelledAt        *time.Time            `gorm:"column:cancelled_at"`
	DeliveryReason     *string               `gorm:"column:delivery_reason"`
	CancellationReason *string               `gorm:"column:cancellation_reason"`
	TrackingNumber     *string               `gorm:"column:tracking_number"`
	Carrier            *string               `gorm:"column:carrier"`
	TrackingURL        *string               `gorm:"column:tracking_url"`
	DeliveryAttempts   int                   `gorm:"column:delivery_attempts;not null;default:0"`
	Version            int                   `gorm:"column:version;not null;default:1"`
	Items              []OrderItem           `gorm:"foreignKey:OrderID"`
	Payment            *Payment              `gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}

// OrderItem is a purchased line. Prices and the applied promotion are copied at
// purchase time so later catalog edits do not rewrite history.
type OrderItem struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID          uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID          *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	ProductName        string     `gorm:"column:product_name;not null"`
	Quantity           int        `gorm:"column:quantity;not null"`
	Size               *string    `gorm:"column:size"`
	ColorCode          *string    `gorm:"column:color_code"`
	UnitPriceCents     int64      `gorm:"column:unit_price_cents;not null"`
	OriginalPriceCents int64      `gorm:"column:original_price_cents;not null"`
	DiscountCents      int64      `gorm:"column:discount_cents;not null;default:0"`
	PromotionID        *uuid.UUID `gorm:"column:promotion_id;type:uuid"`
	PromotionName      *string    `gorm:"column:promotion_name"`
	PromotionType      *string    `gorm:"column:promotion_type"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// LineTotalCents is the amount charged for the line. It is derived from the
// original price and the line discount, so it stays exact when the unit price
// was rounded down.
func (i OrderItem) LineTotalCents() int64 {
	return i.OriginalPriceCents*int64(i.Quantity) - i.DiscountCents
}
