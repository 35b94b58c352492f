package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PriceRule adjusts a base price. Value is minor units for FIXED rules and a
// percentage (10.5 = 10.5%) for PERCENTAGE rules.
type PriceRule struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name       string           `gorm:"column:name;not null"`
	Scope      enums.RuleScope  `gorm:"column:scope;type:text;not null"`
	TargetID   *uuid.UUID       `gorm:"column:target_id;type:uuid"`
	Type       enums.RuleType   `gorm:"column:type;type:text;not null"`
	AmountType enums.AmountType `gorm:"column:amount_type;type:text;not null"`
	Value      decimal.Decimal  `gorm:"column:value;type:numeric(12,4);not null"`
	Priority   int              `gorm:"column:priority;not null;default:0"`
	Active     bool             `gorm:"column:active;not null"`
	StartsAt   *time.Time       `gorm:"column:starts_at"`
	EndsAt     *time.Time       `gorm:"column:ends_at"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (r *PriceRule) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// GatewayFee holds the fees a payment gateway adds on top of the rule-adjusted price.
type GatewayFee struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Gateway       enums.Gateway   `gorm:"column:gateway;type:text;not null;uniqueIndex"`
	FixedFeeCents int64           `gorm:"column:fixed_fee_cents;not null;default:0"`
	PercentFee    decimal.Decimal `gorm:"column:percent_fee;type:numeric(6,3);not null;default:0"`
	Active        bool            `gorm:"column:active;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (g *GatewayFee) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}

// Promotion is a catalog-level discount; a promoted line is not coupon eligible.
type Promotion struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name        string              `gorm:"column:name;not null"`
	Type        enums.PromotionType `gorm:"column:type;type:text;not null"`
	ProductID   *uuid.UUID          `gorm:"column:product_id;type:uuid"`
	CategoryID  *uuid.UUID          `gorm:"column:category_id;type:uuid"`
	Value       decimal.Decimal     `gorm:"column:value;type:numeric(12,4);not null;default:0"`
	BuyQuantity int                 `gorm:"column:buy_quantity;not null;default:0"`
	PayQuantity int                 `gorm:"column:pay_quantity;not null;default:0"`
	Active      bool                `gorm:"column:active;not null"`
	StartsAt    *time.Time          `gorm:"column:starts_at"`
	EndsAt      *time.Time          `gorm:"column:ends_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *Promotion) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// Coupon is a code entered at checkout.
type Coupon struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code             string           `gorm:"column:code;not null;uniqueIndex"`
	Type             enums.CouponType `gorm:"column:type;type:text;not null"`
	PercentOff       decimal.Decimal  `gorm:"column:percent_off;type:numeric(6,3);not null;default:0"`
	AmountOffCents   int64            `gorm:"column:amount_off_cents;not null;default:0"`
	BuyQuantity      int              `gorm:"column:buy_quantity;not null;default:0"`
	PayQuantity      int              `gorm:"column:pay_quantity;not null;default:0"`
	Combinable       bool             `gorm:"column:combinable;not null;default:false"`
	MinSubtotalCents int64            `gorm:"column:min_subtotal_cents;not null;default:0"`
	Active           bool             `gorm:"column:active;not null"`
	StartsAt         *time.Time       `gorm:"column:starts_at"`
	EndsAt           *time.Time       `gorm:"column:ends_at"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// ActiveAt reports whether a schedule window [startsAt, endsAt) contains now.
func ActiveAt(active bool, startsAt, endsAt *time.Time, now time.Time) bool {
	if !active {
		return false
	}
	if startsAt != nil && now.Before(*startsAt) {
		return false
	}
	if endsAt != nil && !now.Before(*endsAt) {
		return false
	}
	return true
}
