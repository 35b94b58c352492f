package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// CartLine is one line to price. UnitPriceCents is the rule-adjusted unit price.
type CartLine struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	Quantity       int
	UnitPriceCents int64
	Promotion      *models.Promotion
}

// LineQuote is the priced line. PromotionDiscountCents and CouponDiscountCents are
// line totals, not per unit.
type LineQuote struct {
	ProductID              uuid.UUID     `json:"product_id"`
	VariantID              *uuid.UUID    `json:"variant_id,omitempty"`
	Quantity               int           `json:"quantity"`
	OriginalUnitPriceCents int64         `json:"original_unit_price_cents"`
	SubtotalCents          int64         `json:"subtotal_cents"`
	PromotionDiscountCents int64         `json:"promotion_discount_cents"`
	CouponDiscountCents    int64         `json:"coupon_discount_cents"`
	TotalCents             int64         `json:"total_cents"`
	CouponEligible         bool          `json:"coupon_eligible"`
	PromotionID            *uuid.UUID    `json:"promotion_id,omitempty"`
	PromotionName          string        `json:"promotion_name,omitempty"`
	PromotionType          string        `json:"promotion_type,omitempty"`
	AppliedRules           []AppliedRule `json:"applied_rules,omitempty"`
}

// UnitPriceCents is the effective per-unit price charged for the line.
func (l LineQuote) UnitPriceCents() int64 {
	if l.Quantity <= 0 {
		return 0
	}
	return l.TotalCents / int64(l.Quantity)
}

// CouponBreakdown shows how a coupon discount was built.
type CouponBreakdown struct {
	Code                  string `json:"code"`
	EligibleSubtotalCents int64  `json:"eligible_subtotal_cents"`
	EligibleQuantity      int    `json:"eligible_quantity"`
	BundleDiscountCents   int64  `json:"bundle_discount_cents"`
	PercentDiscountCents  int64  `json:"percent_discount_cents"`
	FixedDiscountCents    int64  `json:"fixed_discount_cents"`
	TotalCents            int64  `json:"total_cents"`
}

// CartQuote is the priced cart before gateway fees.
type CartQuote struct {
	Lines                  []LineQuote      `json:"lines"`
	SubtotalCents          int64            `json:"subtotal_cents"`
	PromotionDiscountCents int64            `json:"promotion_discount_cents"`
	CouponDiscountCents    int64            `json:"coupon_discount_cents"`
	TotalCents             int64            `json:"total_cents"`
	Coupon                 *CouponBreakdown `json:"coupon,omitempty"`
}

// DiscountCents is the sum of promotion and coupon discounts.
func (q CartQuote) DiscountCents() int64 {
	return q.PromotionDiscountCents + q.CouponDiscountCents
}

// PriceCart applies line promotions and then the coupon. Lines carrying an active
// promotion are excluded from the coupon; the coupon only sees the remaining lines.
func PriceCart(lines []CartLine, coupon *models.Coupon, now time.Time) (CartQuote, error) {
	quote := CartQuote{Lines: make([]LineQuote, 0, len(lines))}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return CartQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		lq := priceLine(line, now)
		quote.SubtotalCents += lq.SubtotalCents
		quote.PromotionDiscountCents += lq.PromotionDiscountCents
		quote.Lines = append(quote.Lines, lq)
	}

	if coupon != nil {
		if !models.ActiveAt(coupon.Active, coupon.StartsAt, coupon.EndsAt, now) {
			return CartQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "coupon is not active")
		}
		breakdown, err := applyCoupon(quote.Lines, coupon)
		if err != nil {
			return CartQuote{}, err
		}
		quote.Coupon = breakdown
		quote.CouponDiscountCents = breakdown.TotalCents
	}

	for i := range quote.Lines {
		l := &quote.Lines[i]
		l.TotalCents = l.SubtotalCents - l.PromotionDiscountCents - l.CouponDiscountCents
		quote.TotalCents += l.TotalCents
	}
	return quote, nil
}

func priceLine(line CartLine, now time.Time) LineQuote {
	subtotal := line.UnitPriceCents * int64(line.Quantity)
	lq := LineQuote{
		ProductID:              line.ProductID,
		VariantID:              line.VariantID,
		Quantity:               line.Quantity,
		OriginalUnitPriceCents: line.UnitPriceCents,
		SubtotalCents:          subtotal,
		CouponEligible:         true,
	}
	promo := line.Promotion
	if promo == nil || !models.ActiveAt(promo.Active, promo.StartsAt, promo.EndsAt, now) {
		return lq
	}

	var discount int64
	switch promo.Type {
	case enums.PromotionTypePercentage, enums.PromotionTypeClearance:
		discount = percentOf(decimal.NewFromInt(subtotal), promo.Value).IntPart()
	case enums.PromotionTypeFixed:
		discount = promo.Value.Round(0).IntPart() * int64(line.Quantity)
	case enums.PromotionTypeBundle:
		paid := bundlePaidUnits(line.Quantity, promo.BuyQuantity, promo.PayQuantity)
		discount = int64(line.Quantity-paid) * line.UnitPriceCents
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}

	// An active promotion excludes the line from coupons even when it yields no discount.
	id := promo.ID
	lq.PromotionID = &id
	lq.PromotionName = promo.Name
	lq.PromotionType = string(promo.Type)
	lq.PromotionDiscountCents = discount
	lq.CouponEligible = false
	return lq
}

// bundlePaidUnits returns how many of qty units are paid under a buy-N-pay-M offer:
// complete groups pay M each and the remainder pays full price.
func bundlePaidUnits(qty, buy, pay int) int {
	if buy <= 0 || pay < 0 || pay >= buy {
		return qty
	}
	return (qty/buy)*pay + qty%buy
}

func applyCoupon(lines []LineQuote, coupon *models.Coupon) (*CouponBreakdown, error) {
	b := &CouponBreakdown{Code: strings.ToUpper(coupon.Code)}
	for _, l := range lines {
		if !l.CouponEligible {
			continue
		}
		b.EligibleSubtotalCents += l.SubtotalCents
		b.EligibleQuantity += l.Quantity
	}
	if b.EligibleQuantity == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon does not apply to promoted items")
	}
	if coupon.MinSubtotalCents > 0 && b.EligibleSubtotalCents < coupon.MinSubtotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon minimum subtotal not met")
	}

	remaining := decimal.NewFromInt(b.EligibleSubtotalCents)
	switch coupon.Type {
	case enums.CouponTypePercentage:
		b.PercentDiscountCents = percentOf(remaining, coupon.PercentOff).IntPart()
	case enums.CouponTypeFixed:
		b.FixedDiscountCents = coupon.AmountOffCents
		if b.FixedDiscountCents > b.EligibleSubtotalCents {
			b.FixedDiscountCents = b.EligibleSubtotalCents
		}
	case enums.CouponTypeBundle:
		paid := bundlePaidUnits(b.EligibleQuantity, coupon.BuyQuantity, coupon.PayQuantity)
		average := remaining.Div(decimal.NewFromInt(int64(b.EligibleQuantity)))
		b.BundleDiscountCents = average.Mul(decimal.NewFromInt(int64(b.EligibleQuantity - paid))).Round(0).IntPart()
		if coupon.PercentOff.IsPositive() {
			if coupon.Combinable {
				afterBundle := remaining.Sub(decimal.NewFromInt(b.BundleDiscountCents))
				b.PercentDiscountCents = percentOf(afterBundle, coupon.PercentOff).IntPart()
			} else if percent := percentOf(remaining, coupon.PercentOff).IntPart(); percent > b.BundleDiscountCents {
				b.BundleDiscountCents = 0
				b.PercentDiscountCents = percent
			}
		}
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported coupon type %q", coupon.Type)
	}

	b.TotalCents = b.BundleDiscountCents + b.PercentDiscountCents + b.FixedDiscountCents
	if b.TotalCents > b.EligibleSubtotalCents {
		b.TotalCents = b.EligibleSubtotalCents
	}
	allocate(lines, b.TotalCents, b.EligibleSubtotalCents)
	return b, nil
}

// allocate spreads a coupon discount over eligible lines in proportion to their
// subtotal. The rounding remainder lands on the last eligible line.
func allocate(lines []LineQuote, discount, eligibleSubtotal int64) {
	if discount <= 0 || eligibleSubtotal <= 0 {
		return
	}
	last := -1
	var given int64
	for i := range lines {
		if !lines[i].CouponEligible {
			continue
		}
		share := decimal.NewFromInt(discount).
			Mul(decimal.NewFromInt(lines[i].SubtotalCents)).
			Div(decimal.NewFromInt(eligibleSubtotal)).
			Floor().IntPart()
		lines[i].CouponDiscountCents = share
		given += share
		last = i
	}
	if last >= 0 {
		lines[last].CouponDiscountCents += discount - given
	}
}
