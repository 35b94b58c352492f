package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Service exposes price quotes and checkout pricing.
type Service interface {
	Quote(ctx context.Context, input QuoteInput) (*PriceResult, error)
	PriceCheckout(ctx context.Context, input CheckoutInput) (*CheckoutQuote, error)
}

// QuoteInput prices a single product.
type QuoteInput struct {
	ProductID      uuid.UUID
	CategoryID     *uuid.UUID
	Gateway        enums.Gateway
	BasePriceCents int64
}

// CheckoutLine is one cart line with its catalog price.
type CheckoutLine struct {
	ProductID      uuid.UUID
	CategoryID     *uuid.UUID
	VariantID      *uuid.UUID
	Quantity       int
	BasePriceCents int64
}

type CheckoutInput struct {
	Lines      []CheckoutLine
	CouponCode string
	Gateway    enums.Gateway
}

// CheckoutQuote is the priced cart plus the gateway fee charged on its total.
type CheckoutQuote struct {
	Cart        CartQuote      `json:"cart"`
	GatewayFees GatewayFees    `json:"gateway_fees"`
	TotalCents  int64          `json:"total_cents"`
	Coupon      *models.Coupon `json:"-"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the pricing service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Quote(ctx context.Context, input QuoteInput) (*PriceResult, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.BasePriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price must not be negative")
	}
	rules, err := s.repo.ListActiveRules(ctx, input.ProductID, input.CategoryID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price rules")
	}
	var fee *models.GatewayFee
	if input.Gateway != "" {
		fee, err = s.repo.FindGatewayFee(ctx, input.Gateway)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gateway fee")
		}
	}
	result := CalculateFinalPrice(PriceInput{
		BasePriceCents: input.BasePriceCents,
		ProductID:      input.ProductID,
		CategoryID:     input.CategoryID,
		Gateway:        input.Gateway,
	}, rules, fee)
	return &result, nil
}

// PriceCheckout applies rules per line, then promotions and the coupon across the
// cart, and finally the gateway fee over the discounted total.
func (s *service) PriceCheckout(ctx context.Context, input CheckoutInput) (*CheckoutQuote, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	now := s.now()

	lines := make([]CartLine, 0, len(input.Lines))
	appliedByLine := make([][]AppliedRule, 0, len(input.Lines))
	for _, in := range input.Lines {
		rules, err := s.repo.ListActiveRules(ctx, in.ProductID, in.CategoryID, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price rules")
		}
		priced := CalculateFinalPrice(PriceInput{
			BasePriceCents: in.BasePriceCents,
			ProductID:      in.ProductID,
			CategoryID:     in.CategoryID,
		}, rules, nil)

		promo, err := s.repo.FindActivePromotion(ctx, in.ProductID, in.CategoryID, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
		}
		lines = append(lines, CartLine{
			ProductID:      in.ProductID,
			VariantID:      in.VariantID,
			Quantity:       in.Quantity,
			UnitPriceCents: priced.FinalPriceCents,
			Promotion:      promo,
		})
		appliedByLine = append(appliedByLine, priced.AppliedRules)
	}

	var coupon *models.Coupon
	if code := strings.TrimSpace(input.CouponCode); code != "" {
		found, err := s.repo.FindCouponByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
		}
		coupon = found
	}

	cart, err := PriceCart(lines, coupon, now)
	if err != nil {
		return nil, err
	}
	for i := range cart.Lines {
		cart.Lines[i].AppliedRules = appliedByLine[i]
	}

	quote := &CheckoutQuote{Cart: cart, TotalCents: cart.TotalCents, Coupon: coupon}
	if input.Gateway != "" {
		fee, err := s.repo.FindGatewayFee(ctx, input.Gateway)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gateway fee")
		}
		if fee != nil {
			quote.GatewayFees = ApplyGatewayFee(cart.TotalCents, fee)
			quote.TotalCents += quote.GatewayFees.TotalCents
		}
	}
	return quote, nil
}
