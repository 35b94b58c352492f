package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository loads pricing configuration.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveRules(ctx context.Context, productID uuid.UUID, categoryID *uuid.UUID, now time.Time) ([]models.PriceRule, error)
	FindGatewayFee(ctx context.Context, gateway enums.Gateway) (*models.GatewayFee, error)
	FindActivePromotion(ctx context.Context, productID uuid.UUID, categoryID *uuid.UUID, now time.Time) (*models.Promotion, error)
	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a pricing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListActiveRules returns rules that could apply to the product. Scheduling windows
// are checked in Go so the query stays portable.
func (r *repository) ListActiveRules(ctx context.Context, productID uuid.UUID, categoryID *uuid.UUID, now time.Time) ([]models.PriceRule, error) {
	scope := r.db.Where("scope = ?", enums.RuleScopeGlobal).
		Or("scope = ? AND target_id = ?", enums.RuleScopeProduct, productID)
	if categoryID != nil {
		scope = scope.Or("scope = ? AND target_id = ?", enums.RuleScopeCategory, *categoryID)
	}
	q := r.db.WithContext(ctx).Where("active = ?", true).Where(scope)

	var rules []models.PriceRule
	if err := q.Order("priority DESC").Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	out := rules[:0]
	for _, rule := range rules {
		if models.ActiveAt(rule.Active, rule.StartsAt, rule.EndsAt, now) {
			out = append(out, rule)
		}
	}
	return out, nil
}

// FindGatewayFee returns nil without error when the gateway has no fee row.
func (r *repository) FindGatewayFee(ctx context.Context, gateway enums.Gateway) (*models.GatewayFee, error) {
	var fee models.GatewayFee
	err := r.db.WithContext(ctx).Where("gateway = ? AND active = ?", gateway, true).First(&fee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

// FindActivePromotion prefers a product promotion over a category one, newest first.
func (r *repository) FindActivePromotion(ctx context.Context, productID uuid.UUID, categoryID *uuid.UUID, now time.Time) (*models.Promotion, error) {
	var promos []models.Promotion
	q := r.db.WithContext(ctx).Where("active = ?", true)
	if categoryID != nil {
		q = q.Where(r.db.Where("product_id = ?", productID).Or("category_id = ?", *categoryID))
	} else {
		q = q.Where("product_id = ?", productID)
	}
	if err := q.Order("created_at DESC").Find(&promos).Error; err != nil {
		return nil, err
	}

	var categoryMatch *models.Promotion
	for i := range promos {
		p := &promos[i]
		if !models.ActiveAt(p.Active, p.StartsAt, p.EndsAt, now) {
			continue
		}
		if p.ProductID != nil && *p.ProductID == productID {
			return p, nil
		}
		if categoryMatch == nil {
			categoryMatch = p
		}
	}
	return categoryMatch, nil
}

func (r *repository) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}
