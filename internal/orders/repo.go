package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the order with its items and payment.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Preload("Payment").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateWithVersion applies updates only if the row still carries expectedVersion.
func (r *repository) UpdateWithVersion(ctx context.Context, id uuid.UUID, expectedVersion int, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *repository) ListPending(ctx context.Context, filter PendingFilter) ([]models.Order, error) {
	q := r.db.WithContext(ctx).
		Preload("Payment").
		Where("status = ?", enums.OrderStatusPending)
	if filter.CreatedBefore != nil {
		q = q.Where("created_at < ?", *filter.CreatedBefore)
	}
	if filter.WithExternalID {
		q = q.Where("EXISTS (SELECT 1 FROM payments p WHERE p.order_id = orders.id AND (p.external_payment_id IS NOT NULL OR p.preference_id IS NOT NULL))")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []models.Order
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) FindPaymentByExternalID(ctx context.Context, gateway enums.Gateway, externalID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND external_payment_id = ?", gateway, externalID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaymentByPreferenceID(ctx context.Context, gateway enums.Gateway, preferenceID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND preference_id = ?", gateway, preferenceID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", paymentID).Updates(updates).Error
}

// UpsertGatewayPayment keys on (order, gateway, external reference).
func (r *repository) UpsertGatewayPayment(ctx context.Context, payment *models.GatewayPayment) error {
	var existing models.GatewayPayment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND gateway = ? AND external_reference = ?", payment.OrderID, payment.Gateway, payment.ExternalReference).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(payment).Error
	}
	if err != nil {
		return err
	}
	payment.ID = existing.ID
	payment.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"status":       payment.Status,
		"amount_cents": payment.AmountCents,
		"currency":     payment.Currency,
		"metadata":     payment.Metadata,
		"updated_at":   time.Now().UTC(),
	}).Error
}

func (r *repository) ListGatewayPayments(ctx context.Context, orderID uuid.UUID) ([]models.GatewayPayment, error) {
	var out []models.GatewayPayment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
