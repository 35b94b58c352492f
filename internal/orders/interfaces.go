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

// ErrVersionConflict is returned when a version-guarded update matched no row.
var ErrVersionConflict = errors.New("order version changed")

// Repository defines the persistence operations for orders and their payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateWithVersion(ctx context.Context, id uuid.UUID, expectedVersion int, updates map[string]any) error
	ListPending(ctx context.Context, filter PendingFilter) ([]models.Order, error)

	FindPaymentByExternalID(ctx context.Context, gateway enums.Gateway, externalID string) (*models.Payment, error)
	FindPaymentByPreferenceID(ctx context.Context, gateway enums.Gateway, preferenceID string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error
	UpsertGatewayPayment(ctx context.Context, payment *models.GatewayPayment) error
	ListGatewayPayments(ctx context.Context, orderID uuid.UUID) ([]models.GatewayPayment, error)
}

// PendingFilter selects PENDING orders for background jobs.
type PendingFilter struct {
	CreatedBefore  *time.Time
	WithExternalID bool
	Limit          int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
