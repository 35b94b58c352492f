package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orderstate"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// SystemActor is recorded when no user triggered the change.
const SystemActor = "system"

// Service records status transitions.
type Service interface {
	RecordTransition(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.OrderAudit, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderAudit, error)
}

type service struct {
	repo Repository
}

// TransitionInput captures one committed status change.
type TransitionInput struct {
	OrderID        uuid.UUID
	ChangedBy      string
	PreviousStatus enums.OrderStatus
	NewStatus      enums.OrderStatus
	Metadata       map[string]any
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

// RecordTransition appends a row on tx so it commits with the status change.
func (s *service) RecordTransition(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.OrderAudit, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.PreviousStatus.IsValid() || !input.NewStatus.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid audit transition %s -> %s", input.PreviousStatus, input.NewStatus)
	}
	actor := strings.TrimSpace(input.ChangedBy)
	if actor == "" {
		actor = SystemActor
	}

	var metadata json.RawMessage
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit metadata")
		}
		metadata = raw
	}

	entry := &models.OrderAudit{
		OrderID:        input.OrderID,
		ChangedBy:      actor,
		Action:         orderstate.AuditAction(input.PreviousStatus, input.NewStatus),
		PreviousStatus: input.PreviousStatus,
		NewStatus:      input.NewStatus,
		Metadata:       metadata,
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order audit")
	}
	return entry, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderAudit, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	entries, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order audit")
	}
	return entries, nil
}
