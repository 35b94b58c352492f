package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notify"
	"github.com/angelmondragon/storefront-backend/internal/orderstate"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// transition is a validated status change ready to be written.
type transition struct {
	order        *models.Order
	target       enums.OrderStatus
	redirected   bool
	evidence     orderstate.Evidence
	actor        string
	metadata     map[string]any
	beforeCommit func(ctx context.Context, tx *gorm.DB) error
}

func (s *service) buildUpdates(t transition) map[string]any {
	now := s.now().UTC()
	order := t.order
	updates := map[string]any{
		"status":     t.target,
		"version":    order.Version + 1,
		"updated_at": now,
	}
	if col, ok := orderstate.TimestampColumn(t.target); ok {
		updates[col] = now
	}

	switch t.target {
	case enums.OrderStatusNotDelivered:
		updates["delivery_reason"] = strings.TrimSpace(t.evidence.DeliveryReason)
		updates["delivery_attempts"] = order.DeliveryAttempts + 1
	case enums.OrderStatusCancelled, enums.OrderStatusPaymentRejected:
		if reason := strings.TrimSpace(t.evidence.CancellationReason); reason != "" {
			updates["cancellation_reason"] = reason
		}
	}
	if t.redirected {
		if reason := strings.TrimSpace(t.evidence.DeliveryReason); reason != "" {
			updates["delivery_reason"] = reason
		}
	}

	for col, value := range map[string]string{
		"tracking_number": t.evidence.TrackingNumber,
		"carrier":         t.evidence.Carrier,
		"tracking_url":    t.evidence.TrackingURL,
	} {
		if v := strings.TrimSpace(value); v != "" {
			updates[col] = v
		}
	}
	return updates
}

// commit writes the order update, the stock movement and the audit row in one
// transaction, then publishes notifications. The version check makes concurrent
// writers on the same order fail instead of overwriting each other.
func (s *service) commit(ctx context.Context, t transition) (*models.Order, error) {
	order := t.order
	previous := order.Status
	updates := s.buildUpdates(t)

	metadata := map[string]any{
		"stock_reduced":  false,
		"stock_restored": false,
	}
	for k, v := range t.metadata {
		metadata[k] = v
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		alreadyReduced, err := s.inventory.WasStockAlreadyReduced(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		if err := s.repo.WithTx(tx).UpdateWithVersion(ctx, order.ID, order.Version, updates); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return s.versionConflict(order.ID, order.Version)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		if t.beforeCommit != nil {
			if err := t.beforeCommit(ctx, tx); err != nil {
				return err
			}
		}

		items := inventory.ItemsFromOrder(order.Items)
		switch {
		case !alreadyReduced && orderstate.IsConfirmed(t.target):
			movements, err := s.inventory.ReduceStock(ctx, tx, items)
			if err != nil {
				return err
			}
			metadata["stock_reduced"] = true
			metadata["stock_movements"] = movements
			if inventory.Oversold(movements) {
				metadata["oversold"] = true
			}
		case alreadyReduced && orderstate.IsRefundable(t.target):
			movements, err := s.inventory.RestoreStock(ctx, tx, items)
			if err != nil {
				return err
			}
			metadata["stock_restored"] = true
			metadata["stock_movements"] = movements
		}

		_, err = s.audit.RecordTransition(ctx, tx, audit.TransitionInput{
			OrderID:        order.ID,
			ChangedBy:      t.actor,
			PreviousStatus: previous,
			NewStatus:      t.target,
			Metadata:       metadata,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(previous), string(t.target))
	updated := s.reloadOrKeep(ctx, order)
	if updated == order {
		order.Status = t.target
		order.Version++
	}
	s.emit(ctx, updated, previous)
	return updated, nil
}

// emit publishes post-commit notifications. Failures are logged only; the
// committed state is authoritative.
func (s *service) emit(ctx context.Context, order *models.Order, previous enums.OrderStatus) {
	if err := s.notifier.OrderUpdated(ctx, order); err != nil {
		s.notifyFailed(ctx, notify.EventOrderUpdated, err)
	}
	if err := s.notifier.OrderStatusChanged(ctx, order, previous); err != nil {
		s.notifyFailed(ctx, notify.EventOrderStatusChanged, err)
	}
	if order.Status != enums.OrderStatusDelivered {
		return
	}
	if err := s.notifier.SaleCompleted(ctx, order); err != nil {
		s.notifyFailed(ctx, notify.EventSaleCompleted, err)
	}
	for _, item := range order.Items {
		if err := s.notifier.ProductSold(ctx, order, item); err != nil {
			s.notifyFailed(ctx, notify.EventProductSold, err)
		}
	}
}

func (s *service) notifyFailed(ctx context.Context, event notify.EventType, err error) {
	s.metrics.IncNotificationFailure(string(event))
	s.logg.Error(s.logg.WithField(ctx, "event", string(event)), "publish notification", err)
}

func encodeMetadata(values map[string]any) json.RawMessage {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return raw
}
