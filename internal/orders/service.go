package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notify"
	"github.com/angelmondragon/storefront-backend/internal/orderstate"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Service coordinates order status changes with stock, payments and the audit log.
type Service interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetAvailableTransitions(ctx context.Context, orderID uuid.UUID) (*TransitionsView, error)
	ListAudit(ctx context.Context, orderID uuid.UUID) ([]models.OrderAudit, error)
	UpdateOrderStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	RejectOrder(ctx context.Context, input RejectInput) (*models.Order, error)
	ApplyPaymentStatus(ctx context.Context, input PaymentUpdateInput) (*models.Order, PaymentOutcome, error)
}

type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Inventory inventory.Manager
	Audit     audit.Service
	Notifier  notify.Notifier
	Logger    *logger.Logger
	Metrics   *metrics.OrderMetrics
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory inventory.Manager
	audit     audit.Service
	notifier  notify.Notifier
	logg      *logger.Logger
	metrics   *metrics.OrderMetrics
	now       func() time.Time
}

// NewService builds the order orchestrator.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Inventory == nil {
		return nil, fmt.Errorf("inventory manager required")
	}
	if p.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if p.Notifier == nil {
		p.Notifier = notify.Noop
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &service{
		repo:      p.Repo,
		tx:        p.Tx,
		inventory: p.Inventory,
		audit:     p.Audit,
		notifier:  p.Notifier,
		logg:      p.Logger,
		metrics:   p.Metrics,
		now:       time.Now,
	}, nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.load(ctx, orderID)
}

func (s *service) GetAvailableTransitions(ctx context.Context, orderID uuid.UUID) (*TransitionsView, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &TransitionsView{
		OrderID:       order.ID,
		CurrentStatus: order.Status,
		Version:       order.Version,
		Transitions:   orderstate.AvailableTransitions(stateContext(order, orderstate.Evidence{})),
		IsFinal:       orderstate.IsFinalStatus(order.Status),
	}, nil
}

func (s *service) ListAudit(ctx context.Context, orderID uuid.UUID) ([]models.OrderAudit, error) {
	if _, err := s.load(ctx, orderID); err != nil {
		return nil, err
	}
	return s.audit.ListByOrder(ctx, orderID)
}

func (s *service) UpdateOrderStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", input.Status)
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != order.Version {
		return nil, s.versionConflict(order.ID, *input.ExpectedVersion)
	}

	res := orderstate.ValidateTransition(order.Status, input.Status, stateContext(order, input.Evidence))
	if !res.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, res.Reason).WithDetails(map[string]any{
			"current_status":   order.Status,
			"requested_status": input.Status,
		})
	}
	if missing := orderstate.MissingFields(order.Status, res.EffectiveTarget, input.Evidence); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "required fields missing").WithDetails(map[string]any{
			"missing_fields": missing,
		})
	}

	metadata := map[string]any{}
	if res.Redirected {
		metadata["requested_status"] = input.Status
		metadata["redirect_reason"] = "delivery attempts exhausted"
	}
	return s.commit(ctx, transition{
		order:      order,
		target:     res.EffectiveTarget,
		redirected: res.Redirected,
		evidence:   input.Evidence,
		actor:      input.Actor,
		metadata:   metadata,
	})
}

func (s *service) RejectOrder(ctx context.Context, input RejectInput) (*models.Order, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "only pending orders can be rejected, order is %s", order.Status)
	}

	return s.commit(ctx, transition{
		order:    order,
		target:   enums.OrderStatusPaymentRejected,
		evidence: orderstate.Evidence{CancellationReason: reason},
		actor:    input.Actor,
		metadata: map[string]any{"reason": reason},
		beforeCommit: func(ctx context.Context, tx *gorm.DB) error {
			if order.Payment == nil || order.Payment.Status != enums.PaymentStatusPending {
				return nil
			}
			return s.repo.WithTx(tx).UpdatePayment(ctx, order.Payment.ID, map[string]any{"status": enums.PaymentStatusRejected})
		},
	})
}

// ApplyPaymentStatus applies a canonical gateway status to the order. A payment that
// is already APPROVED locally is never processed again, which makes redelivery safe.
func (s *service) ApplyPaymentStatus(ctx context.Context, input PaymentUpdateInput) (*models.Order, PaymentOutcome, error) {
	if !input.Status.IsValid() {
		return nil, "", pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment status %q", input.Status)
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, "", err
	}
	if order.Payment == nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for order")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if order.Payment.Status == enums.PaymentStatusApproved {
		return order, OutcomeAlreadyApproved, nil
	}

	persist := func(ctx context.Context, tx *gorm.DB) error {
		return s.persistPayment(ctx, tx, order, input)
	}

	switch input.Status {
	case enums.PaymentStatusApproved:
		if orderstate.IsConfirmed(order.Status) {
			if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error { return persist(ctx, tx) }); err != nil {
				return nil, "", err
			}
			return s.reloadOrKeep(ctx, order), OutcomeApproved, nil
		}
		if order.Status != enums.OrderStatusPending {
			return nil, "", pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment approved for %s order", order.Status).WithDetails(map[string]any{
				"order_id":            order.ID,
				"external_payment_id": input.ExternalPaymentID,
			})
		}
		updated, err := s.commit(ctx, transition{
			order:        order,
			target:       enums.OrderStatusPaymentApproved,
			actor:        input.Actor,
			metadata:     paymentMetadata(input),
			beforeCommit: persist,
		})
		if err != nil {
			return nil, "", err
		}
		if err := s.notifier.PaymentReceived(ctx, updated, updated.Payment); err != nil {
			s.notifyFailed(ctx, notify.EventPaymentReceived, err)
		}
		return updated, OutcomeApproved, nil

	case enums.PaymentStatusRejected:
		if order.Payment.Status == enums.PaymentStatusRejected {
			return order, OutcomeAlreadyRejected, nil
		}
		if order.Status != enums.OrderStatusPending {
			if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error { return persist(ctx, tx) }); err != nil {
				return nil, "", err
			}
			return s.reloadOrKeep(ctx, order), OutcomeRejected, nil
		}
		updated, err := s.commit(ctx, transition{
			order:        order,
			target:       enums.OrderStatusPaymentRejected,
			actor:        input.Actor,
			metadata:     paymentMetadata(input),
			beforeCommit: persist,
		})
		if err != nil {
			return nil, "", err
		}
		return updated, OutcomeRejected, nil
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error { return persist(ctx, tx) }); err != nil {
		return nil, "", err
	}
	return s.reloadOrKeep(ctx, order), OutcomePending, nil
}

func paymentMetadata(input PaymentUpdateInput) map[string]any {
	meta := map[string]any{
		"gateway":        input.Gateway,
		"payment_status": input.Status,
	}
	if input.ExternalPaymentID != "" {
		meta["external_payment_id"] = input.ExternalPaymentID
	}
	if input.GatewayStatus != "" {
		meta["gateway_status"] = input.GatewayStatus
	}
	return meta
}

// persistPayment keeps the order payment and the gateway payment record in step.
func (s *service) persistPayment(ctx context.Context, tx *gorm.DB, order *models.Order, input PaymentUpdateInput) error {
	repo := s.repo.WithTx(tx)
	now := s.now().UTC()

	updates := map[string]any{"status": input.Status}
	if input.ExternalPaymentID != "" {
		updates["external_payment_id"] = input.ExternalPaymentID
	}
	if len(input.RawPayload) > 0 {
		updates["raw_payload"] = input.RawPayload
	}
	if input.Status == enums.PaymentStatusApproved {
		updates["approved_at"] = now
	}
	if err := repo.UpdatePayment(ctx, order.Payment.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}

	if input.ExternalPaymentID == "" {
		return nil
	}
	amount := input.AmountCents
	if amount == 0 {
		amount = order.TotalCents
	}
	currency := input.Currency
	if currency == "" {
		currency = order.Currency
	}
	gp := &models.GatewayPayment{
		OrderID:           order.ID,
		Gateway:           input.Gateway,
		ExternalReference: input.ExternalPaymentID,
		AmountCents:       amount,
		Currency:          strings.ToUpper(currency),
		Status:            input.Status,
		Metadata:          encodeMetadata(map[string]any{"gateway_status": input.GatewayStatus}),
	}
	if err := repo.UpsertGatewayPayment(ctx, gp); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert gateway payment")
	}
	return nil
}

func (s *service) reloadOrKeep(ctx context.Context, order *models.Order) *models.Order {
	fresh, err := s.repo.FindByID(ctx, order.ID)
	if err != nil {
		s.logg.Error(ctx, "reload order after commit", err)
		return order
	}
	return fresh
}

func (s *service) versionConflict(orderID uuid.UUID, expected int) error {
	s.metrics.IncVersionConflict()
	return pkgerrors.New(pkgerrors.CodeVersionConflict, "order was modified by another request").WithDetails(map[string]any{
		"order_id":         orderID,
		"expected_version": expected,
	})
}

func stateContext(order *models.Order, evidence orderstate.Evidence) orderstate.Context {
	return orderstate.Context{
		Current:          order.Status,
		FulfillmentType:  order.FulfillmentType,
		DeliveryAttempts: order.DeliveryAttempts,
		Evidence:         evidence,
	}
}
