package paymentwebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/gateways"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Reconciliation sources, recorded as the audit actor prefix.
const (
	SourceWebhook = "webhook"
	SourceReturn  = "return"
	SourceCron    = "cron"
	SourceCard    = "card"
)

type orderService interface {
	ApplyPaymentStatus(ctx context.Context, input orders.PaymentUpdateInput) (*models.Order, orders.PaymentOutcome, error)
}

type paymentLookup interface {
	FindPaymentByExternalID(ctx context.Context, gateway enums.Gateway, externalID string) (*models.Payment, error)
	FindPaymentByPreferenceID(ctx context.Context, gateway enums.Gateway, preferenceID string) (*models.Payment, error)
}

type gatewayRegistry interface {
	Get(name string) (gateways.Gateway, error)
}

// ReconcileInput names a gateway payment to reconcile. OrderID is optional; when
// set, the gateway payment must belong to that order.
type ReconcileInput struct {
	Gateway    string
	ExternalID string
	OrderID    uuid.UUID
	Source     string
}

// Result is the outcome of one reconciliation.
type Result struct {
	Order   *models.Order
	Outcome orders.PaymentOutcome
	Payment *gateways.PaymentInfo
}

type ReconcilerParams struct {
	Orders   orderService
	Payments paymentLookup
	Gateways gatewayRegistry
	Logger   *logger.Logger
	Metrics  *metrics.OrderMetrics
}

// Reconciler applies the gateway's canonical payment status to the order. It never
// trusts the status asserted by the caller.
type Reconciler struct {
	orders   orderService
	payments paymentLookup
	gateways gatewayRegistry
	logg     *logger.Logger
	metrics  *metrics.OrderMetrics
}

func NewReconciler(p ReconcilerParams) (*Reconciler, error) {
	if p.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if p.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment lookup required")
	}
	if p.Gateways == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway registry required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &Reconciler{
		orders:   p.Orders,
		payments: p.Payments,
		gateways: p.Gateways,
		logg:     p.Logger,
		metrics:  p.Metrics,
	}, nil
}

func (r *Reconciler) Reconcile(ctx context.Context, in ReconcileInput) (*Result, error) {
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	gw, err := r.gateways.Get(in.Gateway)
	if err != nil {
		return nil, err
	}
	name := gw.Name()
	ctx = r.logg.WithFields(ctx, map[string]any{
		"gateway":     string(name),
		"payment_ref": externalID,
		"source":      in.Source,
	})

	res, err := r.reconcile(ctx, gw, externalID, in)
	if err != nil {
		r.metrics.IncWebhook(string(name), "error")
		return nil, err
	}
	r.metrics.IncWebhook(string(name), string(res.Outcome))
	r.logg.Info(r.logg.WithOrderID(ctx, res.Order.ID.String()), fmt.Sprintf("payment reconciled: %s", res.Outcome))
	return res, nil
}

func (r *Reconciler) reconcile(ctx context.Context, gw gateways.Gateway, externalID string, in ReconcileInput) (*Result, error) {
	info, err := gw.GetPayment(ctx, externalID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch gateway payment")
	}

	orderID, err := r.resolveOrder(ctx, gw.Name(), info, externalID)
	if err != nil {
		return nil, err
	}
	if in.OrderID != uuid.Nil && in.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment does not belong to order").WithDetails(map[string]any{
			"order_id": in.OrderID,
		})
	}

	source := in.Source
	if source == "" {
		source = SourceWebhook
	}
	update := orders.PaymentUpdateInput{
		OrderID:           orderID,
		Gateway:           gw.Name(),
		ExternalPaymentID: info.ExternalID,
		Status:            info.Status,
		GatewayStatus:     info.GatewayStatus,
		AmountCents:       info.AmountCents,
		Currency:          info.Currency,
		RawPayload:        info.Raw,
		Actor:             source + ":" + string(gw.Name()),
	}

	order, outcome, err := r.orders.ApplyPaymentStatus(ctx, update)
	if pkgerrors.IsCode(err, pkgerrors.CodeVersionConflict) {
		// A concurrent writer moved the order; apply once more against the fresh row.
		r.logg.Warn(ctx, "version conflict while applying payment, retrying")
		order, outcome, err = r.orders.ApplyPaymentStatus(ctx, update)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Order: order, Outcome: outcome, Payment: info}, nil
}

// resolveOrder prefers the order id the gateway echoes back, then falls back to
// the locally stored external or preference id.
func (r *Reconciler) resolveOrder(ctx context.Context, name enums.Gateway, info *gateways.PaymentInfo, requested string) (uuid.UUID, error) {
	if info.OrderID != uuid.Nil {
		return info.OrderID, nil
	}
	for _, ref := range []string{info.ExternalID, requested} {
		if ref == "" {
			continue
		}
		payment, err := r.payments.FindPaymentByExternalID(ctx, name, ref)
		if err == nil {
			return payment.OrderID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
		}
		payment, err = r.payments.FindPaymentByPreferenceID(ctx, name, ref)
		if err == nil {
			return payment.OrderID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
		}
	}
	return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order references this payment")
}
