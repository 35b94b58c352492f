package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultBatchSize = 200

type pendingLister interface {
	ListPending(ctx context.Context, filter orders.PendingFilter) ([]models.Order, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, in paymentwebhook.ReconcileInput) (*paymentwebhook.Result, error)
}

type PaymentReconcileJobParams struct {
	Logger     *logger.Logger
	Orders     pendingLister
	Reconciler reconciler
	// MinAge skips orders younger than this so in-flight webhooks get a chance first.
	MinAge    time.Duration
	BatchSize int
}

// NewPaymentReconcileJob polls gateways for PENDING orders that already carry a
// gateway reference, covering webhooks that were dropped or never sent.
func NewPaymentReconcileJob(p PaymentReconcileJobParams) (Job, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("pending order lister required")
	}
	if p.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if p.BatchSize <= 0 {
		p.BatchSize = defaultBatchSize
	}
	return &paymentReconcileJob{
		logg:       p.Logger,
		orders:     p.Orders,
		reconciler: p.Reconciler,
		minAge:     p.MinAge,
		batch:      p.BatchSize,
		now:        time.Now,
	}, nil
}

type paymentReconcileJob struct {
	logg       *logger.Logger
	orders     pendingLister
	reconciler reconciler
	minAge     time.Duration
	batch      int
	now        func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	filter := orders.PendingFilter{WithExternalID: true, Limit: j.batch}
	if j.minAge > 0 {
		cutoff := j.now().UTC().Add(-j.minAge)
		filter.CreatedBefore = &cutoff
	}
	pending, err := j.orders.ListPending(ctx, filter)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}

	var errs error
	outcomes := map[string]int{}
	for _, order := range pending {
		ref := gatewayReference(order)
		if ref == "" {
			continue
		}
		res, err := j.reconciler.Reconcile(ctx, paymentwebhook.ReconcileInput{
			Gateway:    string(order.Gateway),
			ExternalID: ref,
			OrderID:    order.ID,
			Source:     paymentwebhook.SourceCron,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		outcomes[string(res.Outcome)]++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(pending),
		"outcomes":   outcomes,
	}), "pending payments reconciled")
	return errs
}

// gatewayReference picks the id the gateway can be queried with. Square
// preferences are local placeholders until a card is charged, so only the
// external payment id works there.
func gatewayReference(order models.Order) string {
	if order.Payment == nil {
		return ""
	}
	if order.Payment.ExternalPaymentID != nil && *order.Payment.ExternalPaymentID != "" {
		return *order.Payment.ExternalPaymentID
	}
	if order.Gateway == enums.GatewayStripe && order.Payment.PreferenceID != nil {
		return *order.Payment.PreferenceID
	}
	return ""
}
