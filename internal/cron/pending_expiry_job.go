package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	expiryReason = "expired"
	cronActor    = "cron:pending-expiry"
)

type orderRejecter interface {
	RejectOrder(ctx context.Context, input orders.RejectInput) (*models.Order, error)
}

type PendingExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    pendingLister
	Rejecter  orderRejecter
	TTL       time.Duration
	BatchSize int
}

// NewPendingExpiryJob rejects orders left PENDING for longer than the TTL. Pending
// orders never reserved stock, so nothing is restored.
func NewPendingExpiryJob(p PendingExpiryJobParams) (Job, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("pending order lister required")
	}
	if p.Rejecter == nil {
		return nil, fmt.Errorf("order rejecter required")
	}
	if p.TTL <= 0 {
		return nil, fmt.Errorf("pending ttl must be positive")
	}
	if p.BatchSize <= 0 {
		p.BatchSize = defaultBatchSize
	}
	return &pendingExpiryJob{
		logg:     p.Logger,
		orders:   p.Orders,
		rejecter: p.Rejecter,
		ttl:      p.TTL,
		batch:    p.BatchSize,
		now:      time.Now,
	}, nil
}

type pendingExpiryJob struct {
	logg     *logger.Logger
	orders   pendingLister
	rejecter orderRejecter
	ttl      time.Duration
	batch    int
	now      func() time.Time
}

func (j *pendingExpiryJob) Name() string { return "pending-expiry" }

func (j *pendingExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.ListPending(ctx, orders.PendingFilter{CreatedBefore: &cutoff, Limit: j.batch})
	if err != nil {
		return fmt.Errorf("list expired orders: %w", err)
	}

	var errs error
	expired := 0
	for _, order := range stale {
		_, err := j.rejecter.RejectOrder(ctx, orders.RejectInput{
			OrderID: order.ID,
			Reason:  expiryReason,
			Actor:   cronActor,
		})
		switch {
		case err == nil:
			expired++
		case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), pkgerrors.IsCode(err, pkgerrors.CodeVersionConflict):
			// Paid or touched since it was listed.
			j.logg.Debug(j.logg.WithOrderID(ctx, order.ID.String()), "skip expiry, order moved on")
		default:
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{"candidates": len(stale), "expired": expired}), "pending orders expired")
	return errs
}
