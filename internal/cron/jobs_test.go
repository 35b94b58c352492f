package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeLister struct {
	orders []models.Order
	filter orders.PendingFilter
	err    error
}

func (f *fakeLister) ListPending(_ context.Context, filter orders.PendingFilter) ([]models.Order, error) {
	f.filter = filter
	return f.orders, f.err
}

type fakeReconciler struct {
	calls []paymentwebhook.ReconcileInput
	errs  map[uuid.UUID]error
}

func (f *fakeReconciler) Reconcile(_ context.Context, in paymentwebhook.ReconcileInput) (*paymentwebhook.Result, error) {
	f.calls = append(f.calls, in)
	if err := f.errs[in.OrderID]; err != nil {
		return nil, err
	}
	return &paymentwebhook.Result{Outcome: orders.OutcomeApproved}, nil
}

type fakeRejecter struct {
	inputs []orders.RejectInput
	errs   map[uuid.UUID]error
}

func (f *fakeRejecter) RejectOrder(_ context.Context, in orders.RejectInput) (*models.Order, error) {
	f.inputs = append(f.inputs, in)
	if err := f.errs[in.OrderID]; err != nil {
		return nil, err
	}
	return &models.Order{ID: in.OrderID, Status: enums.OrderStatusPaymentRejected}, nil
}

func strPtr(s string) *string { return &s }

func pendingOrder(gateway enums.Gateway, external, preference *string) models.Order {
	return models.Order{
		ID:      uuid.New(),
		Status:  enums.OrderStatusPending,
		Gateway: gateway,
		Payment: &models.Payment{Gateway: gateway, ExternalPaymentID: external, PreferenceID: preference},
	}
}

func TestPaymentReconcileJobPicksQueryableReferences(t *testing.T) {
	withExternal := pendingOrder(enums.GatewaySquare, strPtr("sq-pay-1"), strPtr("sq-local"))
	stripeSession := pendingOrder(enums.GatewayStripe, nil, strPtr("cs_test_1"))
	squareOnlyPref := pendingOrder(enums.GatewaySquare, nil, strPtr("sq-local"))
	failing := pendingOrder(enums.GatewayStripe, strPtr("pi_fail"), nil)

	lister := &fakeLister{orders: []models.Order{withExternal, stripeSession, squareOnlyPref, failing}}
	rec := &fakeReconciler{errs: map[uuid.UUID]error{failing.ID: errors.New("gateway down")}}
	job, err := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Logger:     logger.Nop(),
		Orders:     lister,
		Reconciler: rec,
		MinAge:     time.Minute,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.ErrorContains(t, err, "gateway down")

	require.True(t, lister.filter.WithExternalID)
	require.NotNil(t, lister.filter.CreatedBefore)
	require.Equal(t, defaultBatchSize, lister.filter.Limit)

	require.Len(t, rec.calls, 3)
	require.Equal(t, "sq-pay-1", rec.calls[0].ExternalID)
	require.Equal(t, "square", rec.calls[0].Gateway)
	require.Equal(t, withExternal.ID, rec.calls[0].OrderID)
	require.Equal(t, paymentwebhook.SourceCron, rec.calls[0].Source)
	require.Equal(t, "cs_test_1", rec.calls[1].ExternalID)
	require.Equal(t, "pi_fail", rec.calls[2].ExternalID)
}

func TestPendingExpiryJobRejectsStaleOrders(t *testing.T) {
	fresh := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	expired := pendingOrder(enums.GatewayStripe, nil, nil)
	paidMeanwhile := pendingOrder(enums.GatewayStripe, nil, nil)

	lister := &fakeLister{orders: []models.Order{expired, paidMeanwhile}}
	rejecter := &fakeRejecter{errs: map[uuid.UUID]error{
		paidMeanwhile.ID: pkgerrors.New(pkgerrors.CodeStateConflict, "order is PAYMENT_APPROVED"),
	}}
	job, err := NewPendingExpiryJob(PendingExpiryJobParams{
		Logger:   logger.Nop(),
		Orders:   lister,
		Rejecter: rejecter,
		TTL:      24 * time.Hour,
	})
	require.NoError(t, err)
	job.(*pendingExpiryJob).now = func() time.Time { return fresh }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, fresh.Add(-24*time.Hour), *lister.filter.CreatedBefore)
	require.False(t, lister.filter.WithExternalID)
	require.Len(t, rejecter.inputs, 2)
	require.Equal(t, expiryReason, rejecter.inputs[0].Reason)
	require.Equal(t, cronActor, rejecter.inputs[0].Actor)
}

func TestPendingExpiryJobSurfacesUnexpectedErrors(t *testing.T) {
	order := pendingOrder(enums.GatewayStripe, nil, nil)
	rejecter := &fakeRejecter{errs: map[uuid.UUID]error{order.ID: errors.New("db gone")}}
	job, err := NewPendingExpiryJob(PendingExpiryJobParams{
		Logger:   logger.Nop(),
		Orders:   &fakeLister{orders: []models.Order{order}},
		Rejecter: rejecter,
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "db gone")

	_, err = NewPendingExpiryJob(PendingExpiryJobParams{Logger: logger.Nop(), Orders: &fakeLister{}, Rejecter: rejecter})
	require.Error(t, err)
}
