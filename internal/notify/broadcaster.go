// Package notify fans out order lifecycle events to the realtime channel and the
// message buses. Publishing is best effort: callers log errors and move on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Notifier is what the order core calls after a commit.
type Notifier interface {
	OrderCreated(ctx context.Context, order *models.Order) error
	OrderUpdated(ctx context.Context, order *models.Order) error
	OrderStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus) error
	SaleCompleted(ctx context.Context, order *models.Order) error
	ProductSold(ctx context.Context, order *models.Order, item models.OrderItem) error
	PaymentReceived(ctx context.Context, order *models.Order, payment *models.Payment) error
}

// Sink delivers an encoded event to one transport.
type Sink interface {
	Name() string
	Send(ctx context.Context, event Event, payload []byte) error
}

// Broadcaster publishes every event to all sinks.
type Broadcaster struct {
	sinks []Sink
	now   func() time.Time
}

// NewBroadcaster returns a broadcaster over the given sinks. Nil sinks are skipped.
func NewBroadcaster(sinks ...Sink) *Broadcaster {
	b := &Broadcaster{now: time.Now}
	for _, s := range sinks {
		if s != nil {
			b.sinks = append(b.sinks, s)
		}
	}
	return b
}

func (b *Broadcaster) OrderCreated(ctx context.Context, order *models.Order) error {
	return b.publish(ctx, EventOrderCreated, order, snapshot(order))
}

func (b *Broadcaster) OrderUpdated(ctx context.Context, order *models.Order) error {
	return b.publish(ctx, EventOrderUpdated, order, snapshot(order))
}

func (b *Broadcaster) OrderStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus) error {
	return b.publish(ctx, EventOrderStatusChanged, order, statusChangedData{
		Order:          snapshot(order),
		PreviousStatus: previous,
		NewStatus:      order.Status,
	})
}

func (b *Broadcaster) SaleCompleted(ctx context.Context, order *models.Order) error {
	return b.publish(ctx, EventSaleCompleted, order, snapshot(order))
}

func (b *Broadcaster) ProductSold(ctx context.Context, order *models.Order, item models.OrderItem) error {
	return b.publish(ctx, EventProductSold, order, productSoldData{
		OrderNumber: order.OrderNumber,
		ProductID:   item.ProductID,
		VariantID:   item.VariantID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		TotalCents:  item.LineTotalCents(),
	})
}

func (b *Broadcaster) PaymentReceived(ctx context.Context, order *models.Order, payment *models.Payment) error {
	data := paymentReceivedData{
		OrderNumber: order.OrderNumber,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
	}
	if payment != nil {
		data.Gateway = payment.Gateway
		data.Status = payment.Status
		if payment.ExternalPaymentID != nil {
			data.ExternalPaymentID = *payment.ExternalPaymentID
		}
	}
	return b.publish(ctx, EventPaymentReceived, order, data)
}

func (b *Broadcaster) publish(ctx context.Context, typ EventType, order *models.Order, data any) error {
	if order == nil {
		return fmt.Errorf("notify %s: order required", typ)
	}
	if len(b.sinks) == 0 {
		return nil
	}
	event := Event{
		ID:         ulid.Make().String(),
		Type:       typ,
		OrderID:    order.ID,
		OccurredAt: b.now().UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", typ, err)
	}

	var errs error
	for _, sink := range b.sinks {
		if err := sink.Send(ctx, event, payload); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s sink: %w", sink.Name(), err))
		}
	}
	return errs
}

type noop struct{}

// Noop discards every event.
var Noop Notifier = noop{}

func (noop) OrderCreated(context.Context, *models.Order) error                          { return nil }
func (noop) OrderUpdated(context.Context, *models.Order) error                          { return nil }
func (noop) OrderStatusChanged(context.Context, *models.Order, enums.OrderStatus) error { return nil }
func (noop) SaleCompleted(context.Context, *models.Order) error                         { return nil }
func (noop) ProductSold(context.Context, *models.Order, models.OrderItem) error         { return nil }
func (noop) PaymentReceived(context.Context, *models.Order, *models.Payment) error      { return nil }
