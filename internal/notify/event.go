package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// EventType names a storefront notification.
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderUpdated       EventType = "order.updated"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventSaleCompleted      EventType = "sale.completed"
	EventProductSold        EventType = "product.sold"
	EventPaymentReceived    EventType = "payment.received"
)

// Event is the envelope published to every sink.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OrderID    uuid.UUID `json:"order_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// OrderSnapshot is the order view carried by order events.
type OrderSnapshot struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     string                `json:"order_number"`
	UserID          uuid.UUID             `json:"user_id"`
	Status          enums.OrderStatus     `json:"status"`
	FulfillmentType enums.FulfillmentType `json:"fulfillment_type"`
	Version         int                   `json:"version"`
	TotalCents      int64                 `json:"total_cents"`
	Currency        string                `json:"currency"`
}

func snapshot(order *models.Order) OrderSnapshot {
	return OrderSnapshot{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          order.Status,
		FulfillmentType: order.FulfillmentType,
		Version:         order.Version,
		TotalCents:      order.TotalCents,
		Currency:        order.Currency,
	}
}

type statusChangedData struct {
	Order          OrderSnapshot     `json:"order"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	NewStatus      enums.OrderStatus `json:"new_status"`
}

type productSoldData struct {
	OrderNumber string     `json:"order_number"`
	ProductID   uuid.UUID  `json:"product_id"`
	VariantID   *uuid.UUID `json:"variant_id,omitempty"`
	ProductName string     `json:"product_name"`
	Quantity    int        `json:"quantity"`
	TotalCents  int64      `json:"total_cents"`
}

type paymentReceivedData struct {
	OrderNumber       string              `json:"order_number"`
	Gateway           enums.Gateway       `json:"gateway"`
	Status            enums.PaymentStatus `json:"status"`
	ExternalPaymentID string              `json:"external_payment_id,omitempty"`
	AmountCents       int64               `json:"amount_cents"`
	Currency          string              `json:"currency"`
}
