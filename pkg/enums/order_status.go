package enums

import "fmt"

// OrderStatus is the lifecycle status of an order (cms status).
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "PENDING"
	OrderStatusPaymentApproved  OrderStatus = "PAYMENT_APPROVED"
	OrderStatusPaymentRejected  OrderStatus = "PAYMENT_REJECTED"
	OrderStatusPreparing        OrderStatus = "PREPARING"
	OrderStatusReadyForShipping OrderStatus = "READY_FOR_SHIPPING"
	OrderStatusReadyForPickup   OrderStatus = "READY_FOR_PICKUP"
	OrderStatusShipped          OrderStatus = "SHIPPED"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusNotDelivered     OrderStatus = "NOT_DELIVERED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaymentApproved,
	OrderStatusPaymentRejected,
	OrderStatusPreparing,
	OrderStatusReadyForShipping,
	OrderStatusReadyForPickup,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusNotDelivered,
	OrderStatusCancelled,
}

// OrderStatuses returns every known status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(validOrderStatuses))
	copy(out, validOrderStatuses)
	return out
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
