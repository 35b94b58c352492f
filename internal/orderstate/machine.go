// Package orderstate holds the order lifecycle rules. Everything here is a pure
// function over static tables; persistence lives in internal/orders.
package orderstate

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Evidence field names required by some transitions.
const (
	FieldCancellationReason = "cancellation_reason"
	FieldDeliveryReason     = "delivery_reason"
)

// PickupFallbackAttempts is the number of failed deliveries after which the order
// is routed to store pickup instead of another delivery attempt.
const PickupFallbackAttempts = 2

// Evidence carries the free-text fields a caller supplies with a status change.
type Evidence struct {
	CancellationReason string
	DeliveryReason     string
	TrackingNumber     string
	Carrier            string
	TrackingURL        string
}

func (e Evidence) value(field string) string {
	switch field {
	case FieldCancellationReason:
		return e.CancellationReason
	case FieldDeliveryReason:
		return e.DeliveryReason
	}
	return ""
}

// Context is the order state a transition decision depends on.
type Context struct {
	Current          enums.OrderStatus
	FulfillmentType  enums.FulfillmentType
	DeliveryAttempts int
	Evidence         Evidence
}

// Result is the outcome of ValidateTransition. EffectiveTarget differs from the
// requested target only when Redirected is set.
type Result struct {
	Valid           bool
	Reason          string
	EffectiveTarget enums.OrderStatus
	Redirected      bool
}

type rule struct {
	from        enums.OrderStatus
	to          enums.OrderStatus
	fulfillment enums.FulfillmentType
	required    []string
	minAttempts int
}

var transitions = []rule{
	{from: enums.OrderStatusPending, to: enums.OrderStatusPaymentApproved},
	{from: enums.OrderStatusPending, to: enums.OrderStatusPaymentRejected},
	{from: enums.OrderStatusPending, to: enums.OrderStatusCancelled, required: []string{FieldCancellationReason}},

	{from: enums.OrderStatusPaymentApproved, to: enums.OrderStatusPreparing},
	{from: enums.OrderStatusPaymentApproved, to: enums.OrderStatusCancelled, required: []string{FieldCancellationReason}},

	{from: enums.OrderStatusPreparing, to: enums.OrderStatusReadyForShipping, fulfillment: enums.FulfillmentShipping},
	{from: enums.OrderStatusPreparing, to: enums.OrderStatusReadyForPickup, fulfillment: enums.FulfillmentPickup},
	{from: enums.OrderStatusPreparing, to: enums.OrderStatusCancelled, required: []string{FieldCancellationReason}},

	{from: enums.OrderStatusReadyForShipping, to: enums.OrderStatusShipped},
	{from: enums.OrderStatusReadyForShipping, to: enums.OrderStatusCancelled, required: []string{FieldCancellationReason}},

	{from: enums.OrderStatusReadyForPickup, to: enums.OrderStatusDelivered},
	{from: enums.OrderStatusReadyForPickup, to: enums.OrderStatusCancelled, required: []string{FieldCancellationReason}},

	{from: enums.OrderStatusShipped, to: enums.OrderStatusDelivered},
	{from: enums.OrderStatusShipped, to: enums.OrderStatusNotDelivered, required: []string{FieldDeliveryReason}},
	{from: enums.OrderStatusShipped, to: enums.OrderStatusReadyForPickup, minAttempts: PickupFallbackAttempts},

	{from: enums.OrderStatusNotDelivered, to: enums.OrderStatusShipped},
	{from: enums.OrderStatusNotDelivered, to: enums.OrderStatusReadyForPickup, minAttempts: PickupFallbackAttempts},
	{from: enums.OrderStatusNotDelivered, to: enums.OrderStatusCancelled, required: []string{FieldCancellationReason}},
}

var finalStatuses = map[enums.OrderStatus]struct{}{
	enums.OrderStatusDelivered:       {},
	enums.OrderStatusCancelled:       {},
	enums.OrderStatusPaymentRejected: {},
}

// Statuses in which payment is captured and stock has been taken from inventory.
var confirmedStatuses = map[enums.OrderStatus]struct{}{
	enums.OrderStatusPaymentApproved:  {},
	enums.OrderStatusPreparing:        {},
	enums.OrderStatusReadyForShipping: {},
	enums.OrderStatusReadyForPickup:   {},
	enums.OrderStatusShipped:          {},
	enums.OrderStatusNotDelivered:     {},
	enums.OrderStatusDelivered:        {},
}

var refundableStatuses = map[enums.OrderStatus]struct{}{
	enums.OrderStatusCancelled:       {},
	enums.OrderStatusPaymentRejected: {},
}

var timestampColumns = map[enums.OrderStatus]string{
	enums.OrderStatusPaymentApproved:  "payment_approved_at",
	enums.OrderStatusPreparing:        "preparing_started_at",
	enums.OrderStatusReadyForShipping: "ready_for_shipping_at",
	enums.OrderStatusReadyForPickup:   "ready_for_pickup_at",
	enums.OrderStatusShipped:          "shipped_at",
	enums.OrderStatusDelivered:        "delivered_at",
	enums.OrderStatusCancelled:        "cancelled_at",
}

func lookup(from, to enums.OrderStatus) (rule, bool) {
	for _, r := range transitions {
		if r.from == from && r.to == to {
			return r, true
		}
	}
	return rule{}, false
}

// ValidateTransition decides whether the order described by ctx may move from
// current to target. Unknown pairs are rejected.
func ValidateTransition(current, target enums.OrderStatus, ctx Context) Result {
	if !target.IsValid() {
		return Result{Reason: fmt.Sprintf("unknown target status %q", target)}
	}
	if IsFinalStatus(current) {
		return Result{Reason: fmt.Sprintf("order is in final status %s", current)}
	}

	effective := target
	redirected := false
	if target == enums.OrderStatusNotDelivered && ctx.DeliveryAttempts >= PickupFallbackAttempts {
		effective = enums.OrderStatusReadyForPickup
		redirected = true
	}

	r, ok := lookup(current, effective)
	if !ok {
		return Result{Reason: fmt.Sprintf("transition %s -> %s is not allowed", current, effective), EffectiveTarget: effective, Redirected: redirected}
	}
	if r.fulfillment != "" && ctx.FulfillmentType != r.fulfillment {
		return Result{Reason: fmt.Sprintf("transition %s -> %s requires %s fulfillment", current, effective, r.fulfillment), EffectiveTarget: effective, Redirected: redirected}
	}
	if ctx.DeliveryAttempts < r.minAttempts {
		return Result{Reason: fmt.Sprintf("transition %s -> %s requires at least %d delivery attempts", current, effective, r.minAttempts), EffectiveTarget: effective, Redirected: redirected}
	}
	return Result{Valid: true, EffectiveTarget: effective, Redirected: redirected}
}

// RequiredFields lists the evidence fields a transition needs. Unknown pairs need nothing
// because ValidateTransition already rejects them.
func RequiredFields(current, target enums.OrderStatus) []string {
	r, ok := lookup(current, target)
	if !ok || len(r.required) == 0 {
		return nil
	}
	out := make([]string, len(r.required))
	copy(out, r.required)
	return out
}

// MissingFields returns the required evidence fields that are blank.
func MissingFields(current, target enums.OrderStatus, evidence Evidence) []string {
	var missing []string
	for _, field := range RequiredFields(current, target) {
		if strings.TrimSpace(evidence.value(field)) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// AvailableTransitions returns the targets reachable from ctx.Current given the
// fulfillment type and attempt count. Evidence is not considered.
func AvailableTransitions(ctx Context) []enums.OrderStatus {
	if IsFinalStatus(ctx.Current) {
		return []enums.OrderStatus{}
	}
	out := []enums.OrderStatus{}
	for _, r := range transitions {
		if r.from != ctx.Current {
			continue
		}
		if r.to == enums.OrderStatusNotDelivered && ctx.DeliveryAttempts >= PickupFallbackAttempts {
			continue
		}
		if r.fulfillment != "" && ctx.FulfillmentType != r.fulfillment {
			continue
		}
		if ctx.DeliveryAttempts < r.minAttempts {
			continue
		}
		out = append(out, r.to)
	}
	return out
}

func IsFinalStatus(status enums.OrderStatus) bool {
	_, ok := finalStatuses[status]
	return ok
}

// IsConfirmed reports whether stock is considered taken for an order in status.
func IsConfirmed(status enums.OrderStatus) bool {
	_, ok := confirmedStatuses[status]
	return ok
}

func IsRefundable(status enums.OrderStatus) bool {
	_, ok := refundableStatuses[status]
	return ok
}

// RequiresStockRestore is true when leaving a confirmed status for a refundable one.
func RequiresStockRestore(previous, next enums.OrderStatus) bool {
	return IsConfirmed(previous) && IsRefundable(next)
}

// RequiresStockReduction is true when an order becomes confirmed for the first time.
func RequiresStockReduction(previous, next enums.OrderStatus) bool {
	return !IsConfirmed(previous) && IsConfirmed(next)
}

// TimestampColumn names the orders column stamped when an order enters status.
func TimestampColumn(status enums.OrderStatus) (string, bool) {
	col, ok := timestampColumns[status]
	return col, ok
}

// AuditAction formats the action recorded for a transition.
func AuditAction(from, to enums.OrderStatus) string {
	return fmt.Sprintf("STATUS_CHANGE_%s_TO_%s", from, to)
}
