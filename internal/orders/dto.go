package orders

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orderstate"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// UpdateStatusInput requests a status change. ExpectedVersion, when set, must match
// the stored version or the call fails with a version conflict.
type UpdateStatusInput struct {
	OrderID         uuid.UUID
	Status          enums.OrderStatus
	ExpectedVersion *int
	Evidence        orderstate.Evidence
	Actor           string
}

// RejectInput marks a still-pending order as PAYMENT_REJECTED.
type RejectInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   string
}

// PaymentUpdateInput carries the canonical status a gateway reported for an order.
type PaymentUpdateInput struct {
	OrderID           uuid.UUID
	Gateway           enums.Gateway
	ExternalPaymentID string
	Status            enums.PaymentStatus
	GatewayStatus     string
	AmountCents       int64
	Currency          string
	RawPayload        json.RawMessage
	Actor             string
}

// PaymentOutcome reports what ApplyPaymentStatus did.
type PaymentOutcome string

const (
	OutcomeApproved        PaymentOutcome = "approved"
	OutcomeRejected        PaymentOutcome = "rejected"
	OutcomePending         PaymentOutcome = "pending"
	OutcomeAlreadyApproved PaymentOutcome = "already_approved"
	OutcomeAlreadyRejected PaymentOutcome = "already_rejected"
)

// TransitionsView answers which statuses an order can move to next.
type TransitionsView struct {
	OrderID       uuid.UUID           `json:"order_id"`
	CurrentStatus enums.OrderStatus   `json:"current_status"`
	Version       int                 `json:"version"`
	Transitions   []enums.OrderStatus `json:"transitions"`
	IsFinal       bool                `json:"is_final"`
}
