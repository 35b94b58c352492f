package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type OrderItemView struct {
	ID                 uuid.UUID  `json:"id"`
	ProductID          uuid.UUID  `json:"product_id"`
	VariantID          *uuid.UUID `json:"variant_id,omitempty"`
	ProductName        string     `json:"product_name"`
	Quantity           int        `json:"quantity"`
	ColorCode          *string    `json:"color_code,omitempty"`
	Size               *string    `json:"size,omitempty"`
	UnitPriceCents     int64      `json:"unit_price_cents"`
	OriginalPriceCents int64      `json:"original_price_cents"`
	DiscountCents      int64      `json:"discount_cents"`
	PromotionName      *string    `json:"promotion_name,omitempty"`
	LineTotalCents     int64      `json:"line_total_cents"`
}

type PaymentView struct {
	Gateway           enums.Gateway       `json:"gateway"`
	Status            enums.PaymentStatus `json:"status"`
	PreferenceID      *string             `json:"preference_id,omitempty"`
	ExternalPaymentID *string             `json:"external_payment_id,omitempty"`
	ApprovedAt        *time.Time          `json:"approved_at,omitempty"`
}

// OrderView is the public shape of an order.
type OrderView struct {
	ID                 uuid.UUID             `json:"id"`
	OrderNumber        string                `json:"order_number"`
	UserID             uuid.UUID             `json:"user_id"`
	Status             enums.OrderStatus     `json:"status"`
	FulfillmentType    enums.FulfillmentType `json:"fulfillment_type"`
	Gateway            enums.Gateway         `json:"gateway"`
	Currency           string                `json:"currency"`
	SubtotalCents      int64                 `json:"subtotal_cents"`
	DiscountCents      int64                 `json:"discount_cents"`
	GatewayFeeCents    int64                 `json:"gateway_fee_cents"`
	TotalCents         int64                 `json:"total_cents"`
	CouponCode         *string               `json:"coupon_code,omitempty"`
	CancellationReason *string               `json:"cancellation_reason,omitempty"`
	DeliveryReason     *string               `json:"delivery_reason,omitempty"`
	TrackingNumber     *string               `json:"tracking_number,omitempty"`
	Carrier            *string               `json:"carrier,omitempty"`
	TrackingURL        *string               `json:"tracking_url,omitempty"`
	DeliveryAttempts   int                   `json:"delivery_attempts"`
	Version            int                   `json:"version"`
	PaymentApprovedAt  *time.Time            `json:"payment_approved_at,omitempty"`
	PreparingStartedAt *time.Time            `json:"preparing_started_at,omitempty"`
	ReadyForShippingAt *time.Time            `json:"ready_for_shipping_at,omitempty"`
	ReadyForPickupAt   *time.Time            `json:"ready_for_pickup_at,omitempty"`
	ShippedAt          *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time            `json:"cancelled_at,omitempty"`
	Items              []OrderItemView       `json:"items"`
	Payment            *PaymentView          `json:"payment,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func NewOrderView(o *models.Order) *OrderView {
	if o == nil {
		return nil
	}
	v := &OrderView{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		UserID:             o.UserID,
		Status:             o.Status,
		FulfillmentType:    o.FulfillmentType,
		Gateway:            o.Gateway,
		Currency:           o.Currency,
		SubtotalCents:      o.SubtotalCents,
		DiscountCents:      o.DiscountCents,
		GatewayFeeCents:    o.GatewayFeeCents,
		TotalCents:         o.TotalCents,
		CouponCode:         o.CouponCode,
		CancellationReason: o.CancellationReason,
		DeliveryReason:     o.DeliveryReason,
		TrackingNumber:     o.TrackingNumber,
		Carrier:            o.Carrier,
		TrackingURL:        o.TrackingURL,
		DeliveryAttempts:   o.DeliveryAttempts,
		Version:            o.Version,
		PaymentApprovedAt:  o.PaymentApprovedAt,
		PreparingStartedAt: o.PreparingStartedAt,
		ReadyForShippingAt: o.ReadyForShippingAt,
		ReadyForPickupAt:   o.ReadyForPickupAt,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		Items:              make([]OrderItemView, 0, len(o.Items)),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, OrderItemView{
			ID:                 it.ID,
			ProductID:          it.ProductID,
			VariantID:          it.VariantID,
			ProductName:        it.ProductName,
			Quantity:           it.Quantity,
			ColorCode:          it.ColorCode,
			Size:               it.Size,
			UnitPriceCents:     it.UnitPriceCents,
			OriginalPriceCents: it.OriginalPriceCents,
			DiscountCents:      it.DiscountCents,
			PromotionName:      it.PromotionName,
			LineTotalCents:     it.LineTotalCents(),
		})
	}
	if p := o.Payment; p != nil {
		v.Payment = &PaymentView{
			Gateway:           p.Gateway,
			Status:            p.Status,
			PreferenceID:      p.PreferenceID,
			ExternalPaymentID: p.ExternalPaymentID,
			ApprovedAt:        p.ApprovedAt,
		}
	}
	return v
}

type AuditView struct {
	ID             uuid.UUID         `json:"id"`
	ChangedBy      string            `json:"changed_by"`
	Action         string            `json:"action"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	NewStatus      enums.OrderStatus `json:"new_status"`
	Metadata       json.RawMessage   `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func newAuditViews(rows []models.OrderAudit) []AuditView {
	out := make([]AuditView, 0, len(rows))
	for _, row := range rows {
		out = append(out, AuditView{
			ID:             row.ID,
			ChangedBy:      row.ChangedBy,
			Action:         row.Action,
			PreviousStatus: row.PreviousStatus,
			NewStatus:      row.NewStatus,
			Metadata:       row.Metadata,
			CreatedAt:      row.CreatedAt,
		})
	}
	return out
}
