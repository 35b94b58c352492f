package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ItemInput selects a product and, for products with variants, either a variant id
// or its color and size.
type ItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	ColorCode string
	Size      string
	Quantity  int
}

type CreateOrderInput struct {
	UserID          uuid.UUID
	Email           string
	Items           []ItemInput
	FulfillmentType enums.FulfillmentType
	CouponCode      string
	Gateway         string
}

// CreateOrderResult is the pending order and where the buyer completes payment.
type CreateOrderResult struct {
	Order        *models.Order          `json:"order"`
	CheckoutURL  string                 `json:"checkout_url"`
	PreferenceID string                 `json:"preference_id"`
	Quote        *pricing.CheckoutQuote `json:"quote"`
}

// ChargeCardInput pays a pending order with a card token from the hosted card form.
type ChargeCardInput struct {
	OrderID  uuid.UUID
	UserID   uuid.UUID
	SourceID string
}
