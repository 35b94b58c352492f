package checkout

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	orderviews "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type itemRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid"`
	VariantID *string `json:"variant_id" validate:"omitempty,uuid"`
	ColorCode string  `json:"color_code" validate:"max=16"`
	Size      string  `json:"size" validate:"max=16"`
	Quantity  int     `json:"quantity" validate:"required,min=1,max=100"`
}

type createRequest struct {
	Items           []itemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	FulfillmentType string        `json:"fulfillment_type" validate:"required,fulfillment"`
	CouponCode      string        `json:"coupon_code" validate:"max=64"`
	Gateway         string        `json:"gateway" validate:"omitempty,oneof=stripe square"`
	Email           string        `json:"email" validate:"omitempty,email"`
}

type createResponse struct {
	Order        *orderviews.OrderView  `json:"order"`
	CheckoutURL  string                 `json:"checkout_url"`
	PreferenceID string                 `json:"preference_id"`
	Quote        *pricing.CheckoutQuote `json:"quote"`
}

// Create prices the cart, checks stock and opens a gateway preference for a new
// PENDING order.
func Create(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := middleware.UserUUIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required"))
			return
		}
		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := checkoutsvc.CreateOrderInput{
			UserID:          userID,
			Email:           strings.TrimSpace(req.Email),
			FulfillmentType: enums.FulfillmentType(req.FulfillmentType),
			CouponCode:      strings.TrimSpace(req.CouponCode),
			Gateway:         req.Gateway,
			Items:           make([]checkoutsvc.ItemInput, 0, len(req.Items)),
		}
		for _, item := range req.Items {
			in := checkoutsvc.ItemInput{
				ProductID: uuid.MustParse(item.ProductID),
				ColorCode: item.ColorCode,
				Size:      item.Size,
				Quantity:  item.Quantity,
			}
			if item.VariantID != nil {
				id := uuid.MustParse(*item.VariantID)
				in.VariantID = &id
			}
			input.Items = append(input.Items, in)
		}

		res, err := svc.CreateOrderAndPreference(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, createResponse{
			Order:        orderviews.NewOrderView(res.Order),
			CheckoutURL:  res.CheckoutURL,
			PreferenceID: res.PreferenceID,
			Quote:        res.Quote,
		})
	}
}

type paymentReconciler interface {
	Reconcile(ctx context.Context, in paymentwebhook.ReconcileInput) (*paymentwebhook.Result, error)
}

type returnResponse struct {
	OrderID uuid.UUID             `json:"order_id"`
	Status  enums.OrderStatus     `json:"status"`
	Outcome orders.PaymentOutcome `json:"outcome"`
	Version int                   `json:"version"`
}

// Return handles the buyer's redirect back from the gateway. The payment is
// reconciled against the gateway before answering so the page shows the final state.
func Return(rec paymentReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		gateway, err := validators.RequiredQuery(r, "gateway", 32)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		paymentID, err := validators.RequiredQuery(r, "payment_id", 255)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		res, err := rec.Reconcile(ctx, paymentwebhook.ReconcileInput{
			Gateway:    gateway,
			ExternalID: paymentID,
			Source:     paymentwebhook.SourceReturn,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		caller := middleware.UserUUIDFromContext(ctx)
		if res.Order == nil || res.Order.UserID != caller {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, returnResponse{
			OrderID: res.Order.ID,
			Status:  res.Order.Status,
			Outcome: res.Outcome,
			Version: res.Order.Version,
		})
	}
}

type squarePaymentRequest struct {
	SourceID string `json:"source_id" validate:"required,max=255"`
}

type squarePaymentResponse struct {
	Order   *orderviews.OrderView `json:"order"`
	Outcome orders.PaymentOutcome `json:"outcome"`
}

// SquarePayment charges the card token produced by the hosted card form.
func SquarePayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.PathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req squarePaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, outcome, err := svc.ChargeCard(ctx, checkoutsvc.ChargeCardInput{
			OrderID:  orderID,
			UserID:   middleware.UserUUIDFromContext(ctx),
			SourceID: strings.TrimSpace(req.SourceID),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := http.StatusOK
		if outcome == orders.OutcomeRejected {
			status = http.StatusPaymentRequired
		}
		responses.WriteSuccessStatus(w, status, squarePaymentResponse{
			Order:   orderviews.NewOrderView(order),
			Outcome: outcome,
		})
	}
}
