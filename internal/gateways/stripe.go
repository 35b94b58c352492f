package gateways

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v78"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const checkoutSessionPrefix = "cs_"

type stripeAPI interface {
	CreateCheckoutSession(ctx context.Context, in pkgstripe.CheckoutSessionParams) (*stripego.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripego.CheckoutSession, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*stripego.PaymentIntent, error)
}

// Stripe uses hosted Checkout Sessions as preferences and Payment Intents as the
// canonical payment.
type Stripe struct {
	api stripeAPI
}

func NewStripe(api stripeAPI) *Stripe {
	return &Stripe{api: api}
}

func (s *Stripe) Name() enums.Gateway { return enums.GatewayStripe }

func (s *Stripe) CreatePreference(ctx context.Context, in PreferenceInput) (*Preference, error) {
	order := in.Order
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	items := make([]pkgstripe.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, pkgstripe.LineItem{
			Name:            item.ProductName,
			UnitAmountCents: item.UnitPriceCents,
			Quantity:        int64(item.Quantity),
		})
	}
	session, err := s.api.CreateCheckoutSession(ctx, pkgstripe.CheckoutSessionParams{
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		Currency:    order.Currency,
		TotalCents:  order.TotalCents,
		Items:       items,
		SuccessURL:  stripeReturnURL(in.SuccessURL, order.ID.String()),
		CancelURL:   in.CancelURL,
		Email:       in.Email,
	})
	if err != nil {
		return nil, err
	}
	return &Preference{ID: session.ID, CheckoutURL: session.URL}, nil
}

// GetPayment accepts either a payment intent id or a checkout session id.
func (s *Stripe) GetPayment(ctx context.Context, externalID string) (*PaymentInfo, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if strings.HasPrefix(externalID, checkoutSessionPrefix) {
		session, err := s.api.GetCheckoutSession(ctx, externalID)
		if err != nil {
			return nil, err
		}
		return stripeSessionInfo(session), nil
	}
	intent, err := s.api.GetPaymentIntent(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return stripeIntentInfo(intent), nil
}

func stripeIntentInfo(intent *stripego.PaymentIntent) *PaymentInfo {
	info := &PaymentInfo{
		ExternalID:    intent.ID,
		OrderID:       parseOrderID(intent.Metadata["order_id"]),
		Status:        MapStripeStatus(intent),
		GatewayStatus: string(intent.Status),
		AmountCents:   intent.Amount,
		Currency:      strings.ToUpper(string(intent.Currency)),
	}
	if raw, err := json.Marshal(intent); err == nil {
		info.Raw = raw
	}
	return info
}

func stripeSessionInfo(session *stripego.CheckoutSession) *PaymentInfo {
	if session.PaymentIntent != nil && session.PaymentIntent.Status != "" {
		info := stripeIntentInfo(session.PaymentIntent)
		if info.OrderID == uuid.Nil {
			info.OrderID = parseOrderID(session.ClientReferenceID)
		}
		return info
	}
	status := enums.PaymentStatusPending
	switch {
	case session.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid:
		status = enums.PaymentStatusApproved
	case session.Status == stripego.CheckoutSessionStatusExpired:
		status = enums.PaymentStatusRejected
	}
	info := &PaymentInfo{
		ExternalID:    session.ID,
		OrderID:       parseOrderID(session.ClientReferenceID),
		Status:        status,
		GatewayStatus: string(session.PaymentStatus),
		AmountCents:   session.AmountTotal,
		Currency:      strings.ToUpper(string(session.Currency)),
	}
	if raw, err := json.Marshal(session); err == nil {
		info.Raw = raw
	}
	return info
}

// MapStripeStatus reduces a payment intent to PENDING, APPROVED or REJECTED.
func MapStripeStatus(intent *stripego.PaymentIntent) enums.PaymentStatus {
	if intent == nil {
		return enums.PaymentStatusPending
	}
	switch intent.Status {
	case stripego.PaymentIntentStatusSucceeded:
		return enums.PaymentStatusApproved
	case stripego.PaymentIntentStatusCanceled:
		return enums.PaymentStatusRejected
	case stripego.PaymentIntentStatusRequiresPaymentMethod:
		if intent.LastPaymentError != nil {
			return enums.PaymentStatusRejected
		}
	}
	return enums.PaymentStatusPending
}

// stripeReturnURL appends the return parameters. Stripe substitutes the literal
// {CHECKOUT_SESSION_ID} placeholder, so it must stay unescaped.
func stripeReturnURL(base, orderID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("gateway", string(enums.GatewayStripe))
	q.Set("order_id", orderID)
	u.RawQuery = q.Encode()
	return u.String() + "&payment_id={CHECKOUT_SESSION_ID}"
}
