package gateways

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v78"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type stubStripe struct {
	created  pkgstripe.CheckoutSessionParams
	intent   *stripego.PaymentIntent
	session  *stripego.CheckoutSession
	getCalls []string
}

func (s *stubStripe) CreateCheckoutSession(_ context.Context, in pkgstripe.CheckoutSessionParams) (*stripego.CheckoutSession, error) {
	s.created = in
	return &stripego.CheckoutSession{ID: "cs_test_9", URL: "https://checkout.stripe.com/pay/cs_test_9"}, nil
}

func (s *stubStripe) GetCheckoutSession(_ context.Context, id string) (*stripego.CheckoutSession, error) {
	s.getCalls = append(s.getCalls, "session:"+id)
	return s.session, nil
}

func (s *stubStripe) GetPaymentIntent(_ context.Context, id string) (*stripego.PaymentIntent, error) {
	s.getCalls = append(s.getCalls, "intent:"+id)
	return s.intent, nil
}

type stubSquare struct {
	params  square.PaymentCreateParams
	payment *square.Payment
	err     error
}

func (s *stubSquare) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*square.Payment, error) {
	s.params = params
	return s.payment, s.err
}

func (s *stubSquare) GetPayment(context.Context, string) (*square.Payment, error) {
	return s.payment, s.err
}

func testOrder() *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "SF-01",
		Currency:    "USD",
		TotalCents:  3767,
		Items:       []models.OrderItem{{ProductName: "Runner", UnitPriceCents: 1850, OriginalPriceCents: 1850, Quantity: 2}},
	}
}

func TestRegistryResolvesByNameAndFallback(t *testing.T) {
	st := NewStripe(&stubStripe{})
	sq := NewSquare(&stubSquare{}, "https://shop.example.com/card")
	reg, err := NewRegistry(enums.GatewaySquare, st, sq)
	require.NoError(t, err)

	gw, err := reg.Get("")
	require.NoError(t, err)
	require.Equal(t, enums.GatewaySquare, gw.Name())

	gw, err = reg.Get(" Stripe ")
	require.NoError(t, err)
	require.Equal(t, enums.GatewayStripe, gw.Name())

	_, err = reg.Get("paypal")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, []enums.Gateway{enums.GatewaySquare, enums.GatewayStripe}, reg.Names())

	_, err = NewRegistry(enums.GatewayStripe)
	require.Error(t, err)

	onlyStripe, err := NewRegistry(enums.GatewaySquare, st)
	require.NoError(t, err)
	gw, err = onlyStripe.Get("")
	require.NoError(t, err)
	require.Equal(t, enums.GatewayStripe, gw.Name())
}

func TestStripeCreatePreference(t *testing.T) {
	api := &stubStripe{}
	order := testOrder()
	pref, err := NewStripe(api).CreatePreference(context.Background(), PreferenceInput{
		Order:      order,
		SuccessURL: "https://shop.example.com/checkout/success",
		CancelURL:  "https://shop.example.com/checkout/cancel",
	})
	require.NoError(t, err)
	require.Equal(t, "cs_test_9", pref.ID)
	require.Equal(t, order.ID.String(), api.created.OrderID)
	require.EqualValues(t, 3767, api.created.TotalCents)
	require.True(t, strings.HasSuffix(api.created.SuccessURL, "&payment_id={CHECKOUT_SESSION_ID}"))
	require.Contains(t, api.created.SuccessURL, "gateway=stripe")
}

func TestStripeGetPaymentMapsStatus(t *testing.T) {
	orderID := uuid.New()
	tests := []struct {
		name   string
		intent *stripego.PaymentIntent
		want   enums.PaymentStatus
	}{
		{"succeeded", &stripego.PaymentIntent{Status: stripego.PaymentIntentStatusSucceeded}, enums.PaymentStatusApproved},
		{"canceled", &stripego.PaymentIntent{Status: stripego.PaymentIntentStatusCanceled}, enums.PaymentStatusRejected},
		{"failed attempt", &stripego.PaymentIntent{Status: stripego.PaymentIntentStatusRequiresPaymentMethod, LastPaymentError: &stripego.Error{}}, enums.PaymentStatusRejected},
		{"awaiting method", &stripego.PaymentIntent{Status: stripego.PaymentIntentStatusRequiresPaymentMethod}, enums.PaymentStatusPending},
		{"processing", &stripego.PaymentIntent{Status: stripego.PaymentIntentStatusProcessing}, enums.PaymentStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.intent.ID = "pi_1"
			tt.intent.Amount = 3767
			tt.intent.Currency = "usd"
			tt.intent.Metadata = map[string]string{"order_id": orderID.String()}
			info, err := NewStripe(&stubStripe{intent: tt.intent}).GetPayment(context.Background(), "pi_1")
			require.NoError(t, err)
			require.Equal(t, tt.want, info.Status)
			require.Equal(t, orderID, info.OrderID)
			require.Equal(t, "USD", info.Currency)
			require.NotEmpty(t, info.Raw)
		})
	}
}

func TestStripeGetPaymentFromSession(t *testing.T) {
	orderID := uuid.New()
	api := &stubStripe{session: &stripego.CheckoutSession{
		ID:                "cs_test_1",
		ClientReferenceID: orderID.String(),
		PaymentIntent:     &stripego.PaymentIntent{ID: "pi_7", Status: stripego.PaymentIntentStatusSucceeded},
	}}
	info, err := NewStripe(api).GetPayment(context.Background(), "cs_test_1")
	require.NoError(t, err)
	require.Equal(t, []string{"session:cs_test_1"}, api.getCalls)
	require.Equal(t, "pi_7", info.ExternalID)
	require.Equal(t, orderID, info.OrderID)
	require.Equal(t, enums.PaymentStatusApproved, info.Status)

	api.session = &stripego.CheckoutSession{ID: "cs_test_2", Status: stripego.CheckoutSessionStatusExpired}
	info, err = NewStripe(api).GetPayment(context.Background(), "cs_test_2")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusRejected, info.Status)
}

func TestSquarePreferencePointsAtCardForm(t *testing.T) {
	order := testOrder()
	pref, err := NewSquare(&stubSquare{}, "https://shop.example.com/checkout/card").CreatePreference(context.Background(), PreferenceInput{Order: order})
	require.NoError(t, err)
	u, err := url.Parse(pref.CheckoutURL)
	require.NoError(t, err)
	require.Equal(t, order.ID.String(), u.Query().Get("order"))
	require.Equal(t, "/checkout/card", u.Path)
}

func TestSquareChargeCard(t *testing.T) {
	order := testOrder()
	api := &stubSquare{payment: &square.Payment{ID: "sq_pay_1", Status: square.StatusCompleted, ReferenceID: order.ID.String(), AmountCents: 3767, Currency: "USD"}}
	info, err := NewSquare(api, "https://shop.example.com/card").ChargeCard(context.Background(), order, "cnon:card-nonce-ok")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusApproved, info.Status)
	require.Equal(t, order.ID, info.OrderID)
	require.Equal(t, "order-"+order.ID.String(), api.params.IdempotencyKey)
	require.EqualValues(t, 3767, api.params.AmountCents)

	_, err = NewSquare(api, "").ChargeCard(context.Background(), order, " ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMapSquareStatus(t *testing.T) {
	require.Equal(t, enums.PaymentStatusApproved, MapSquareStatus("completed"))
	require.Equal(t, enums.PaymentStatusPending, MapSquareStatus(square.StatusApproved))
	require.Equal(t, enums.PaymentStatusPending, MapSquareStatus(square.StatusPending))
	require.Equal(t, enums.PaymentStatusRejected, MapSquareStatus(square.StatusFailed))
	require.Equal(t, enums.PaymentStatusRejected, MapSquareStatus(square.StatusCanceled))
}
