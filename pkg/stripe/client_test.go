package stripe

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeSessions struct {
	created *stripe.CheckoutSessionParams
	err     error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.created = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
}

func (f *fakeSessions) Get(id string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{ID: id, PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"}}, nil
}

type fakeIntents struct{}

func (fakeIntents) Get(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if id == "missing" {
		return nil, &stripe.Error{HTTPStatusCode: http.StatusNotFound, Type: stripe.ErrorTypeInvalidRequest}
	}
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusSucceeded}, nil
}

func newTestClient(sessions *fakeSessions) *Client {
	return &Client{sessions: sessions, intents: fakeIntents{}, signingSecret: "whsec_test", logger: logger.Nop()}
}

func TestCreateCheckoutSessionUsesItemsWhenTheyMatchTotal(t *testing.T) {
	sessions := &fakeSessions{}
	c := newTestClient(sessions)

	session, err := c.CreateCheckoutSession(context.Background(), CheckoutSessionParams{
		OrderID:     "order-1",
		OrderNumber: "SF-1",
		Currency:    "USD",
		TotalCents:  2500,
		Items:       []LineItem{{Name: "Runner", UnitAmountCents: 1000, Quantity: 2}, {Name: "Socks", UnitAmountCents: 500, Quantity: 1}},
		SuccessURL:  "https://shop.example.com/ok",
		CancelURL:   "https://shop.example.com/cancel",
	})
	require.NoError(t, err)
	require.Equal(t, "cs_test_1", session.ID)

	params := sessions.created
	require.Len(t, params.LineItems, 2)
	require.Equal(t, "usd", *params.LineItems[0].PriceData.Currency)
	require.Equal(t, "order-1", *params.ClientReferenceID)
	require.Equal(t, "order-1", params.PaymentIntentData.Metadata["order_id"])
	require.Equal(t, "checkout-order-1", *params.IdempotencyKey)
}

func TestCreateCheckoutSessionFallsBackToSummaryLine(t *testing.T) {
	sessions := &fakeSessions{}
	c := newTestClient(sessions)

	_, err := c.CreateCheckoutSession(context.Background(), CheckoutSessionParams{
		OrderID:     "order-2",
		OrderNumber: "SF-2",
		TotalCents:  2276,
		Items:       []LineItem{{Name: "Runner", UnitAmountCents: 1000, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Len(t, sessions.created.LineItems, 1)
	require.EqualValues(t, 2276, *sessions.created.LineItems[0].PriceData.UnitAmount)
	require.Equal(t, "Order SF-2", *sessions.created.LineItems[0].PriceData.ProductData.Name)
}

func TestCreateCheckoutSessionMapsCardErrors(t *testing.T) {
	c := newTestClient(&fakeSessions{err: &stripe.Error{HTTPStatusCode: http.StatusPaymentRequired, Type: stripe.ErrorTypeCard}})
	_, err := c.CreateCheckoutSession(context.Background(), CheckoutSessionParams{OrderID: "o", TotalCents: 100})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))
}

func TestGetPaymentIntent(t *testing.T) {
	c := newTestClient(&fakeSessions{})
	intent, err := c.GetPaymentIntent(context.Background(), "pi_42")
	require.NoError(t, err)
	require.Equal(t, stripe.PaymentIntentStatusSucceeded, intent.Status)

	_, err = c.GetPaymentIntent(context.Background(), "missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	session, err := c.GetCheckoutSession(context.Background(), "cs_1")
	require.NoError(t, err)
	require.Equal(t, "pi_1", session.PaymentIntent.ID)
}

func TestConstructEventVerifiesSignature(t *testing.T) {
	c := newTestClient(&fakeSessions{})
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_test"})

	event, err := c.ConstructEvent(payload, signed.Header)
	require.NoError(t, err)
	require.Equal(t, "evt_1", event.ID)

	_, err = c.ConstructEvent(payload, "t=1,v1=deadbeef")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestValidateAPIKey(t *testing.T) {
	require.NoError(t, validateAPIKey(testEnv, "sk_test_123"))
	require.Error(t, validateAPIKey(testEnv, "sk_live_123"))
	require.NoError(t, validateAPIKey(liveEnv, "rk_live_123"))
	_, err := normalizeEnv("staging")
	require.Error(t, err)
}
