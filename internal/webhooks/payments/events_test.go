package paymentwebhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

func stripeEvent(t *testing.T, kind string, object map[string]any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{Type: stripe.EventType(kind), Data: &stripe.EventData{Raw: raw, Object: object}}
}

func TestStripePaymentID(t *testing.T) {
	id, ok := StripePaymentID(stripeEvent(t, "payment_intent.succeeded", map[string]any{"id": "pi_1"}))
	require.True(t, ok)
	require.Equal(t, "pi_1", id)

	id, ok = StripePaymentID(stripeEvent(t, "checkout.session.completed", map[string]any{"id": "cs_1", "payment_intent": "pi_2"}))
	require.True(t, ok)
	require.Equal(t, "pi_2", id)

	id, ok = StripePaymentID(stripeEvent(t, "checkout.session.expired", map[string]any{"id": "cs_2"}))
	require.True(t, ok)
	require.Equal(t, "cs_2", id)

	_, ok = StripePaymentID(stripeEvent(t, "customer.created", map[string]any{"id": "cus_1"}))
	require.False(t, ok)
	_, ok = StripePaymentID(stripe.Event{Type: "payment_intent.succeeded"})
	require.False(t, ok)
}

func TestSquareEventPaymentID(t *testing.T) {
	body := []byte(`{"event_id":"evt_sq_1","type":"payment.updated","data":{"type":"payment","id":"pay_1","object":{"payment":{"id":"pay_1","status":"COMPLETED"}}}}`)
	event, err := ParseSquareEvent(body)
	require.NoError(t, err)
	id, ok := event.PaymentID()
	require.True(t, ok)
	require.Equal(t, "pay_1", id)
	require.Equal(t, "evt_sq_1", event.DedupID())

	event.Type = "refund.updated"
	_, ok = event.PaymentID()
	require.False(t, ok)

	_, err = ParseSquareEvent([]byte(`{`))
	require.Error(t, err)
}

func TestGenericEventPaymentID(t *testing.T) {
	id, ok := GenericEvent{Type: "payment", PaymentExternalID: " 123 "}.PaymentID()
	require.True(t, ok)
	require.Equal(t, "123", id)

	_, ok = GenericEvent{Type: "merchant_order", PaymentExternalID: "123"}.PaymentID()
	require.False(t, ok)
	_, ok = GenericEvent{Type: "payment"}.PaymentID()
	require.False(t, ok)
}
