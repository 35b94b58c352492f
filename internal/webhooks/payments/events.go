package paymentwebhook

import (
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v78"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// GenericEvent is the gateway-neutral notification body.
type GenericEvent struct {
	Type              string `json:"type"`
	PaymentExternalID string `json:"paymentExternalId"`
	Gateway           string `json:"gateway,omitempty"`
}

// PaymentID returns the payment to reconcile, or false when the event is not about a payment.
func (e GenericEvent) PaymentID() (string, bool) {
	id := strings.TrimSpace(e.PaymentExternalID)
	if id == "" || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(e.Type)), "payment") {
		return "", false
	}
	return id, true
}

// StripePaymentID extracts the payment handle from a payment intent or checkout
// session event. Sessions without a payment intent are reconciled by session id.
func StripePaymentID(event stripe.Event) (string, bool) {
	if event.Data == nil {
		return "", false
	}
	kind := string(event.Type)
	switch {
	case strings.HasPrefix(kind, "payment_intent."):
		id := event.GetObjectValue("id")
		return id, id != ""
	case strings.HasPrefix(kind, "checkout.session."):
		if intent := event.GetObjectValue("payment_intent"); intent != "" {
			return intent, true
		}
		id := event.GetObjectValue("id")
		return id, id != ""
	default:
		return "", false
	}
}

// SquareEvent is the envelope Square posts for payment notifications.
type SquareEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Object struct {
			Payment struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

func ParseSquareEvent(body []byte) (*SquareEvent, error) {
	var event SquareEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square event")
	}
	return &event, nil
}

// PaymentID returns the payment to reconcile for payment.created and payment.updated.
func (e *SquareEvent) PaymentID() (string, bool) {
	switch e.Type {
	case "payment.created", "payment.updated":
	default:
		return "", false
	}
	if id := strings.TrimSpace(e.Data.Object.Payment.ID); id != "" {
		return id, true
	}
	id := strings.TrimSpace(e.Data.ID)
	return id, id != ""
}

// DedupID is the id the idempotency guard keys on.
func (e *SquareEvent) DedupID() string {
	if id := strings.TrimSpace(e.EventID); id != "" {
		return id
	}
	return e.Data.ID
}
