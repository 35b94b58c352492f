package webhooks

import (
	"net/http"

	"github.com/stripe/stripe-go/v78"

	"github.com/angelmondragon/storefront-backend/api/responses"
	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const stripeSignatureHeader = "Stripe-Signature"

type stripeVerifier interface {
	ConstructEvent(payload []byte, header string) (stripe.Event, error)
}

// Stripe handles payment_intent.* and checkout.session.* events.
func Stripe(client stripeVerifier, guard eventGuard, queue enqueuer, m *metrics.OrderMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		payload, err := readBody(w, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		header := r.Header.Get(stripeSignatureHeader)
		if header == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing"))
			return
		}
		event, err := client.ConstructEvent(payload, header)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		paymentID, ok := paymentwebhook.StripePaymentID(event)
		if !ok {
			responses.WriteSuccess(w, ackResponse{Received: true, Status: "ignored"})
			return
		}
		ctx = withFields(ctx, logg, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
		accept(ctx, w, logg, m, guard, queue, paymentwebhook.Job{
			Gateway:    string(enums.GatewayStripe),
			ExternalID: paymentID,
			EventID:    event.ID,
		})
	}
}
