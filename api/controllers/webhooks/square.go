package webhooks

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/square"
)

type squareVerifier interface {
	VerifySignature(body []byte, header string) bool
}

// Square handles payment.created and payment.updated notifications.
func Square(client squareVerifier, guard eventGuard, queue enqueuer, m *metrics.OrderMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := readBody(w, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !client.VerifySignature(body, r.Header.Get(square.SignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature"))
			return
		}
		event, err := paymentwebhook.ParseSquareEvent(body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		paymentID, ok := event.PaymentID()
		if !ok {
			responses.WriteSuccess(w, ackResponse{Received: true, Status: "ignored"})
			return
		}
		ctx = withFields(ctx, logg, map[string]any{"square_event_id": event.DedupID(), "square_event_type": event.Type})
		accept(ctx, w, logg, m, guard, queue, paymentwebhook.Job{
			Gateway:    string(enums.GatewaySquare),
			ExternalID: paymentID,
			EventID:    event.DedupID(),
		})
	}
}
