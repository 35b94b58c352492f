package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const maxWebhookBody = 256 << 10

type enqueuer interface {
	Enqueue(job paymentwebhook.Job) error
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type ackResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status,omitempty"`
}

// Generic accepts the gateway-neutral {type, paymentExternalId} notification and
// always answers 200. The status is re-queried from the gateway afterwards.
func Generic(queue enqueuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var event paymentwebhook.GenericEvent
		body, err := readBody(w, r)
		if err == nil {
			err = decodeGeneric(body, &event)
		}
		if err != nil {
			logWarn(ctx, logg, "webhook.generic.undecodable", map[string]any{"error": err.Error()})
			responses.WriteSuccess(w, ackResponse{Received: true, Status: "ignored"})
			return
		}

		paymentID, ok := event.PaymentID()
		if !ok {
			responses.WriteSuccess(w, ackResponse{Received: true, Status: "ignored"})
			return
		}
		if err := queue.Enqueue(paymentwebhook.Job{Gateway: event.Gateway, ExternalID: paymentID}); err != nil {
			logWarn(ctx, logg, "webhook.generic.dropped", map[string]any{
				"payment_external_id": paymentID,
				"error":               err.Error(),
			})
		}
		responses.WriteSuccess(w, ackResponse{Received: true, Status: "queued"})
	}
}

// accept guards a verified provider event and hands it to the dispatcher.
// A full queue releases the guard so the provider's retry is processed.
func accept(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, m *metrics.OrderMetrics, guard eventGuard, queue enqueuer, job paymentwebhook.Job) {
	if job.EventID != "" {
		duplicate, err := guard.CheckAndMark(ctx, job.EventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if duplicate {
			m.IncWebhook(job.Gateway, "duplicate")
			responses.WriteSuccess(w, ackResponse{Received: true, Status: "duplicate"})
			return
		}
	}

	if err := queue.Enqueue(job); err != nil {
		if job.EventID != "" {
			if relErr := guard.Release(context.WithoutCancel(ctx), job.EventID); relErr != nil && logg != nil {
				logg.Error(ctx, "webhook.guard.release_failed", relErr)
			}
		}
		code := pkgerrors.CodeDependency
		if !errors.Is(err, paymentwebhook.ErrQueueFull) && !errors.Is(err, paymentwebhook.ErrDispatcherClosed) {
			code = pkgerrors.CodeInternal
		}
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(code, err, "webhook not accepted"))
		return
	}
	responses.WriteSuccess(w, ackResponse{Received: true, Status: "queued"})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	return body, nil
}

func decodeGeneric(body []byte, event *paymentwebhook.GenericEvent) error {
	if err := json.Unmarshal(body, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook body")
	}
	return nil
}

func withFields(ctx context.Context, logg *logger.Logger, fields map[string]any) context.Context {
	if logg == nil {
		return ctx
	}
	return logg.WithFields(ctx, fields)
}

func logWarn(ctx context.Context, logg *logger.Logger, msg string, fields map[string]any) {
	if logg == nil {
		return
	}
	logg.Warn(logg.WithFields(ctx, fields), msg)
}
