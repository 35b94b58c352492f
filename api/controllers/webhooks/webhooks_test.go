package webhooks

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/square"
)

const (
	stripeSecret    = "whsec_test"
	squareSecret    = "sq_sig_key"
	notificationURL = "https://api.example.com/webhooks/square"
)

type recordingQueue struct {
	jobs []paymentwebhook.Job
	err  error
}

func (q *recordingQueue) Enqueue(job paymentwebhook.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type stripeSigner struct{}

func (stripeSigner) ConstructEvent(payload []byte, header string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, header, stripeSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

type squareSigner struct{}

func (squareSigner) VerifySignature(body []byte, header string) bool {
	return header != "" && header == square.Sign(squareSecret, notificationURL, body)
}

func newGuard(t *testing.T) *paymentwebhook.IdempotencyGuard {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	guard, err := paymentwebhook.NewIdempotencyGuard(client, time.Hour, "webhook")
	require.NoError(t, err)
	return guard
}

func signedStripe(t *testing.T, body string) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    stripeSecret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set(stripeSignatureHeader, signed.Header)
	return req
}

const intentSucceeded = `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`

func TestGenericAlwaysAnswers200(t *testing.T) {
	queue := &recordingQueue{}
	h := Generic(queue, nil)

	for _, body := range []string{
		`{"type":"payment.updated","paymentExternalId":"pay_1","gateway":"square"}`,
		`{"type":"order.created","paymentExternalId":"pay_2"}`,
		`not json`,
	} {
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, resp.Code, body)
	}
	require.Equal(t, []paymentwebhook.Job{{Gateway: "square", ExternalID: "pay_1"}}, queue.jobs)

	queue.err = paymentwebhook.ErrQueueFull
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"payment","paymentExternalId":"pay_3"}`)))
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestStripeVerifiesQueuesAndDeduplicates(t *testing.T) {
	queue := &recordingQueue{}
	h := Stripe(stripeSigner{}, newGuard(t), queue, nil, nil)

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, signedStripe(t, intentSucceeded))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, []paymentwebhook.Job{{Gateway: "stripe", ExternalID: "pi_1", EventID: "evt_1"}}, queue.jobs)

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, signedStripe(t, intentSucceeded))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"duplicate"`)
	require.Len(t, queue.jobs, 1)
}

func TestStripeRejectsBadSignature(t *testing.T) {
	queue := &recordingQueue{}
	h := Stripe(stripeSigner{}, newGuard(t), queue, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(intentSucceeded))
	req.Header.Set(stripeSignatureHeader, "t=1,v1=deadbeef")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(intentSucceeded)))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Empty(t, queue.jobs)
}

func TestStripeFullQueueReleasesEventForRetry(t *testing.T) {
	queue := &recordingQueue{err: paymentwebhook.ErrQueueFull}
	h := Stripe(stripeSigner{}, newGuard(t), queue, nil, nil)

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, signedStripe(t, intentSucceeded))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)

	queue.err = nil
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, signedStripe(t, intentSucceeded))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, queue.jobs, 1)
}

func TestStripeIgnoresUnrelatedEvents(t *testing.T) {
	queue := &recordingQueue{}
	h := Stripe(stripeSigner{}, newGuard(t), queue, nil, nil)

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, signedStripe(t, `{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"ignored"`)
	require.Empty(t, queue.jobs)
}

func TestSquareVerifiesAndQueues(t *testing.T) {
	queue := &recordingQueue{}
	h := Square(squareSigner{}, newGuard(t), queue, nil, nil)
	body := []byte(`{"event_id":"sq_evt_1","type":"payment.updated","data":{"type":"payment","id":"pay_9","object":{"payment":{"id":"pay_9","status":"COMPLETED"}}}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/square", bytes.NewReader(body))
	req.Header.Set(square.SignatureHeader, square.Sign(squareSecret, notificationURL, body))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, []paymentwebhook.Job{{Gateway: "square", ExternalID: "pay_9", EventID: "sq_evt_1"}}, queue.jobs)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/square", bytes.NewReader(body))
	req.Header.Set(square.SignatureHeader, "forged")
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Len(t, queue.jobs, 1)
}
