package square

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestEnsureIdempotencyKey(t *testing.T) {
	c := &Client{}
	if got := c.ensureIdempotencyKey("pref", "order-123"); got != "order-123" {
		t.Fatalf("expected provided key, got %q", got)
	}
	if got := c.ensureIdempotencyKey("prefix", ""); !strings.HasPrefix(got, "prefix-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("source_token", "cnon:abc"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusPaymentRequired, pkgerrors.CodeGateway},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapSquareError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		status   int
		payload  string
		wantCode pkgerrors.Code
	}{
		{
			name:     "authentication error",
			status:   http.StatusUnauthorized,
			payload:  `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			wantCode: pkgerrors.CodeUnauthorized,
		},
		{
			name:     "idempotency key reused",
			status:   http.StatusConflict,
			payload:  `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			wantCode: pkgerrors.CodeIdempotency,
		},
		{
			name:     "card declined",
			status:   http.StatusBadRequest,
			payload:  `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED"}]}`,
			wantCode: pkgerrors.CodeGateway,
		},
	}
	for _, tt := range table {
		err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
		mapped := c.mapSquareError(err, "operation")
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}

	if code := pkgerrors.As(c.mapSquareError(errors.New("dial tcp"), "get payment")).Code(); code != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code for transport error, got %s", code)
	}
}

func TestExtractSquareErrors(t *testing.T) {
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	got := extractSquareErrors(sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload)))
	if len(got) != 1 {
		t.Fatalf("expected 1 error, got %d", len(got))
	}
	if got[0].GetCode() != sq.ErrorCodeBadRequest {
		t.Fatalf("unexpected error code %s", got[0].GetCode())
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"payment.updated"}`)
	url := "https://api.example.com/api/webhooks/square"
	c := &Client{webhookSecret: "whsec", notificationURL: url}

	sig := Sign("whsec", url, body)
	if !c.VerifySignature(body, sig) {
		t.Fatalf("expected signature to verify")
	}
	if c.VerifySignature([]byte(`{"type":"tampered"}`), sig) {
		t.Fatalf("tampered body must not verify")
	}
	if c.VerifySignature(body, "") {
		t.Fatalf("missing header must not verify")
	}
	if (&Client{webhookSecret: "whsec", notificationURL: "https://other"}).VerifySignature(body, sig) {
		t.Fatalf("signature is bound to the notification url")
	}
}

func TestToPayment(t *testing.T) {
	id := "pay_1"
	status := StatusCompleted
	ref := "order-1"
	amount := int64(4200)
	currency := sq.Currency("USD")
	p := toPayment(&sq.Payment{ID: &id, Status: &status, ReferenceID: &ref, AmountMoney: &sq.Money{Amount: &amount, Currency: &currency}})
	if p.ID != id || p.Status != status || p.ReferenceID != ref || p.AmountCents != amount || p.Currency != "USD" {
		t.Fatalf("unexpected payment %+v", p)
	}
	if len(p.Raw) == 0 {
		t.Fatalf("raw payload missing")
	}
	if empty := toPayment(nil); empty.ID != "" {
		t.Fatalf("nil payment should map to empty")
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != sandboxEnv {
		t.Fatalf("expected sandbox default, got %q %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatalf("expected error for unknown env")
	}
}
