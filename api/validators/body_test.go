package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type statusBody struct {
	Status      string `json:"status" validate:"required,order_status"`
	Fulfillment string `json:"fulfillment" validate:"omitempty,fulfillment"`
}

func TestDecodeJSONBodyValidatesEnums(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"SHIPPED","fulfillment":"pickup"}`))
	var body statusBody
	require.NoError(t, DecodeJSONBody(req, &body))
	require.Equal(t, "SHIPPED", body.Status)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"LOST"}`))
	err := DecodeJSONBody(req, &statusBody{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	require.Equal(t, "must be a known order status", details["status"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"SHIPPED","price":1}`))
	err := DecodeJSONBody(req, &statusBody{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPathUUID(t *testing.T) {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderID", "not-a-uuid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	_, err := PathUUID(req, "orderID")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRequiredQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?gateway=%20stripe%20", nil)
	got, err := RequiredQuery(req, "gateway", 32)
	require.NoError(t, err)
	require.Equal(t, "stripe", got)

	_, err = RequiredQuery(req, "payment_id", 32)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
