package gateways

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// PreferenceInput is what a gateway needs to open a payment for an order.
type PreferenceInput struct {
	Order      *models.Order
	SuccessURL string
	CancelURL  string
	Email      string
}

// Preference is the gateway-side handle of a pending payment.
type Preference struct {
	ID          string
	CheckoutURL string
}

// PaymentInfo is a gateway payment normalized to the storefront's three statuses.
type PaymentInfo struct {
	ExternalID    string
	OrderID       uuid.UUID
	Status        enums.PaymentStatus
	GatewayStatus string
	AmountCents   int64
	Currency      string
	Raw           json.RawMessage
}

// Gateway is a payment provider integration.
type Gateway interface {
	Name() enums.Gateway
	CreatePreference(ctx context.Context, in PreferenceInput) (*Preference, error)
	GetPayment(ctx context.Context, externalID string) (*PaymentInfo, error)
}

// CardCharger is implemented by gateways that charge a tokenized card directly.
type CardCharger interface {
	ChargeCard(ctx context.Context, order *models.Order, sourceID string) (*PaymentInfo, error)
}

// Registry resolves gateways by name.
type Registry struct {
	gateways map[enums.Gateway]Gateway
	fallback enums.Gateway
}

// NewRegistry registers gws. fallback is used when a caller does not name a gateway.
func NewRegistry(fallback enums.Gateway, gws ...Gateway) (*Registry, error) {
	r := &Registry{gateways: make(map[enums.Gateway]Gateway, len(gws)), fallback: fallback}
	for _, gw := range gws {
		if gw == nil {
			continue
		}
		r.gateways[gw.Name()] = gw
	}
	if len(r.gateways) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "at least one payment gateway is required")
	}
	if _, ok := r.gateways[fallback]; !ok {
		names := r.Names()
		r.fallback = names[0]
	}
	return r, nil
}

// Get returns the gateway registered under name, or the fallback for an empty name.
func (r *Registry) Get(name string) (Gateway, error) {
	key := enums.Gateway(strings.ToLower(strings.TrimSpace(name)))
	if key == "" {
		key = r.fallback
	}
	gw, ok := r.gateways[key]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payment gateway %q", name).WithDetails(map[string]any{
			"supported": r.Names(),
		})
	}
	return gw, nil
}

// Names lists the registered gateways in a stable order.
func (r *Registry) Names() []enums.Gateway {
	out := make([]enums.Gateway, 0, len(r.gateways))
	for name := range r.gateways {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func parseOrderID(raw string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil
	}
	return id
}
