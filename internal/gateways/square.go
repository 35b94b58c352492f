package gateways

import (
	"context"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/square"
)

type squareAPI interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*square.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*square.Payment, error)
}

// Square collects the card on the storefront's hosted card form and charges the
// resulting token, so a preference is only a link to that form.
type Square struct {
	api         squareAPI
	cardFormURL string
}

func NewSquare(api squareAPI, cardFormURL string) *Square {
	return &Square{api: api, cardFormURL: cardFormURL}
}

func (s *Square) Name() enums.Gateway { return enums.GatewaySquare }

func (s *Square) CreatePreference(_ context.Context, in PreferenceInput) (*Preference, error) {
	if in.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	u, err := url.Parse(s.cardFormURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse card form url")
	}
	q := u.Query()
	q.Set("order", in.Order.ID.String())
	u.RawQuery = q.Encode()
	return &Preference{ID: "sq-" + in.Order.ID.String(), CheckoutURL: u.String()}, nil
}

// ChargeCard charges a card token for the order total. The idempotency key is
// derived from the order so a retried submit cannot double charge.
func (s *Square) ChargeCard(ctx context.Context, order *models.Order, sourceID string) (*PaymentInfo, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if strings.TrimSpace(sourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source_id required")
	}
	payment, err := s.api.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    order.TotalCents,
		Currency:       order.Currency,
		SourceID:       sourceID,
		IdempotencyKey: "order-" + order.ID.String(),
		ReferenceID:    order.ID.String(),
		Note:           "Order " + order.OrderNumber,
	})
	if err != nil {
		return nil, err
	}
	return squareInfo(payment), nil
}

func (s *Square) GetPayment(ctx context.Context, externalID string) (*PaymentInfo, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.api.GetPayment(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return squareInfo(payment), nil
}

func squareInfo(p *square.Payment) *PaymentInfo {
	return &PaymentInfo{
		ExternalID:    p.ID,
		OrderID:       parseOrderID(p.ReferenceID),
		Status:        MapSquareStatus(p.Status),
		GatewayStatus: p.Status,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		Raw:           p.Raw,
	}
}

// MapSquareStatus reduces a Square payment status to PENDING, APPROVED or REJECTED.
// APPROVED at Square means authorized but not captured.
func MapSquareStatus(status string) enums.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case square.StatusCompleted:
		return enums.PaymentStatusApproved
	case square.StatusCanceled, square.StatusFailed:
		return enums.PaymentStatusRejected
	default:
		return enums.PaymentStatusPending
	}
}
