package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	// SignatureHeader carries Stripe's webhook signature.
	SignatureHeader = "Stripe-Signature"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type intentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// LineItem is one priced line of a hosted checkout.
type LineItem struct {
	Name            string
	UnitAmountCents int64
	Quantity        int64
}

// CheckoutSessionParams describes the hosted checkout for one order.
type CheckoutSessionParams struct {
	OrderID     string
	OrderNumber string
	Currency    string
	TotalCents  int64
	Items       []LineItem
	SuccessURL  string
	CancelURL   string
	Email       string
}

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	sessions      sessionAPI
	intents       intentAPI
	environment   string
	signingSecret string
	logger        *logger.Logger
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := client.New(apiKey, nil)
	if logg == nil {
		logg = logger.Nop()
	}
	logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))

	return &Client{
		sessions:      api.CheckoutSessions,
		intents:       api.PaymentIntents,
		environment:   env,
		signingSecret: signingSecret,
		logger:        logg,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateCheckoutSession opens a hosted checkout whose payment intent carries the order id.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.OrderID),
		LineItems:         lineItems(in),
		Metadata:          orderMetadata(in),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: orderMetadata(in),
		},
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + in.OrderID)

	session, err := c.sessions.New(params)
	if err != nil {
		c.logger.Error(c.logger.WithOrderID(ctx, in.OrderID), "stripe create checkout session", err)
		return nil, mapStripeError(err, "create checkout session")
	}
	c.logger.Info(c.logger.WithFields(ctx, map[string]any{
		"order_id":   in.OrderID,
		"session_id": session.ID,
	}), "stripe checkout session created")
	return session, nil
}

// GetCheckoutSession loads a session with its payment intent expanded.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	session, err := c.sessions.Get(sessionID, params)
	if err != nil {
		return nil, mapStripeError(err, "get checkout session")
	}
	return session, nil
}

// GetPaymentIntent fetches the authoritative state of a payment intent.
func (c *Client) GetPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := c.intents.Get(intentID, params)
	if err != nil {
		return nil, mapStripeError(err, "get payment intent")
	}
	return intent, nil
}

// ConstructEvent verifies the signature header and decodes the event.
func (c *Client) ConstructEvent(payload []byte, header string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header, c.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature")
	}
	return event, nil
}

// lineItems mirrors the order lines when they add up to the total, otherwise it
// charges a single summary line so discounts and fees are never lost.
func lineItems(in CheckoutSessionParams) []*stripe.CheckoutSessionLineItemParams {
	currency := strings.ToLower(defaultString(in.Currency, "usd"))
	var sum int64
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(in.Items))
	for _, item := range in.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		sum += item.UnitAmountCents * qty
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(qty),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}
	if len(items) > 0 && sum == in.TotalCents {
		return items
	}
	return []*stripe.CheckoutSessionLineItemParams{{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(in.TotalCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String("Order " + in.OrderNumber),
			},
		},
	}}
}

func orderMetadata(in CheckoutSessionParams) map[string]string {
	return map[string]string{
		"order_id":     in.OrderID,
		"order_number": in.OrderNumber,
	}
}

func mapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := pkgerrors.CodeDependency
		switch {
		case stripeErr.Type == stripe.ErrorTypeCard:
			code = pkgerrors.CodeGateway
		case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
			code = pkgerrors.CodeUnauthorized
		case stripeErr.HTTPStatusCode == http.StatusNotFound:
			code = pkgerrors.CodeNotFound
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
			code = pkgerrors.CodeRateLimit
		case stripeErr.Type == stripe.ErrorTypeIdempotency:
			code = pkgerrors.CodeIdempotency
		case stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500:
			code = pkgerrors.CodeValidation
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("stripe %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
