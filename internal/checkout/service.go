package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/internal/gateways"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notify"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const orderNumberPrefix = "SF-"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayRegistry interface {
	Get(name string) (gateways.Gateway, error)
}

type orderService interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RejectOrder(ctx context.Context, input orders.RejectInput) (*models.Order, error)
	ApplyPaymentStatus(ctx context.Context, input orders.PaymentUpdateInput) (*models.Order, orders.PaymentOutcome, error)
}

// Service turns a cart into a PENDING order plus a gateway preference.
type Service interface {
	CreateOrderAndPreference(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	ChargeCard(ctx context.Context, input ChargeCardInput) (*models.Order, orders.PaymentOutcome, error)
}

type ServiceParams struct {
	Repo       Repository
	OrdersRepo orders.Repository
	Orders     orderService
	Tx         txRunner
	Inventory  inventory.Manager
	Pricing    pricing.Service
	Gateways   gatewayRegistry
	Notifier   notify.Notifier
	Logger     *logger.Logger
	Currency   string
	SuccessURL string
	CancelURL  string
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	orders     orderService
	tx         txRunner
	inventory  inventory.Manager
	pricing    pricing.Service
	gateways   gatewayRegistry
	notifier   notify.Notifier
	logg       *logger.Logger
	currency   string
	successURL string
	cancelURL  string
}

// NewService builds the checkout service.
func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, fmt.Errorf("checkout repository required")
	case p.OrdersRepo == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case p.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Inventory == nil:
		return nil, fmt.Errorf("inventory manager required")
	case p.Pricing == nil:
		return nil, fmt.Errorf("pricing service required")
	case p.Gateways == nil:
		return nil, fmt.Errorf("gateway registry required")
	}
	if p.Notifier == nil {
		p.Notifier = notify.Noop
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if strings.TrimSpace(p.Currency) == "" {
		p.Currency = "USD"
	}
	return &service{
		repo:       p.Repo,
		ordersRepo: p.OrdersRepo,
		orders:     p.Orders,
		tx:         p.Tx,
		inventory:  p.Inventory,
		pricing:    p.Pricing,
		gateways:   p.Gateways,
		notifier:   p.Notifier,
		logg:       p.Logger,
		currency:   strings.ToUpper(p.Currency),
		successURL: p.SuccessURL,
		cancelURL:  p.CancelURL,
	}, nil
}

func (s *service) CreateOrderAndPreference(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.FulfillmentType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid fulfillment type %q", input.FulfillmentType)
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	gw, err := s.gateways.Get(input.Gateway)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithUserID(ctx, input.UserID.String())

	products, err := s.loadProducts(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	stockItems, pricingLines, err := resolveItems(input.Items, products)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricing.PriceCheckout(ctx, pricing.CheckoutInput{
		Lines:      pricingLines,
		CouponCode: input.CouponCode,
		Gateway:    gw.Name(),
	})
	if err != nil {
		return nil, err
	}

	order := s.buildOrder(input, gw.Name(), stockItems, products, quote)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		availability, err := s.inventory.ValidateStockAvailability(ctx, tx, stockItems)
		if err != nil {
			return err
		}
		if !availability.IsValid {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
				"insufficient_items": availability.InsufficientItems,
			})
		}
		return s.ordersRepo.WithTx(tx).CreateOrder(ctx, order)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	pref, err := gw.CreatePreference(ctx, gateways.PreferenceInput{
		Order:      order,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
		Email:      input.Email,
	})
	if err != nil {
		s.abandon(ctx, order)
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create payment preference")
	}
	if err := s.ordersRepo.UpdatePayment(ctx, order.Payment.ID, map[string]any{"preference_id": pref.ID}); err != nil {
		s.abandon(ctx, order)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment preference")
	}
	order.Payment.PreferenceID = &pref.ID

	if err := s.notifier.OrderCreated(ctx, order); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "event", string(notify.EventOrderCreated)), "publish notification", err)
	}
	s.logg.Info(ctx, "order created")

	return &CreateOrderResult{
		Order:        order,
		CheckoutURL:  pref.CheckoutURL,
		PreferenceID: pref.ID,
		Quote:        quote,
	}, nil
}

// abandon rejects an order whose preference could not be created so it never
// lingers as an unpayable PENDING order.
func (s *service) abandon(ctx context.Context, order *models.Order) {
	if _, err := s.orders.RejectOrder(ctx, orders.RejectInput{
		OrderID: order.ID,
		Reason:  "payment preference failed",
		Actor:   audit.SystemActor,
	}); err != nil {
		s.logg.Error(ctx, "reject order after preference failure", err)
	}
}

func (s *service) ChargeCard(ctx context.Context, input ChargeCardInput) (*models.Order, orders.PaymentOutcome, error) {
	if strings.TrimSpace(input.SourceID) == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "source_id required")
	}
	order, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, "", err
	}
	if input.UserID != uuid.Nil && order.UserID != input.UserID {
		return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, "", pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s", order.Status)
	}

	gw, err := s.gateways.Get(string(order.Gateway))
	if err != nil {
		return nil, "", err
	}
	charger, ok := gw.(gateways.CardCharger)
	if !ok {
		return nil, "", pkgerrors.Newf(pkgerrors.CodeValidation, "gateway %s does not accept card tokens", gw.Name())
	}
	info, err := charger.ChargeCard(ctx, order, input.SourceID)
	if err != nil {
		return nil, "", err
	}
	return s.orders.ApplyPaymentStatus(ctx, orders.PaymentUpdateInput{
		OrderID:           order.ID,
		Gateway:           gw.Name(),
		ExternalPaymentID: info.ExternalID,
		Status:            info.Status,
		GatewayStatus:     info.GatewayStatus,
		AmountCents:       info.AmountCents,
		Currency:          info.Currency,
		RawPayload:        info.Raw,
		Actor:             "card:" + string(gw.Name()),
	})
}

func (s *service) loadProducts(ctx context.Context, items []ItemInput) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := map[uuid.UUID]struct{}{}
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	products, err := s.repo.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	return products, nil
}

// resolveItems checks each line against the catalog and pins its variant.
func resolveItems(items []ItemInput, products map[uuid.UUID]models.Product) ([]inventory.Item, []pricing.CheckoutLine, error) {
	stock := make([]inventory.Item, 0, len(items))
	lines := make([]pricing.CheckoutLine, 0, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "item %d: quantity must be positive", i)
		}
		product, ok := products[item.ProductID]
		if !ok || !product.IsActive {
			return nil, nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", item.ProductID)
		}
		unit := inventory.Item{ProductID: product.ID, Quantity: item.Quantity}
		if len(product.Variants) > 0 {
			variant, err := pickVariant(product, item)
			if err != nil {
				return nil, nil, err
			}
			id := variant.ID
			unit.VariantID = &id
			unit.ColorCode = variant.ColorCode
			unit.Size = variant.Size
		}
		stock = append(stock, unit)
		lines = append(lines, pricing.CheckoutLine{
			ProductID:      product.ID,
			CategoryID:     product.CategoryID,
			VariantID:      unit.VariantID,
			Quantity:       item.Quantity,
			BasePriceCents: product.PriceCents,
		})
	}
	return stock, lines, nil
}

func pickVariant(product models.Product, item ItemInput) (*models.ProductVariant, error) {
	for i := range product.Variants {
		v := &product.Variants[i]
		if item.VariantID != nil {
			if v.ID == *item.VariantID {
				return v, nil
			}
			continue
		}
		if strings.EqualFold(v.ColorCode, strings.TrimSpace(item.ColorCode)) && strings.EqualFold(v.Size, strings.TrimSpace(item.Size)) {
			return v, nil
		}
	}
	if item.VariantID == nil && strings.TrimSpace(item.ColorCode) == "" {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "product %s requires a color and size", product.ID)
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "variant not found for product %s", product.ID).WithDetails(map[string]any{
		"color_code": item.ColorCode,
		"size":       item.Size,
	})
}

func (s *service) buildOrder(input CreateOrderInput, gateway enums.Gateway, stock []inventory.Item, products map[uuid.UUID]models.Product, quote *pricing.CheckoutQuote) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     orderNumberPrefix + ulid.Make().String(),
		UserID:          input.UserID,
		Status:          enums.OrderStatusPending,
		FulfillmentType: input.FulfillmentType,
		Gateway:         gateway,
		Currency:        s.currency,
		SubtotalCents:   quote.Cart.SubtotalCents,
		DiscountCents:   quote.Cart.DiscountCents(),
		GatewayFeeCents: quote.GatewayFees.TotalCents,
		TotalCents:      quote.TotalCents,
		Version:         1,
		Payment:         &models.Payment{Gateway: gateway, Status: enums.PaymentStatusPending},
	}
	if quote.Coupon != nil {
		code := quote.Coupon.Code
		order.CouponCode = &code
	}

	for i, line := range quote.Cart.Lines {
		unit := stock[i]
		item := models.OrderItem{
			ProductID:          line.ProductID,
			VariantID:          unit.VariantID,
			ProductName:        products[line.ProductID].Name,
			Quantity:           line.Quantity,
			UnitPriceCents:     line.UnitPriceCents(),
			OriginalPriceCents: line.OriginalUnitPriceCents,
			DiscountCents:      line.PromotionDiscountCents + line.CouponDiscountCents,
			PromotionID:        line.PromotionID,
		}
		if unit.ColorCode != "" {
			color, size := unit.ColorCode, unit.Size
			item.ColorCode = &color
			item.Size = &size
		}
		if line.PromotionName != "" {
			name, kind := line.PromotionName, line.PromotionType
			item.PromotionName = &name
			item.PromotionType = &kind
		}
		order.Items = append(order.Items, item)
	}
	return order
}
