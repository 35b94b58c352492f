package pricing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestServicePriceCheckoutEndToEnd(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)

	shoes := uuid.New()
	shirt := uuid.New()
	apparel := uuid.New()

	require.NoError(t, conn.Create(&models.PriceRule{
		Name: "apparel markdown", Scope: enums.RuleScopeCategory, TargetID: &apparel,
		Type: enums.RuleTypeDiscount, AmountType: enums.AmountTypeFixed, Value: decimal.NewFromInt(500), Active: true,
	}).Error)
	require.NoError(t, conn.Create(&models.Promotion{
		Name: "2x1 shoes", Type: enums.PromotionTypeBundle, ProductID: &shoes, BuyQuantity: 2, PayQuantity: 1, Active: true,
	}).Error)
	require.NoError(t, conn.Create(&models.Coupon{
		Code: "SAVE10", Type: enums.CouponTypePercentage, PercentOff: decimal.NewFromInt(10), Active: true,
	}).Error)
	require.NoError(t, conn.Create(&models.GatewayFee{
		Gateway: enums.GatewayStripe, FixedFeeCents: 30, PercentFee: decimal.NewFromInt(1), Active: true,
	}).Error)

	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	quote, err := svc.PriceCheckout(ctx, CheckoutInput{
		Lines: []CheckoutLine{
			{ProductID: shoes, Quantity: 2, BasePriceCents: 1000},
			{ProductID: shirt, CategoryID: &apparel, Quantity: 1, BasePriceCents: 3500},
		},
		CouponCode: "save10",
		Gateway:    enums.GatewayStripe,
	})
	require.NoError(t, err)

	require.EqualValues(t, 3000, quote.Cart.Lines[1].OriginalUnitPriceCents)
	require.Len(t, quote.Cart.Lines[1].AppliedRules, 1)
	require.EqualValues(t, 1000, quote.Cart.PromotionDiscountCents)
	require.EqualValues(t, 300, quote.Cart.CouponDiscountCents)
	require.EqualValues(t, 3700, quote.Cart.TotalCents)
	require.EqualValues(t, 67, quote.GatewayFees.TotalCents)
	require.EqualValues(t, 3767, quote.TotalCents)
	require.NotNil(t, quote.Coupon)
}

func TestServiceUnknownCouponIsValidationError(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	_, err = svc.PriceCheckout(context.Background(), CheckoutInput{
		Lines:      []CheckoutLine{{ProductID: uuid.New(), Quantity: 1, BasePriceCents: 100}},
		CouponCode: "NOPE",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceQuote(t *testing.T) {
	conn := dbtest.Open(t)
	productID := uuid.New()
	require.NoError(t, conn.Create(&models.PriceRule{
		Name: "import duty", Scope: enums.RuleScopeProduct, TargetID: &productID,
		Type: enums.RuleTypeCharge, AmountType: enums.AmountTypePercentage, Value: decimal.NewFromInt(20), Active: true,
	}).Error)
	require.NoError(t, conn.Create(&models.PriceRule{
		Name: "disabled", Scope: enums.RuleScopeGlobal,
		Type: enums.RuleTypeDiscount, AmountType: enums.AmountTypeFixed, Value: decimal.NewFromInt(100), Active: false,
	}).Error)

	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	res, err := svc.Quote(context.Background(), QuoteInput{ProductID: productID, BasePriceCents: 1000, Gateway: enums.GatewaySquare})
	require.NoError(t, err)
	require.EqualValues(t, 1200, res.FinalPriceCents)
	require.Len(t, res.AppliedRules, 1)
	require.Nil(t, res.GatewayFees)

	_, err = svc.Quote(context.Background(), QuoteInput{BasePriceCents: 1000})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}
