package inventory

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

func seedVariantProduct(t *testing.T, conn *gorm.DB) (models.Product, models.ProductVariant, models.ProductVariant) {
	t.Helper()
	product := models.Product{Name: "Runner", PriceCents: 5000, StockTotal: 9, IsActive: true}
	require.NoError(t, conn.Create(&product).Error)
	red := models.ProductVariant{ProductID: product.ID, ColorCode: "#FF0000", ColorName: "red", Size: "38", Stock: 5}
	blue := models.ProductVariant{ProductID: product.ID, ColorCode: "#0000FF", ColorName: "blue", Size: "40", Stock: 4}
	require.NoError(t, conn.Create(&red).Error)
	require.NoError(t, conn.Create(&blue).Error)
	return product, red, blue
}

func reload(t *testing.T, conn *gorm.DB, productID uuid.UUID) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, conn.Preload("Variants").First(&p, "id = ?", productID).Error)
	return p
}

func variantStock(p models.Product, id uuid.UUID) int {
	for _, v := range p.Variants {
		if v.ID == id {
			return v.Stock
		}
	}
	return -1
}

func sumVariants(p models.Product) int {
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

func TestReduceThenRestoreVariantStock(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	product, red, _ := seedVariantProduct(t, conn)
	mgr := NewManager(logger.Nop(), nil)
	items := []Item{{ProductID: product.ID, ColorCode: "#ff0000", Size: "38", Quantity: 2}}

	var reduced []Movement
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		reduced, err = mgr.ReduceStock(ctx, tx, items)
		return err
	}))
	require.Len(t, reduced, 1)
	require.Equal(t, red.ID, *reduced[0].VariantID)
	require.Equal(t, 5, reduced[0].Before)
	require.Equal(t, 3, reduced[0].After)
	require.False(t, reduced[0].Clamped)

	after := reload(t, conn, product.ID)
	require.Equal(t, 3, variantStock(after, red.ID))
	require.Equal(t, 7, after.StockTotal)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		_, err := mgr.RestoreStock(ctx, tx, items)
		return err
	}))
	after = reload(t, conn, product.ID)
	require.Equal(t, 5, variantStock(after, red.ID))
	require.Equal(t, 9, after.StockTotal)
}

func TestUnresolvedLineKeepsVariantTotal(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	product, red, blue := seedVariantProduct(t, conn)
	mgr := NewManager(logger.Nop(), nil)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		_, err := mgr.ReduceStock(ctx, tx, []Item{{ProductID: product.ID, Quantity: 2}})
		return err
	}))
	after := reload(t, conn, product.ID)
	require.Equal(t, 5, variantStock(after, red.ID))
	require.Equal(t, 4, variantStock(after, blue.ID))
	require.Equal(t, sumVariants(after), after.StockTotal)
	require.Equal(t, 9, after.StockTotal)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		_, err := mgr.RestoreStock(ctx, tx, []Item{{ProductID: product.ID, Quantity: 3}})
		return err
	}))
	after = reload(t, conn, product.ID)
	require.Equal(t, 9, after.StockTotal)
}

func TestReduceRollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	product, red, _ := seedVariantProduct(t, conn)
	mgr := NewManager(nil, nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := mgr.ReduceStock(ctx, tx, []Item{{ProductID: product.ID, VariantID: &red.ID, Quantity: 1}}); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeVersionConflict, "simulated conflict")
	})
	require.Error(t, err)
	require.Equal(t, 5, variantStock(reload(t, conn, product.ID), red.ID))
}

func TestReduceClampsAndCountsOversell(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	product := models.Product{Name: "Cap", PriceCents: 1500, Stock: 3, StockTotal: 3, IsActive: true}
	require.NoError(t, conn.Create(&product).Error)

	reg := prometheus.NewRegistry()
	mgr := NewManager(logger.Nop(), metrics.NewOrderMetrics(reg))

	var movements []Movement
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		movements, err = mgr.ReduceStock(ctx, tx, []Item{{ProductID: product.ID, Quantity: 10}})
		return err
	}))
	require.True(t, Oversold(movements))
	require.Equal(t, 0, movements[0].After)

	got := reload(t, conn, product.ID)
	require.Equal(t, 0, got.Stock)
	require.Equal(t, 0, got.StockTotal)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "storefront_inventory_oversell_total" {
			found = true
			require.EqualValues(t, 1, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	require.True(t, found)
}

func TestValidateReportsEveryShortfall(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	product, _, _ := seedVariantProduct(t, conn)
	flat := models.Product{Name: "Socks", PriceCents: 500, Stock: 1, StockTotal: 1, IsActive: true}
	require.NoError(t, conn.Create(&flat).Error)
	mgr := NewManager(nil, nil)

	res, err := mgr.ValidateStockAvailability(ctx, conn, []Item{
		{ProductID: product.ID, ColorCode: "#FF0000", Size: "38", Quantity: 4},
		{ProductID: product.ID, ColorCode: "#FF0000", Size: "38", Quantity: 2},
		{ProductID: product.ID, ColorCode: "#00FF00", Size: "38", Quantity: 1},
		{ProductID: flat.ID, Quantity: 2},
		{ProductID: product.ID, ColorCode: "#0000FF", Size: "40", Quantity: 4},
	})
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.Len(t, res.InsufficientItems, 3)

	require.Equal(t, "#FF0000", res.InsufficientItems[0].ColorCode)
	require.Equal(t, 5, res.InsufficientItems[0].Available)
	require.Equal(t, 6, res.InsufficientItems[0].Requested)
	require.Equal(t, 0, res.InsufficientItems[1].Available)
	require.Equal(t, flat.ID, res.InsufficientItems[2].ProductID)
	require.Equal(t, 1, res.InsufficientItems[2].Available)

	ok, err := mgr.ValidateStockAvailability(ctx, conn, []Item{{ProductID: flat.ID, Quantity: 1}})
	require.NoError(t, err)
	require.True(t, ok.IsValid)
	require.Empty(t, ok.InsufficientItems)
}

func TestRandomMovementsKeepInvariants(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	product, red, blue := seedVariantProduct(t, conn)
	mgr := NewManager(nil, nil)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 40; i++ {
		variant := red
		if rng.Intn(2) == 0 {
			variant = blue
		}
		items := []Item{{ProductID: product.ID, VariantID: &variant.ID, Quantity: 1 + rng.Intn(4)}}
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			var err error
			if rng.Intn(3) == 0 {
				_, err = mgr.RestoreStock(ctx, tx, items)
			} else {
				_, err = mgr.ReduceStock(ctx, tx, items)
			}
			return err
		}))

		p := reload(t, conn, product.ID)
		for _, v := range p.Variants {
			require.GreaterOrEqual(t, v.Stock, 0)
		}
		require.Equal(t, sumVariants(p), p.StockTotal)
	}
}

func TestWasStockAlreadyReducedFollowsStatus(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	mgr := NewManager(nil, nil)

	order := models.Order{
		OrderNumber: "SF-TEST-1", UserID: uuid.New(), Status: enums.OrderStatusPending,
		FulfillmentType: enums.FulfillmentShipping, Gateway: enums.GatewayStripe, SubtotalCents: 100, TotalCents: 100,
	}
	require.NoError(t, conn.Create(&order).Error)

	reduced, err := mgr.WasStockAlreadyReduced(ctx, conn, order.ID)
	require.NoError(t, err)
	require.False(t, reduced)

	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", enums.OrderStatusShipped).Error)
	reduced, err = mgr.WasStockAlreadyReduced(ctx, conn, order.ID)
	require.NoError(t, err)
	require.True(t, reduced)

	_, err = mgr.WasStockAlreadyReduced(ctx, conn, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = mgr.ReduceStock(ctx, nil, nil)
	require.Error(t, err)
}

func TestItemsFromOrder(t *testing.T) {
	color := "#FF0000"
	size := "38"
	items := ItemsFromOrder([]models.OrderItem{{ProductID: uuid.New(), Quantity: 2, ColorCode: &color, Size: &size}})
	require.Equal(t, "#FF0000", items[0].ColorCode)
	require.Equal(t, "38", items[0].Size)
	require.Equal(t, 2, items[0].Quantity)
}
