package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orderstate"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Item is one order line as seen by inventory. VariantID wins over ColorCode+Size
// when both are present.
type Item struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	ColorCode string     `json:"color_code,omitempty"`
	Size      string     `json:"size,omitempty"`
	Quantity  int        `json:"quantity"`
}

// ItemsFromOrder converts persisted order lines.
func ItemsFromOrder(lines []models.OrderItem) []Item {
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		item := Item{ProductID: line.ProductID, VariantID: line.VariantID, Quantity: line.Quantity}
		if line.ColorCode != nil {
			item.ColorCode = *line.ColorCode
		}
		if line.Size != nil {
			item.Size = *line.Size
		}
		items = append(items, item)
	}
	return items
}

// Shortfall describes one line that cannot be served.
type Shortfall struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	ColorCode   string    `json:"color_code,omitempty"`
	Size        string    `json:"size,omitempty"`
	Available   int       `json:"available"`
	Requested   int       `json:"requested"`
}

type Availability struct {
	IsValid           bool        `json:"is_valid"`
	InsufficientItems []Shortfall `json:"insufficient_items"`
}

// Movement is the stock change applied to one line. Clamped is set when a
// reduction asked for more than was on hand.
type Movement struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity"`
	Before    int        `json:"before"`
	After     int        `json:"after"`
	Clamped   bool       `json:"clamped,omitempty"`
}

// Oversold reports whether any movement had to clamp at zero.
func Oversold(movements []Movement) bool {
	for _, m := range movements {
		if m.Clamped {
			return true
		}
	}
	return false
}

// Manager validates and mutates stock. Every call runs on the caller's transaction
// so stock changes commit or roll back together with the order update.
type Manager interface {
	ValidateStockAvailability(ctx context.Context, tx *gorm.DB, items []Item) (*Availability, error)
	ReduceStock(ctx context.Context, tx *gorm.DB, items []Item) ([]Movement, error)
	RestoreStock(ctx context.Context, tx *gorm.DB, items []Item) ([]Movement, error)
	WasStockAlreadyReduced(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}

type manager struct {
	logg    *logger.Logger
	metrics *metrics.OrderMetrics
}

// NewManager returns the inventory manager. Both collaborators are optional.
func NewManager(logg *logger.Logger, m *metrics.OrderMetrics) Manager {
	if logg == nil {
		logg = logger.Nop()
	}
	return &manager{logg: logg, metrics: m}
}

var errTxRequired = pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory operation")

type stockTarget struct {
	product *models.Product
	variant *models.ProductVariant
}

func (t stockTarget) available() int {
	if t.variant != nil {
		return t.variant.Stock
	}
	return t.product.Stock
}

func (m *manager) resolve(ctx context.Context, tx *gorm.DB, item Item) (stockTarget, error) {
	var product models.Product
	if err := tx.WithContext(ctx).Preload("Variants").First(&product, "id = ?", item.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stockTarget{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", item.ProductID)
		}
		return stockTarget{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	target := stockTarget{product: &product}

	if item.VariantID != nil {
		for i := range product.Variants {
			if product.Variants[i].ID == *item.VariantID {
				target.variant = &product.Variants[i]
				return target, nil
			}
		}
		return stockTarget{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "variant %s not found", *item.VariantID)
	}
	if len(product.Variants) == 0 || strings.TrimSpace(item.ColorCode) == "" {
		return target, nil
	}
	for i := range product.Variants {
		v := &product.Variants[i]
		if strings.EqualFold(v.ColorCode, strings.TrimSpace(item.ColorCode)) && strings.EqualFold(v.Size, strings.TrimSpace(item.Size)) {
			target.variant = v
			return target, nil
		}
	}
	return stockTarget{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "variant %s/%s not found", item.ColorCode, item.Size)
}

// ValidateStockAvailability checks every line and reports all shortfalls at once.
// Quantities for the same stock unit across lines are summed.
func (m *manager) ValidateStockAvailability(ctx context.Context, tx *gorm.DB, items []Item) (*Availability, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	result := &Availability{IsValid: true, InsufficientItems: []Shortfall{}}
	requested := map[string]int{}

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		target, err := m.resolve(ctx, tx, item)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				result.IsValid = false
				result.InsufficientItems = append(result.InsufficientItems, Shortfall{
					ProductID: item.ProductID,
					ColorCode: item.ColorCode,
					Size:      item.Size,
					Requested: item.Quantity,
				})
				continue
			}
			return nil, err
		}

		key := target.product.ID.String()
		if target.variant != nil {
			key = target.variant.ID.String()
		}
		requested[key] += item.Quantity
		if requested[key] <= target.available() {
			continue
		}
		result.IsValid = false
		shortfall := Shortfall{
			ProductID:   target.product.ID,
			ProductName: target.product.Name,
			Available:   target.available(),
			Requested:   requested[key],
		}
		if target.variant != nil {
			shortfall.ColorCode = target.variant.ColorCode
			shortfall.Size = target.variant.Size
		}
		result.InsufficientItems = append(result.InsufficientItems, shortfall)
	}
	return result, nil
}

func (m *manager) ReduceStock(ctx context.Context, tx *gorm.DB, items []Item) ([]Movement, error) {
	return m.apply(ctx, tx, items, -1)
}

func (m *manager) RestoreStock(ctx context.Context, tx *gorm.DB, items []Item) ([]Movement, error) {
	return m.apply(ctx, tx, items, 1)
}

func (m *manager) apply(ctx context.Context, tx *gorm.DB, items []Item, sign int) ([]Movement, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	movements := make([]Movement, 0, len(items))
	touched := map[uuid.UUID]struct{}{}

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		target, err := m.resolve(ctx, tx, item)
		if err != nil {
			return nil, err
		}

		mv := Movement{ProductID: target.product.ID, Quantity: item.Quantity, Before: target.available()}
		if target.variant != nil {
			id := target.variant.ID
			mv.VariantID = &id
			if err := adjustVariant(ctx, tx, id, item.Quantity, sign); err != nil {
				return nil, err
			}
		} else if err := adjustProduct(ctx, tx, target.product.ID, item.Quantity, sign, len(target.product.Variants) > 0); err != nil {
			return nil, err
		}
		if len(target.product.Variants) > 0 {
			touched[target.product.ID] = struct{}{}
		}

		if sign < 0 {
			mv.After = mv.Before - item.Quantity
			if mv.After < 0 {
				mv.After = 0
				mv.Clamped = true
				m.reportOversell(ctx, item, mv)
			}
		} else {
			mv.After = mv.Before + item.Quantity
		}
		movements = append(movements, mv)
	}

	for productID := range touched {
		if err := syncProductStockFromVariants(ctx, tx, productID); err != nil {
			return nil, err
		}
	}
	return movements, nil
}

func (m *manager) reportOversell(ctx context.Context, item Item, mv Movement) {
	ctx = m.logg.WithFields(ctx, map[string]any{
		"product_id": item.ProductID.String(),
		"requested":  item.Quantity,
		"available":  mv.Before,
	})
	m.logg.Warn(ctx, "stock reduction clamped at zero")
	m.metrics.IncOversell(item.ProductID.String())
}

func adjustVariant(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty, sign int) error {
	query := `UPDATE product_variants SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	args := []any{qty, variantID}
	if sign < 0 {
		query = `UPDATE product_variants
			SET stock = CASE WHEN stock >= ? THEN stock - ? ELSE 0 END,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`
		args = []any{qty, qty, variantID}
	}
	if err := tx.WithContext(ctx).Exec(query, args...).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update variant stock")
	}
	return nil
}

// adjustProduct mutates flat stock. stock_total mirrors it only for products
// without variants; otherwise it stays the variant sum.
func adjustProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty, sign int, hasVariants bool) error {
	stock := "stock + ?"
	args := []any{qty}
	if sign < 0 {
		stock = "CASE WHEN stock >= ? THEN stock - ? ELSE 0 END"
		args = []any{qty, qty}
	}
	set := "stock = " + stock
	if !hasVariants {
		set += ", stock_total = " + stock
		args = append(args, args...)
	}
	query := "UPDATE products SET " + set + ", updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	args = append(args, productID)
	if err := tx.WithContext(ctx).Exec(query, args...).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product stock")
	}
	return nil
}

func syncProductStockFromVariants(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	err := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_total = (SELECT COALESCE(SUM(stock), 0) FROM product_variants WHERE product_id = ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, productID, productID).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync product stock total")
	}
	return nil
}

// WasStockAlreadyReduced derives the answer from the order status: stock is taken
// exactly when the order sits in a confirmed status.
func (m *manager) WasStockAlreadyReduced(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}
	var status string
	err := tx.WithContext(ctx).Model(&models.Order{}).Select("status").Where("id = ?", orderID).Scan(&status).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order status")
	}
	if status == "" {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return orderstate.IsConfirmed(enums.OrderStatus(status)), nil
}
