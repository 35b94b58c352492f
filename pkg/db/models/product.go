package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product carries either flat stock or, when variants exist, a derived stock total.
type Product struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID *uuid.UUID       `gorm:"column:category_id;type:uuid"`
	Name       string           `gorm:"column:name;not null"`
	PriceCents int64            `gorm:"column:price_cents;not null"`
	Stock      int              `gorm:"column:stock;not null;default:0"`
	StockTotal int              `gorm:"column:stock_total;not null;default:0"`
	IsActive   bool             `gorm:"column:is_active;not null"`
	Variants   []ProductVariant `gorm:"foreignKey:ProductID"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductVariant is a (color, size) stock keeping unit.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	ColorCode string    `gorm:"column:color_code;not null"`
	ColorName string    `gorm:"column:color_name"`
	Size      string    `gorm:"column:size;not null"`
	Stock     int       `gorm:"column:stock;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
