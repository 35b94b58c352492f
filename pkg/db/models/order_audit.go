package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderAudit is an append-only record of one successful status transition.
type OrderAudit struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ChangedBy      string            `gorm:"column:changed_by;not null"`
	Action         string            `gorm:"column:action;not null"`
	PreviousStatus enums.OrderStatus `gorm:"column:previous_status;type:text;not null"`
	NewStatus      enums.OrderStatus `gorm:"column:new_status;type:text;not null"`
	Metadata       json.RawMessage   `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (a *OrderAudit) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
