package models

import (
	"time"

	"github.com/google/uuid"
)

// Delivery is opened by the ship transition and closed on delivery.
type Delivery struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Carrier        *string    `gorm:"column:carrier"`
	TrackingNumber *string    `gorm:"column:tracking_number"`
	ShippedAt      *time.Time `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time `gorm:"column:delivered_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
