package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplyft/backend/pkg/enums"
)

// Payment records how an order was (or will be) settled.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Method          enums.PaymentMethod `gorm:"column:method;not null"`
	Status          enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	PaidFromBalance bool                `gorm:"column:paid_from_balance;not null;default:false"`
	CardID          *uuid.UUID          `gorm:"column:card_id;type:uuid"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
