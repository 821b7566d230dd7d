package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplyft/backend/pkg/enums"
)

// SavedCard is a stored-value card. Only the last four digits survive
// card capture; the full number is never persisted.
type SavedCard struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Last4       string          `gorm:"column:last4;not null"`
	Holder      string          `gorm:"column:holder;not null"`
	ExpiryMonth int             `gorm:"column:expiry_month;not null"`
	ExpiryYear  int             `gorm:"column:expiry_year;not null"`
	Brand       enums.CardBrand `gorm:"column:brand;not null;default:'card'"`
	IsDefault   bool            `gorm:"column:is_default;not null;default:false"`
	Balance     decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
