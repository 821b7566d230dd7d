package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Promotion is a percentage discount code. Codes are stored upper-cased
// and matched case-insensitively by upper-casing the lookup.
type Promotion struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Code        string          `gorm:"column:code;not null;uniqueIndex"`
	DiscountPct decimal.Decimal `gorm:"column:discount_pct;type:numeric(5,2);not null"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	StartsAt    *time.Time      `gorm:"column:starts_at"`
	EndsAt      *time.Time      `gorm:"column:ends_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
