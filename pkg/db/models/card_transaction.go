package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplyft/backend/pkg/enums"
)

// CardTransaction is an immutable saved-card ledger entry.
type CardTransaction struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	CardID    uuid.UUID                 `gorm:"column:card_id;type:uuid;not null;index"`
	UserID    uuid.UUID                 `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	Type      enums.CardTransactionType `gorm:"column:type;not null"`
	Amount    decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
