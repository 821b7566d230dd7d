package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplyft/backend/pkg/enums"
)

// BalanceTransaction is an immutable wallet ledger entry with before and
// after snapshots of the balance it mutated.
type BalanceTransaction struct {
	ID            uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID                    `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID       *uuid.UUID                   `gorm:"column:order_id;type:uuid"`
	Type          enums.BalanceTransactionType `gorm:"column:type;not null"`
	Amount        decimal.Decimal              `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceBefore decimal.Decimal              `gorm:"column:balance_before;type:numeric(12,2);not null"`
	BalanceAfter  decimal.Decimal              `gorm:"column:balance_after;type:numeric(12,2);not null"`
	CreatedAt     time.Time                    `gorm:"column:created_at;autoCreateTime"`
}
