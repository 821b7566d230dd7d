package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplyft/backend/pkg/enums"
)

// OrganizationAccountID is the primary key of the singleton account row.
const OrganizationAccountID uint = 1

// OrganizationAccount is the merchant settlement account. A single row
// holds the working balance and the income tax reserve; both stay >= 0.
type OrganizationAccount struct {
	ID         uint            `gorm:"column:id;primaryKey"`
	Balance    decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	TaxReserve decimal.Decimal `gorm:"column:tax_reserve;type:numeric(14,2);not null;default:0"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// OrganizationTransaction snapshots both account fields around every
// mutation so the ledger replays to the current state.
type OrganizationTransaction struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	Type          enums.OrgTransactionType `gorm:"column:type;not null"`
	Amount        decimal.Decimal          `gorm:"column:amount;type:numeric(14,2);not null"`
	TaxAmount     decimal.Decimal          `gorm:"column:tax_amount;type:numeric(14,2);not null;default:0"`
	BalanceBefore decimal.Decimal          `gorm:"column:balance_before;type:numeric(14,2);not null"`
	BalanceAfter  decimal.Decimal          `gorm:"column:balance_after;type:numeric(14,2);not null"`
	ReserveBefore decimal.Decimal          `gorm:"column:reserve_before;type:numeric(14,2);not null"`
	ReserveAfter  decimal.Decimal          `gorm:"column:reserve_after;type:numeric(14,2);not null"`
	OrderID       *uuid.UUID               `gorm:"column:order_id;type:uuid"`
	ActorID       *uuid.UUID               `gorm:"column:actor_id;type:uuid"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
}
