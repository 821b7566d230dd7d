package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplyft/backend/pkg/enums"
)

// Receipt is the fiscal document issued at checkout. Cancellation flips
// the status to annulled; lines are never edited after issue.
type Receipt struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status         enums.ReceiptStatus `gorm:"column:status;not null;default:'executed'"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	DeliveryCost   decimal.Decimal     `gorm:"column:delivery_cost;type:numeric(12,2);not null"`
	VATRate        decimal.Decimal     `gorm:"column:vat_rate;type:numeric(5,2);not null"`
	Total          decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	VATAmount      decimal.Decimal     `gorm:"column:vat_amount;type:numeric(12,2);not null"`
	Lines          []ReceiptLine       `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

type ReceiptLine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ReceiptID uuid.UUID       `gorm:"column:receipt_id;type:uuid;not null;index"`
	Title     string          `gorm:"column:title;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	VATAmount decimal.Decimal `gorm:"column:vat_amount;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
