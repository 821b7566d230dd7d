package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplyft/backend/pkg/enums"
)

// Order is the settlement aggregate. All monetary fields are captured at
// checkout time and never recomputed afterwards.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	AddressID      *uuid.UUID        `gorm:"column:address_id;type:uuid"`
	Status         enums.OrderStatus `gorm:"column:status;not null;default:'processing'"`
	PromoCode      *string           `gorm:"column:promo_code"`
	Subtotal       decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount       decimal.Decimal   `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	DeliveryFee    decimal.Decimal   `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
	VATRate        decimal.Decimal   `gorm:"column:vat_rate;type:numeric(5,2);not null"`
	VATAmount      decimal.Decimal   `gorm:"column:vat_amount;type:numeric(12,2);not null"`
	TaxRate        decimal.Decimal   `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	TaxAmount      decimal.Decimal   `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	Total          decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	CanBeCancelled bool              `gorm:"column:can_be_cancelled;not null;default:true"`
	Items          []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment        *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CancelledAt    *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots a priced line. Name and unit price are copied from
// the product so later catalog edits cannot change history.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	SizeID    *uuid.UUID      `gorm:"column:size_id;type:uuid"`
	Name      string          `gorm:"column:name;not null"`
	SizeLabel *string         `gorm:"column:size_label"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
