package models

import (
	"time"

	"github.com/google/uuid"
)

// UserAddress is an address book entry referenced by orders.
type UserAddress struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	City       string    `gorm:"column:city;not null"`
	Street     string    `gorm:"column:street;not null"`
	House      string    `gorm:"column:house;not null"`
	Apartment  *string   `gorm:"column:apartment"`
	PostalCode string    `gorm:"column:postal_code;not null"`
	IsPrimary  bool      `gorm:"column:is_primary;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
