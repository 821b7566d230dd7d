package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/internal/repo"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
)

// Repository persists payment rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	SetStatus(ctx context.Context, paymentID uuid.UUID, status enums.PaymentStatus) error
}

type repository struct {
	base repo.Base
}

// NewRepository builds a payments repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.base.DB(ctx).Create(payment).Error
}

func (r *repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.base.DB(ctx).First(&payment, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) SetStatus(ctx context.Context, paymentID uuid.UUID, status enums.PaymentStatus) error {
	return r.base.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("status", status).Error
}
