package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shoplyft/backend/internal/repo"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
)

// Repository persists orders, their items and deliveries, and loads the
// catalog rows checkout prices against.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error

	LoadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	LoadSize(ctx context.Context, id uuid.UUID) (*models.ProductSize, error)
	LoadAddress(ctx context.Context, id uuid.UUID) (*models.UserAddress, error)

	CreateDelivery(ctx context.Context, delivery *models.Delivery) error
	GetDelivery(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	SaveDelivery(ctx context.Context, delivery *models.Delivery) error
}

type repository struct {
	base repo.Base
}

// NewRepository builds an orders repository backed by the provided DB.
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

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.base.DB(ctx).Omit("Items", "Payment").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&items).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.base.DB(ctx).
		Preload("Items").
		Preload("Payment").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetForUpdate locks the order row and loads its items. Associations
// are fetched separately so the lock applies to the orders table only.
func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.base.DB(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.base.DB(ctx).Where("order_id = ?", id).Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var orders []models.Order
	err := r.base.DB(ctx).
		Preload("Items").
		Preload("Payment").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           enums.OrderStatusCancelled,
			"can_be_cancelled": false,
			"cancelled_at":     at,
		}).Error
}

func (r *repository) LoadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.base.DB(ctx).First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) LoadSize(ctx context.Context, id uuid.UUID) (*models.ProductSize, error) {
	var size models.ProductSize
	err := r.base.DB(ctx).First(&size, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &size, nil
}

func (r *repository) LoadAddress(ctx context.Context, id uuid.UUID) (*models.UserAddress, error) {
	var address models.UserAddress
	err := r.base.DB(ctx).First(&address, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &address, nil
}

func (r *repository) CreateDelivery(ctx context.Context, delivery *models.Delivery) error {
	return r.base.DB(ctx).Create(delivery).Error
}

func (r *repository) GetDelivery(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.base.DB(ctx).First(&delivery, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) SaveDelivery(ctx context.Context, delivery *models.Delivery) error {
	return r.base.DB(ctx).Save(delivery).Error
}
