package promotions

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/shoplyft/backend/internal/repo"
	"github.com/shoplyft/backend/pkg/db/models"
)

// Repository exposes promo code lookups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Promotion, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds a promotions repository backed by the provided DB.
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

// FindByCode matches case-insensitively; codes are stored upper-cased.
func (r *repository) FindByCode(ctx context.Context, code string) (*models.Promotion, error) {
	var promo models.Promotion
	err := r.base.DB(ctx).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &promo, nil
}
