package promotions

import (
	"context"
	"fmt"
	"time"

	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/errors"
)

// Service validates promo codes against their active window.
type Service interface {
	Validate(ctx context.Context, code string, now time.Time) (*models.Promotion, error)
}

type service struct {
	repo Repository
}

// NewService wires a promotions service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	return &service{repo: repo}, nil
}

// Validate returns the promotion when the code exists, is active, and
// now falls inside its optional date window.
func (s *service) Validate(ctx context.Context, code string, now time.Time) (*models.Promotion, error) {
	if code == "" {
		return nil, errors.New(errors.CodeValidation, "promo code is required")
	}

	promo, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up promo code")
	}
	if promo == nil {
		return nil, errors.New(errors.CodeNotFound, "promo code not found").
			WithDetails(map[string]any{"code": code})
	}
	if !promo.IsActive {
		return nil, errors.New(errors.CodeStateConflict, "promo code is inactive").
			WithDetails(map[string]any{"code": promo.Code})
	}
	if promo.StartsAt != nil && now.Before(*promo.StartsAt) {
		return nil, errors.New(errors.CodeStateConflict, "promo code is not yet valid").
			WithDetails(map[string]any{"code": promo.Code, "starts_at": promo.StartsAt})
	}
	if promo.EndsAt != nil && now.After(*promo.EndsAt) {
		return nil, errors.New(errors.CodeStateConflict, "promo code has expired").
			WithDetails(map[string]any{"code": promo.Code, "ends_at": promo.EndsAt})
	}
	return promo, nil
}
