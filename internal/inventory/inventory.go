// Package inventory adjusts catalog stock inside the settlement
// transaction. All mutations lock their rows and run under the caller's
// tx; product availability tracks the stock level automatically.
package inventory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/errors"
)

// StockRequest identifies the stock a single order line consumes. When
// SizeID is set both the size row and the product row are adjusted.
type StockRequest struct {
	ProductID uuid.UUID
	SizeID    *uuid.UUID
	Quantity  int
}

// Shortage describes one unsatisfiable request.
type Shortage struct {
	ProductID uuid.UUID  `json:"product_id"`
	SizeID    *uuid.UUID `json:"size_id,omitempty"`
	Requested int        `json:"requested"`
	Available int        `json:"available"`
}

func validate(requests []StockRequest) error {
	if len(requests) == 0 {
		return errors.New(errors.CodeValidation, "at least one stock request is required")
	}
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return errors.New(errors.CodeValidation, "product id is required")
		}
		if req.Quantity <= 0 {
			return errors.New(errors.CodeValidation, "stock quantity must be positive").
				WithDetails(map[string]any{"product_id": req.ProductID, "quantity": req.Quantity})
		}
	}
	return nil
}

// sortRequests orders by product id so concurrent settlements lock
// stock rows in the same order.
func sortRequests(requests []StockRequest) []StockRequest {
	sorted := append([]StockRequest(nil), requests...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ProductID != b.ProductID {
			return a.ProductID.String() < b.ProductID.String()
		}
		if a.SizeID == nil || b.SizeID == nil {
			return b.SizeID != nil
		}
		return a.SizeID.String() < b.SizeID.String()
	})
	return sorted
}

func lockProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&product, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id})
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "locking product")
	}
	return &product, nil
}

func lockSize(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ProductSize, error) {
	var size models.ProductSize
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&size, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.CodeNotFound, "product size not found").
				WithDetails(map[string]any{"size_id": id})
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "locking product size")
	}
	return &size, nil
}

func findProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := tx.WithContext(ctx).First(&product, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id})
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading product")
	}
	return &product, nil
}

func findSize(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ProductSize, error) {
	var size models.ProductSize
	err := tx.WithContext(ctx).First(&size, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.CodeNotFound, "product size not found").
				WithDetails(map[string]any{"size_id": id})
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading product size")
	}
	return &size, nil
}

// CheckAvailability verifies every request against current stock using
// plain reads; Decrement re-checks under row locks, so this is an early
// full-picture report, not the enforcement point. All shortages are
// gathered before failing.
func CheckAvailability(ctx context.Context, tx *gorm.DB, requests []StockRequest) error {
	if err := validate(requests); err != nil {
		return err
	}

	var shortages []Shortage
	var loadErr error

	for _, req := range sortRequests(requests) {
		if req.SizeID != nil {
			size, err := findSize(ctx, tx, *req.SizeID)
			if err != nil {
				loadErr = multierr.Append(loadErr, err)
				continue
			}
			if size.Quantity < req.Quantity {
				shortages = append(shortages, Shortage{
					ProductID: req.ProductID,
					SizeID:    req.SizeID,
					Requested: req.Quantity,
					Available: size.Quantity,
				})
			}
			continue
		}

		product, err := findProduct(ctx, tx, req.ProductID)
		if err != nil {
			loadErr = multierr.Append(loadErr, err)
			continue
		}
		if !product.IsAvailable || product.StockQuantity < req.Quantity {
			available := product.StockQuantity
			if !product.IsAvailable {
				available = 0
			}
			shortages = append(shortages, Shortage{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Available: available,
			})
		}
	}

	if loadErr != nil {
		return loadErr
	}
	if len(shortages) > 0 {
		return errors.New(errors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"shortages": shortages})
	}
	return nil
}

// Decrement consumes stock for the requests. Product availability is
// flipped off once product stock reaches zero.
func Decrement(ctx context.Context, tx *gorm.DB, requests []StockRequest) error {
	if err := validate(requests); err != nil {
		return err
	}

	for _, req := range sortRequests(requests) {
		if req.SizeID != nil {
			size, err := lockSize(ctx, tx, *req.SizeID)
			if err != nil {
				return err
			}
			if size.Quantity < req.Quantity {
				return errors.New(errors.CodeInsufficientStock, "insufficient stock").
					WithDetails(map[string]any{"size_id": *req.SizeID, "available": size.Quantity})
			}
			err = tx.WithContext(ctx).Model(&models.ProductSize{}).
				Where("id = ?", size.ID).
				Update("quantity", gorm.Expr("quantity - ?", req.Quantity)).Error
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "decrementing size stock")
			}
		}

		product, err := lockProduct(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}
		if product.StockQuantity < req.Quantity {
			return errors.New(errors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{"product_id": req.ProductID, "available": product.StockQuantity})
		}

		remaining := product.StockQuantity - req.Quantity
		updates := map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", req.Quantity),
		}
		if remaining <= 0 {
			updates["is_available"] = false
		}
		err = tx.WithContext(ctx).Model(&models.Product{}).
			Where("id = ?", product.ID).
			Updates(updates).Error
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "decrementing product stock")
		}
	}
	return nil
}

// Restore is the exact mirror of Decrement; products with stock back
// above zero become available again.
func Restore(ctx context.Context, tx *gorm.DB, requests []StockRequest) error {
	if err := validate(requests); err != nil {
		return err
	}

	for _, req := range sortRequests(requests) {
		if req.SizeID != nil {
			size, err := lockSize(ctx, tx, *req.SizeID)
			if err != nil {
				return err
			}
			err = tx.WithContext(ctx).Model(&models.ProductSize{}).
				Where("id = ?", size.ID).
				Update("quantity", gorm.Expr("quantity + ?", req.Quantity)).Error
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "restoring size stock")
			}
		}

		product, err := lockProduct(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", req.Quantity),
		}
		if product.StockQuantity+req.Quantity > 0 {
			updates["is_available"] = true
		}
		err = tx.WithContext(ctx).Model(&models.Product{}).
			Where("id = ?", product.ID).
			Updates(updates).Error
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "restoring product stock")
		}
	}
	return nil
}
