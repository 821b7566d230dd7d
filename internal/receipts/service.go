// Package receipts issues and annuls fiscal receipts. A receipt is a
// frozen snapshot: cancellation never edits lines, it only flips the
// status.
package receipts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/internal/pricing"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
	pkgerrors "github.com/shoplyft/backend/pkg/errors"
	"github.com/shoplyft/backend/pkg/money"
)

const deliveryLineTitle = "Delivery"

// Service issues and annuls receipts inside the settlement tx.
type Service interface {
	Issue(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem, quote *pricing.Quote, method enums.PaymentMethod) (*models.Receipt, error)
	Annul(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Receipt, error)
}

type service struct {
	db *gorm.DB
}

// NewService wires a receipts service.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &service{db: db}, nil
}

func (s *service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// Issue writes the receipt with per-line VAT plus a synthetic delivery
// line. The receipt VAT total is the sum of the line VATs, which can
// differ from the order's VAT by rounding; the receipt is the fiscal
// truth for itself.
func (s *service) Issue(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem, quote *pricing.Quote, method enums.PaymentMethod) (*models.Receipt, error) {
	if order == nil || quote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order and quote are required")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt requires at least one item")
	}

	receipt := &models.Receipt{
		ID:             uuid.New(),
		OrderID:        order.ID,
		Status:         enums.ReceiptStatusExecuted,
		PaymentMethod:  method,
		Subtotal:       quote.Subtotal,
		DiscountAmount: quote.Discount,
		DeliveryCost:   quote.DeliveryFee,
		VATRate:        quote.VATRate,
		Total:          quote.Total,
	}

	vatTotal := decimal.Zero
	for _, item := range items {
		title := item.Name
		if item.SizeLabel != nil {
			title = fmt.Sprintf("%s (%s)", item.Name, *item.SizeLabel)
		}
		lineVAT := money.Percent(item.LineTotal, quote.VATRate)
		vatTotal = money.Round2(vatTotal.Add(lineVAT))
		receipt.Lines = append(receipt.Lines, models.ReceiptLine{
			ID:        uuid.New(),
			ReceiptID: receipt.ID,
			Title:     title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
			VATAmount: lineVAT,
		})
	}

	deliveryVAT := money.Percent(quote.DeliveryFee, quote.VATRate)
	vatTotal = money.Round2(vatTotal.Add(deliveryVAT))
	receipt.Lines = append(receipt.Lines, models.ReceiptLine{
		ID:        uuid.New(),
		ReceiptID: receipt.ID,
		Title:     deliveryLineTitle,
		UnitPrice: quote.DeliveryFee,
		Quantity:  1,
		LineTotal: quote.DeliveryFee,
		VATAmount: deliveryVAT,
	})

	receipt.VATAmount = vatTotal

	if err := s.conn(tx).WithContext(ctx).Create(receipt).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issuing receipt")
	}
	return receipt, nil
}

// Annul flips the receipt status. A missing receipt is not an error so
// cancellation stays idempotent over partially settled orders.
func (s *service) Annul(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	err := s.conn(tx).WithContext(ctx).
		Model(&models.Receipt{}).
		Where("order_id = ?", orderID).
		Update("status", enums.ReceiptStatusAnnulled).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "annulling receipt")
	}
	return nil
}

func (s *service) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Receipt, error) {
	var receipt models.Receipt
	err := s.db.WithContext(ctx).
		Preload("Lines").
		First(&receipt, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading receipt")
	}
	return &receipt, nil
}
