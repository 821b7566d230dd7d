package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplyft/backend/internal/promotions"
	"github.com/shoplyft/backend/pkg/config"
	"github.com/shoplyft/backend/pkg/errors"
	"github.com/shoplyft/backend/pkg/money"
)

// Line is a priced order line entering the quote.
type Line struct {
	ProductID uuid.UUID
	SizeID    *uuid.UUID
	Name      string
	SizeLabel *string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Quote is the full price breakdown captured on the order. Every field
// is quantized to two decimal places before the next formula step, so
// the stored breakdown replays exactly.
type Quote struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	PromoCode   *string
	DeliveryFee decimal.Decimal
	VATRate     decimal.Decimal
	VATAmount   decimal.Decimal
	TaxRate     decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
}

// Service computes checkout quotes.
type Service interface {
	Quote(ctx context.Context, lines []Line, promoCode string, now time.Time) (*Quote, error)
}

type service struct {
	promos   promotions.Service
	settings config.Settlement
}

// NewService wires a pricing service with the promo validator and the
// configured settlement rates.
func NewService(promos promotions.Service, settings config.Settlement) (Service, error) {
	if promos == nil {
		return nil, fmt.Errorf("promotions service required")
	}
	return &service{promos: promos, settings: settings}, nil
}

// Quote prices the lines. The pipeline is:
//
//	subtotal -> discount -> +delivery -> VAT -> tax reserve
//
// VAT is charged on the discounted subtotal plus delivery. The tax
// reserve is computed on the VAT-inclusive amount and is bookkeeping
// only: it never increases what the customer pays.
func (s *service) Quote(ctx context.Context, lines []Line, promoCode string, now time.Time) (*Quote, error) {
	if len(lines) == 0 {
		return nil, errors.New(errors.CodeValidation, "at least one order line is required")
	}

	subtotal := decimal.Zero
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, errors.New(errors.CodeValidation, "line quantity must be positive").
				WithDetails(map[string]any{"line": i, "quantity": line.Quantity})
		}
		if !money.IsPositive(line.UnitPrice) {
			return nil, errors.New(errors.CodeValidation, "line unit price must be positive").
				WithDetails(map[string]any{"line": i, "product_id": line.ProductID})
		}
		lineTotal := money.Round2(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		subtotal = money.Round2(subtotal.Add(lineTotal))
	}

	quote := &Quote{
		Subtotal:    subtotal,
		Discount:    decimal.Zero,
		DeliveryFee: money.Round2(s.settings.DeliveryFee),
		VATRate:     s.settings.VATRatePct,
		TaxRate:     s.settings.IncomeTaxPct,
	}

	if promoCode != "" {
		promo, err := s.promos.Validate(ctx, promoCode, now)
		if err != nil {
			return nil, err
		}
		quote.Discount = money.Percent(subtotal, promo.DiscountPct)
		quote.PromoCode = &promo.Code
	}

	preVAT := money.Round2(subtotal.Sub(quote.Discount).Add(quote.DeliveryFee))
	quote.VATAmount = money.Percent(preVAT, quote.VATRate)

	afterVAT := money.Round2(preVAT.Add(quote.VATAmount))
	quote.TaxAmount = money.Percent(afterVAT, quote.TaxRate)
	quote.Total = afterVAT

	return quote, nil
}
