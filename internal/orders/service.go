// Package orders owns the order lifecycle and the settlement
// transaction around it. Checkout and cancellation are single database
// transactions: either every movement (funds, org account, stock,
// receipt) lands, or none do.
//
// Lock discipline inside the settlement tx: customer balance, then
// card, then organization account, then stock rows in sorted product
// order. Every multi-row path acquires locks in that sequence.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/internal/activity"
	"github.com/shoplyft/backend/internal/inventory"
	"github.com/shoplyft/backend/internal/orgledger"
	"github.com/shoplyft/backend/internal/payments"
	"github.com/shoplyft/backend/internal/pricing"
	"github.com/shoplyft/backend/internal/receipts"
	"github.com/shoplyft/backend/pkg/db"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
	"github.com/shoplyft/backend/pkg/errors"
	"github.com/shoplyft/backend/pkg/logger"
	"github.com/shoplyft/backend/pkg/metrics"
	"github.com/shoplyft/backend/pkg/money"
)

// Actor identifies who triggered an operation, for audit and ledger
// attribution. Identity is established upstream.
type Actor struct {
	ID   *uuid.UUID
	Role string
}

// CheckoutLine selects a product (optionally a size) and a quantity.
type CheckoutLine struct {
	ProductID uuid.UUID
	SizeID    *uuid.UUID
	Quantity  int
}

// CheckoutInput is everything a settlement needs.
type CheckoutInput struct {
	UserID    uuid.UUID
	AddressID *uuid.UUID
	Lines     []CheckoutLine
	PromoCode string
	Payment   payments.Request
}

// ShipInput opens the delivery leg of a paid order.
type ShipInput struct {
	Carrier        string
	TrackingNumber string
}

// Service drives the order lifecycle.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	Ship(ctx context.Context, orderID uuid.UUID, input ShipInput, actor Actor) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)
	Receipt(ctx context.Context, userID, orderID uuid.UUID) (*models.Receipt, error)
}

type service struct {
	client   *db.Client
	repo     Repository
	pricing  pricing.Service
	payments payments.Service
	org      orgledger.Service
	receipts receipts.Service
	activity activity.Service
	metrics  *metrics.SettlementMetrics
}

// NewService wires the orders service.
func NewService(
	client *db.Client,
	repo Repository,
	pricingSvc pricing.Service,
	paymentsSvc payments.Service,
	orgSvc orgledger.Service,
	receiptsSvc receipts.Service,
	activitySvc activity.Service,
	settlementMetrics *metrics.SettlementMetrics,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if pricingSvc == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if paymentsSvc == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if orgSvc == nil {
		return nil, fmt.Errorf("org ledger service required")
	}
	if receiptsSvc == nil {
		return nil, fmt.Errorf("receipts service required")
	}
	if activitySvc == nil {
		return nil, fmt.Errorf("activity service required")
	}
	return &service{
		client:   client,
		repo:     repo,
		pricing:  pricingSvc,
		payments: paymentsSvc,
		org:      orgSvc,
		receipts: receiptsSvc,
		activity: activitySvc,
		metrics:  settlementMetrics,
	}, nil
}

type pricedLine struct {
	pricing pricing.Line
	stock   inventory.StockRequest
}

// resolveLines loads the catalog rows and snapshots names and prices.
func (s *service) resolveLines(ctx context.Context, txRepo Repository, lines []CheckoutLine) ([]pricedLine, error) {
	if len(lines) == 0 {
		return nil, errors.New(errors.CodeValidation, "at least one order line is required")
	}

	resolved := make([]pricedLine, 0, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, errors.New(errors.CodeValidation, "line quantity must be positive").
				WithDetails(map[string]any{"line": i})
		}

		product, err := txRepo.LoadProduct(ctx, line.ProductID)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "loading product")
		}
		if product == nil {
			return nil, errors.New(errors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}

		priced := pricedLine{
			pricing: pricing.Line{
				ProductID: product.ID,
				Name:      product.Name,
				UnitPrice: product.Price,
				Quantity:  line.Quantity,
			},
			stock: inventory.StockRequest{
				ProductID: product.ID,
				Quantity:  line.Quantity,
			},
		}

		if line.SizeID != nil {
			size, err := txRepo.LoadSize(ctx, *line.SizeID)
			if err != nil {
				return nil, errors.Wrap(errors.CodeInternal, err, "loading size")
			}
			if size == nil || size.ProductID != product.ID {
				return nil, errors.New(errors.CodeNotFound, "product size not found").
					WithDetails(map[string]any{"size_id": *line.SizeID})
			}
			priced.pricing.SizeID = &size.ID
			priced.pricing.SizeLabel = &size.Label
			priced.stock.SizeID = &size.ID
		}

		resolved = append(resolved, priced)
	}
	return resolved, nil
}

// Checkout runs the full settlement in one transaction: quote, stock
// check, payment debit, org credit, stock decrement, order rows,
// receipt. The audit row goes in after commit.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}

	started := time.Now()
	ctx = logger.WithUserID(ctx, input.UserID)

	var order *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if input.AddressID != nil {
			address, err := txRepo.LoadAddress(ctx, *input.AddressID)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "loading address")
			}
			if address == nil || address.UserID != input.UserID {
				return errors.New(errors.CodeNotFound, "address not found").
					WithDetails(map[string]any{"address_id": *input.AddressID})
			}
		}

		lines, err := s.resolveLines(ctx, txRepo, input.Lines)
		if err != nil {
			return err
		}

		pricingLines := make([]pricing.Line, len(lines))
		stockReqs := make([]inventory.StockRequest, len(lines))
		for i, line := range lines {
			pricingLines[i] = line.pricing
			stockReqs[i] = line.stock
		}

		quote, err := s.pricing.Quote(ctx, pricingLines, input.PromoCode, time.Now())
		if err != nil {
			return err
		}

		if err := inventory.CheckAvailability(ctx, tx, stockReqs); err != nil {
			return err
		}

		order = &models.Order{
			ID:             uuid.New(),
			UserID:         input.UserID,
			AddressID:      input.AddressID,
			Status:         enums.OrderStatusProcessing,
			PromoCode:      quote.PromoCode,
			Subtotal:       quote.Subtotal,
			Discount:       quote.Discount,
			DeliveryFee:    quote.DeliveryFee,
			VATRate:        quote.VATRate,
			VATAmount:      quote.VATAmount,
			TaxRate:        quote.TaxRate,
			TaxAmount:      quote.TaxAmount,
			Total:          quote.Total,
			CanBeCancelled: true,
		}
		if err := txRepo.Create(ctx, order); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "creating order")
		}

		resolution, err := s.payments.Resolve(ctx, tx, input.UserID, order.ID, input.Payment, quote.Total)
		if err != nil {
			return err
		}

		if resolution.Status == enums.PaymentStatusPaid {
			order.Status = enums.OrderStatusPaid
			if err := txRepo.SetStatus(ctx, order.ID, enums.OrderStatusPaid); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "marking order paid")
			}
		}

		payment := &models.Payment{
			ID:              uuid.New(),
			OrderID:         order.ID,
			Method:          input.Payment.Method,
			Status:          resolution.Status,
			Amount:          quote.Total,
			PaidFromBalance: resolution.PaidFromBalance,
			CardID:          resolution.CardID,
		}
		if err := s.payments.Repo().WithTx(tx).Create(ctx, payment); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "creating payment")
		}
		order.Payment = payment

		if resolution.Status == enums.PaymentStatusPaid && input.Payment.Method != enums.PaymentMethodCash {
			if _, err := s.org.Credit(ctx, tx, orgledger.CreditInput{
				Amount:    quote.Total,
				TaxAmount: quote.TaxAmount,
				OrderID:   &order.ID,
				ActorID:   &input.UserID,
			}); err != nil {
				return err
			}
		}

		if err := inventory.Decrement(ctx, tx, stockReqs); err != nil {
			return err
		}

		items := make([]models.OrderItem, len(lines))
		for i, line := range lines {
			items[i] = models.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: line.pricing.ProductID,
				SizeID:    line.pricing.SizeID,
				Name:      line.pricing.Name,
				SizeLabel: line.pricing.SizeLabel,
				UnitPrice: line.pricing.UnitPrice,
				Quantity:  line.pricing.Quantity,
				LineTotal: money.Round2(line.pricing.UnitPrice.Mul(decimal.NewFromInt(int64(line.pricing.Quantity)))),
			}
		}
		if err := txRepo.CreateItems(ctx, items); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "creating order items")
		}
		order.Items = items

		if _, err := s.receipts.Issue(ctx, tx, order, items, quote, input.Payment.Method); err != nil {
			return err
		}
		return nil
	})

	s.metrics.ObserveDuration("checkout", time.Since(started))
	if err != nil {
		s.metrics.IncFailed("checkout", failureReason(err))
		return nil, err
	}
	s.metrics.IncCompleted("checkout", input.Payment.Method.String())

	logger.FromContext(ctx).Info().
		Str("order_id", order.ID.String()).
		Str("status", order.Status.String()).
		Str("total", order.Total.String()).
		Msg("order settled")

	s.activity.Record(ctx, activity.Entry{
		ActorID:     &input.UserID,
		ActorRole:   "customer",
		Action:      "order.checkout",
		Target:      order.ID.String(),
		Description: fmt.Sprintf("order settled for %s via %s", order.Total, input.Payment.Method),
	})
	return order, nil
}

// Cancel exactly mirrors the settlement. The cancellability flag is
// authoritative; the status set is the sanity check. A second cancel
// fails fast before touching anything.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	started := time.Now()
	ctx = logger.WithOrderID(ctx, orderID)

	var order *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		var err error
		order, err = txRepo.GetForUpdate(ctx, orderID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "locking order")
		}
		if order == nil {
			return errors.New(errors.CodeNotFound, "order not found")
		}
		if !order.CanBeCancelled || !order.Status.Cancellable() {
			return errors.New(errors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}

		payment, err := s.payments.Repo().WithTx(tx).GetByOrderID(ctx, orderID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "loading payment")
		}

		if err := s.payments.Refund(ctx, tx, order, payment); err != nil {
			return err
		}

		if payment != nil && payment.Status == enums.PaymentStatusPaid {
			if _, err := s.org.Debit(ctx, tx, orgledger.DebitInput{
				Amount:    payment.Amount,
				TaxAmount: order.TaxAmount,
				OrderID:   &order.ID,
				ActorID:   actor.ID,
			}); err != nil {
				return err
			}
		}

		stockReqs := make([]inventory.StockRequest, len(order.Items))
		for i, item := range order.Items {
			stockReqs[i] = inventory.StockRequest{
				ProductID: item.ProductID,
				SizeID:    item.SizeID,
				Quantity:  item.Quantity,
			}
		}
		if len(stockReqs) > 0 {
			if err := inventory.Restore(ctx, tx, stockReqs); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := txRepo.MarkCancelled(ctx, orderID, now); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "marking order cancelled")
		}
		order.Status = enums.OrderStatusCancelled
		order.CanBeCancelled = false
		order.CancelledAt = &now

		return s.receipts.Annul(ctx, tx, orderID)
	})

	s.metrics.ObserveDuration("cancel", time.Since(started))
	if err != nil {
		s.metrics.IncFailed("cancel", failureReason(err))
		return nil, err
	}
	s.metrics.IncCompleted("cancel", "")

	logger.FromContext(ctx).Info().Msg("order cancelled")

	s.activity.Record(ctx, activity.Entry{
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Action:      "order.cancel",
		Target:      orderID.String(),
		Description: "order cancelled and settlement reversed",
	})
	return order, nil
}

// MarkPaid settles a cash order collected on delivery: payment goes
// paid, the order goes paid, and the org account is credited.
func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	var order *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		var err error
		order, err = txRepo.GetForUpdate(ctx, orderID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "locking order")
		}
		if order == nil {
			return errors.New(errors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusProcessing {
			return errors.New(errors.CodeStateConflict, "only processing orders can be marked paid").
				WithDetails(map[string]any{"status": order.Status})
		}

		paymentsRepo := s.payments.Repo().WithTx(tx)
		payment, err := paymentsRepo.GetByOrderID(ctx, orderID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "loading payment")
		}
		if payment == nil || payment.Status != enums.PaymentStatusPending {
			return errors.New(errors.CodeStateConflict, "order has no pending payment")
		}

		if err := paymentsRepo.SetStatus(ctx, payment.ID, enums.PaymentStatusPaid); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "marking payment paid")
		}
		if err := txRepo.SetStatus(ctx, orderID, enums.OrderStatusPaid); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "marking order paid")
		}
		order.Status = enums.OrderStatusPaid

		_, err = s.org.Credit(ctx, tx, orgledger.CreditInput{
			Amount:    order.Total,
			TaxAmount: order.TaxAmount,
			OrderID:   &order.ID,
			ActorID:   actor.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.Entry{
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Action:      "order.mark_paid",
		Target:      orderID.String(),
		Description: "cash payment collected",
	})
	return order, nil
}

// Ship opens the delivery record and moves the order to shipped.
func (s *service) Ship(ctx context.Context, orderID uuid.UUID, input ShipInput, actor Actor) (*models.Order, error) {
	var order *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		var err error
		order, err = txRepo.GetForUpdate(ctx, orderID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "locking order")
		}
		if order == nil {
			return errors.New(errors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusPaid {
			return errors.New(errors.CodeStateConflict, "only paid orders can ship").
				WithDetails(map[string]any{"status": order.Status})
		}

		now := time.Now()
		delivery := &models.Delivery{
			ID:        uuid.New(),
			OrderID:   orderID,
			ShippedAt: &now,
		}
		if input.Carrier != "" {
			delivery.Carrier = &input.Carrier
		}
		if input.TrackingNumber != "" {
			delivery.TrackingNumber = &input.TrackingNumber
		}
		if err := txRepo.CreateDelivery(ctx, delivery); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "creating delivery")
		}

		if err := txRepo.SetStatus(ctx, orderID, enums.OrderStatusShipped); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "marking order shipped")
		}
		order.Status = enums.OrderStatusShipped
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.Entry{
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Action:      "order.ship",
		Target:      orderID.String(),
		Description: "order shipped",
	})
	return order, nil
}

// MarkDelivered closes the delivery leg.
func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	var order *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		var err error
		order, err = txRepo.GetForUpdate(ctx, orderID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "locking order")
		}
		if order == nil {
			return errors.New(errors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusShipped {
			return errors.New(errors.CodeStateConflict, "only shipped orders can be delivered").
				WithDetails(map[string]any{"status": order.Status})
		}

		delivery, err := txRepo.GetDelivery(ctx, orderID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "loading delivery")
		}
		now := time.Now()
		if delivery != nil {
			delivery.DeliveredAt = &now
			if err := txRepo.SaveDelivery(ctx, delivery); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "closing delivery")
			}
		}

		if err := txRepo.SetStatus(ctx, orderID, enums.OrderStatusDelivered); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "marking order delivered")
		}
		order.Status = enums.OrderStatusDelivered
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.Entry{
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Action:      "order.deliver",
		Target:      orderID.String(),
		Description: "order delivered",
	})
	return order, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order")
	}
	if order == nil || order.UserID != userID {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing orders")
	}
	return orders, nil
}

func (s *service) Receipt(ctx context.Context, userID, orderID uuid.UUID) (*models.Receipt, error) {
	if _, err := s.Get(ctx, userID, orderID); err != nil {
		return nil, err
	}
	receipt, err := s.receipts.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, errors.New(errors.CodeNotFound, "receipt not found")
	}
	return receipt, nil
}

func failureReason(err error) string {
	if typed := errors.As(err); typed != nil {
		return string(typed.Code())
	}
	return "unknown"
}
