// Package payments resolves how an order gets funded and mirrors the
// debit back on cancellation. Every method runs inside the settlement
// transaction owned by the orders service.
package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/internal/wallet"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
	"github.com/shoplyft/backend/pkg/errors"
	"github.com/shoplyft/backend/pkg/logger"
)

// NewCard carries transient card data for the capture-at-checkout path.
// The number never leaves this struct.
type NewCard struct {
	Number      string
	Holder      string
	ExpiryMonth int
	ExpiryYear  int
	Save        bool
}

// Request selects the funding source for a checkout.
type Request struct {
	Method  enums.PaymentMethod
	CardID  *uuid.UUID
	NewCard *NewCard
}

// Resolution is what the resolver decided: the payment status the order
// starts with and where the money came from.
type Resolution struct {
	Status          enums.PaymentStatus
	PaidFromBalance bool
	CardID          *uuid.UUID
}

// Service resolves and reverses order funding.
type Service interface {
	Resolve(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, req Request, total decimal.Decimal) (*Resolution, error)
	Refund(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment) error
	Repo() Repository
}

type service struct {
	repo    Repository
	wallets wallet.Service
}

// NewService wires the payment resolver.
func NewService(repo Repository, wallets wallet.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	return &service{repo: repo, wallets: wallets}, nil
}

func (s *service) Repo() Repository {
	return s.repo
}

// Resolve debits the chosen funding source. Cash orders stay pending
// and settle on delivery; everything else is debited now and comes back
// paid or not at all.
func (s *service) Resolve(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, req Request, total decimal.Decimal) (*Resolution, error) {
	if !req.Method.IsValid() {
		return nil, errors.New(errors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"method": req.Method})
	}

	switch req.Method {
	case enums.PaymentMethodCash:
		return &Resolution{Status: enums.PaymentStatusPending}, nil

	case enums.PaymentMethodBalance:
		_, err := s.wallets.DebitBalance(ctx, tx, wallet.BalanceOp{
			UserID:  userID,
			Amount:  total,
			Type:    enums.BalanceTxOrderPayment,
			OrderID: &orderID,
		})
		if err != nil {
			return nil, err
		}
		return &Resolution{Status: enums.PaymentStatusPaid, PaidFromBalance: true}, nil

	case enums.PaymentMethodCard:
		cardID, err := s.resolveCard(ctx, tx, userID, req)
		if err != nil {
			return nil, err
		}
		_, err = s.wallets.DebitCard(ctx, tx, wallet.CardOp{
			CardID:  cardID,
			UserID:  userID,
			Amount:  total,
			Type:    enums.CardTxWithdrawal,
			OrderID: &orderID,
		})
		if err != nil {
			return nil, err
		}
		return &Resolution{Status: enums.PaymentStatusPaid, CardID: &cardID}, nil
	}

	return nil, errors.New(errors.CodeValidation, "unsupported payment method")
}

func (s *service) resolveCard(ctx context.Context, tx *gorm.DB, userID uuid.UUID, req Request) (uuid.UUID, error) {
	if req.CardID != nil {
		return *req.CardID, nil
	}
	if req.NewCard == nil {
		return uuid.Nil, errors.New(errors.CodeValidation, "card payment requires a saved card or card details")
	}
	if !req.NewCard.Save {
		return uuid.Nil, errors.New(errors.CodeValidation, "new card must be saved to pay with it")
	}

	card, err := s.wallets.AddCard(ctx, tx, wallet.AddCardInput{
		UserID:      userID,
		Number:      req.NewCard.Number,
		Holder:      req.NewCard.Holder,
		ExpiryMonth: req.NewCard.ExpiryMonth,
		ExpiryYear:  req.NewCard.ExpiryYear,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return card.ID, nil
}

// Refund mirrors the original debit. Balance payments go back to the
// wallet; card payments go back to the card, or to the wallet when the
// card no longer exists. Cash and still-pending payments refund nothing.
func (s *service) Refund(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment) error {
	if order == nil {
		return errors.New(errors.CodeValidation, "order is required")
	}
	if payment == nil || payment.Status != enums.PaymentStatusPaid || payment.Method == enums.PaymentMethodCash {
		return nil
	}

	txRepo := s.repo.WithTx(tx)

	if payment.PaidFromBalance {
		if _, err := s.wallets.CreditBalance(ctx, tx, wallet.BalanceOp{
			UserID:  order.UserID,
			Amount:  payment.Amount,
			Type:    enums.BalanceTxOrderRefund,
			OrderID: &order.ID,
		}); err != nil {
			return err
		}
		return txRepo.SetStatus(ctx, payment.ID, enums.PaymentStatusRefunded)
	}

	if payment.CardID != nil {
		card, err := s.wallets.FindCardForUpdate(ctx, tx, *payment.CardID)
		if err != nil {
			return err
		}
		if card != nil {
			if _, err := s.wallets.CreditCardOp(ctx, tx, wallet.CardOp{
				CardID:  card.ID,
				UserID:  order.UserID,
				Amount:  payment.Amount,
				Type:    enums.CardTxDeposit,
				OrderID: &order.ID,
			}); err != nil {
				return err
			}
			return txRepo.SetStatus(ctx, payment.ID, enums.PaymentStatusRefunded)
		}
		logger.FromContext(ctx).Warn().
			Str("card_id", payment.CardID.String()).
			Msg("refund card missing, falling back to wallet")
	}

	if _, err := s.wallets.CreditBalance(ctx, tx, wallet.BalanceOp{
		UserID:  order.UserID,
		Amount:  payment.Amount,
		Type:    enums.BalanceTxOrderRefund,
		OrderID: &order.ID,
	}); err != nil {
		return err
	}
	return txRepo.SetStatus(ctx, payment.ID, enums.PaymentStatusRefunded)
}
