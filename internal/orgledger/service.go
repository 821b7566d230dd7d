// Package orgledger manages the merchant settlement account: sale
// credits, refund debits, operator withdrawals and tax payments. All
// mutations run under the singleton row lock; the balance and the tax
// reserve never go negative.
package orgledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/pkg/db"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
	"github.com/shoplyft/backend/pkg/errors"
	"github.com/shoplyft/backend/pkg/logger"
	"github.com/shoplyft/backend/pkg/money"
)

// CardCrediter moves withdrawn funds onto a saved card. Implemented by
// the wallet service; declared here to avoid an import cycle.
type CardCrediter interface {
	FindCardForUpdate(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) (*models.SavedCard, error)
	CreditCard(ctx context.Context, tx *gorm.DB, cardID uuid.UUID, amount decimal.Decimal) error
}

// CreditInput credits a sale into the account inside the caller's tx.
type CreditInput struct {
	Amount    decimal.Decimal
	TaxAmount decimal.Decimal
	OrderID   *uuid.UUID
	ActorID   *uuid.UUID
}

// DebitInput reverses a sale on cancellation inside the caller's tx.
type DebitInput struct {
	Amount    decimal.Decimal
	TaxAmount decimal.Decimal
	OrderID   *uuid.UUID
	ActorID   *uuid.UUID
}

// WithdrawInput moves settled funds from the account onto a card.
type WithdrawInput struct {
	Amount  decimal.Decimal
	CardID  uuid.UUID
	ActorID *uuid.UUID
}

// PayTaxInput settles part of the income tax reserve.
type PayTaxInput struct {
	Amount  decimal.Decimal
	ActorID *uuid.UUID
}

// Service defines organization account operations.
type Service interface {
	Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.OrganizationTransaction, error)
	Debit(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.OrganizationTransaction, error)
	Withdraw(ctx context.Context, input WithdrawInput) (*models.OrganizationTransaction, error)
	PayTax(ctx context.Context, input PayTaxInput) (*models.OrganizationTransaction, error)
	Account(ctx context.Context) (*models.OrganizationAccount, error)
	Transactions(ctx context.Context, limit int) ([]models.OrganizationTransaction, error)
}

type service struct {
	client *db.Client
	repo   Repository
	cards  CardCrediter
}

// NewService wires the org ledger service.
func NewService(client *db.Client, repo Repository, cards CardCrediter) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("org ledger repository required")
	}
	if cards == nil {
		return nil, fmt.Errorf("card crediter required")
	}
	return &service{client: client, repo: repo, cards: cards}, nil
}

func requirePositive(amount decimal.Decimal, field string) error {
	if !money.IsPositive(amount) {
		return errors.New(errors.CodeValidation, field+" must be positive")
	}
	return nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.OrganizationTransaction, error) {
	if err := requirePositive(input.Amount, "credit amount"); err != nil {
		return nil, err
	}
	if money.IsNegative(input.TaxAmount) {
		return nil, errors.New(errors.CodeValidation, "tax amount must not be negative")
	}

	txRepo := s.repo.WithTx(tx)
	account, err := txRepo.GetForUpdate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "locking org account")
	}

	txn := &models.OrganizationTransaction{
		ID:            uuid.New(),
		Type:          enums.OrgTxOrderPayment,
		Amount:        input.Amount,
		TaxAmount:     input.TaxAmount,
		BalanceBefore: account.Balance,
		ReserveBefore: account.TaxReserve,
		OrderID:       input.OrderID,
		ActorID:       input.ActorID,
	}

	account.Balance = money.Round2(account.Balance.Add(input.Amount))
	account.TaxReserve = money.Round2(account.TaxReserve.Add(input.TaxAmount))
	txn.BalanceAfter = account.Balance
	txn.ReserveAfter = account.TaxReserve

	if err := txRepo.Save(ctx, account); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "crediting org account")
	}
	if err := txRepo.CreateTransaction(ctx, txn); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "recording org credit")
	}
	return txn, nil
}

// Debit reverses a sale. The balance must cover the full refund; the
// reserve release is clamped at zero when tax has already been paid
// out, and the clamp is logged for audit.
func (s *service) Debit(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.OrganizationTransaction, error) {
	if err := requirePositive(input.Amount, "debit amount"); err != nil {
		return nil, err
	}
	if money.IsNegative(input.TaxAmount) {
		return nil, errors.New(errors.CodeValidation, "tax amount must not be negative")
	}

	txRepo := s.repo.WithTx(tx)
	account, err := txRepo.GetForUpdate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "locking org account")
	}

	if account.Balance.LessThan(input.Amount) {
		return nil, errors.New(errors.CodeInsufficientFunds, "organization balance cannot cover refund").
			WithDetails(map[string]any{
				"available": account.Balance.String(),
				"required":  input.Amount.String(),
			})
	}

	reserveRelease := input.TaxAmount
	if account.TaxReserve.LessThan(reserveRelease) {
		logger.FromContext(ctx).Warn().
			Str("reserve", account.TaxReserve.String()).
			Str("requested", reserveRelease.String()).
			Msg("tax reserve clamped to zero on refund")
		reserveRelease = account.TaxReserve
	}

	txn := &models.OrganizationTransaction{
		ID:            uuid.New(),
		Type:          enums.OrgTxOrderRefund,
		Amount:        input.Amount,
		TaxAmount:     reserveRelease,
		BalanceBefore: account.Balance,
		ReserveBefore: account.TaxReserve,
		OrderID:       input.OrderID,
		ActorID:       input.ActorID,
	}

	account.Balance = money.Round2(account.Balance.Sub(input.Amount))
	account.TaxReserve = money.Round2(account.TaxReserve.Sub(reserveRelease))
	txn.BalanceAfter = account.Balance
	txn.ReserveAfter = account.TaxReserve

	if err := txRepo.Save(ctx, account); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "debiting org account")
	}
	if err := txRepo.CreateTransaction(ctx, txn); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "recording org debit")
	}
	return txn, nil
}

// Withdraw moves funds from the org balance onto a saved card. Only the
// balance guards the amount; the reserve is untouched. The card row is
// locked before the org account, keeping every settlement path on the
// card-then-org lock order.
func (s *service) Withdraw(ctx context.Context, input WithdrawInput) (*models.OrganizationTransaction, error) {
	if err := requirePositive(input.Amount, "withdrawal amount"); err != nil {
		return nil, err
	}
	if input.CardID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "card id is required")
	}

	var txn *models.OrganizationTransaction
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		card, err := s.cards.FindCardForUpdate(ctx, tx, input.CardID)
		if err != nil {
			return err
		}
		if card == nil {
			return errors.New(errors.CodeNotFound, "card not found").
				WithDetails(map[string]any{"card_id": input.CardID})
		}

		txRepo := s.repo.WithTx(tx)
		account, err := txRepo.GetForUpdate(ctx)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "locking org account")
		}

		if account.Balance.LessThan(input.Amount) {
			return errors.New(errors.CodeInsufficientFunds, "organization balance cannot cover withdrawal").
				WithDetails(map[string]any{
					"available": account.Balance.String(),
					"required":  input.Amount.String(),
				})
		}

		txn = &models.OrganizationTransaction{
			ID:            uuid.New(),
			Type:          enums.OrgTxWithdrawal,
			Amount:        input.Amount,
			BalanceBefore: account.Balance,
			ReserveBefore: account.TaxReserve,
			ActorID:       input.ActorID,
		}

		account.Balance = money.Round2(account.Balance.Sub(input.Amount))
		txn.BalanceAfter = account.Balance
		txn.ReserveAfter = account.TaxReserve

		if err := txRepo.Save(ctx, account); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "debiting org account")
		}
		if err := txRepo.CreateTransaction(ctx, txn); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "recording org withdrawal")
		}
		return s.cards.CreditCard(ctx, tx, input.CardID, input.Amount)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// PayTax settles tax out of the reserve. Both the balance and the
// reserve must cover the amount: the reserve is bookkeeping inside the
// balance, not funds held separately.
func (s *service) PayTax(ctx context.Context, input PayTaxInput) (*models.OrganizationTransaction, error) {
	if err := requirePositive(input.Amount, "tax payment amount"); err != nil {
		return nil, err
	}

	var txn *models.OrganizationTransaction
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		account, err := txRepo.GetForUpdate(ctx)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "locking org account")
		}

		if account.Balance.LessThan(input.Amount) || account.TaxReserve.LessThan(input.Amount) {
			return errors.New(errors.CodeInsufficientFunds, "balance and tax reserve must both cover the payment").
				WithDetails(map[string]any{
					"balance":  account.Balance.String(),
					"reserve":  account.TaxReserve.String(),
					"required": input.Amount.String(),
				})
		}

		txn = &models.OrganizationTransaction{
			ID:            uuid.New(),
			Type:          enums.OrgTxTaxPayment,
			Amount:        input.Amount,
			TaxAmount:     input.Amount,
			BalanceBefore: account.Balance,
			ReserveBefore: account.TaxReserve,
			ActorID:       input.ActorID,
		}

		account.Balance = money.Round2(account.Balance.Sub(input.Amount))
		account.TaxReserve = money.Round2(account.TaxReserve.Sub(input.Amount))
		txn.BalanceAfter = account.Balance
		txn.ReserveAfter = account.TaxReserve

		if err := txRepo.Save(ctx, account); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "paying tax from org account")
		}
		return txRepo.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) Account(ctx context.Context) (*models.OrganizationAccount, error) {
	account, err := s.repo.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading org account")
	}
	return account, nil
}

func (s *service) Transactions(ctx context.Context, limit int) ([]models.OrganizationTransaction, error) {
	txns, err := s.repo.ListTransactions(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing org transactions")
	}
	return txns, nil
}
