// Package wallet holds the customer stored-value surfaces: the profile
// balance and saved cards, plus the immutable ledgers behind both.
// Settlement-scoped primitives (debit/credit under an open tx) are
// consumed by the payment resolver; the self-contained transfers open
// their own transaction.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/pkg/db"
	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/enums"
	"github.com/shoplyft/backend/pkg/errors"
	"github.com/shoplyft/backend/pkg/money"
)

// BalanceOp is a settlement-scoped wallet mutation.
type BalanceOp struct {
	UserID  uuid.UUID
	Amount  decimal.Decimal
	Type    enums.BalanceTransactionType
	OrderID *uuid.UUID
}

// CardOp is a settlement-scoped card mutation.
type CardOp struct {
	CardID  uuid.UUID
	UserID  uuid.UUID
	Amount  decimal.Decimal
	Type    enums.CardTransactionType
	OrderID *uuid.UUID
}

// AddCardInput captures a card. Only the last four digits of the number
// are kept.
type AddCardInput struct {
	UserID      uuid.UUID
	Number      string
	Holder      string
	ExpiryMonth int
	ExpiryYear  int
}

// Service defines wallet and card operations.
type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	BalanceTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.BalanceTransaction, error)

	Deposit(ctx context.Context, userID, cardID uuid.UUID, amount decimal.Decimal) error
	Withdraw(ctx context.Context, userID, cardID uuid.UUID, amount decimal.Decimal) error
	TopUpCard(ctx context.Context, userID, cardID uuid.UUID, amount decimal.Decimal) error

	Cards(ctx context.Context, userID uuid.UUID) ([]models.SavedCard, error)
	AddCard(ctx context.Context, tx *gorm.DB, input AddCardInput) (*models.SavedCard, error)
	DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error
	SetDefaultCard(ctx context.Context, userID, cardID uuid.UUID) error
	CardTransactions(ctx context.Context, userID, cardID uuid.UUID, limit int) ([]models.CardTransaction, error)

	DebitBalance(ctx context.Context, tx *gorm.DB, op BalanceOp) (*models.BalanceTransaction, error)
	CreditBalance(ctx context.Context, tx *gorm.DB, op BalanceOp) (*models.BalanceTransaction, error)
	DebitCard(ctx context.Context, tx *gorm.DB, op CardOp) (*models.CardTransaction, error)
	CreditCardOp(ctx context.Context, tx *gorm.DB, op CardOp) (*models.CardTransaction, error)
	CreditCard(ctx context.Context, tx *gorm.DB, cardID uuid.UUID, amount decimal.Decimal) error
	FindCardForUpdate(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) (*models.SavedCard, error)
}

type service struct {
	client *db.Client
	repo   Repository
}

// NewService wires a wallet service.
func NewService(client *db.Client, repo Repository) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{client: client, repo: repo}, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading wallet")
	}
	return profile, nil
}

func (s *service) BalanceTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.BalanceTransaction, error) {
	txns, err := s.repo.ListBalanceTransactions(ctx, userID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing balance transactions")
	}
	return txns, nil
}

// DebitBalance locks the wallet row, verifies funds and writes the
// ledger entry with before/after snapshots.
func (s *service) DebitBalance(ctx context.Context, tx *gorm.DB, op BalanceOp) (*models.BalanceTransaction, error) {
	if !money.IsPositive(op.Amount) {
		return nil, errors.New(errors.CodeValidation, "debit amount must be positive")
	}

	txRepo := s.repo.WithTx(tx)
	profile, err := txRepo.GetProfileForUpdate(ctx, op.UserID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "locking wallet")
	}

	if profile.Balance.LessThan(op.Amount) {
		return nil, errors.New(errors.CodeInsufficientFunds, "wallet balance cannot cover amount").
			WithDetails(map[string]any{
				"available": profile.Balance.String(),
				"required":  op.Amount.String(),
			})
	}

	txn := &models.BalanceTransaction{
		ID:            uuid.New(),
		UserID:        op.UserID,
		OrderID:       op.OrderID,
		Type:          op.Type,
		Amount:        op.Amount,
		BalanceBefore: profile.Balance,
	}
	profile.Balance = money.Round2(profile.Balance.Sub(op.Amount))
	txn.BalanceAfter = profile.Balance

	if err := txRepo.SaveProfileBalance(ctx, profile); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "debiting wallet")
	}
	if err := txRepo.CreateBalanceTransaction(ctx, txn); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "recording wallet debit")
	}
	return txn, nil
}

func (s *service) CreditBalance(ctx context.Context, tx *gorm.DB, op BalanceOp) (*models.BalanceTransaction, error) {
	if !money.IsPositive(op.Amount) {
		return nil, errors.New(errors.CodeValidation, "credit amount must be positive")
	}

	txRepo := s.repo.WithTx(tx)
	profile, err := txRepo.GetProfileForUpdate(ctx, op.UserID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "locking wallet")
	}

	txn := &models.BalanceTransaction{
		ID:            uuid.New(),
		UserID:        op.UserID,
		OrderID:       op.OrderID,
		Type:          op.Type,
		Amount:        op.Amount,
		BalanceBefore: profile.Balance,
	}
	profile.Balance = money.Round2(profile.Balance.Add(op.Amount))
	txn.BalanceAfter = profile.Balance

	if err := txRepo.SaveProfileBalance(ctx, profile); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "crediting wallet")
	}
	if err := txRepo.CreateBalanceTransaction(ctx, txn); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "recording wallet credit")
	}
	return txn, nil
}

// FindCardForUpdate locks and returns the card, or nil when it no
// longer exists.
func (s *service) FindCardForUpdate(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) (*models.SavedCard, error) {
	card, err := s.repo.WithTx(tx).GetCardForUpdate(ctx, cardID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "locking card")
	}
	return card, nil
}

func (s *service) DebitCard(ctx context.Context, tx *gorm.DB, op CardOp) (*models.CardTransaction, error) {
	if !money.IsPositive(op.Amount) {
		return nil, errors.New(errors.CodeValidation, "debit amount must be positive")
	}

	txRepo := s.repo.WithTx(tx)
	card, err := txRepo.GetCardForUpdate(ctx, op.CardID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "locking card")
	}
	if card == nil || card.UserID != op.UserID {
		return nil, errors.New(errors.CodeNotFound, "card not found").
			WithDetails(map[string]any{"card_id": op.CardID})
	}

	if card.Balance.LessThan(op.Amount) {
		return nil, errors.New(errors.CodeInsufficientFunds, "card balance cannot cover amount").
			WithDetails(map[string]any{
				"available": card.Balance.String(),
				"required":  op.Amount.String(),
			})
	}

	card.Balance = money.Round2(card.Balance.Sub(op.Amount))
	if err := txRepo.SaveCardBalance(ctx, card); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "debiting card")
	}

	txn := &models.CardTransaction{
		ID:      uuid.New(),
		CardID:  card.ID,
		UserID:  op.UserID,
		OrderID: op.OrderID,
		Type:    op.Type,
		Amount:  op.Amount,
	}
	if err := txRepo.CreateCardTransaction(ctx, txn); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "recording card debit")
	}
	return txn, nil
}

func (s *service) CreditCardOp(ctx context.Context, tx *gorm.DB, op CardOp) (*models.CardTransaction, error) {
	if !money.IsPositive(op.Amount) {
		return nil, errors.New(errors.CodeValidation, "credit amount must be positive")
	}

	txRepo := s.repo.WithTx(tx)
	card, err := txRepo.GetCardForUpdate(ctx, op.CardID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "locking card")
	}
	if card == nil {
		return nil, errors.New(errors.CodeNotFound, "card not found").
			WithDetails(map[string]any{"card_id": op.CardID})
	}

	card.Balance = money.Round2(card.Balance.Add(op.Amount))
	if err := txRepo.SaveCardBalance(ctx, card); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "crediting card")
	}

	txn := &models.CardTransaction{
		ID:      uuid.New(),
		CardID:  card.ID,
		UserID:  card.UserID,
		OrderID: op.OrderID,
		Type:    op.Type,
		Amount:  op.Amount,
	}
	if err := txRepo.CreateCardTransaction(ctx, txn); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "recording card credit")
	}
	return txn, nil
}

// CreditCard satisfies the org ledger's card crediter.
func (s *service) CreditCard(ctx context.Context, tx *gorm.DB, cardID uuid.UUID, amount decimal.Decimal) error {
	_, err := s.CreditCardOp(ctx, tx, CardOp{
		CardID: cardID,
		Amount: amount,
		Type:   enums.CardTxDeposit,
	})
	return err
}

// Deposit moves funds from a card into the wallet. The wallet row is
// locked before the card row, matching the settlement lock order.
func (s *service) Deposit(ctx context.Context, userID, cardID uuid.UUID, amount decimal.Decimal) error {
	if !money.IsPositive(amount) {
		return errors.New(errors.CodeValidation, "deposit amount must be positive")
	}
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.CreditBalance(ctx, tx, BalanceOp{
			UserID: userID,
			Amount: amount,
			Type:   enums.BalanceTxDeposit,
		}); err != nil {
			return err
		}
		_, err := s.DebitCard(ctx, tx, CardOp{
			CardID: cardID,
			UserID: userID,
			Amount: amount,
			Type:   enums.CardTxWithdrawal,
		})
		return err
	})
}

// Withdraw moves funds from the wallet onto a card.
func (s *service) Withdraw(ctx context.Context, userID, cardID uuid.UUID, amount decimal.Decimal) error {
	if !money.IsPositive(amount) {
		return errors.New(errors.CodeValidation, "withdrawal amount must be positive")
	}
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.DebitBalance(ctx, tx, BalanceOp{
			UserID: userID,
			Amount: amount,
			Type:   enums.BalanceTxWithdrawal,
		}); err != nil {
			return err
		}

		card, err := s.FindCardForUpdate(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if card == nil || card.UserID != userID {
			return errors.New(errors.CodeNotFound, "card not found").
				WithDetails(map[string]any{"card_id": cardID})
		}
		_, err = s.CreditCardOp(ctx, tx, CardOp{
			CardID: cardID,
			UserID: userID,
			Amount: amount,
			Type:   enums.CardTxDeposit,
		})
		return err
	})
}

// TopUpCard simulates external funding landing on a card.
func (s *service) TopUpCard(ctx context.Context, userID, cardID uuid.UUID, amount decimal.Decimal) error {
	if !money.IsPositive(amount) {
		return errors.New(errors.CodeValidation, "top-up amount must be positive")
	}
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		card, err := s.FindCardForUpdate(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if card == nil || card.UserID != userID {
			return errors.New(errors.CodeNotFound, "card not found").
				WithDetails(map[string]any{"card_id": cardID})
		}
		_, err = s.CreditCardOp(ctx, tx, CardOp{
			CardID: cardID,
			UserID: userID,
			Amount: amount,
			Type:   enums.CardTxDeposit,
		})
		return err
	})
}

func (s *service) Cards(ctx context.Context, userID uuid.UUID) ([]models.SavedCard, error) {
	cards, err := s.repo.ListCards(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing cards")
	}
	return cards, nil
}

// AddCard captures a card. tx may be nil for standalone use; the
// checkout new-card path passes the settlement tx.
func (s *service) AddCard(ctx context.Context, tx *gorm.DB, input AddCardInput) (*models.SavedCard, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	if len(input.Number) < 12 || len(input.Number) > 19 {
		return nil, errors.New(errors.CodeValidation, "card number length is invalid")
	}
	if input.Holder == "" {
		return nil, errors.New(errors.CodeValidation, "card holder is required")
	}
	if input.ExpiryMonth < 1 || input.ExpiryMonth > 12 {
		return nil, errors.New(errors.CodeValidation, "card expiry month is invalid")
	}
	if input.ExpiryYear < time.Now().Year() {
		return nil, errors.New(errors.CodeValidation, "card has expired")
	}

	txRepo := s.repo.WithTx(tx)
	count, err := txRepo.CountCards(ctx, input.UserID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting cards")
	}

	card := &models.SavedCard{
		ID:          uuid.New(),
		UserID:      input.UserID,
		Last4:       input.Number[len(input.Number)-4:],
		Holder:      input.Holder,
		ExpiryMonth: input.ExpiryMonth,
		ExpiryYear:  input.ExpiryYear,
		Brand:       enums.BrandFromPAN(input.Number),
		IsDefault:   count == 0,
		Balance:     decimal.Zero,
	}
	if err := txRepo.CreateCard(ctx, card); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "saving card")
	}
	return card, nil
}

func (s *service) DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		card, err := txRepo.GetCardForUpdate(ctx, cardID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "locking card")
		}
		if card == nil || card.UserID != userID {
			return errors.New(errors.CodeNotFound, "card not found")
		}
		if money.IsPositive(card.Balance) {
			return errors.New(errors.CodeStateConflict, "card still holds funds").
				WithDetails(map[string]any{"balance": card.Balance.String()})
		}
		return txRepo.DeleteCard(ctx, card)
	})
}

func (s *service) SetDefaultCard(ctx context.Context, userID, cardID uuid.UUID) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		card, err := txRepo.GetCardForUpdate(ctx, cardID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "locking card")
		}
		if card == nil || card.UserID != userID {
			return errors.New(errors.CodeNotFound, "card not found")
		}
		if err := txRepo.ClearDefault(ctx, userID); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "clearing default card")
		}
		return txRepo.MarkDefault(ctx, cardID)
	})
}

func (s *service) CardTransactions(ctx context.Context, userID, cardID uuid.UUID, limit int) ([]models.CardTransaction, error) {
	card, err := s.repo.GetCard(ctx, cardID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading card")
	}
	if card == nil || card.UserID != userID {
		return nil, errors.New(errors.CodeNotFound, "card not found")
	}
	txns, err := s.repo.ListCardTransactions(ctx, cardID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing card transactions")
	}
	return txns, nil
}
