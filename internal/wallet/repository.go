package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shoplyft/backend/internal/repo"
	"github.com/shoplyft/backend/pkg/db/models"
)

// Repository persists wallets, saved cards and their ledgers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetProfileForUpdate(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	SaveProfileBalance(ctx context.Context, profile *models.UserProfile) error

	GetCardForUpdate(ctx context.Context, cardID uuid.UUID) (*models.SavedCard, error)
	GetCard(ctx context.Context, cardID uuid.UUID) (*models.SavedCard, error)
	ListCards(ctx context.Context, userID uuid.UUID) ([]models.SavedCard, error)
	CountCards(ctx context.Context, userID uuid.UUID) (int64, error)
	CreateCard(ctx context.Context, card *models.SavedCard) error
	SaveCardBalance(ctx context.Context, card *models.SavedCard) error
	DeleteCard(ctx context.Context, card *models.SavedCard) error
	ClearDefault(ctx context.Context, userID uuid.UUID) error
	MarkDefault(ctx context.Context, cardID uuid.UUID) error

	CreateBalanceTransaction(ctx context.Context, txn *models.BalanceTransaction) error
	ListBalanceTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.BalanceTransaction, error)
	CreateCardTransaction(ctx context.Context, txn *models.CardTransaction) error
	ListCardTransactions(ctx context.Context, cardID uuid.UUID, limit int) ([]models.CardTransaction, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds a wallet repository backed by the provided DB.
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

// GetProfileForUpdate locks the wallet row, creating an empty wallet on
// first use.
func (r *repository) GetProfileForUpdate(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.base.DB(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&profile, "user_id = ?", userID).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile = models.UserProfile{UserID: userID}
	if err := r.base.DB(ctx).Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.base.DB(ctx).First(&profile, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.UserProfile{UserID: userID}, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repository) SaveProfileBalance(ctx context.Context, profile *models.UserProfile) error {
	return r.base.DB(ctx).
		Model(&models.UserProfile{}).
		Where("user_id = ?", profile.UserID).
		Update("balance", profile.Balance).Error
}

func (r *repository) GetCardForUpdate(ctx context.Context, cardID uuid.UUID) (*models.SavedCard, error) {
	var card models.SavedCard
	err := r.base.DB(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&card, "id = ?", cardID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

func (r *repository) GetCard(ctx context.Context, cardID uuid.UUID) (*models.SavedCard, error) {
	var card models.SavedCard
	err := r.base.DB(ctx).First(&card, "id = ?", cardID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

func (r *repository) ListCards(ctx context.Context, userID uuid.UUID) ([]models.SavedCard, error) {
	var cards []models.SavedCard
	err := r.base.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&cards).Error
	return cards, err
}

func (r *repository) CountCards(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.SavedCard{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateCard(ctx context.Context, card *models.SavedCard) error {
	return r.base.DB(ctx).Create(card).Error
}

func (r *repository) SaveCardBalance(ctx context.Context, card *models.SavedCard) error {
	return r.base.DB(ctx).
		Model(&models.SavedCard{}).
		Where("id = ?", card.ID).
		Update("balance", card.Balance).Error
}

func (r *repository) DeleteCard(ctx context.Context, card *models.SavedCard) error {
	return r.base.DB(ctx).Delete(card).Error
}

func (r *repository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	return r.base.DB(ctx).
		Model(&models.SavedCard{}).
		Where("user_id = ? AND is_default", userID).
		Update("is_default", false).Error
}

func (r *repository) MarkDefault(ctx context.Context, cardID uuid.UUID) error {
	return r.base.DB(ctx).
		Model(&models.SavedCard{}).
		Where("id = ?", cardID).
		Update("is_default", true).Error
}

func (r *repository) CreateBalanceTransaction(ctx context.Context, txn *models.BalanceTransaction) error {
	return r.base.DB(ctx).Create(txn).Error
}

func (r *repository) ListBalanceTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.BalanceTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txns []models.BalanceTransaction
	err := r.base.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (r *repository) CreateCardTransaction(ctx context.Context, txn *models.CardTransaction) error {
	return r.base.DB(ctx).Create(txn).Error
}

func (r *repository) ListCardTransactions(ctx context.Context, cardID uuid.UUID, limit int) ([]models.CardTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txns []models.CardTransaction
	err := r.base.DB(ctx).
		Where("card_id = ?", cardID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
