package orgledger

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shoplyft/backend/internal/repo"
	"github.com/shoplyft/backend/pkg/db/models"
)

// Repository persists the singleton organization account and its ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetForUpdate(ctx context.Context) (*models.OrganizationAccount, error)
	Get(ctx context.Context) (*models.OrganizationAccount, error)
	Save(ctx context.Context, account *models.OrganizationAccount) error
	CreateTransaction(ctx context.Context, txn *models.OrganizationTransaction) error
	ListTransactions(ctx context.Context, limit int) ([]models.OrganizationTransaction, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds an org ledger repository backed by the provided DB.
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

// GetForUpdate locks the singleton row, creating it on first use.
func (r *repository) GetForUpdate(ctx context.Context) (*models.OrganizationAccount, error) {
	var account models.OrganizationAccount
	err := r.base.DB(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&account, "id = ?", models.OrganizationAccountID).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = models.OrganizationAccount{ID: models.OrganizationAccountID}
	if err := r.base.DB(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) Get(ctx context.Context) (*models.OrganizationAccount, error) {
	var account models.OrganizationAccount
	err := r.base.DB(ctx).First(&account, "id = ?", models.OrganizationAccountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.OrganizationAccount{ID: models.OrganizationAccountID}, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) Save(ctx context.Context, account *models.OrganizationAccount) error {
	return r.base.DB(ctx).
		Model(&models.OrganizationAccount{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"balance":     account.Balance,
			"tax_reserve": account.TaxReserve,
		}).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.OrganizationTransaction) error {
	return r.base.DB(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, limit int) ([]models.OrganizationTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txns []models.OrganizationTransaction
	err := r.base.DB(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
