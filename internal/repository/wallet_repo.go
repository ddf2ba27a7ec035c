package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/teranga-booking/escrow-service/internal/models"
	"gorm.io/gorm"
)

type WalletRepository interface {
	FindByID(ctx context.Context, id uint) (*models.WalletAccount, error)
	// FindOrCreate resolves the account for (kind, ownerRef), creating it
	// with a zero balance on first use.
	FindOrCreate(ctx context.Context, tx *gorm.DB, kind models.AccountKind, ownerRef string) (*models.WalletAccount, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.WalletAccount, error)
	CreateTransaction(ctx context.Context, tx *gorm.DB, wt *models.WalletTransaction) error
	FindTransactionByReference(ctx context.Context, tx *gorm.DB, reference string) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, accountID uint) ([]models.WalletTransaction, error)
	// ApplyDelta moves the cached balance; must run in the same tx as the
	// ledger row append.
	ApplyDelta(ctx context.Context, tx *gorm.DB, accountID uint, delta decimal.Decimal) error
	// SumBalance recomputes the balance from SUCCESS transactions in a
	// single aggregate query.
	SumBalance(ctx context.Context, accountID uint) (decimal.Decimal, error)
	GetDB() *gorm.DB
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *walletRepository) FindByID(ctx context.Context, id uint) (*models.WalletAccount, error) {
	var account models.WalletAccount
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *walletRepository) FindOrCreate(ctx context.Context, tx *gorm.DB, kind models.AccountKind, ownerRef string) (*models.WalletAccount, error) {
	var account models.WalletAccount
	err := tx.WithContext(ctx).
		Where("kind = ? AND owner_ref = ?", kind, ownerRef).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	account = models.WalletAccount{Kind: kind, OwnerRef: ownerRef, Balance: decimal.Zero}
	if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *walletRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.WalletAccount, error) {
	var account models.WalletAccount
	if err := tx.WithContext(ctx).
		Set("gorm:query_option", "FOR UPDATE").
		First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *walletRepository) CreateTransaction(ctx context.Context, tx *gorm.DB, wt *models.WalletTransaction) error {
	return tx.WithContext(ctx).Create(wt).Error
}

func (r *walletRepository) FindTransactionByReference(ctx context.Context, tx *gorm.DB, reference string) (*models.WalletTransaction, error) {
	var wt models.WalletTransaction
	err := tx.WithContext(ctx).Where("reference = ?", reference).First(&wt).Error
	if err != nil {
		return nil, err
	}
	return &wt, nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, accountID uint) ([]models.WalletTransaction, error) {
	var txs []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id DESC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *walletRepository) ApplyDelta(ctx context.Context, tx *gorm.DB, accountID uint, delta decimal.Decimal) error {
	return tx.WithContext(ctx).
		Model(&models.WalletAccount{}).
		Where("id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", delta)).Error
}

func (r *walletRepository) SumBalance(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	var out struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = 'DEBIT' THEN -amount ELSE amount END), 0) AS total").
		Where("account_id = ? AND status = ?", accountID, models.TransactionSuccess).
		Scan(&out).Error
	if err != nil {
		return decimal.Zero, err
	}
	return out.Total, nil
}
