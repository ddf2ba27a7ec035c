package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/teranga-booking/escrow-service/internal/models"
	"github.com/teranga-booking/escrow-service/internal/repository"
	"gorm.io/gorm"
)

// LedgerService appends wallet transactions and keeps the cached account
// balance in step. Every mutation requires the caller's transaction — the
// ledger never commits on its own, so a failed release/refund rolls the
// wallet rows back with everything else.
type LedgerService struct {
	wallets repository.WalletRepository
}

func NewLedgerService(wallets repository.WalletRepository) *LedgerService {
	return &LedgerService{wallets: wallets}
}

func (s *LedgerService) Credit(ctx context.Context, tx *gorm.DB, accountID uint, amount decimal.Decimal, reference string, relatedPaymentID *uint) (*models.WalletTransaction, error) {
	return s.apply(ctx, tx, accountID, amount, reference, relatedPaymentID, models.TransactionCredit)
}

func (s *LedgerService) Debit(ctx context.Context, tx *gorm.DB, accountID uint, amount decimal.Decimal, reference string, relatedPaymentID *uint) (*models.WalletTransaction, error) {
	return s.apply(ctx, tx, accountID, amount, reference, relatedPaymentID, models.TransactionDebit)
}

func (s *LedgerService) apply(ctx context.Context, tx *gorm.DB, accountID uint, amount decimal.Decimal, reference string, relatedPaymentID *uint, kind models.TransactionType) (*models.WalletTransaction, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, ErrInvalidAmount
	}

	// Idempotency: a reused reference is a safe-retry no-op returning the
	// transaction that already applied.
	prior, err := s.wallets.FindTransactionByReference(ctx, tx, reference)
	if err == nil {
		if prior.Status == models.TransactionSuccess {
			return prior, ErrDuplicateReference
		}
		return nil, fmt.Errorf("reference %s exists with status %s", reference, prior.Status)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Lock the account row so the balance check and the delta apply as one.
	account, err := s.wallets.FindByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	delta := amount
	if kind == models.TransactionDebit {
		delta = amount.Neg()
		// The escrow account is bounded by outstanding held payments, not
		// by its cached balance.
		if account.Kind != models.AccountEscrow && account.Balance.Add(delta).Cmp(decimal.Zero) < 0 {
			return nil, ErrInsufficientFunds
		}
	}

	wt := &models.WalletTransaction{
		AccountID:        accountID,
		Reference:        reference,
		Amount:           amount,
		Type:             kind,
		Status:           models.TransactionSuccess,
		RelatedPaymentID: relatedPaymentID,
	}
	if err := s.wallets.CreateTransaction(ctx, tx, wt); err != nil {
		return nil, err
	}
	if err := s.wallets.ApplyDelta(ctx, tx, accountID, delta); err != nil {
		return nil, err
	}
	return wt, nil
}

// Balance recomputes the account balance from SUCCESS transactions in one
// aggregate query, usable as a reconciliation check against the cached
// column.
func (s *LedgerService) Balance(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	return s.wallets.SumBalance(ctx, accountID)
}
