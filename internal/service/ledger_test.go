package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/teranga-booking/escrow-service/internal/models"
)

func newLedgerFixture(t *testing.T) (*LedgerService, *memWalletRepo, *models.WalletAccount) {
	t.Helper()
	store := newMemStore()
	wallets := &memWalletRepo{s: store}
	account, err := wallets.FindOrCreate(context.Background(), nil, models.AccountCustomer, "cust-1")
	assert.NoError(t, err)
	return NewLedgerService(wallets), wallets, account
}

func TestLedger_CreditUpdatesBalance(t *testing.T) {
	ledger, wallets, account := newLedgerFixture(t)
	ctx := context.Background()

	wt, err := ledger.Credit(ctx, nil, account.ID, decimal.NewFromInt(1000), "topup:1", nil)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionSuccess, wt.Status)
	assert.Equal(t, models.TransactionCredit, wt.Type)

	got, err := wallets.FindByID(ctx, account.ID)
	assert.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)))

	// The cached balance matches the recomputed one.
	sum, err := ledger.Balance(ctx, account.ID)
	assert.NoError(t, err)
	assert.True(t, sum.Equal(got.Balance))
}

func TestLedger_InvalidAmount(t *testing.T) {
	ledger, _, account := newLedgerFixture(t)
	ctx := context.Background()

	_, err := ledger.Credit(ctx, nil, account.ID, decimal.Zero, "x:1", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ledger.Debit(ctx, nil, account.ID, decimal.NewFromInt(-5), "x:2", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedger_DuplicateReferenceIsNoOp(t *testing.T) {
	ledger, wallets, account := newLedgerFixture(t)
	ctx := context.Background()

	first, err := ledger.Credit(ctx, nil, account.ID, decimal.NewFromInt(1000), "topup:1", nil)
	assert.NoError(t, err)

	// Retried with the same reference: prior transaction returned, nothing
	// applied twice.
	second, err := ledger.Credit(ctx, nil, account.ID, decimal.NewFromInt(1000), "topup:1", nil)
	assert.ErrorIs(t, err, ErrDuplicateReference)
	assert.Equal(t, first.ID, second.ID)

	got, err := wallets.FindByID(ctx, account.ID)
	assert.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)), "got %s", got.Balance)
}

func TestLedger_InsufficientFunds(t *testing.T) {
	ledger, wallets, account := newLedgerFixture(t)
	ctx := context.Background()

	_, err := ledger.Credit(ctx, nil, account.ID, decimal.NewFromInt(100), "topup:1", nil)
	assert.NoError(t, err)

	_, err = ledger.Debit(ctx, nil, account.ID, decimal.NewFromInt(101), "charge:1", nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	got, err := wallets.FindByID(ctx, account.ID)
	assert.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
}

func TestLedger_EscrowAccountExemptFromFundsGuard(t *testing.T) {
	store := newMemStore()
	wallets := &memWalletRepo{s: store}
	ledger := NewLedgerService(wallets)
	ctx := context.Background()

	escrow, err := wallets.FindOrCreate(ctx, nil, models.AccountEscrow, models.EscrowOwnerRef)
	assert.NoError(t, err)

	// Escrow is bounded by outstanding held payments, not by its cached
	// balance.
	_, err = ledger.Debit(ctx, nil, escrow.ID, decimal.NewFromInt(500), "release:1", nil)
	assert.NoError(t, err)

	got, err := wallets.FindByID(ctx, escrow.ID)
	assert.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(-500)))
}

func TestLedger_UnknownAccount(t *testing.T) {
	ledger, _, _ := newLedgerFixture(t)

	_, err := ledger.Credit(context.Background(), nil, 999, decimal.NewFromInt(10), "x:9", nil)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
