package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountKind string

const (
	AccountCustomer AccountKind = "customer"
	AccountOwner    AccountKind = "owner"
	AccountEscrow   AccountKind = "platform_escrow"
)

// EscrowOwnerRef is the owner_ref of the single platform escrow account.
const EscrowOwnerRef = "platform"

// WalletAccount carries a cached balance. The cache is only ever updated
// inside the same transaction that appends the matching ledger row, so it
// stays recomputable from wallet_transactions.
type WalletAccount struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Kind      AccountKind     `gorm:"type:varchar(20);not null;uniqueIndex:idx_account_owner" json:"kind"`
	OwnerRef  string          `gorm:"not null;uniqueIndex:idx_account_owner" json:"owner_ref"`
	Balance   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "PENDING"
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

// WalletTransaction is an append-only ledger row. Reference doubles as the
// idempotency key: a retried operation reuses the same reference and the
// unique index turns the retry into a no-op.
type WalletTransaction struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	AccountID        uint              `gorm:"not null;index" json:"account_id"`
	Reference        string            `gorm:"uniqueIndex;not null" json:"reference"`
	Amount           decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"amount"`
	Type             TransactionType   `gorm:"type:varchar(10);not null" json:"type"`
	Status           TransactionStatus `gorm:"type:varchar(10);not null;default:'SUCCESS'" json:"status"`
	RelatedPaymentID *uint             `gorm:"index" json:"related_payment_id,omitempty"`
	Description      string            `json:"description"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Signed returns the transaction amount with its direction applied.
func (t *WalletTransaction) Signed() decimal.Decimal {
	if t.Type == TransactionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
