package service

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrAccountNotFound = errors.New("wallet account not found")

	// State machine guards.
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrAlreadyTerminal        = errors.New("payment is in a terminal state")
	ErrCancellationNotAllowed = errors.New("cancellation not allowed for this actor")

	// Ledger guards. ErrDuplicateReference marks a safe-retry no-op: the
	// prior transaction is returned alongside it.
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrDuplicateReference = errors.New("transaction reference already applied")
	ErrInsufficientFunds  = errors.New("insufficient funds")

	// Scan-time terminal errors, each user-visible with a distinct message.
	ErrTokenNotFound        = errors.New("release token not found")
	ErrTokenExpired         = errors.New("release token expired")
	ErrTokenAlreadyConsumed = errors.New("release token already consumed")

	// Data-integrity errors. Never auto-retried; they require manual
	// reconciliation.
	ErrGatewayMismatch = errors.New("gateway reference does not match payment")
	ErrAmountMismatch  = errors.New("captured amount does not match payment")
)
