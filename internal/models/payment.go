package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustodyState tracks where a payment's funds sit while the platform
// holds them. RELEASED, REFUSED and REFUNDED are terminal.
type CustodyState string

const (
	PaymentPending  CustodyState = "PENDING"
	PaymentHeld     CustodyState = "HELD"
	PaymentCaptured CustodyState = "CAPTURED"
	PaymentReleased CustodyState = "RELEASED"
	PaymentRefused  CustodyState = "REFUSED"
	PaymentRefunded CustodyState = "REFUNDED"
)

func (s CustodyState) Terminal() bool {
	return s == PaymentReleased || s == PaymentRefused || s == PaymentRefunded
}

// CanTransitionTo encodes the custody lifecycle. RELEASED is reachable
// only from CAPTURED; the token consumption path is the sole caller that
// requests it.
func (s CustodyState) CanTransitionTo(next CustodyState) bool {
	switch s {
	case PaymentPending:
		return next == PaymentHeld || next == PaymentRefused
	case PaymentHeld:
		return next == PaymentCaptured || next == PaymentRefused || next == PaymentRefunded
	case PaymentCaptured:
		return next == PaymentReleased || next == PaymentRefunded
	default:
		return false
	}
}

// FundsInEscrow reports whether money for this state currently sits in the
// platform escrow account, i.e. a cancellation needs a compensating refund.
func (s CustodyState) FundsInEscrow() bool {
	return s == PaymentHeld || s == PaymentCaptured
}

type Payment struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	BookingID        uint            `gorm:"not null;index" json:"booking_id"`
	Amount           decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency         string          `gorm:"type:varchar(3);not null" json:"currency"`
	GatewayReference string          `json:"gateway_reference,omitempty"`
	CustodyState     CustodyState    `gorm:"type:varchar(20);not null;default:'PENDING'" json:"custody_state"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
