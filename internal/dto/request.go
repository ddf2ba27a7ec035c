package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateBookingRequest struct {
	CustomerID   string          `json:"customer_id"`
	OwnerID      string          `json:"owner_id"`
	BookableType string          `json:"bookable_type"`
	BookableID   string          `json:"bookable_id"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	Guests       int             `json:"guests"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

type CancelBookingRequest struct {
	Actor string `json:"actor"`
}

// GatewayCaptureRequest is the capture-confirmation callback from the
// external payment gateway.
type GatewayCaptureRequest struct {
	GatewayReference string          `json:"gateway_reference"`
	PaymentID        uint            `json:"payment_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

type ScanRequest struct {
	Token     string `json:"token"`
	ScannerID string `json:"scanner_id"`
}
