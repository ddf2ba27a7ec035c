package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/teranga-booking/escrow-service/internal/models"
)

type BookingResponse struct {
	ID           uint                 `json:"id"`
	CustomerID   string               `json:"customer_id"`
	OwnerID      string               `json:"owner_id"`
	BookableType models.BookableType  `json:"bookable_type"`
	BookableID   string               `json:"bookable_id"`
	StartDate    time.Time            `json:"start_date"`
	EndDate      time.Time            `json:"end_date"`
	Guests       int                  `json:"guests"`
	Reference    string               `json:"reference"`
	Status       models.BookingStatus `json:"status"`
	CreatedAt    time.Time            `json:"created_at"`

	Payment *PaymentResponse `json:"payment,omitempty"`
}

type PaymentResponse struct {
	ID               uint                `json:"id"`
	BookingID        uint                `json:"booking_id"`
	Amount           decimal.Decimal     `json:"amount"`
	Currency         string              `json:"currency"`
	GatewayReference string              `json:"gateway_reference,omitempty"`
	CustodyState     models.CustodyState `json:"custody_state"`
	CreatedAt        time.Time           `json:"created_at"`
}

// TokenResponse carries the raw token string for the receipt/PDF generator
// to embed into a scannable QR image.
type TokenResponse struct {
	PaymentID uint      `json:"payment_id"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type WalletResponse struct {
	ID       uint               `json:"id"`
	Kind     models.AccountKind `json:"kind"`
	OwnerRef string             `json:"owner_ref"`
	Balance  decimal.Decimal    `json:"balance"`
	// LedgerBalance is recomputed from the transaction log; it must equal
	// Balance when the books are consistent.
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
}

type TransactionResponse struct {
	ID               uint                     `json:"id"`
	Reference        string                   `json:"reference"`
	Amount           decimal.Decimal          `json:"amount"`
	Type             models.TransactionType   `json:"type"`
	Status           models.TransactionStatus `json:"status"`
	RelatedPaymentID *uint                    `json:"related_payment_id,omitempty"`
	Description      string                   `json:"description,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToBookingResponse(b *models.Booking, p *models.Payment) BookingResponse {
	resp := BookingResponse{
		ID:           b.ID,
		CustomerID:   b.CustomerID,
		OwnerID:      b.OwnerID,
		BookableType: b.BookableType,
		BookableID:   b.BookableID,
		StartDate:    b.StartDate,
		EndDate:      b.EndDate,
		Guests:       b.Guests,
		Reference:    b.Reference,
		Status:       b.Status,
		CreatedAt:    b.CreatedAt,
	}
	if p != nil {
		pr := ToPaymentResponse(p)
		resp.Payment = &pr
	}
	return resp
}

func ToPaymentResponse(p *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		BookingID:        p.BookingID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		GatewayReference: p.GatewayReference,
		CustodyState:     p.CustodyState,
		CreatedAt:        p.CreatedAt,
	}
}

func ToTokenResponse(t *models.QRReleaseToken) TokenResponse {
	return TokenResponse{
		PaymentID: t.PaymentID,
		Token:     t.Token,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	}
}

func ToTransactionResponse(t *models.WalletTransaction) TransactionResponse {
	return TransactionResponse{
		ID:               t.ID,
		Reference:        t.Reference,
		Amount:           t.Amount,
		Type:             t.Type,
		Status:           t.Status,
		RelatedPaymentID: t.RelatedPaymentID,
		Description:      t.Description,
		CreatedAt:        t.CreatedAt,
	}
}
