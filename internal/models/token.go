package models

import "time"

// QRReleaseToken is the single-use secret embedded in the customer's
// receipt. Consuming it is the only way a payment reaches RELEASED.
type QRReleaseToken struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	PaymentID  uint       `gorm:"not null;index" json:"payment_id"`
	Token      string     `gorm:"uniqueIndex;not null" json:"token"`
	IssuedAt   time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	ConsumedBy *string    `json:"consumed_by,omitempty"`
}

func (t *QRReleaseToken) Consumed() bool {
	return t.ConsumedAt != nil
}

func (t *QRReleaseToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
