package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/teranga-booking/escrow-service/internal/models"
	"github.com/teranga-booking/escrow-service/internal/repository"
	"gorm.io/gorm"
)

// verifyPathMarker is the receipt URL path segment that precedes the token.
const verifyPathMarker = "/verify-booking/"

// ExtractToken normalizes scanner input into a bare token. Accepted forms:
//
//	abc123
//	https://host/verify-booking/abc123
//	https://host/verify-booking/abc123?x=1
//
// Extraction stops at the first '?' or '/' after the token segment.
func ExtractToken(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, verifyPathMarker); i >= 0 {
		s = s[i+len(verifyPathMarker):]
	}
	if i := strings.IndexAny(s, "?/"); i >= 0 {
		s = s[:i]
	}
	return s
}

// generateToken returns 256 bits of randomness, base64url-encoded.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenService mints and validates QR release tokens. Consumption itself is
// driven by the Reconciler so it shares the release transaction.
type TokenService struct {
	tokens repository.TokenRepository
	grace  time.Duration
	now    func() time.Time
}

func NewTokenService(tokens repository.TokenRepository, grace time.Duration) *TokenService {
	return &TokenService{tokens: tokens, grace: grace, now: time.Now}
}

// Mint issues a fresh single-use token for a CAPTURED payment, invalidating
// any prior unconsumed one. Expiry is the stay end plus the grace window,
// or grace from now when the booking has no end date.
func (s *TokenService) Mint(ctx context.Context, tx *gorm.DB, payment *models.Payment, booking *models.Booking) (*models.QRReleaseToken, error) {
	if payment.CustodyState != models.PaymentCaptured {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	if err := s.tokens.ExpireActive(ctx, tx, payment.ID, now); err != nil {
		return nil, err
	}

	value, err := generateToken()
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(s.grace)
	if !booking.EndDate.IsZero() {
		expiresAt = booking.EndDate.Add(s.grace)
	}

	token := &models.QRReleaseToken{
		PaymentID: payment.ID,
		Token:     value,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
	if err := s.tokens.Create(ctx, tx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// Validate looks up a raw scan input and checks it is consumable right now.
// Order matters for the user-facing messages: unknown, then expired, then
// already consumed.
func (s *TokenService) Validate(ctx context.Context, tx *gorm.DB, raw string) (*models.QRReleaseToken, error) {
	value := ExtractToken(raw)
	if value == "" {
		return nil, ErrTokenNotFound
	}

	token, err := s.tokens.FindByToken(ctx, tx, value)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if token.ExpiredAt(s.now()) {
		return nil, ErrTokenExpired
	}
	if token.Consumed() {
		return nil, ErrTokenAlreadyConsumed
	}
	return token, nil
}

// Consume performs the atomic conditional update. A false return means
// another scanner won the race after Validate looked.
func (s *TokenService) Consume(ctx context.Context, tx *gorm.DB, token *models.QRReleaseToken, scanner string) (bool, error) {
	return s.tokens.Consume(ctx, tx, token.ID, scanner, s.now())
}

// Invalidate expires any outstanding token of a payment without consuming
// it (cancellation path).
func (s *TokenService) Invalidate(ctx context.Context, tx *gorm.DB, paymentID uint) error {
	return s.tokens.ExpireActive(ctx, tx, paymentID, s.now())
}
