package repository

import (
	"context"
	"time"

	"github.com/teranga-booking/escrow-service/internal/models"
	"gorm.io/gorm"
)

type TokenRepository interface {
	Create(ctx context.Context, tx *gorm.DB, token *models.QRReleaseToken) error
	FindByToken(ctx context.Context, tx *gorm.DB, token string) (*models.QRReleaseToken, error)
	FindActiveByPaymentID(ctx context.Context, tx *gorm.DB, paymentID uint, now time.Time) (*models.QRReleaseToken, error)
	// Consume sets consumed_at/consumed_by only while consumed_at is still
	// NULL and the deadline has not passed. Exactly one concurrent caller
	// can win; everyone else gets false.
	Consume(ctx context.Context, tx *gorm.DB, id uint, scanner string, now time.Time) (bool, error)
	// ExpireActive invalidates any unconsumed token of the payment so a
	// fresh one can be minted.
	ExpireActive(ctx context.Context, tx *gorm.DB, paymentID uint, now time.Time) error
	// DeleteExpiredBefore archives out consumed or expired tokens older
	// than the retention cutoff. Hygiene only.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, tx *gorm.DB, token *models.QRReleaseToken) error {
	return tx.WithContext(ctx).Create(token).Error
}

func (r *tokenRepository) FindByToken(ctx context.Context, tx *gorm.DB, token string) (*models.QRReleaseToken, error) {
	var rec models.QRReleaseToken
	if err := tx.WithContext(ctx).Where("token = ?", token).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *tokenRepository) FindActiveByPaymentID(ctx context.Context, tx *gorm.DB, paymentID uint, now time.Time) (*models.QRReleaseToken, error) {
	var rec models.QRReleaseToken
	err := tx.WithContext(ctx).
		Where("payment_id = ? AND consumed_at IS NULL AND expires_at > ?", paymentID, now).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *tokenRepository) Consume(ctx context.Context, tx *gorm.DB, id uint, scanner string, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.QRReleaseToken{}).
		Where("id = ? AND consumed_at IS NULL AND expires_at > ?", id, now).
		Updates(map[string]any{
			"consumed_at": now,
			"consumed_by": scanner,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *tokenRepository) ExpireActive(ctx context.Context, tx *gorm.DB, paymentID uint, now time.Time) error {
	return tx.WithContext(ctx).
		Model(&models.QRReleaseToken{}).
		Where("payment_id = ? AND consumed_at IS NULL AND expires_at > ?", paymentID, now).
		Update("expires_at", now).Error
}

func (r *tokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.QRReleaseToken{})
	return res.RowsAffected, res.Error
}
