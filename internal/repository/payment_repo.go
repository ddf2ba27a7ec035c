package repository

import (
	"context"

	"github.com/teranga-booking/escrow-service/internal/models"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *models.Payment) error
	FindByID(ctx context.Context, id uint) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Payment, error)
	FindByGatewayReference(ctx context.Context, tx *gorm.DB, ref string) (*models.Payment, error)
	// FindActiveByBookingID returns the single non-terminal payment of a
	// booking, if any. The partial unique index guarantees at most one.
	FindActiveByBookingID(ctx context.Context, tx *gorm.DB, bookingID uint) (*models.Payment, error)
	// TransitionState is a compare-and-set on custody_state; the boolean
	// reports whether this caller won the transition.
	TransitionState(ctx context.Context, tx *gorm.DB, id uint, from, to models.CustodyState) (bool, error)
	// MarkHeld is TransitionState for PENDING->HELD that also records the
	// gateway reference in the same statement.
	MarkHeld(ctx context.Context, tx *gorm.DB, id uint, gatewayRef string) (bool, error)
	GetDB() *gorm.DB
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *paymentRepository) Create(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := tx.WithContext(ctx).
		Set("gorm:query_option", "FOR UPDATE").
		First(&payment, id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByGatewayReference(ctx context.Context, tx *gorm.DB, ref string) (*models.Payment, error) {
	var payment models.Payment
	err := tx.WithContext(ctx).Where("gateway_reference = ?", ref).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindActiveByBookingID(ctx context.Context, tx *gorm.DB, bookingID uint) (*models.Payment, error) {
	var payment models.Payment
	err := tx.WithContext(ctx).
		Where("booking_id = ? AND custody_state NOT IN ?", bookingID,
			[]models.CustodyState{models.PaymentReleased, models.PaymentRefused, models.PaymentRefunded}).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) TransitionState(ctx context.Context, tx *gorm.DB, id uint, from, to models.CustodyState) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND custody_state = ?", id, from).
		Update("custody_state", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *paymentRepository) MarkHeld(ctx context.Context, tx *gorm.DB, id uint, gatewayRef string) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND custody_state = ?", id, models.PaymentPending).
		Updates(map[string]any{
			"custody_state":     models.PaymentHeld,
			"gateway_reference": gatewayRef,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
