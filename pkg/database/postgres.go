package database

import (
	"log"

	"github.com/teranga-booking/escrow-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Booking{},
		&models.Payment{},
		&models.QRReleaseToken{},
		&models.WalletAccount{},
		&models.WalletTransaction{},
	); err != nil {
		log.Fatalf("failed to auto-migrate: %v", err)
	}

	// Partial unique index: a booking carries at most one non-terminal
	// payment attempt.
	db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_active
		ON payments (booking_id)
		WHERE custody_state NOT IN ('RELEASED', 'REFUSED', 'REFUNDED')
	`)

	// The one-active-token-per-payment invariant is time-dependent
	// (unconsumed AND unexpired), so it cannot be a partial index; minting
	// holds the payment row lock and expires prior tokens in the same
	// transaction instead.

	return db
}
