package service

import (
	"context"

	"gorm.io/gorm"
)

// TxRunner runs a unit of work inside one storage transaction. The
// coordinator depends on this instead of *gorm.DB directly so its logic is
// exercisable against in-memory repositories in tests.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type GormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) *GormTxRunner {
	return &GormTxRunner{db: db}
}

func (r *GormTxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
