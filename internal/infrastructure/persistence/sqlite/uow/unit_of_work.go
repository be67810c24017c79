package uow

import (
	"context"

	"gorm.io/gorm"

	"capatrack/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm. Every transition
// request runs inside one of these transactions: the reads informing
// the decision, the entity mutation, the history append, and any
// cascaded closures commit or roll back together.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
