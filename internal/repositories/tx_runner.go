package repositories

import (
	"context"

	"gorm.io/gorm"

	"fooddelivery/pkg/dbctx"
)

// TxRunner runs fn inside one database transaction. Returning an error rolls it back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

// GormTxRunner is the GORM implementation of TxRunner.
type GormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner creates a new instance of GormTxRunner.
func NewGormTxRunner(db *gorm.DB) *GormTxRunner {
	return &GormTxRunner{db: db}
}

func (r *GormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
