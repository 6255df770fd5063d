package database

import (
	"context"

	"gorm.io/gorm"
)

type contextKey string

const (
	// TxKey is the context key for the transaction opened by Transaction.
	TxKey contextKey = "gormTx"
)

// GetTx retrieves the active transaction from context.
// Returns nil and false if not present.
func GetTx(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(TxKey).(*gorm.DB)
	return tx, ok
}

// SetTx stores a transaction in context.
func SetTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, TxKey, tx)
}

// Conn returns the transaction carried by ctx, or the pool when there is
// none. Repositories must go through Conn so that work started inside
// Transaction stays on the same connection.
func (db *DB) Conn(ctx context.Context) *gorm.DB {
	if tx, ok := GetTx(ctx); ok {
		return tx.WithContext(ctx)
	}
	return db.DB.WithContext(ctx)
}

// Transaction runs fn inside a database transaction. Nested calls reuse the
// outer transaction.
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}
	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(SetTx(ctx, tx))
	})
}
