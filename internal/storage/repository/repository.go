// Package repository holds the Postgres repositories for user data.
package repository

import (
	"context"
	"database/sql"

	"github.com/vaultestim/vaultestim/internal/dbx"
)

// inTx runs fn in a new transaction when db is a pool, or directly on db
// when it already is one.
func inTx(ctx context.Context, db dbx.DBTX, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if pool, ok := db.(*sql.DB); ok {
		return dbx.WithTx(ctx, pool, nil, fn)
	}
	return fn(ctx, db)
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v != 0}
}
