package storage

import (
	"context"

	"github.com/vaultestim/vaultestim/internal/dbx"
	"github.com/vaultestim/vaultestim/internal/storage/repository"
)

// Tx exposes the repositories bound to one transaction.
type Tx struct {
	tx dbx.DBTX
}

func (t Tx) Collection() repository.CollectionRepository {
	return repository.NewCollectionRepository(t.tx)
}

func (t Tx) Prices() repository.PriceRepository {
	return repository.NewPriceRepository(t.tx)
}

// WithTransaction runs fn in a transaction, committing on success and
// rolling back on error or panic.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return dbx.WithTx(ctx, db.conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, Tx{tx: tx})
	})
}
