package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultestim/vaultestim/internal/collection"
)

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), nil)
	assert.Error(t, err)

	_, err = Open(context.Background(), DefaultConfig(""))
	assert.ErrorContains(t, err, "DSN is required")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("postgres://localhost/vault")
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.False(t, cfg.AutoMigrate)
}

func TestWithTransaction(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := NewDB(conn)
	defer func() { _ = db.Close() }()

	t.Run("commits", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM user_collection`).WithArgs("u1", "e1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := db.WithTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
			return tx.Collection().Delete(ctx, "u1", "e1")
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO user_collection`).WillReturnError(errors.New("constraint"))
		mock.ExpectRollback()

		err := db.WithTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
			return tx.Collection().Insert(ctx, collection.NewEntry("u1", "sv1-1", ""))
		})
		assert.ErrorContains(t, err, "failed to insert collection entry")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
