package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultestim/vaultestim/internal/prices"
)

func TestQuotaRepository_LoadQuota(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT preference_value FROM admin_preferences`).
			WithArgs(QuotaPreferenceKey).
			WillReturnError(sql.ErrNoRows)

		s, err := NewQuotaRepository(db).LoadQuota(context.Background())
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("decodes", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT preference_value FROM admin_preferences`).
			WillReturnRows(sqlmock.NewRows([]string{"preference_value"}).
				AddRow([]byte(`{"used":42,"limit":100,"pendingRequests":0,"resetAt":"2025-05-02T00:00:00Z"}`)))

		s, err := NewQuotaRepository(db).LoadQuota(context.Background())
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, 42, s.Used)
		assert.Equal(t, 100, s.Limit)
		assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), s.ResetAt.UTC())
	})

	t.Run("query error", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT preference_value`).WillReturnError(errors.New("down"))

		_, err := NewQuotaRepository(db).LoadQuota(context.Background())
		assert.Error(t, err)
	})
}

func TestQuotaRepository_SaveQuota(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`INSERT INTO admin_preferences .* ON CONFLICT \(preference_key\) DO UPDATE`).
		WithArgs(QuotaPreferenceKey, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewQuotaRepository(db).SaveQuota(context.Background(), prices.QuotaState{Used: 1, Limit: 100})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaRepository_IsQuotaStore(t *testing.T) {
	var _ prices.QuotaStore = NewQuotaRepository(nil)
}
