package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vaultestim/vaultestim/internal/dbx"
	"github.com/vaultestim/vaultestim/internal/prices"
)

// QuotaPreferenceKey is the admin_preferences row holding the price API budget.
const QuotaPreferenceKey = "rapidapi_quota_tracker"

// QuotaRepository persists the price API quota. It implements prices.QuotaStore.
type QuotaRepository interface {
	LoadQuota(ctx context.Context) (*prices.QuotaState, error)
	SaveQuota(ctx context.Context, s prices.QuotaState) error
}

type quotaRepository struct {
	db dbx.DBTX
}

// NewQuotaRepository creates a new quota repository.
func NewQuotaRepository(db dbx.DBTX) QuotaRepository {
	return &quotaRepository{db: db}
}

// LoadQuota returns nil, nil when no budget has been stored yet.
func (r *quotaRepository) LoadQuota(ctx context.Context) (*prices.QuotaState, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT preference_value FROM admin_preferences WHERE preference_key = $1`,
		QuotaPreferenceKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quota: %w", err)
	}

	var s prices.QuotaState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode quota: %w", err)
	}
	return &s, nil
}

func (r *quotaRepository) SaveQuota(ctx context.Context, s prices.QuotaState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode quota: %w", err)
	}

	query := `
		INSERT INTO admin_preferences (preference_key, preference_value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (preference_key) DO UPDATE SET
			preference_value = EXCLUDED.preference_value,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, QuotaPreferenceKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save quota: %w", err)
	}
	return nil
}
