package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/dbx"
	"github.com/vaultestim/vaultestim/internal/prices"
)

// PriceRepository stores fetched market prices. It implements prices.Sink.
type PriceRepository interface {
	// SavePrice inserts or replaces the price for (card, version, source).
	SavePrice(ctx context.Context, p prices.Price) error

	// Latest returns the most recently fetched price of (card, version)
	// across sources, or an apperr.NotFound error.
	Latest(ctx context.Context, cardID, version string) (prices.Price, error)
}

type priceRepository struct {
	db dbx.DBTX
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(db dbx.DBTX) PriceRepository {
	return &priceRepository{db: db}
}

func (r *priceRepository) SavePrice(ctx context.Context, p prices.Price) error {
	query := `
		INSERT INTO card_prices (card_id, version, source, amount, currency, field, low, trend, avg30, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (card_id, version, source) DO UPDATE SET
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			field = EXCLUDED.field,
			low = EXCLUDED.low,
			trend = EXCLUDED.trend,
			avg30 = EXCLUDED.avg30,
			fetched_at = EXCLUDED.fetched_at
	`
	_, err := r.db.ExecContext(ctx, query,
		p.CardID, p.Version, p.Source, p.Amount, p.Currency, p.Field,
		nullFloat(p.Low), nullFloat(p.Trend), nullFloat(p.Avg30), p.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to save price: %w", err)
	}
	return nil
}

func (r *priceRepository) Latest(ctx context.Context, cardID, version string) (prices.Price, error) {
	query := `
		SELECT card_id, version, source, amount, currency, field, low, trend, avg30, fetched_at
		FROM card_prices
		WHERE card_id = $1 AND version = $2
		ORDER BY fetched_at DESC
		LIMIT 1
	`
	var (
		p                 prices.Price
		low, trend, avg30 sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, cardID, version).Scan(
		&p.CardID, &p.Version, &p.Source, &p.Amount, &p.Currency, &p.Field,
		&low, &trend, &avg30, &p.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return prices.Price{}, apperr.Errorf(apperr.NotFound, "repository.Price.Latest", "no price for %s (%s)", cardID, version)
	}
	if err != nil {
		return prices.Price{}, fmt.Errorf("failed to get latest price: %w", err)
	}
	p.Low, p.Trend, p.Avg30 = low.Float64, trend.Float64, avg30.Float64
	return p, nil
}
