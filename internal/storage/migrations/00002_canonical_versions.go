package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

func init() {
	goose.AddMigrationContext(upCanonicalVersions, nil)
}

// upCanonicalVersions rewrites legacy or mis-spaced version labels to their
// canonical form. Running it twice changes nothing.
func upCanonicalVersions(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT version FROM user_collection`)
	if err != nil {
		return fmt.Errorf("failed to list stored versions: %w", err)
	}
	var stored []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		stored = append(stored, v)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, v := range stored {
		c := versions.Canonical(v)
		if c == v {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE user_collection SET version = $1 WHERE version = $2`, c, v); err != nil {
			return fmt.Errorf("failed to rewrite version %q: %w", v, err)
		}
	}
	return nil
}
