package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upClearOrphanGrading, nil)
}

// Older clients kept the grading company and grade after a card was
// switched back to ungraded, and allowed "10+" outside PCA.
func upClearOrphanGrading(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE user_collection SET grade_company = '', grade = ''
		WHERE is_graded = FALSE AND (grade_company <> '' OR grade <> '')`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE user_collection SET grade = '10'
		WHERE is_graded = TRUE AND grade = '10+' AND grade_company <> 'PCA'`)
	return err
}
