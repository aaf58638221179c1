package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/collection"
	"github.com/vaultestim/vaultestim/internal/dbx"
)

// CollectionRepository handles database operations for a user's owned cards.
type CollectionRepository interface {
	// ListByUser returns all rows of a user ordered by date added.
	ListByUser(ctx context.Context, userID string) ([]collection.Entry, error)

	// Get returns one row, or an apperr.NotFound error.
	Get(ctx context.Context, userID, id string) (collection.Entry, error)

	Insert(ctx context.Context, e collection.Entry) error
	Update(ctx context.Context, e collection.Entry) error

	// AdjustQuantity adds delta to a row's quantity and returns the new
	// quantity. The row is deleted when the result drops to 0 or below.
	AdjustQuantity(ctx context.Context, userID, id string, delta int) (int, error)

	Delete(ctx context.Context, userID, id string) error

	// ListUserIDs returns every user owning at least one row.
	ListUserIDs(ctx context.Context) ([]string, error)

	// ApplyMerge writes the kept row and removes the merged ones atomically.
	ApplyMerge(ctx context.Context, plan collection.MergePlan) error
}

// collectionRepository is the concrete implementation of CollectionRepository.
type collectionRepository struct {
	db dbx.DBTX
}

// NewCollectionRepository creates a new collection repository.
func NewCollectionRepository(db dbx.DBTX) CollectionRepository {
	return &collectionRepository{db: db}
}

const collectionColumns = `id, user_id, card_id, version, quantity, condition, is_graded, grade_company, grade, purchase_price, date_added`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (collection.Entry, error) {
	var (
		e     collection.Entry
		price sql.NullFloat64
	)
	err := s.Scan(&e.ID, &e.UserID, &e.CardID, &e.Version, &e.Quantity, &e.Condition,
		&e.IsGraded, &e.GradeCompany, &e.Grade, &price, &e.DateAdded)
	if err != nil {
		return collection.Entry{}, err
	}
	if price.Valid {
		v := price.Float64
		e.PurchasePrice = &v
	}
	return e, nil
}

func purchasePrice(e collection.Entry) sql.NullFloat64 {
	if e.PurchasePrice == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *e.PurchasePrice, Valid: true}
}

// ListByUser returns all rows of a user ordered by date added.
func (r *collectionRepository) ListByUser(ctx context.Context, userID string) ([]collection.Entry, error) {
	query := `SELECT ` + collectionColumns + ` FROM user_collection WHERE user_id = $1 ORDER BY date_added, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []collection.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection rows: %w", err)
	}
	return entries, nil
}

// Get returns one row, or an apperr.NotFound error.
func (r *collectionRepository) Get(ctx context.Context, userID, id string) (collection.Entry, error) {
	query := `SELECT ` + collectionColumns + ` FROM user_collection WHERE user_id = $1 AND id = $2`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return collection.Entry{}, apperr.Errorf(apperr.NotFound, "repository.Collection.Get", "collection entry %s not found", id)
	}
	if err != nil {
		return collection.Entry{}, fmt.Errorf("failed to get collection entry: %w", err)
	}
	return e, nil
}

// Insert stores a new row.
func (r *collectionRepository) Insert(ctx context.Context, e collection.Entry) error {
	query := `
		INSERT INTO user_collection (` + collectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.CardID, e.Version, e.Quantity, e.Condition,
		e.IsGraded, e.GradeCompany, e.Grade, purchasePrice(e), e.DateAdded)
	if err != nil {
		return fmt.Errorf("failed to insert collection entry: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a row.
func (r *collectionRepository) Update(ctx context.Context, e collection.Entry) error {
	return update(ctx, r.db, e)
}

func update(ctx context.Context, db dbx.DBTX, e collection.Entry) error {
	query := `
		UPDATE user_collection
		SET version = $3, quantity = $4, condition = $5, is_graded = $6,
			grade_company = $7, grade = $8, purchase_price = $9
		WHERE user_id = $1 AND id = $2
	`
	res, err := db.ExecContext(ctx, query,
		e.UserID, e.ID, e.Version, e.Quantity, e.Condition,
		e.IsGraded, e.GradeCompany, e.Grade, purchasePrice(e))
	if err != nil {
		return fmt.Errorf("failed to update collection entry: %w", err)
	}
	return expectOne(res, "repository.Collection.Update", e.ID)
}

// AdjustQuantity adds delta to a row's quantity and returns the new
// quantity. The row is deleted when the result drops to 0 or below.
func (r *collectionRepository) AdjustQuantity(ctx context.Context, userID, id string, delta int) (int, error) {
	var quantity int
	err := inTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx,
			`SELECT quantity FROM user_collection WHERE user_id = $1 AND id = $2 FOR UPDATE`,
			userID, id).Scan(&quantity)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Errorf(apperr.NotFound, "repository.Collection.AdjustQuantity", "collection entry %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to lock collection entry: %w", err)
		}

		quantity += delta
		if quantity <= 0 {
			quantity = 0
			if _, err := tx.ExecContext(ctx, `DELETE FROM user_collection WHERE user_id = $1 AND id = $2`, userID, id); err != nil {
				return fmt.Errorf("failed to delete collection entry: %w", err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE user_collection SET quantity = $3 WHERE user_id = $1 AND id = $2`,
			userID, id, quantity); err != nil {
			return fmt.Errorf("failed to update quantity: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return quantity, nil
}

// Delete removes a row.
func (r *collectionRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_collection WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection entry: %w", err)
	}
	return expectOne(res, "repository.Collection.Delete", id)
}

func (r *collectionRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM user_collection ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return ids, nil
}

// ApplyMerge writes the kept row and removes the merged ones atomically.
func (r *collectionRepository) ApplyMerge(ctx context.Context, plan collection.MergePlan) error {
	return inTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		if err := update(ctx, tx, plan.Keep); err != nil {
			return err
		}
		for _, id := range plan.Remove {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM user_collection WHERE user_id = $1 AND id = $2`, plan.Keep.UserID, id)
			if err != nil {
				return fmt.Errorf("failed to delete merged entry %s: %w", id, err)
			}
			if err := expectOne(res, "repository.Collection.ApplyMerge", id); err != nil {
				return err
			}
		}
		return nil
	})
}

func expectOne(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperr.Errorf(apperr.NotFound, op, "collection entry %s not found", id)
	}
	return nil
}
