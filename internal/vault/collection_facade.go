package vault

import (
	"context"
	"sort"
	"strings"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/collection"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

// CollectionFacade handles all collection-related operations.
type CollectionFacade struct {
	services *Services
}

// NewCollectionFacade creates a new CollectionFacade with the given services.
func NewCollectionFacade(services *Services) *CollectionFacade {
	return &CollectionFacade{services: services}
}

// CardGroup is one owned card with its version groups in display order.
type CardGroup struct {
	CardID   string                     `json:"cardId"`
	Quantity int                        `json:"quantity"`
	Versions []*collection.VersionGroup `json:"versions"`
}

// AddRequest describes a new collection row. A blank version selects the
// card's default version and a zero quantity means 1.
type AddRequest struct {
	CardID        string   `json:"cardId"`
	Version       string   `json:"version"`
	Quantity      int      `json:"quantity"`
	Condition     string   `json:"condition"`
	IsGraded      bool     `json:"isGraded"`
	GradeCompany  string   `json:"gradeCompany"`
	Grade         string   `json:"grade"`
	PurchasePrice *float64 `json:"purchasePrice"`
}

// UpdateRequest changes the fields that are set.
type UpdateRequest struct {
	Version       *string  `json:"version"`
	Quantity      *int     `json:"quantity"`
	Condition     *string  `json:"condition"`
	IsGraded      *bool    `json:"isGraded"`
	GradeCompany  *string  `json:"gradeCompany"`
	Grade         *string  `json:"grade"`
	PurchasePrice *float64 `json:"purchasePrice"`
}

// MergeResult summarizes a duplicate merge.
type MergeResult struct {
	Groups  int                    `json:"groups"`
	Removed int                    `json:"removed"`
	Plans   []collection.MergePlan `json:"plans"`
}

// Rows returns the raw rows of a user.
func (c *CollectionFacade) Rows(ctx context.Context, userID string) ([]collection.Entry, error) {
	if err := requireUser("vault.Collection.Rows", userID); err != nil {
		return nil, err
	}
	return c.services.Collection.ListByUser(ctx, userID)
}

// List returns the collection grouped by card and version.
func (c *CollectionFacade) List(ctx context.Context, userID string) ([]CardGroup, error) {
	rows, err := c.Rows(ctx, userID)
	if err != nil {
		return nil, err
	}

	grouped := collection.GroupForDisplay(rows)
	ids := grouped.CardIDs()
	out := make([]CardGroup, 0, len(ids))
	for _, id := range ids {
		out = append(out, CardGroup{
			CardID:   id,
			Quantity: grouped.Quantity(id),
			Versions: grouped.Versions(id),
		})
	}
	return out, nil
}

// Add stores a new row after checking the version against the card.
func (c *CollectionFacade) Add(ctx context.Context, userID string, req AddRequest) (collection.Entry, error) {
	const op = "vault.Collection.Add"
	if err := requireUser(op, userID); err != nil {
		return collection.Entry{}, err
	}
	if req.CardID == "" {
		return collection.Entry{}, apperr.Errorf(apperr.Invalid, op, "card id is required")
	}

	card, err := c.services.Catalog.FindCard(ctx, req.CardID)
	if err != nil {
		return collection.Entry{}, err
	}

	version := req.Version
	if strings.TrimSpace(version) == "" {
		version = c.services.resolver().DefaultVersion(card)
	}
	if err := c.checkVersion(op, card, version); err != nil {
		return collection.Entry{}, err
	}

	e := collection.NewEntry(userID, card.ID, version)
	if req.Quantity != 0 {
		e.Quantity = req.Quantity
	}
	e.Condition = req.Condition
	e.IsGraded = req.IsGraded
	e.GradeCompany = req.GradeCompany
	e.Grade = req.Grade
	e.PurchasePrice = req.PurchasePrice

	if err := e.Validate(); err != nil {
		return collection.Entry{}, err
	}
	if err := c.services.Collection.Insert(ctx, e); err != nil {
		return collection.Entry{}, err
	}
	return e, nil
}

func (c *CollectionFacade) checkVersion(op string, card tcg.Card, version string) error {
	r := c.services.resolver()
	if r.Allowed(card, version) {
		return nil
	}
	return apperr.Errorf(apperr.Invalid, op, "version %q is not available for %s (allowed: %s)",
		version, card.ID, strings.Join(r.Resolve(card), ", "))
}

// Update applies req to a row.
func (c *CollectionFacade) Update(ctx context.Context, userID, entryID string, req UpdateRequest) (collection.Entry, error) {
	const op = "vault.Collection.Update"
	if err := requireUser(op, userID); err != nil {
		return collection.Entry{}, err
	}

	e, err := c.services.Collection.Get(ctx, userID, entryID)
	if err != nil {
		return collection.Entry{}, err
	}

	if req.Version != nil && versions.Canonical(*req.Version) != versions.Canonical(e.Version) {
		card, err := c.services.Catalog.FindCard(ctx, e.CardID)
		if err != nil {
			return collection.Entry{}, err
		}
		if err := c.checkVersion(op, card, *req.Version); err != nil {
			return collection.Entry{}, err
		}
		e.Version = versions.Canonical(*req.Version)
	}
	if req.Quantity != nil {
		e.Quantity = *req.Quantity
	}
	if req.Condition != nil {
		e.Condition = *req.Condition
	}
	if req.IsGraded != nil {
		e.IsGraded = *req.IsGraded
		if !e.IsGraded {
			e.GradeCompany, e.Grade = "", ""
		}
	}
	if req.GradeCompany != nil {
		e.GradeCompany = *req.GradeCompany
	}
	if req.Grade != nil {
		e.Grade = *req.Grade
	}
	if req.PurchasePrice != nil {
		e.PurchasePrice = req.PurchasePrice
	}

	if err := e.Validate(); err != nil {
		return collection.Entry{}, err
	}
	if err := c.services.Collection.Update(ctx, e); err != nil {
		return collection.Entry{}, err
	}
	return e, nil
}

// Adjust changes a row's quantity by delta; the row is removed at 0.
func (c *CollectionFacade) Adjust(ctx context.Context, userID, entryID string, delta int) (int, error) {
	const op = "vault.Collection.Adjust"
	if err := requireUser(op, userID); err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, apperr.Errorf(apperr.Invalid, op, "delta must not be 0")
	}
	return c.services.Collection.AdjustQuantity(ctx, userID, entryID, delta)
}

// Delete removes a row.
func (c *CollectionFacade) Delete(ctx context.Context, userID, entryID string) error {
	if err := requireUser("vault.Collection.Delete", userID); err != nil {
		return err
	}
	return c.services.Collection.Delete(ctx, userID, entryID)
}

// Duplicates lists duplicate groups under mode.
func (c *CollectionFacade) Duplicates(ctx context.Context, userID string, mode collection.Mode) ([]collection.DuplicateGroup, error) {
	rows, err := c.Rows(ctx, userID)
	if err != nil {
		return nil, err
	}
	return collection.Groups(rows, mode), nil
}

// MergeDuplicates folds every group of rows sharing a (card, version) into
// one row. Each group is applied in its own transaction.
func (c *CollectionFacade) MergeDuplicates(ctx context.Context, userID string) (MergeResult, error) {
	rows, err := c.Rows(ctx, userID)
	if err != nil {
		return MergeResult{}, err
	}

	dups := collection.FindDuplicates(rows, collection.ModeRows)
	keys := make([]collection.Key, 0, len(dups))
	for k := range dups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	res := MergeResult{Plans: []collection.MergePlan{}}
	for _, k := range keys {
		plan, err := collection.PlanMerge(dups[k])
		if err != nil {
			return res, err
		}
		if err := c.services.Collection.ApplyMerge(ctx, plan); err != nil {
			return res, err
		}
		res.Groups++
		res.Removed += len(plan.Remove)
		res.Plans = append(res.Plans, plan)
	}

	if res.Groups > 0 {
		c.services.logger().Info(ctx, "merged duplicate rows",
			"user", userID, "groups", res.Groups, "removed", res.Removed)
	}
	return res, nil
}
