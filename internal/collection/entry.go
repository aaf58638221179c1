// Package collection groups a user's owned-card rows by card and version,
// detects duplicate rows and plans their merge.
package collection

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

// Entry is one user-owned row.
type Entry struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	CardID string `json:"cardId"`

	// One of the resolver's version labels. Blank is read as "Normale".
	Version  string `json:"version"`
	Quantity int    `json:"quantity"`

	Condition string `json:"condition,omitempty"`

	IsGraded     bool   `json:"isGraded"`
	GradeCompany string `json:"gradeCompany,omitempty"`
	Grade        string `json:"grade,omitempty"`

	PurchasePrice *float64  `json:"purchasePrice,omitempty"`
	DateAdded     time.Time `json:"dateAdded"`
}

// NewEntry returns a row with a fresh id, quantity 1 and the current time.
func NewEntry(userID, cardID, version string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		CardID:    cardID,
		Version:   versions.Canonical(version),
		Quantity:  1,
		DateAdded: time.Now().UTC(),
	}
}

// Validate checks the row invariants.
func (e Entry) Validate() error {
	const op = "collection.Entry.Validate"

	if e.CardID == "" {
		return apperr.Errorf(apperr.Invalid, op, "card id is required")
	}
	if e.Quantity < 1 {
		return apperr.Errorf(apperr.Invalid, op, "quantity must be at least 1, got %d", e.Quantity)
	}
	if !e.IsGraded {
		if e.GradeCompany != "" || e.Grade != "" {
			return apperr.Errorf(apperr.Invalid, op, "grading fields require isGraded")
		}
		return nil
	}
	if e.GradeCompany == "" || e.Grade == "" {
		return apperr.Errorf(apperr.Invalid, op, "graded cards need a company and a grade")
	}
	if e.Grade == "10+" && e.GradeCompany != "PCA" {
		return apperr.Errorf(apperr.Invalid, op, "grade 10+ only exists at PCA, got %s", e.GradeCompany)
	}
	return nil
}

// Key identifies a (card, version) pair.
type Key struct {
	CardID  string `json:"cardId"`
	Version string `json:"version"`
}

// KeyOf returns the grouping key of e. Stored versions may carry stray
// whitespace, legacy spellings or be missing.
func KeyOf(e Entry) Key {
	return Key{CardID: e.CardID, Version: versions.Canonical(e.Version)}
}

// Same reports whether k and o name the same card version. Labels outside
// the known set compare case- and accent-insensitively.
func (k Key) Same(o Key) bool {
	return k.folded() == o.folded()
}

func (k Key) folded() Key {
	return Key{CardID: k.CardID, Version: tcg.Fold(k.Version)}
}

// keyer hands out one key per card version across a batch of rows, spelled
// as first seen.
type keyer map[Key]Key

func (ks keyer) of(e Entry) Key {
	k := KeyOf(e)
	f := k.folded()
	if first, ok := ks[f]; ok {
		return first
	}
	ks[f] = k
	return k
}

// Less orders keys by card id, then display rank, then label.
func (k Key) Less(o Key) bool {
	if k.CardID != o.CardID {
		return k.CardID < o.CardID
	}
	if rk, ro := versions.Rank(k.Version), versions.Rank(o.Version); rk != ro {
		return rk < ro
	}
	return k.Version < o.Version
}
