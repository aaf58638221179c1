package collection

import (
	"fmt"
	"slices"
	"sort"

	"github.com/vaultestim/vaultestim/internal/apperr"
)

// Mode selects the duplicate predicate.
type Mode int

const (
	// ModeRows flags keys stored as more than one row: the same card added
	// twice instead of having its quantity incremented.
	ModeRows Mode = iota
	// ModeQuantity flags keys whose summed quantity exceeds 1, even when
	// stored as a single row. Drives the "cards I have multiples of" view.
	ModeQuantity
)

func (m Mode) String() string {
	switch m {
	case ModeRows:
		return "rows"
	case ModeQuantity:
		return "quantity"
	default:
		return "unknown"
	}
}

// ParseMode parses "rows" or "quantity".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "rows":
		return ModeRows, nil
	case "quantity":
		return ModeQuantity, nil
	}
	return ModeRows, apperr.Errorf(apperr.Invalid, "collection.ParseMode", "unknown duplicate mode %q", s)
}

// FindDuplicates returns the rows of every key matching mode's predicate.
func FindDuplicates(entries []Entry, mode Mode) map[Key][]Entry {
	rows := make(map[Key][]Entry)
	qty := make(map[Key]int)
	keys := make(keyer)
	for _, e := range entries {
		k := keys.of(e)
		rows[k] = append(rows[k], e)
		qty[k] += e.Quantity
	}

	out := make(map[Key][]Entry)
	for k, rs := range rows {
		switch mode {
		case ModeRows:
			if len(rs) > 1 {
				out[k] = rs
			}
		case ModeQuantity:
			if qty[k] > 1 {
				out[k] = rs
			}
		}
	}
	return out
}

// DuplicateGroup is one actionable duplicate, for the maintenance view.
type DuplicateGroup struct {
	Key      Key      `json:"key"`
	RowIDs   []string `json:"rowIds"`
	Quantity int      `json:"quantity"`
}

// Groups lists the duplicates matching mode, sorted by key.
func Groups(entries []Entry, mode Mode) []DuplicateGroup {
	dups := FindDuplicates(entries, mode)
	groups := make([]DuplicateGroup, 0, len(dups))
	for k, rows := range dups {
		g := DuplicateGroup{Key: k}
		for _, r := range rows {
			g.RowIDs = append(g.RowIDs, r.ID)
			g.Quantity += r.Quantity
		}
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key.Less(groups[j].Key) })
	return groups
}

// Report lists row duplicates sorted by key. It returns a DataIntegrity
// error describing the count when any exist; the list is still returned.
func Report(entries []Entry) ([]DuplicateGroup, error) {
	groups := Groups(entries, ModeRows)
	if len(groups) == 0 {
		return nil, nil
	}
	return groups, apperr.Errorf(apperr.DataIntegrity, "collection.Report",
		"%d card versions are stored as several rows", len(groups))
}

// MergePlan is the outcome of merging duplicate rows into one.
type MergePlan struct {
	Keep   Entry    `json:"keep"`
	Remove []string `json:"remove"`
}

// PlanMerge folds rows sharing one key into the earliest row:
// quantities are summed, the earliest dateAdded is kept, the best known
// condition wins, and for price and grading the earliest non-empty value wins.
func PlanMerge(rows []Entry) (MergePlan, error) {
	const op = "collection.PlanMerge"

	if len(rows) < 2 {
		return MergePlan{}, apperr.Errorf(apperr.Invalid, op, "need at least two rows, got %d", len(rows))
	}
	key := KeyOf(rows[0])
	for _, r := range rows[1:] {
		if !KeyOf(r).Same(key) {
			return MergePlan{}, apperr.E(apperr.Invalid, op,
				fmt.Errorf("rows do not share a key: %v vs %v", key, KeyOf(r)))
		}
	}

	ordered := slices.Clone(rows)
	slices.SortStableFunc(ordered, func(a, b Entry) int {
		if c := a.DateAdded.Compare(b.DateAdded); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	keep := ordered[0]
	keep.Version = key.Version
	keep.Quantity = 0
	for _, r := range ordered {
		keep.Quantity += max(r.Quantity, 0)
		if ConditionRank(r.Condition) > ConditionRank(keep.Condition) {
			keep.Condition = r.Condition
		}
		if keep.PurchasePrice == nil && r.PurchasePrice != nil {
			p := *r.PurchasePrice
			keep.PurchasePrice = &p
		}
		if !keep.IsGraded && r.IsGraded {
			keep.IsGraded = true
			keep.GradeCompany = r.GradeCompany
			keep.Grade = r.Grade
		}
	}
	if keep.Quantity < 1 {
		keep.Quantity = 1
	}

	plan := MergePlan{Keep: keep}
	for _, r := range ordered[1:] {
		plan.Remove = append(plan.Remove, r.ID)
	}
	return plan, nil
}

// SplitForSale orders the copies of one key for the sale view: the best
// copy is kept and the rest, worst condition first, are returned as spare.
// Quantities above 1 on a row count as several copies of that row.
func SplitForSale(rows []Entry) (best Entry, spare []Entry) {
	if len(rows) == 0 {
		return Entry{}, nil
	}
	ordered := slices.Clone(rows)
	slices.SortStableFunc(ordered, func(a, b Entry) int {
		return ConditionRank(a.Condition) - ConditionRank(b.Condition)
	})

	best = ordered[len(ordered)-1]
	spare = ordered[:len(ordered)-1]
	if best.Quantity > 1 {
		extra := best
		extra.Quantity = best.Quantity - 1
		spare = append(spare, extra)
		best.Quantity = 1
	}
	return best, spare
}
