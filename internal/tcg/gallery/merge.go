// Package gallery folds gallery sub-sets (Galarian Gallery "gg", Trainer
// Gallery "tg") into their parent set so browsing and counting treat them as
// one logical set.
package gallery

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/vaultestim/vaultestim/internal/tcg"
)

// satelliteSuffixes are the only id suffixes that mark a gallery sub-set.
// Anything else ("pt5", "a", ...) is never merged, even when stripping
// characters would happen to name an existing set.
var satelliteSuffixes = []struct {
	suffix string
	kind   string
}{
	{suffix: "gg", kind: "Galarian Gallery"},
	{suffix: "tg", kind: "Trainer Gallery"},
}

// DateConflict records a release-date decision taken while collapsing
// duplicate entries of one set.
type DateConflict struct {
	SetID string
	// Votes per candidate date.
	Candidates map[string]int
	Chosen     string
}

// Result is the outcome of Merge.
type Result struct {
	// Top-level sets sorted by id.
	Sets []tcg.Set
	// Satellite id -> parent id for every satellite folded in this run.
	Merged map[string]string
	// Release-date decisions, sorted by set id.
	Conflicts []DateConflict
}

// SatelliteParent returns the candidate parent id of a gallery sub-set.
// ok is false when id carries no gallery suffix.
func SatelliteParent(id string) (parent string, kind string, ok bool) {
	for _, s := range satelliteSuffixes {
		if len(id) > len(s.suffix) && strings.HasSuffix(id, s.suffix) {
			return id[:len(id)-len(s.suffix)], s.kind, true
		}
	}
	return "", "", false
}

// MergeGallerySets returns the logical sets. It is deterministic and
// idempotent and never modifies its input.
func MergeGallerySets(sets []tcg.Set) []tcg.Set {
	return Merge(sets).Sets
}

// Merge collapses duplicate set entries, folds satellites into their parent
// and reports every release-date decision.
func Merge(sets []tcg.Set) Result {
	grouped := make(map[string][]tcg.Set)
	for _, s := range sets {
		grouped[s.ID] = append(grouped[s.ID], s)
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := Result{Merged: make(map[string]string)}
	logical := make(map[string]*tcg.Set, len(ids))
	for _, id := range ids {
		set, conflict := collapse(id, grouped[id])
		logical[id] = &set
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
		}
	}

	for _, id := range ids {
		parentID, _, ok := SatelliteParent(id)
		if !ok {
			continue
		}
		parent, exists := logical[parentID]
		if !exists {
			continue
		}
		satellite := logical[id]
		if satellite == nil {
			continue
		}
		parent.Cards = append(parent.Cards, satellite.Cards...)
		delete(logical, id)
		result.Merged[id] = parentID
	}

	result.Sets = make([]tcg.Set, 0, len(logical))
	for _, id := range ids {
		if s, ok := logical[id]; ok {
			result.Sets = append(result.Sets, *s)
		}
	}

	return result
}

// collapse turns every entry sharing one id into a single set. The first
// non-empty name and series win; cards are unioned by card id.
func collapse(id string, entries []tcg.Set) (tcg.Set, *DateConflict) {
	out := entries[0].Clone()
	if len(entries) == 1 {
		if out.ReleaseDate == "" {
			votes := make(map[string]int)
			addCardVotes(votes, id, out.Cards)
			if chosen := pickDate(votes); chosen != "" {
				out.ReleaseDate = chosen
				return out, &DateConflict{SetID: id, Candidates: votes, Chosen: chosen}
			}
		}
		return out, nil
	}

	seen := make(map[string]struct{}, len(out.Cards))
	for _, c := range out.Cards {
		seen[c.ID] = struct{}{}
	}

	votes := make(map[string]int)
	for i, e := range entries {
		if out.Name == "" {
			out.Name = e.Name
		}
		if out.Series == "" {
			out.Series = e.Series
		}
		if out.Total == 0 {
			out.Total = e.Total
		}
		if e.ReleaseDate != "" {
			votes[e.ReleaseDate]++
		}
		if i == 0 {
			continue
		}
		for _, c := range e.Cards {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out.Cards = append(out.Cards, c)
		}
	}
	addCardVotes(votes, id, out.Cards)

	chosen := pickDate(votes)
	if chosen == "" {
		return out, nil
	}
	out.ReleaseDate = chosen
	if len(votes) < 2 {
		return out, nil
	}
	return out, &DateConflict{SetID: id, Candidates: votes, Chosen: chosen}
}

func addCardVotes(votes map[string]int, setID string, cards []tcg.Card) {
	for _, c := range cards {
		if c.Set.ID == setID && c.Set.ReleaseDate != "" {
			votes[c.Set.ReleaseDate]++
		}
	}
}

// pickDate returns the most frequent date, ties broken by the earliest date.
func pickDate(votes map[string]int) string {
	candidates := make([]string, 0, len(votes))
	for d := range votes {
		candidates = append(candidates, d)
	}
	slices.SortFunc(candidates, func(a, b string) int {
		if votes[a] != votes[b] {
			return votes[b] - votes[a]
		}
		if c := compareDates(a, b); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

var dateLayouts = []string{"2006/01/02", "2006-01-02", time.RFC3339}

// ParseDate parses the catalog's release date formats.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func compareDates(a, b string) int {
	ta, okA := ParseDate(a)
	tb, okB := ParseDate(b)
	switch {
	case okA && okB:
		return ta.Compare(tb)
	case okA:
		return -1
	case okB:
		return 1
	default:
		return 0
	}
}

// SortByRelease orders sets newest first, ids breaking ties.
func SortByRelease(sets []tcg.Set) {
	slices.SortStableFunc(sets, func(a, b tcg.Set) int {
		if c := compareDates(b.ReleaseDate, a.ReleaseDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
