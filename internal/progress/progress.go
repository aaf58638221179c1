// Package progress computes set completion for a user's collection.
package progress

import (
	"math"
	"sort"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/collection"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

// Mode selects what counts as one collectible.
type Mode int

const (
	// Base counts one copy per distinct card.
	Base Mode = iota
	// Masterset counts every cosmetic version of every card.
	Masterset
)

func (m Mode) String() string {
	if m == Masterset {
		return "masterset"
	}
	return "base"
}

// ParseMode parses "base" or "masterset". Blank means base.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "base":
		return Base, nil
	case "masterset", "master":
		return Masterset, nil
	}
	return Base, apperr.Errorf(apperr.Invalid, "progress.ParseMode", "unknown progress mode %q", s)
}

// Result is the completion of one set.
type Result struct {
	SetID      string `json:"setId"`
	SetName    string `json:"setName,omitempty"`
	Mode       string `json:"mode"`
	Owned      int    `json:"owned"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// RarityCompletion is the completion of one rarity within a set.
type RarityCompletion struct {
	Rarity     string `json:"rarity"`
	Owned      int    `json:"owned"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// Percent returns round(100*owned/total), or 0 when total is 0.
func Percent(owned, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(owned) / float64(total)))
}

// Compute returns the completion of setID. catalogCards is the merged card
// list of the set; rows outside it are ignored. A nil resolver means the
// default one.
func Compute(setID string, rows []collection.Entry, catalogCards []tcg.Card, mode Mode, r *versions.Resolver) Result {
	if r == nil {
		r = versions.Default()
	}
	owned := ownedByCard(rows)

	res := Result{SetID: setID, Mode: mode.String()}
	seen := make(map[string]struct{}, len(catalogCards))
	for _, card := range catalogCards {
		if _, dup := seen[card.ID]; dup {
			continue
		}
		seen[card.ID] = struct{}{}

		o, t := count(card, owned[card.ID], mode, r)
		res.Owned += o
		res.Total += t
	}
	res.Percentage = Percent(res.Owned, res.Total)
	return res
}

// ComputeAll returns the completion of every set, in the given set order.
func ComputeAll(sets []tcg.Set, rows []collection.Entry, mode Mode, r *versions.Resolver) []Result {
	if r == nil {
		r = versions.Default()
	}
	out := make([]Result, 0, len(sets))
	for _, s := range sets {
		res := Compute(s.ID, rows, s.Cards, mode, r)
		res.SetName = s.Name
		out = append(out, res)
	}
	return out
}

// ByRarity breaks the completion of one set down by card rarity. Cards
// without a rarity are grouped under "Unknown".
func ByRarity(rows []collection.Entry, catalogCards []tcg.Card, mode Mode, r *versions.Resolver) []RarityCompletion {
	if r == nil {
		r = versions.Default()
	}
	owned := ownedByCard(rows)

	byRarity := make(map[string]*RarityCompletion)
	seen := make(map[string]struct{}, len(catalogCards))
	for _, card := range catalogCards {
		if _, dup := seen[card.ID]; dup {
			continue
		}
		seen[card.ID] = struct{}{}

		rarity := card.Rarity
		if rarity == "" {
			rarity = "Unknown"
		}
		rc, ok := byRarity[rarity]
		if !ok {
			rc = &RarityCompletion{Rarity: rarity}
			byRarity[rarity] = rc
		}
		o, t := count(card, owned[card.ID], mode, r)
		rc.Owned += o
		rc.Total += t
	}

	out := make([]RarityCompletion, 0, len(byRarity))
	for _, rc := range byRarity {
		rc.Percentage = Percent(rc.Owned, rc.Total)
		out = append(out, *rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rarity < out[j].Rarity })
	return out
}

// count returns the owned and total collectibles for one catalog card.
func count(card tcg.Card, ownedVersions map[string]struct{}, mode Mode, r *versions.Resolver) (owned, total int) {
	if mode == Base {
		if len(ownedVersions) > 0 {
			return 1, 1
		}
		return 0, 1
	}

	allowed := r.Resolve(card)
	for _, v := range allowed {
		if _, ok := ownedVersions[v]; ok {
			owned++
		}
	}
	return owned, len(allowed)
}

// ownedByCard maps card id to the distinct canonical versions held with a
// positive quantity.
func ownedByCard(rows []collection.Entry) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{})
	for _, e := range rows {
		if e.Quantity < 1 {
			continue
		}
		k := collection.KeyOf(e)
		vs, ok := out[k.CardID]
		if !ok {
			vs = make(map[string]struct{})
			out[k.CardID] = vs
		}
		vs[k.Version] = struct{}{}
	}
	return out
}
