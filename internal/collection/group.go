package collection

import (
	"slices"
	"sort"

	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

// VersionGroup is every row of one (card, version) pair.
type VersionGroup struct {
	Version  string  `json:"version"`
	Quantity int     `json:"quantity"`
	Rows     []Entry `json:"rows"`

	// position of the group's first row in the input, for stable ordering
	first int
}

// Grouped is cardID -> version -> group.
type Grouped map[string]map[string]*VersionGroup

// GroupForDisplay groups rows by card and canonical version. Rows with a
// quantity below 1 are ignored.
func GroupForDisplay(entries []Entry) Grouped {
	g := make(Grouped)
	keys := make(keyer)
	for i, e := range entries {
		if e.Quantity < 1 {
			continue
		}
		k := keys.of(e)
		byVersion, ok := g[k.CardID]
		if !ok {
			byVersion = make(map[string]*VersionGroup)
			g[k.CardID] = byVersion
		}
		vg, ok := byVersion[k.Version]
		if !ok {
			vg = &VersionGroup{Version: k.Version, first: i}
			byVersion[k.Version] = vg
		}
		vg.Quantity += e.Quantity
		vg.Rows = append(vg.Rows, e)
	}
	return g
}

// Versions returns the card's groups in display order. Known labels follow
// the version priority; unknown labels come after, in input order.
func (g Grouped) Versions(cardID string) []*VersionGroup {
	byVersion := g[cardID]
	out := make([]*VersionGroup, 0, len(byVersion))
	for _, vg := range byVersion {
		out = append(out, vg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].first < out[j].first })
	slices.SortStableFunc(out, func(a, b *VersionGroup) int {
		return versions.Rank(a.Version) - versions.Rank(b.Version)
	})
	return out
}

// CardIDs returns the grouped card ids sorted.
func (g Grouped) CardIDs() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Quantity returns the total owned copies of a card across versions.
func (g Grouped) Quantity(cardID string) int {
	total := 0
	for _, vg := range g[cardID] {
		total += vg.Quantity
	}
	return total
}

// OwnedVersions returns the distinct versions owned for cardID, in display order.
func OwnedVersions(entries []Entry, cardID string) []string {
	var out []string
	for _, vg := range GroupForDisplay(entries).Versions(cardID) {
		out = append(out, vg.Version)
	}
	return out
}
