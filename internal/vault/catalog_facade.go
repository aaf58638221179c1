package vault

import (
	"context"
	"slices"

	"github.com/vaultestim/vaultestim/internal/cardcache"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/gallery"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

// CatalogFacade serves sets, cards and card versions.
type CatalogFacade struct {
	services *Services
}

// NewCatalogFacade creates a new CatalogFacade with the given services.
func NewCatalogFacade(services *Services) *CatalogFacade {
	return &CatalogFacade{services: services}
}

// SetSummary is a set without its cards.
type SetSummary struct {
	tcg.SetRef
	Total     int `json:"total,omitempty"`
	CardCount int `json:"cardCount"`
}

// CardVersions lists the versions a card can be collected in.
type CardVersions struct {
	CardID   string   `json:"cardId"`
	Versions []string `json:"versions"`
	Default  string   `json:"default"`
	Rule     string   `json:"rule"`
}

// Sets returns every set, newest release first.
func (c *CatalogFacade) Sets(ctx context.Context) ([]SetSummary, error) {
	sets, err := releaseOrdered(ctx, c.services.Catalog)
	if err != nil {
		return nil, err
	}
	out := make([]SetSummary, len(sets))
	for i, s := range sets {
		out[i] = SetSummary{SetRef: s.Ref(), Total: s.Total, CardCount: len(s.Cards)}
	}
	return out, nil
}

// Cards returns the cards of a set, gallery subsets included.
func (c *CatalogFacade) Cards(ctx context.Context, setID string) ([]tcg.Card, error) {
	return c.services.Catalog.GetCardsBySet(ctx, setID)
}

// Card returns one card.
func (c *CatalogFacade) Card(ctx context.Context, cardID string) (tcg.Card, error) {
	return c.services.Catalog.FindCard(ctx, cardID)
}

// CardVersions resolves the versions of a card.
func (c *CatalogFacade) CardVersions(ctx context.Context, cardID string) (CardVersions, error) {
	card, err := c.services.Catalog.FindCard(ctx, cardID)
	if err != nil {
		return CardVersions{}, err
	}
	return versionsOf(c.services.resolver(), card), nil
}

func versionsOf(r *versions.Resolver, card tcg.Card) CardVersions {
	return CardVersions{
		CardID:   card.ID,
		Versions: r.Resolve(card),
		Default:  r.DefaultVersion(card),
		Rule:     r.MatchedRule(card),
	}
}

// RefreshSet re-fetches one set into the cache.
func (c *CatalogFacade) RefreshSet(ctx context.Context, setID string) error {
	return c.services.Catalog.RefreshSet(ctx, setID)
}

// CacheStats reports the local cache state.
func (c *CatalogFacade) CacheStats(ctx context.Context) (cardcache.Stats, error) {
	return c.services.Catalog.Stats(ctx)
}

// releaseOrdered returns the catalog's sets newest release first. The
// cache's slice is shared, so the sort runs on a copy.
func releaseOrdered(ctx context.Context, catalog CatalogStore) ([]tcg.Set, error) {
	sets, err := catalog.Sets(ctx)
	if err != nil {
		return nil, err
	}
	sets = slices.Clone(sets)
	gallery.SortByRelease(sets)
	return sets, nil
}
