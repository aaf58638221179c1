package vault

import (
	"context"

	"github.com/vaultestim/vaultestim/internal/collection"
	"github.com/vaultestim/vaultestim/internal/prices"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

// PriceFacade refreshes and reads market prices.
type PriceFacade struct {
	services   *Services
	collection *CollectionFacade
}

// NewPriceFacade creates a new PriceFacade with the given services.
func NewPriceFacade(services *Services) *PriceFacade {
	return &PriceFacade{services: services, collection: NewCollectionFacade(services)}
}

// PriceRequest names one (card, version); a blank version means the
// card's default version.
type PriceRequest struct {
	CardID  string `json:"cardId"`
	Version string `json:"version"`
}

// Refresh fetches prices for reqs. Unknown cards are reported as failures
// without calling the provider.
func (p *PriceFacade) Refresh(ctx context.Context, reqs []PriceRequest) (prices.Report, error) {
	if p.services.Refresher == nil {
		return prices.Report{}, notConfigured("vault.Prices.Refresh", "price refresh")
	}

	var (
		batch   []prices.Request
		missing []prices.Failure
	)
	for _, req := range reqs {
		card, err := p.services.Catalog.FindCard(ctx, req.CardID)
		if err != nil {
			missing = append(missing, prices.Failure{
				Request: prices.Request{Card: tcg.Card{ID: req.CardID}, Version: req.Version},
				Error:   err.Error(),
			})
			continue
		}
		version := req.Version
		if version == "" {
			version = p.services.resolver().DefaultVersion(card)
		}
		batch = append(batch, prices.Request{Card: card, Version: versions.Canonical(version)})
	}

	rep := p.services.Refresher.Refresh(ctx, batch)
	rep.Failed = append(missing, rep.Failed...)
	return rep, nil
}

// RefreshCollection refreshes every (card, version) a user owns.
func (p *PriceFacade) RefreshCollection(ctx context.Context, userID string) (prices.Report, error) {
	rows, err := p.collection.Rows(ctx, userID)
	if err != nil {
		return prices.Report{}, err
	}

	grouped := collection.GroupForDisplay(rows)
	var reqs []PriceRequest
	for _, cardID := range grouped.CardIDs() {
		for _, vg := range grouped.Versions(cardID) {
			reqs = append(reqs, PriceRequest{CardID: cardID, Version: vg.Version})
		}
	}
	return p.Refresh(ctx, reqs)
}

// Latest returns the stored price of a (card, version).
func (p *PriceFacade) Latest(ctx context.Context, cardID, version string) (prices.Price, error) {
	if p.services.Prices == nil {
		return prices.Price{}, notConfigured("vault.Prices.Latest", "price store")
	}
	return p.services.Prices.Latest(ctx, cardID, versions.Canonical(version))
}

// Quota reports the provider's daily budget.
func (p *PriceFacade) Quota(ctx context.Context) (prices.QuotaStatus, error) {
	if p.services.Quota == nil {
		return prices.QuotaStatus{}, notConfigured("vault.Prices.Quota", "price quota")
	}
	return p.services.Quota.Status(ctx), nil
}
