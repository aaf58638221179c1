// Package prices estimates market prices of collection cards from
// third-party APIs under a daily request budget.
package prices

import (
	"context"
	"time"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

// Price is one market estimate for a (card, version).
type Price struct {
	CardID   string  `json:"cardId"`
	Version  string  `json:"version"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Source   string  `json:"source"`
	// upstream field the amount was read from, e.g. "avg7"
	Field string `json:"field,omitempty"`

	Low   float64 `json:"low,omitempty"`
	Trend float64 `json:"trend,omitempty"`
	Avg30 float64 `json:"avg30,omitempty"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// Provider fetches prices from one upstream.
type Provider interface {
	Name() string
	Currency() string
	Price(ctx context.Context, card tcg.Card, version string) (Price, error)
}

// isReverse reports whether version is one of the reverse-foil prints.
func isReverse(version string) bool {
	switch versions.Canonical(version) {
	case versions.ReverseHolo, versions.ReversePokeball, versions.ReverseMasterball:
		return true
	}
	return false
}

// isFoil reports whether version is a holo-foil print other than reverse.
func isFoil(version string) bool {
	switch versions.Canonical(version) {
	case versions.Normale, versions.Tampon, versions.Promo:
		return false
	}
	return !isReverse(version)
}

// firstPositive returns the first value > 0 and its index, or -1.
func firstPositive(vals ...float64) (float64, int) {
	for i, v := range vals {
		if v > 0 {
			return v, i
		}
	}
	return 0, -1
}

// NewProvider builds the provider named in configuration: "pokemontcg"
// or "rapidapi".
func NewProvider(name string, catalog PricedCardGetter, rapid RapidAPIConfig, quota *QuotaTracker) (Provider, error) {
	switch name {
	case "", "pokemontcg":
		return NewPokemonTCGProvider(catalog), nil
	case "rapidapi":
		if rapid.Key == "" {
			return nil, apperr.Errorf(apperr.Invalid, "prices.NewProvider", "rapidapi provider needs an API key")
		}
		return NewRapidAPIProvider(rapid, quota), nil
	}
	return nil, apperr.Errorf(apperr.Invalid, "prices.NewProvider", "unknown price provider %q", name)
}
