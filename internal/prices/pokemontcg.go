package prices

import (
	"context"
	"time"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/pokemontcg"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

// PricedCardGetter is the catalog call the provider needs.
type PricedCardGetter interface {
	GetPricedCard(ctx context.Context, cardID string) (*pokemontcg.PricedCard, error)
}

// PokemonTCGProvider reads the Cardmarket (EUR) block of the catalog API
// and falls back to TCGplayer (USD).
type PokemonTCGProvider struct {
	client PricedCardGetter
	now    func() time.Time
}

func NewPokemonTCGProvider(client PricedCardGetter) *PokemonTCGProvider {
	return &PokemonTCGProvider{client: client, now: time.Now}
}

func (p *PokemonTCGProvider) Name() string     { return "pokemontcg" }
func (p *PokemonTCGProvider) Currency() string { return "EUR" }

func (p *PokemonTCGProvider) Price(ctx context.Context, card tcg.Card, version string) (Price, error) {
	pc, err := p.client.GetPricedCard(ctx, card.ID)
	if err != nil {
		return Price{}, err
	}

	out := Price{
		CardID:    card.ID,
		Version:   versions.Canonical(version),
		Source:    p.Name(),
		FetchedAt: p.now().UTC(),
	}
	if pc.Cardmarket != nil && cardmarketPrice(&out, pc.Cardmarket.Prices, isReverse(version)) {
		return out, nil
	}
	if pc.TCGPlayer != nil && tcgplayerPrice(&out, pc.TCGPlayer.Prices, version) {
		return out, nil
	}
	return Price{}, apperr.Errorf(apperr.NotFound, "prices.PokemonTCGProvider.Price", "no price for %s (%s)", card.ID, out.Version)
}

var (
	normalFields  = []string{"avg7", "avg1", "averageSellPrice", "trendPrice", "lowPrice"}
	reverseFields = []string{"reverseHoloTrend", "reverseHoloSell", "reverseHoloLow"}
)

func cardmarketPrice(out *Price, cm pokemontcg.CardmarketPrices, reverse bool) bool {
	rev, ri := firstPositive(cm.ReverseHoloTrend, cm.ReverseHoloSell, cm.ReverseHoloLow)
	norm, ni := firstPositive(cm.Avg7, cm.Avg1, cm.AverageSellPrice, cm.TrendPrice, cm.LowPrice)

	out.Currency = "EUR"
	switch {
	case reverse && ri >= 0:
		out.Amount, out.Field = rev, reverseFields[ri]
		out.Low, out.Trend, out.Avg30 = cm.ReverseHoloLow, cm.ReverseHoloTrend, cm.ReverseHoloAvg30
	case ni >= 0:
		out.Amount, out.Field = norm, normalFields[ni]
		out.Low, out.Trend, out.Avg30 = cm.LowPrice, cm.TrendPrice, cm.Avg30
	case ri >= 0:
		// only reverse prices listed: better than nothing for a non-reverse copy
		out.Amount, out.Field = rev, reverseFields[ri]
		out.Low, out.Trend, out.Avg30 = cm.ReverseHoloLow, cm.ReverseHoloTrend, cm.ReverseHoloAvg30
	default:
		return false
	}
	return true
}

func tcgplayerPrice(out *Price, byVariant map[string]pokemontcg.TCGPlayerPrice, version string) bool {
	var order []string
	switch {
	case isReverse(version):
		order = []string{"reverseHolofoil", "holofoil", "normal"}
	case isFoil(version):
		order = []string{"holofoil", "unlimitedHolofoil", "1stEditionHolofoil", "normal"}
	default:
		order = []string{"normal", "unlimitedNormal", "holofoil", "reverseHolofoil"}
	}
	for _, variant := range order {
		tp, ok := byVariant[variant]
		if !ok {
			continue
		}
		if amount, _ := firstPositive(tp.Market, tp.Mid, tp.Low); amount > 0 {
			out.Amount = amount
			out.Currency = "USD"
			out.Field = "tcgplayer." + variant
			out.Low = tp.Low
			return true
		}
	}
	return false
}
