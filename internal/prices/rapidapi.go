package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

const (
	DefaultRapidAPIBaseURL = "https://cardmarket-api-tcg.p.rapidapi.com"
	DefaultRapidAPIHost    = "cardmarket-api-tcg.p.rapidapi.com"

	rapidSearchLimit = 20
)

// RapidAPIProvider reads Cardmarket data through the RapidAPI marketplace.
// Every call counts against the daily quota.
type RapidAPIProvider struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	quota       *QuotaTracker
	baseURL     string
	host        string
	key         string
	now         func() time.Time
}

type RapidAPIConfig struct {
	BaseURL string
	Host    string
	Key     string
	Timeout time.Duration
}

func NewRapidAPIProvider(cfg RapidAPIConfig, quota *QuotaTracker) *RapidAPIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRapidAPIBaseURL
	}
	if cfg.Host == "" {
		cfg.Host = DefaultRapidAPIHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &RapidAPIProvider{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 2),
		quota:       quota,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		host:        cfg.Host,
		key:         cfg.Key,
		now:         time.Now,
	}
}

func (p *RapidAPIProvider) Name() string     { return "rapidapi" }
func (p *RapidAPIProvider) Currency() string { return "EUR" }

type rapidCard struct {
	ID         int    `json:"id"`
	TCGID      string `json:"tcgid"`
	Name       string `json:"name"`
	CardNumber any    `json:"card_number"`
	Episode    struct {
		Slug string `json:"slug"`
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"episode"`
	Prices struct {
		Cardmarket struct {
			LowestNearMint float64 `json:"lowest_near_mint"`
			Avg7           float64 `json:"7d_average"`
			Avg30          float64 `json:"30d_average"`
		} `json:"cardmarket"`
		TCGPlayer struct {
			MarketPrice float64 `json:"market_price"`
			MidPrice    float64 `json:"mid_price"`
		} `json:"tcg_player"`
	} `json:"prices"`
}

func (c rapidCard) number() string {
	switch n := c.CardNumber.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// Price searches by card name and picks the result matching the catalog id,
// or else the collector number.
func (p *RapidAPIProvider) Price(ctx context.Context, card tcg.Card, version string) (Price, error) {
	const op = "prices.RapidAPIProvider.Price"

	results, err := p.search(ctx, card.Name)
	if err != nil {
		return Price{}, err
	}

	match, ok := pickRapidCard(results, card)
	if !ok {
		return Price{}, apperr.Errorf(apperr.NotFound, op, "no result for %s (%s #%s)", card.ID, card.Name, card.Number)
	}

	cm := match.Prices.Cardmarket
	amount, i := firstPositive(cm.LowestNearMint, cm.Avg30, cm.Avg7)
	field := []string{"lowest_near_mint", "30d_average", "7d_average"}
	if i < 0 {
		amount, i = firstPositive(match.Prices.TCGPlayer.MarketPrice, match.Prices.TCGPlayer.MidPrice)
		field = []string{"tcg_player.market_price", "tcg_player.mid_price"}
		if i < 0 {
			return Price{}, apperr.Errorf(apperr.NotFound, op, "no price listed for %s", card.ID)
		}
	}

	return Price{
		CardID:    card.ID,
		Version:   versions.Canonical(version),
		Amount:    amount,
		Currency:  "EUR",
		Source:    p.Name(),
		Field:     field[i],
		Low:       cm.LowestNearMint,
		Trend:     cm.Avg7,
		Avg30:     cm.Avg30,
		FetchedAt: p.now().UTC(),
	}, nil
}

func pickRapidCard(results []rapidCard, card tcg.Card) (rapidCard, bool) {
	for _, r := range results {
		if r.TCGID != "" && r.TCGID == card.ID {
			return r, true
		}
	}
	want := strings.TrimLeft(card.Number, "0")
	for _, r := range results {
		if want != "" && strings.TrimLeft(r.number(), "0") == want {
			return r, true
		}
	}
	return rapidCard{}, false
}

func (p *RapidAPIProvider) search(ctx context.Context, name string) ([]rapidCard, error) {
	const op = "prices.RapidAPIProvider.search"

	if err := p.quota.Reserve(ctx); err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			p.quota.Release(ctx)
		}
	}()

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, callFailure(op, err)
	}

	q := url.Values{
		"search": {name},
		"limit":  {strconv.Itoa(rapidSearchLimit)},
		"page":   {"1"},
		"sort":   {"episode_newest"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/pokemon/cards/search?"+q.Encode(), nil)
	if err != nil {
		return nil, apperr.E(apperr.Invalid, op, err)
	}
	req.Header.Set("X-RapidAPI-Key", p.key)
	req.Header.Set("X-RapidAPI-Host", p.host)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, callFailure(op, ctx.Err())
		}
		return nil, callFailure(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// the upstream counts every answered call, errors included
	committed = true
	p.quota.Commit(ctx)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.E(apperr.UpstreamUnavailable, op, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperr.Errorf(apperr.QuotaExceeded, op, "upstream quota exhausted: %s", body)
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.Errorf(apperr.UpstreamUnavailable, op, "status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Data []rapidCard `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.E(apperr.UpstreamUnavailable, op, fmt.Errorf("failed to parse JSON response: %w", err))
	}
	return out.Data, nil
}

// callFailure classifies an error raised before the upstream answered. A
// cancelled caller stays a cancellation.
func callFailure(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.E(apperr.Timeout, op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return apperr.E(apperr.UpstreamUnavailable, op, err)
	}
}
