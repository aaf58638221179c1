// Package pokemontcg is a client for the Pokémon TCG API v2
// (https://api.pokemontcg.io). It implements cardcache.Source.
package pokemontcg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/logging"
	"github.com/vaultestim/vaultestim/internal/tcg"
)

const (
	DefaultBaseURL = "https://api.pokemontcg.io/v2"

	rateLimitDelay = 200 * time.Millisecond // 5 req/sec, well under the keyed limit
	requestTimeout = 15 * time.Second
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 16 * time.Second
	maxPageSize    = 250
)

// Client talks to the catalog API with rate limiting and retries.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      logging.Logger
	baseURL     string
	apiKey      string
	userAgent   string

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	pageSize       int
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithAPIKey sets the X-Api-Key header. The API works without a key at a
// lower rate limit.
func WithAPIKey(key string) Option { return func(c *Client) { c.apiKey = key } }

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

func WithRateLimit(every time.Duration, burst int) Option {
	return func(c *Client) { c.rateLimiter = rate.NewLimiter(rate.Every(every), burst) }
}

func WithBackoff(initial, ceiling time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = initial
		c.maxBackoff = ceiling
	}
}

func WithMaxRetries(n int) Option { return func(c *Client) { c.maxRetries = n } }

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= maxPageSize {
			c.pageSize = n
		}
	}
}

func WithLogger(l logging.Logger) Option { return func(c *Client) { c.logger = l } }

// NewClient creates a catalog client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: requestTimeout},
		rateLimiter:    rate.NewLimiter(rate.Every(rateLimitDelay), 1),
		logger:         logging.Nop(),
		baseURL:        DefaultBaseURL,
		userAgent:      "VaultEstim/1.0",
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		pageSize:       maxPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListSets returns every set, oldest first.
func (c *Client) ListSets(ctx context.Context) ([]tcg.Set, error) {
	var sets []tcg.Set
	err := c.paginate(ctx, "/sets", url.Values{"orderBy": {"releaseDate"}}, func(raw map[string]any) error {
		s, err := tcg.NormalizeSet(raw)
		if err != nil {
			return err
		}
		sets = append(sets, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sets: %w", err)
	}
	return sets, nil
}

// ListCards returns every card of one raw set.
func (c *Client) ListCards(ctx context.Context, setID string) ([]tcg.Card, error) {
	q := url.Values{"q": {"set.id:" + setID}, "orderBy": {"number"}}
	var cards []tcg.Card
	err := c.paginate(ctx, "/cards", q, func(raw map[string]any) error {
		card, err := tcg.Normalize(raw)
		if err != nil {
			c.logger.Warn(ctx, "skipping malformed card record", "set", setID, "error", err)
			return nil
		}
		cards = append(cards, card)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of set %s: %w", setID, err)
	}
	return cards, nil
}

// GetCard retrieves one card by catalog id.
func (c *Client) GetCard(ctx context.Context, cardID string) (tcg.Card, error) {
	var resp single[map[string]any]
	if err := c.doRequest(ctx, c.baseURL+"/cards/"+url.PathEscape(cardID), &resp); err != nil {
		return tcg.Card{}, fmt.Errorf("failed to get card %s: %w", cardID, err)
	}
	return tcg.Normalize(resp.Data)
}

// GetPricedCard retrieves the price blocks of one card.
func (c *Client) GetPricedCard(ctx context.Context, cardID string) (*PricedCard, error) {
	var resp single[PricedCard]
	if err := c.doRequest(ctx, c.baseURL+"/cards/"+url.PathEscape(cardID), &resp); err != nil {
		return nil, fmt.Errorf("failed to get prices of card %s: %w", cardID, err)
	}
	return &resp.Data, nil
}

func (c *Client) paginate(ctx context.Context, path string, q url.Values, each func(map[string]any) error) error {
	seen := 0
	for n := 1; ; n++ {
		q.Set("page", strconv.Itoa(n))
		q.Set("pageSize", strconv.Itoa(c.pageSize))

		var p page
		if err := c.doRequest(ctx, c.baseURL+path+"?"+q.Encode(), &p); err != nil {
			return err
		}
		for _, raw := range p.Data {
			if err := each(raw); err != nil {
				return err
			}
		}
		seen += len(p.Data)
		if len(p.Data) == 0 || seen >= p.TotalCount {
			return nil
		}
	}
}

// doRequest performs a GET with rate limiting and retries on network
// errors, 429 and 5xx. Failures come back as apperr kinds.
func (c *Client) doRequest(ctx context.Context, u string, result any) error {
	const op = "pokemontcg.request"

	var lastErr error
	backoff := c.initialBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff); err != nil {
				return classify(op, err)
			}
			backoff = min(backoff*2, c.maxBackoff)
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return classify(op, fmt.Errorf("rate limiter: %w", err))
		}

		retry, wait, err := c.once(ctx, u, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return classify(op, err)
		}
		if wait > backoff {
			backoff = wait
		}
		c.logger.Debug(ctx, "retrying catalog request", "url", u, "attempt", attempt+1, "error", err)
	}

	return classify(op, fmt.Errorf("max retries exceeded: %w", lastErr))
}

// once performs one attempt. retry reports whether a later attempt may
// succeed; wait is the server's Retry-After hint.
func (c *Client) once(ctx context.Context, u string, result any) (retry bool, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.Unmarshal(body, result); err != nil {
			return false, 0, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		return false, 0, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, 0, &NotFoundError{URL: u}
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, retryAfter(resp.Header.Get("Retry-After")), parseAPIError(resp.StatusCode, body)
	case resp.StatusCode >= 500:
		return true, 0, parseAPIError(resp.StatusCode, body)
	default:
		return false, 0, parseAPIError(resp.StatusCode, body)
	}
}

// NotFoundError is returned for 404 responses.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}

func classify(op string, err error) error {
	var nf *NotFoundError
	var netErr net.Error
	switch {
	case errors.As(err, &nf):
		return apperr.E(apperr.NotFound, op, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return apperr.E(apperr.Timeout, op, err)
	default:
		return apperr.E(apperr.UpstreamUnavailable, op, err)
	}
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
